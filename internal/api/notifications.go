package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/nyord-notifier/internal/model"
)

const notificationsPath = "/api/notifications"

// ListOptions controls paging of the notification list.
type ListOptions struct {
	Skip       int
	Limit      int
	UnreadOnly bool
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Skip > 0 {
		q.Set("skip", strconv.Itoa(o.Skip))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.UnreadOnly {
		q.Set("unread_only", "true")
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListNotifications calls GET /api/notifications/ and returns the list
// newest-first as ordered by the server.
func (c *Client) ListNotifications(
	ctx context.Context,
	opts ListOptions,
) ([]model.Notification, error) {
	var out []model.Notification
	if err := c.get(ctx, notificationsPath+"/"+opts.query(), &out); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	if out == nil {
		out = []model.Notification{}
	}
	return out, nil
}

// Stats calls GET /api/notifications/stats.
func (c *Client) Stats(ctx context.Context) (*model.Stats, error) {
	var out model.Stats
	if err := c.get(ctx, notificationsPath+"/stats", &out); err != nil {
		return nil, fmt.Errorf("fetching notification stats: %w", err)
	}
	return &out, nil
}

// updateRequest is the body of PUT /api/notifications/{id}.
type updateRequest struct {
	IsRead bool `json:"is_read"`
}

// MarkRead calls PUT /api/notifications/{id} with {"is_read": true} and
// returns the updated notification.
func (c *Client) MarkRead(
	ctx context.Context,
	id model.ID,
) (*model.Notification, error) {
	var out model.Notification
	path := notificationsPath + "/" + url.PathEscape(id.String())
	if err := c.put(ctx, path, updateRequest{IsRead: true}, &out); err != nil {
		return nil, fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return &out, nil
}

// MarkAllRead calls PUT /api/notifications/mark-all-read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.put(ctx, notificationsPath+"/mark-all-read", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// Delete calls DELETE /api/notifications/{id}.
func (c *Client) Delete(ctx context.Context, id model.ID) error {
	path := notificationsPath + "/" + url.PathEscape(id.String())
	if err := c.delete(ctx, path, nil); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}
