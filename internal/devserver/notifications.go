package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 50)
	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	s.mu.Lock()
	all := s.sortedLocked(userID)
	out := make([]record, 0, len(all))
	for _, rec := range all {
		if unreadOnly && rec.IsRead {
			continue
		}
		out = append(out, *rec)
	}
	s.mu.Unlock()

	if skip >= len(out) {
		out = out[:0]
	} else {
		out = out[skip:]
	}
	if limit < len(out) {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

type stats struct {
	TotalCount  int `json:"total_count"`
	UnreadCount int `json:"unread_count"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	s.mu.Lock()
	st := stats{TotalCount: len(s.notifications[userID])}
	for _, rec := range s.notifications[userID] {
		if !rec.IsRead {
			st.UnreadCount++
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	s.mu.Lock()
	at := s.stamp()
	updated := 0
	for _, rec := range s.notifications[userID] {
		if !rec.IsRead {
			rec.IsRead = true
			rec.ReadAt = &at
			updated++
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Marked %d notifications as read", updated),
	})
}

type updateRequest struct {
	IsRead bool `json:"is_read"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "notification_id must be an integer")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.Lock()
	_, rec := s.findLocked(userID, id)
	if rec == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Notification not found")
		return
	}
	switch {
	case req.IsRead && !rec.IsRead:
		at := s.stamp()
		rec.ReadAt = &at
	case !req.IsRead && rec.IsRead:
		rec.ReadAt = nil
	}
	rec.IsRead = req.IsRead
	out := *rec
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "notification_id must be an integer")
		return
	}

	s.mu.Lock()
	i, rec := s.findLocked(userID, id)
	if rec != nil {
		list := s.notifications[userID]
		s.notifications[userID] = append(list[:i:i], list[i+1:]...)
	}
	s.mu.Unlock()

	if rec == nil {
		writeDetail(w, http.StatusNotFound, "Notification not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification deleted successfully"})
}
