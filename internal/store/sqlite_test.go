package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/nyord-notifier/internal/model"
	"github.com/nhle/nyord-notifier/internal/store"
	"github.com/nhle/nyord-notifier/tests/testutil"
)

func TestSettings(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	v, err := s.GetSetting(ctx, "alerts.permission")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetSetting(ctx, "alerts.permission", "granted"))
	require.NoError(t, s.SetSetting(ctx, "alerts.permission", "denied"))

	v, err = s.GetSetting(ctx, "alerts.permission")
	require.NoError(t, err)
	assert.Equal(t, "denied", v)
}

func TestAlertLedger(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	first, err := s.MarkAlerted(ctx, "42")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkAlerted(ctx, "42")
	require.NoError(t, err)
	assert.False(t, again)

	n, err := s.PruneAlerted(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	first, err = s.MarkAlerted(ctx, "42")
	require.NoError(t, err)
	assert.True(t, first, "pruned ids alert again")
}

func TestAlertLedger_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifier.db")
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	first, err := s.MarkAlerted(ctx, "7")
	require.NoError(t, err)
	require.True(t, first)
	require.NoError(t, s.Close())

	reopened, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	first, err = reopened.MarkAlerted(ctx, "7")
	require.NoError(t, err)
	assert.False(t, first)
}

func TestNotificationCache(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	created := model.NewTimestamp(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	readAt := model.NewTimestamp(time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC))

	list := []model.Notification{
		{ID: "3", Type: model.TypeTransaction, Category: model.CategoryTransaction, Title: "newest", CreatedAt: created},
		{ID: "2", Type: model.TypeLoanApproved, Category: model.CategoryLoan, Title: "middle", IsRead: true, ReadAt: &readAt, CreatedAt: created},
		{ID: "1", Type: model.TypeGeneral, Title: "oldest", CreatedAt: created},
	}
	require.NoError(t, s.SaveNotifications(ctx, "u1", list))
	require.NoError(t, s.SaveNotifications(ctx, "u2", list[:1]))

	got, err := s.LoadNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, model.ID("3"), got[0].ID)
	assert.Equal(t, model.ID("1"), got[2].ID)
	assert.True(t, got[1].IsRead)
	require.NotNil(t, got[1].ReadAt)
	assert.True(t, got[1].ReadAt.Equal(readAt.Time))
	assert.True(t, got[0].CreatedAt.Equal(created.Time))

	require.NoError(t, s.SaveNotifications(ctx, "u1", list[1:]))
	got, err = s.LoadNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 2, "save replaces")

	require.NoError(t, s.ClearNotifications(ctx, "u1"))
	got, err = s.LoadNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	other, err := s.LoadNotifications(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
