package repository

import (
	"context"
	"testing"

	"github.com/propia/deal-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Notification{
		RecipientID:   2,
		TransactionID: 7,
		Message:       "El comprador pagó la transacción",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.Read)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestNotificationRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, &model.Notification{
			RecipientID:   2,
			TransactionID: 7,
			Message:       "Transacción actualizada",
		})
		require.NoError(t, err)
	}
	read, err := repo.Create(ctx, &model.Notification{
		RecipientID:   2,
		TransactionID: 7,
		Message:       "Transacción validada",
	})
	require.NoError(t, err)
	require.NoError(t, repo.MarkRead(ctx, read.ID, 2))

	_, err = repo.Create(ctx, &model.Notification{
		RecipientID: 3,
		Message:     "Nuevo mensaje en el chat",
	})
	require.NoError(t, err)

	t.Run("feed is scoped to the recipient", func(t *testing.T) {
		items, total, err := repo.List(ctx, model.NotificationFilter{RecipientID: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)
		assert.Len(t, items, 6)
		for _, n := range items {
			assert.Equal(t, int64(2), n.RecipientID)
		}
	})

	t.Run("unread filter drops read entries", func(t *testing.T) {
		items, total, err := repo.List(ctx, model.NotificationFilter{RecipientID: 2, UnreadOnly: true})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		for _, n := range items {
			assert.False(t, n.Read)
		}
	})

	t.Run("pagination respects limit and offset", func(t *testing.T) {
		items, total, err := repo.List(ctx, model.NotificationFilter{RecipientID: 2, Limit: 4, Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)
		assert.Len(t, items, 2)
	})

	t.Run("empty feed is not an error", func(t *testing.T) {
		items, total, err := repo.List(ctx, model.NotificationFilter{RecipientID: 99})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, items)
	})
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Notification{
		RecipientID: 2,
		Message:     "Transacción completada",
	})
	require.NoError(t, err)

	t.Run("recipient marks their own entry", func(t *testing.T) {
		require.NoError(t, repo.MarkRead(ctx, created.ID, 2))

		items, _, err := repo.List(ctx, model.NotificationFilter{RecipientID: 2})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.True(t, items[0].Read)
	})

	t.Run("marking twice stays read", func(t *testing.T) {
		require.NoError(t, repo.MarkRead(ctx, created.ID, 2))
	})

	t.Run("someone else's entry is not found", func(t *testing.T) {
		err := repo.MarkRead(ctx, created.ID, 3)
		assert.ErrorIs(t, err, ErrNotificationNotFound)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		err := repo.MarkRead(ctx, 9999, 2)
		assert.ErrorIs(t, err, ErrNotificationNotFound)
	})
}
