package services

import (
	"context"
	"testing"

	"github.com/propia/deal-gateway/internal/model"
	"github.com/propia/deal-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Notification), args.Error(1)
}

func (m *MockNotificationRepository) List(ctx context.Context, f model.NotificationFilter) ([]*model.Notification, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Notification), args.Get(1).(int64), args.Error(2)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id, recipientID int64) error {
	args := m.Called(ctx, id, recipientID)
	return args.Error(0)
}

func TestNotificationService_Feed(t *testing.T) {
	repo := new(MockNotificationRepository)
	svc := NewNotificationService(repo)
	ctx := context.Background()

	filter := model.NotificationFilter{RecipientID: 2, Limit: 10}
	repo.On("List", ctx, filter).Return([]*model.Notification{
		{ID: 1, RecipientID: 2, Message: "New interest in your listing"},
	}, int64(1), nil)

	feed, total, err := svc.Feed(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, feed, 1)
	assert.Equal(t, int64(2), feed[0].RecipientID)
}

func TestNotificationService_MarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("marks own notification", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := NewNotificationService(repo)

		repo.On("MarkRead", ctx, int64(1), int64(2)).Return(nil)
		require.NoError(t, svc.MarkRead(ctx, 1, 2))
	})

	t.Run("unknown or foreign notification", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := NewNotificationService(repo)

		repo.On("MarkRead", ctx, int64(1), int64(99)).Return(repository.ErrNotificationNotFound)
		err := svc.MarkRead(ctx, 1, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
