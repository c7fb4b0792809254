package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/propia/deal-gateway/internal/model"
	"github.com/propia/deal-gateway/internal/repository"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)
	List(ctx context.Context, f model.NotificationFilter) ([]*model.Notification, int64, error)
	MarkRead(ctx context.Context, id, recipientID int64) error
}

// NotificationService serves the per-recipient advisory feed. Appends come
// from the lifecycle engine; this service only reads and flips the read
// flag, which carries no business logic.
type NotificationService struct {
	notificationRepo NotificationRepository
}

func NewNotificationService(notificationRepo NotificationRepository) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
	}
}

func (s *NotificationService) Feed(ctx context.Context, f model.NotificationFilter) ([]*model.Notification, int64, error) {
	return s.notificationRepo.List(ctx, f)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID int64) error {
	err := s.notificationRepo.MarkRead(ctx, id, recipientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return fmt.Errorf("%w: notification %d", ErrNotFound, id)
		}
		return err
	}
	return nil
}
