package repository

import (
	"context"
	"errors"

	"github.com/propia/deal-gateway/internal/model"
	"github.com/propia/deal-gateway/pkg/pg"
)

var (
	// ErrNotificationNotFound is returned when a notification does not
	// exist or belongs to someone else.
	ErrNotificationNotFound = errors.New("notification not found")
)

type NotificationRepository struct {
	*pg.DB
}

func NewNotificationRepository(db *pg.DB) *NotificationRepository {
	return &NotificationRepository{
		db,
	}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	entity := toNotificationEntity(n)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toNotificationModel(entity), nil
}

func (r *NotificationRepository) List(ctx context.Context, f model.NotificationFilter) ([]*model.Notification, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&NotificationEntity{}).
		Where("recipient_id = ?", f.RecipientID)

	if f.UnreadOnly {
		q = q.Where("read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*NotificationEntity
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toNotificationModels(entities), total, nil
}

// MarkRead flips the read flag. The recipient check keeps one user from
// touching another user's feed.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&NotificationEntity{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
