package repository

import (
	"time"

	"github.com/propia/deal-gateway/internal/model"
)

type NotificationEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	RecipientID   int64     `db:"recipient_id"   gorm:"column:recipient_id;not null;index"`
	TransactionID int64     `db:"transaction_id" gorm:"column:transaction_id;index"`
	Message       string    `db:"message"        gorm:"column:message;not null"`
	Read          bool      `db:"read"           gorm:"column:read;not null;default:false"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (NotificationEntity) TableName() string {
	return "notifications"
}

func toNotificationEntity(n *model.Notification) *NotificationEntity {
	if n == nil {
		return nil
	}
	return &NotificationEntity{
		ID:            n.ID,
		RecipientID:   n.RecipientID,
		TransactionID: n.TransactionID,
		Message:       n.Message,
		Read:          n.Read,
		CreatedAt:     n.CreatedAt,
	}
}

func toNotificationModel(e *NotificationEntity) *model.Notification {
	if e == nil {
		return nil
	}
	return &model.Notification{
		ID:            e.ID,
		RecipientID:   e.RecipientID,
		TransactionID: e.TransactionID,
		Message:       e.Message,
		Read:          e.Read,
		CreatedAt:     e.CreatedAt,
	}
}

func toNotificationModels(entities []*NotificationEntity) []*model.Notification {
	if entities == nil {
		return nil
	}
	models := make([]*model.Notification, len(entities))
	for i, e := range entities {
		models[i] = toNotificationModel(e)
	}
	return models
}
