package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/propia/deal-gateway/internal/model"
	"github.com/propia/deal-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrThreadNotFound is returned when a chat thread does not exist.
	ErrThreadNotFound = errors.New("chat thread not found")
)

type ChatRepository struct {
	*pg.DB
}

func NewChatRepository(db *pg.DB) *ChatRepository {
	return &ChatRepository{
		db,
	}
}

// GetOrCreate returns the thread for the given canonical key, creating an
// empty one if none exists. The unique index on key makes first contact
// atomic: when two near-simultaneous creates race, the loser hits the
// duplicate-key error and re-reads the winner's row.
func (r *ChatRepository) GetOrCreate(ctx context.Context, t *model.ChatThread) (*model.ChatThread, error) {
	existing, err := r.GetByKey(ctx, t.Key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrThreadNotFound) {
		return nil, err
	}

	entity := toChatThreadEntity(t)
	err = r.Write(ctx).WithContext(ctx).Create(entity).Error
	if err != nil {
		if isUniqueViolation(err) {
			return r.GetByKey(ctx, t.Key)
		}
		return nil, err
	}
	return toChatThreadModel(entity), nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id int64) (*model.ChatThread, error) {
	var entity ChatThreadEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	return toChatThreadModel(&entity), nil
}

func (r *ChatRepository) GetByKey(ctx context.Context, key string) (*model.ChatThread, error) {
	var entity ChatThreadEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("key = ?", key).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	return toChatThreadModel(&entity), nil
}

// LinkTransaction binds a pre-transaction inquiry thread to the transaction
// created from it.
func (r *ChatRepository) LinkTransaction(ctx context.Context, threadID, transactionID int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ChatThreadEntity{}).
		Where("id = ?", threadID).
		Update("transaction_id", transactionID)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrThreadNotFound
	}
	return nil
}

// AppendMessage stores one message. The auto-incremented id is the log
// order; the returned message carries the server-assigned position and
// timestamp.
func (r *ChatRepository) AppendMessage(ctx context.Context, m *model.ChatMessage) (*model.ChatMessage, error) {
	entity := toChatMessageEntity(m)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toChatMessageModel(entity), nil
}

// Messages returns the full ordered log of a thread.
func (r *ChatRepository) Messages(ctx context.Context, threadID int64) ([]*model.ChatMessage, error) {
	var entities []*ChatMessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toChatMessageModels(entities), nil
}

// ListByUser returns every thread the user participates in, most recently
// touched first.
func (r *ChatRepository) ListByUser(ctx context.Context, userID int64) ([]*model.ChatThread, error) {
	var entities []*ChatThreadEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("owner_id = ? OR counterparty_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toChatThreadModels(entities), nil
}

// isUniqueViolation matches the duplicate-key error text of both postgres
// and the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
