package repository

import (
	"context"
	"errors"

	"github.com/propia/deal-gateway/internal/model"
	"github.com/propia/deal-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrTransactionNotFound is returned when a transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrStaleTransaction is returned when an update lost a version race.
	ErrStaleTransaction = errors.New("transaction was modified concurrently")
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(t)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// GetForUpdate loads a transaction under SELECT FOR UPDATE. It must run
// inside WithinTransaction; the row lock serializes concurrent transitions
// against the same aggregate until the surrounding tx commits.
func (r *TransactionRepository) GetForUpdate(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// Update persists a transition guarded by the version column. A zero
// RowsAffected means another writer got there first.
func (r *TransactionRepository) Update(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(t)
	entity.Version = t.Version + 1

	result := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(entity)

	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrStaleTransaction
	}

	t.Version = entity.Version
	return t, nil
}

// FindActive returns the non-terminal transaction a buyer holds on a
// listing, if any.
func (r *TransactionRepository) FindActive(ctx context.Context, listingID, buyerID int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("listing_id = ? AND buyer_id = ? AND status IN ?", listingID, buyerID, activeStatusStrings()).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{}).
		Where("buyer_id = ? OR seller_id = ?", f.UserID, f.UserID)

	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.DealKind != nil {
		q = q.Where("deal_kind = ?", string(*f.DealKind))
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

func activeStatusStrings() []string {
	ss := make([]string, len(model.ActiveStatuses))
	for i, s := range model.ActiveStatuses {
		ss[i] = string(s)
	}
	return ss
}
