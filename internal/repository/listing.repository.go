package repository

import (
	"context"
	"errors"

	"github.com/propia/deal-gateway/internal/model"
	"github.com/propia/deal-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrListingNotFound is returned when a listing does not exist.
	ErrListingNotFound = errors.New("listing not found")
	// ErrListingUnavailable is returned when a reserve races against
	// another transaction that already took the listing.
	ErrListingUnavailable = errors.New("listing is no longer available")
)

type ListingRepository struct {
	*pg.DB
}

func NewListingRepository(db *pg.DB) *ListingRepository {
	return &ListingRepository{
		db,
	}
}

func (r *ListingRepository) Create(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	entity := toListingEntity(l)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toListingModel(entity), nil
}

func (r *ListingRepository) Get(ctx context.Context, kind model.ListingKind, id int64) (*model.Listing, error) {
	var entity ListingEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ? AND kind = ?", id, string(kind)).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return toListingModel(&entity), nil
}

// Reserve flips available from true to false in one conditional update.
// Exactly one concurrent caller can win; everyone else sees
// ErrListingUnavailable. This is the guard for the only true race in the
// system, so it must never degrade into a read-then-write round trip.
func (r *ListingRepository) Reserve(ctx context.Context, kind model.ListingKind, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ListingEntity{}).
		Where("id = ? AND kind = ? AND available = ?", id, string(kind), true).
		Update("available", false)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.checkReserveFailureReason(ctx, kind, id)
	}
	return nil
}

// checkReserveFailureReason distinguishes a missing listing from one that
// was taken by another transaction.
func (r *ListingRepository) checkReserveFailureReason(ctx context.Context, kind model.ListingKind, id int64) error {
	var entity ListingEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ? AND kind = ?", id, string(kind)).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrListingNotFound
		}
		return err
	}
	return ErrListingUnavailable
}

// Release puts a listing back on the market after a cancellation.
func (r *ListingRepository) Release(ctx context.Context, kind model.ListingKind, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ListingEntity{}).
		Where("id = ? AND kind = ?", id, string(kind)).
		Update("available", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrListingNotFound
	}
	return nil
}
