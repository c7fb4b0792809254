package repository

import (
	"time"

	"github.com/propia/deal-gateway/internal/model"
)

type ListingEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Kind      string    `db:"kind"       gorm:"column:kind;not null;index"`
	OwnerID   int64     `db:"owner_id"   gorm:"column:owner_id;not null;index"`
	Title     string    `db:"title"      gorm:"column:title;not null"`
	Price     int64     `db:"price"      gorm:"column:price;not null"`
	Currency  string    `db:"currency"   gorm:"column:currency;not null;default:COP"`
	Available bool      `db:"available"  gorm:"column:available;not null;default:true"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (ListingEntity) TableName() string {
	return "listings"
}

func toListingEntity(l *model.Listing) *ListingEntity {
	if l == nil {
		return nil
	}
	return &ListingEntity{
		ID:        l.ID,
		Kind:      string(l.Kind),
		OwnerID:   l.OwnerID,
		Title:     l.Title,
		Price:     l.Price,
		Currency:  l.Currency,
		Available: l.Available,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

func toListingModel(e *ListingEntity) *model.Listing {
	if e == nil {
		return nil
	}
	return &model.Listing{
		ID:        e.ID,
		Kind:      model.ListingKind(e.Kind),
		OwnerID:   e.OwnerID,
		Title:     e.Title,
		Price:     e.Price,
		Currency:  e.Currency,
		Available: e.Available,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
