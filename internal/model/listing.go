package model

import "time"

// Listing is the catalog snapshot the engine reads at creation time. The
// engine owns only the Available flag; everything else belongs to the
// listing catalog.
type Listing struct {
	ID        int64       `json:"id"`
	Kind      ListingKind `json:"kind"`
	OwnerID   int64       `json:"owner_id"`
	Title     string      `json:"title"`
	Price     int64       `json:"price"` // minor currency units
	Currency  string      `json:"currency"`
	Available bool        `json:"available"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
