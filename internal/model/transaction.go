package model

import (
	"errors"
	"time"
)

// ListingKind discriminates the three sellable/rentable catalog entities.
type ListingKind string

const (
	ListingKindProperty       ListingKind = "property"
	ListingKindRentalProperty ListingKind = "rental_property"
	ListingKindVehicle        ListingKind = "vehicle"
)

func (k ListingKind) Valid() bool {
	switch k {
	case ListingKindProperty, ListingKindRentalProperty, ListingKindVehicle:
		return true
	}
	return false
}

// DealKind is derived from the listing kind at creation time.
type DealKind string

const (
	DealKindSale   DealKind = "sale"
	DealKindRental DealKind = "rental"
)

// DealKindFor maps a listing kind to the kind of deal it produces.
func DealKindFor(k ListingKind) DealKind {
	if k == ListingKindRentalProperty {
		return DealKindRental
	}
	return DealKindSale
}

// TransactionStatus is the lifecycle state of a deal.
type TransactionStatus string

const (
	StatusPendingValidation TransactionStatus = "pending_validation"
	StatusPending           TransactionStatus = "pending"
	StatusInEscrow          TransactionStatus = "in_escrow"
	StatusCompleted         TransactionStatus = "completed"
	StatusAppealed          TransactionStatus = "appealed"
	StatusCancelled         TransactionStatus = "cancelled"
)

// ActiveStatuses are the non-terminal states. A listing stays reserved while
// its transaction is in one of these.
var ActiveStatuses = []TransactionStatus{
	StatusPendingValidation,
	StatusPending,
	StatusInEscrow,
	StatusAppealed,
}

func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type AppealState string

const (
	AppealNone     AppealState = "none"
	AppealPending  AppealState = "pending"
	AppealResolved AppealState = "resolved"
)

// PaymentAttestation records the buyer's claim of payment. It is write-once;
// the gateway never verifies it against a financial rail.
type PaymentAttestation struct {
	Method      string    `json:"method"`
	ExternalRef string    `json:"external_ref"`
	ReceiptRef  string    `json:"receipt_ref,omitempty"`
	AttestedAt  time.Time `json:"attested_at"`
}

type Appeal struct {
	State      AppealState `json:"state"`
	Reason     string      `json:"reason,omitempty"`
	RaisedBy   int64       `json:"raised_by,omitempty"`
	Resolution string      `json:"resolution,omitempty"`
	ResolvedBy int64       `json:"resolved_by,omitempty"`
	RaisedAt   *time.Time  `json:"raised_at,omitempty"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}

type Transaction struct {
	ID          int64               `json:"id"`
	ListingID   int64               `json:"listing_id"`
	ListingKind ListingKind         `json:"listing_kind"`
	DealKind    DealKind            `json:"deal_kind"`
	BuyerID     int64               `json:"buyer_id"`
	SellerID    int64               `json:"seller_id"`
	OfferAmount int64               `json:"offer_amount"` // minor currency units
	Currency    string              `json:"currency"`
	Status      TransactionStatus   `json:"status"`
	Paid        bool                `json:"paid"`
	Escrow      bool                `json:"escrow"`
	Payment     *PaymentAttestation `json:"payment,omitempty"`
	ValidatedAt *time.Time          `json:"validated_at,omitempty"`
	PaidAt      *time.Time          `json:"paid_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
	Appeal      Appeal              `json:"appeal"`
	Version     int64               `json:"-"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (t *Transaction) IsParticipant(userID int64) bool {
	return t.BuyerID == userID || t.SellerID == userID
}

// Counterparty returns the other party of the deal. Callers must have
// checked IsParticipant first.
func (t *Transaction) Counterparty(userID int64) int64 {
	if t.BuyerID == userID {
		return t.SellerID
	}
	return t.BuyerID
}

// Touch bumps UpdatedAt explicitly so timestamp mutation stays visible in
// the transition code rather than hidden in a persistence hook.
func (t *Transaction) Touch(now time.Time) {
	t.UpdatedAt = now
}

// Currencies accepted on offers. The first entry is the default.
var SupportedCurrencies = []string{"COP", "USD", "EUR"}

const DefaultCurrency = "COP"

func ValidCurrency(c string) bool {
	for _, s := range SupportedCurrencies {
		if s == c {
			return true
		}
	}
	return false
}

// TransactionCreateRequest is the input for opening a deal on a listing.
type TransactionCreateRequest struct {
	BuyerID     int64
	ListingID   int64
	ListingKind ListingKind
	OfferAmount int64
	Currency    string
}

func (p *TransactionCreateRequest) Validate() error {
	if p.BuyerID == 0 {
		return errors.New("buyer id is required")
	}
	if p.ListingID == 0 {
		return errors.New("listing_id is required")
	}
	if !p.ListingKind.Valid() {
		return errors.New("listing_kind must be one of property, rental_property, vehicle")
	}
	if p.OfferAmount <= 0 {
		return errors.New("offer_amount must be positive")
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if !ValidCurrency(p.Currency) {
		return errors.New("currency must be one of COP, USD, EUR")
	}
	return nil
}

// PayRequest carries the buyer's payment attestation.
type PayRequest struct {
	Method      string
	ExternalRef string
	ReceiptRef  string
}

func (p PayRequest) Validate() error {
	if p.Method == "" {
		return errors.New("payment method is required")
	}
	if p.ExternalRef == "" {
		return errors.New("external payment reference is required")
	}
	return nil
}

// TransactionFilter controls List queries. UserID is always required: a
// caller only ever sees deals where they are buyer or seller.
type TransactionFilter struct {
	UserID   int64
	Status   *TransactionStatus
	DealKind *DealKind
	Limit    int  // default 50
	Offset   int  // for pagination
	Desc     bool // order by created_at
}
