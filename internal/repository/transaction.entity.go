package repository

import (
	"time"

	"github.com/propia/deal-gateway/internal/model"
)

type TransactionEntity struct {
	ID          int64      `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	ListingID   int64      `db:"listing_id"   gorm:"column:listing_id;not null;index"`
	ListingKind string     `db:"listing_kind" gorm:"column:listing_kind;not null"`
	DealKind    string     `db:"deal_kind"    gorm:"column:deal_kind;not null"`
	BuyerID     int64      `db:"buyer_id"     gorm:"column:buyer_id;not null;index:idx_transactions_buyer_status"`
	SellerID    int64      `db:"seller_id"    gorm:"column:seller_id;not null;index:idx_transactions_seller_status"`
	OfferAmount int64      `db:"offer_amount" gorm:"column:offer_amount;not null"`
	Currency    string     `db:"currency"     gorm:"column:currency;not null;default:COP"`
	Status      string     `db:"status"       gorm:"column:status;not null;index:idx_transactions_buyer_status;index:idx_transactions_seller_status"`
	Paid        bool       `db:"paid"         gorm:"column:paid;not null;default:false"`
	Escrow      bool       `db:"escrow"       gorm:"column:escrow;not null;default:true"`
	PayMethod   *string    `db:"pay_method"       gorm:"column:pay_method"`
	PayExternal *string    `db:"pay_external_ref" gorm:"column:pay_external_ref"`
	PayReceipt  *string    `db:"pay_receipt_ref"  gorm:"column:pay_receipt_ref"`
	AttestedAt  *time.Time `db:"attested_at"      gorm:"column:attested_at"`
	ValidatedAt *time.Time `db:"validated_at" gorm:"column:validated_at"`
	PaidAt      *time.Time `db:"paid_at"      gorm:"column:paid_at"`
	CompletedAt *time.Time `db:"completed_at" gorm:"column:completed_at"`
	CancelledAt *time.Time `db:"cancelled_at" gorm:"column:cancelled_at"`
	AppealState string     `db:"appeal_state"       gorm:"column:appeal_state;not null;default:none"`
	AppealReason *string   `db:"appeal_reason"      gorm:"column:appeal_reason"`
	AppealRaisedBy *int64  `db:"appeal_raised_by"   gorm:"column:appeal_raised_by"`
	AppealResolution *string `db:"appeal_resolution" gorm:"column:appeal_resolution"`
	AppealResolvedBy *int64 `db:"appeal_resolved_by" gorm:"column:appeal_resolved_by"`
	AppealRaisedAt *time.Time `db:"appeal_raised_at" gorm:"column:appeal_raised_at"`
	AppealResolvedAt *time.Time `db:"appeal_resolved_at" gorm:"column:appeal_resolved_at"`
	Version     int64      `db:"version"      gorm:"column:version;not null;default:0"`
	CreatedAt   time.Time  `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `db:"updated_at"   gorm:"column:updated_at"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(t *model.Transaction) *TransactionEntity {
	if t == nil {
		return nil
	}
	e := &TransactionEntity{
		ID:          t.ID,
		ListingID:   t.ListingID,
		ListingKind: string(t.ListingKind),
		DealKind:    string(t.DealKind),
		BuyerID:     t.BuyerID,
		SellerID:    t.SellerID,
		OfferAmount: t.OfferAmount,
		Currency:    t.Currency,
		Status:      string(t.Status),
		Paid:        t.Paid,
		Escrow:      t.Escrow,
		ValidatedAt: t.ValidatedAt,
		PaidAt:      t.PaidAt,
		CompletedAt: t.CompletedAt,
		CancelledAt: t.CancelledAt,
		AppealState: string(t.Appeal.State),
		Version:     t.Version,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if e.AppealState == "" {
		e.AppealState = string(model.AppealNone)
	}
	if t.Payment != nil {
		e.PayMethod = &t.Payment.Method
		e.PayExternal = &t.Payment.ExternalRef
		if t.Payment.ReceiptRef != "" {
			e.PayReceipt = &t.Payment.ReceiptRef
		}
		at := t.Payment.AttestedAt
		e.AttestedAt = &at
	}
	if t.Appeal.Reason != "" {
		e.AppealReason = &t.Appeal.Reason
	}
	if t.Appeal.RaisedBy != 0 {
		e.AppealRaisedBy = &t.Appeal.RaisedBy
	}
	if t.Appeal.Resolution != "" {
		e.AppealResolution = &t.Appeal.Resolution
	}
	if t.Appeal.ResolvedBy != 0 {
		e.AppealResolvedBy = &t.Appeal.ResolvedBy
	}
	e.AppealRaisedAt = t.Appeal.RaisedAt
	e.AppealResolvedAt = t.Appeal.ResolvedAt
	return e
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	t := &model.Transaction{
		ID:          e.ID,
		ListingID:   e.ListingID,
		ListingKind: model.ListingKind(e.ListingKind),
		DealKind:    model.DealKind(e.DealKind),
		BuyerID:     e.BuyerID,
		SellerID:    e.SellerID,
		OfferAmount: e.OfferAmount,
		Currency:    e.Currency,
		Status:      model.TransactionStatus(e.Status),
		Paid:        e.Paid,
		Escrow:      e.Escrow,
		ValidatedAt: e.ValidatedAt,
		PaidAt:      e.PaidAt,
		CompletedAt: e.CompletedAt,
		CancelledAt: e.CancelledAt,
		Appeal: model.Appeal{
			State:      model.AppealState(e.AppealState),
			RaisedAt:   e.AppealRaisedAt,
			ResolvedAt: e.AppealResolvedAt,
		},
		Version:   e.Version,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if t.Appeal.State == "" {
		t.Appeal.State = model.AppealNone
	}
	if e.PayMethod != nil && e.AttestedAt != nil {
		t.Payment = &model.PaymentAttestation{
			Method:     *e.PayMethod,
			AttestedAt: *e.AttestedAt,
		}
		if e.PayExternal != nil {
			t.Payment.ExternalRef = *e.PayExternal
		}
		if e.PayReceipt != nil {
			t.Payment.ReceiptRef = *e.PayReceipt
		}
	}
	if e.AppealReason != nil {
		t.Appeal.Reason = *e.AppealReason
	}
	if e.AppealRaisedBy != nil {
		t.Appeal.RaisedBy = *e.AppealRaisedBy
	}
	if e.AppealResolution != nil {
		t.Appeal.Resolution = *e.AppealResolution
	}
	if e.AppealResolvedBy != nil {
		t.Appeal.ResolvedBy = *e.AppealResolvedBy
	}
	return t
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
