package fixtures

import (
	"time"

	"github.com/propia/deal-gateway/internal/model"
)

var (
	SaleListing = model.Listing{
		ID:        1,
		Kind:      model.ListingKindProperty,
		OwnerID:   2,
		Title:     "Casa en Envigado",
		Price:     450_000_000,
		Currency:  "COP",
		Available: true,
	}

	RentalListing = model.Listing{
		ID:        2,
		Kind:      model.ListingKindRentalProperty,
		OwnerID:   2,
		Title:     "Apartaestudio en Chapinero",
		Price:     1_800_000,
		Currency:  "COP",
		Available: true,
	}

	VehicleListing = model.Listing{
		ID:        3,
		Kind:      model.ListingKindVehicle,
		OwnerID:   4,
		Title:     "Renault Duster 2021",
		Price:     62_000_000,
		Currency:  "COP",
		Available: true,
	}

	ReservedListing = model.Listing{
		ID:        4,
		Kind:      model.ListingKindProperty,
		OwnerID:   2,
		Title:     "Lote en Rionegro",
		Price:     120_000_000,
		Currency:  "COP",
		Available: false,
	}
)

func NewDeal(listingID, buyerID, sellerID int64, status model.TransactionStatus) *model.Transaction {
	return &model.Transaction{
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		DealKind:    model.DealKindSale,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		OfferAmount: 250_000_000,
		Currency:    "COP",
		Status:      status,
		Escrow:      true,
		Appeal:      model.Appeal{State: model.AppealNone},
		CreatedAt:   time.Now(),
	}
}

func NewCreateRequest(buyerID, listingID int64, kind model.ListingKind) model.TransactionCreateRequest {
	return model.TransactionCreateRequest{
		BuyerID:     buyerID,
		ListingID:   listingID,
		ListingKind: kind,
		OfferAmount: 250_000_000,
		Currency:    "COP",
	}
}

func NewPayRequest() model.PayRequest {
	return model.PayRequest{
		Method:      "pse",
		ExternalRef: "pse-00123",
		ReceiptRef:  "rcpt-00123",
	}
}

func NewChatThread(listingID, ownerID, counterpartyID int64) *model.ChatThread {
	return &model.ChatThread{
		Key:            model.ThreadKey(model.ListingKindProperty, listingID, ownerID, counterpartyID),
		ListingID:      listingID,
		ListingKind:    model.ListingKindProperty,
		OwnerID:        ownerID,
		CounterpartyID: counterpartyID,
	}
}

var (
	ValidCurrencies = []string{"COP", "USD"}

	InvalidOfferAmounts = []int64{0, -1, -250_000_000}

	ValidMessageBodies = []string{
		"hola, sigue disponible?",
		"puedo verlo el sabado?",
		"te ofrezco 240",
	}

	InvalidMessageBodies = []string{
		"",
		"   ",
		"\n\t",
	}
)

func DealWithID(id int64) *model.Transaction {
	deal := NewDeal(1, 1, 2, model.StatusPendingValidation)
	deal.ID = id
	return deal
}

func FilterByUser(userID int64) model.TransactionFilter {
	return model.TransactionFilter{
		UserID: userID,
		Limit:  50,
		Offset: 0,
	}
}

func FilterByStatus(userID int64, status model.TransactionStatus) model.TransactionFilter {
	return model.TransactionFilter{
		UserID: userID,
		Status: &status,
		Limit:  50,
		Offset: 0,
	}
}
