package repository

import (
	"context"
	"testing"

	"github.com/propia/deal-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeal(listingID, buyerID int64) *model.Transaction {
	return &model.Transaction{
		ListingID:   listingID,
		ListingKind: model.ListingKindProperty,
		DealKind:    model.DealKindSale,
		BuyerID:     buyerID,
		SellerID:    2,
		OfferAmount: 320_000_000,
		Currency:    "COP",
		Status:      model.StatusPendingValidation,
		Escrow:      true,
		Appeal:      model.Appeal{State: model.AppealNone},
	}
}

func TestTransactionRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newDeal(10, 1))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, model.StatusPendingValidation, created.Status)
	assert.Equal(t, model.AppealNone, created.Appeal.State)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, int64(1), got.BuyerID)
	assert.Equal(t, int64(2), got.SellerID)

	_, err = repo.Get(ctx, 9999)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestTransactionRepository_Update_VersionGuard(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newDeal(10, 1))
	require.NoError(t, err)

	t.Run("update bumps the version", func(t *testing.T) {
		created.Status = model.StatusPending
		updated, err := repo.Update(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, int64(1), updated.Version)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("stale version loses the race", func(t *testing.T) {
		stale := *created
		stale.Version = 0
		stale.Status = model.StatusCancelled

		_, err := repo.Update(ctx, &stale)
		assert.ErrorIs(t, err, ErrStaleTransaction)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
	})
}

func TestTransactionRepository_Update_PaymentAndAppeal(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newDeal(10, 1))
	require.NoError(t, err)

	now := created.CreatedAt
	created.Status = model.StatusInEscrow
	created.Paid = true
	created.Payment = &model.PaymentAttestation{
		Method:      "pse",
		ExternalRef: "pse-123",
		AttestedAt:  now,
	}
	_, err = repo.Update(ctx, created)
	require.NoError(t, err)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Payment)
	assert.Equal(t, "pse", got.Payment.Method)
	assert.Equal(t, "pse-123", got.Payment.ExternalRef)

	got.Status = model.StatusAppealed
	got.Appeal = model.Appeal{State: model.AppealPending, Reason: "no keys handed over", RaisedBy: 1, RaisedAt: &now}
	_, err = repo.Update(ctx, got)
	require.NoError(t, err)

	got, err = repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppealPending, got.Appeal.State)
	assert.Equal(t, "no keys handed over", got.Appeal.Reason)
	assert.Equal(t, int64(1), got.Appeal.RaisedBy)
}

func TestTransactionRepository_FindActive(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("no active deal", func(t *testing.T) {
		_, err := repo.FindActive(ctx, 10, 1)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})

	created, err := repo.Create(ctx, newDeal(10, 1))
	require.NoError(t, err)

	t.Run("finds the active deal", func(t *testing.T) {
		found, err := repo.FindActive(ctx, 10, 1)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("terminal deals are not active", func(t *testing.T) {
		created.Status = model.StatusCancelled
		_, err := repo.Update(ctx, created)
		require.NoError(t, err)

		_, err = repo.FindActive(ctx, 10, 1)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestTransactionRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		deal := newDeal(100+i, 1)
		if i%2 == 0 {
			deal.Status = model.StatusCompleted
		}
		_, err := repo.Create(ctx, deal)
		require.NoError(t, err)
	}
	// a deal the user is not part of
	other := newDeal(200, 50)
	other.SellerID = 51
	_, err := repo.Create(ctx, other)
	require.NoError(t, err)

	t.Run("lists deals for buyer and seller", func(t *testing.T) {
		asBuyer, total, err := repo.List(ctx, model.TransactionFilter{UserID: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, asBuyer, 5)

		asSeller, total, err := repo.List(ctx, model.TransactionFilter{UserID: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, asSeller, 5)
	})

	t.Run("filters by status", func(t *testing.T) {
		completed := model.StatusCompleted
		list, total, err := repo.List(ctx, model.TransactionFilter{UserID: 1, Status: &completed})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, list, 3)
	})

	t.Run("paginates", func(t *testing.T) {
		list, total, err := repo.List(ctx, model.TransactionFilter{UserID: 1, Limit: 2, Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, list, 1)
	})

	t.Run("outsider sees nothing", func(t *testing.T) {
		list, total, err := repo.List(ctx, model.TransactionFilter{UserID: 77})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, list)
	})
}
