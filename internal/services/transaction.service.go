package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/propia/deal-gateway/internal/events"
	"github.com/propia/deal-gateway/internal/model"
	"github.com/propia/deal-gateway/internal/repository"
	"github.com/propia/deal-gateway/pkg/logger"
	"github.com/propia/deal-gateway/pkg/prom"
)

var (
	// ErrForbidden means the caller is not the actor a transition allows.
	ErrForbidden = errors.New("you are not allowed to perform this action")
	// ErrInvalidTransition means the record is not in the state the
	// requested operation needs. Repeating an already-applied transition
	// lands here too.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConflict means the listing was taken, or an optimistic-concurrency
	// collision lost the race.
	ErrConflict = errors.New("listing is no longer available")
	// ErrSelfDealing rejects a deal on the caller's own listing.
	ErrSelfDealing = errors.New("you cannot open a deal on your own listing")
	// ErrNotFound covers unknown transactions, threads and listings.
	ErrNotFound = errors.New("not found")
	// ErrValidation wraps malformed input: amount, currency, reason text.
	ErrValidation = errors.New("validation failed")
)

// DuplicateActiveTransactionError is the designed recovery path for a
// repeated create: it carries the existing transaction id so the client can
// resume instead of failing hard.
type DuplicateActiveTransactionError struct {
	ExistingID int64
}

func (e *DuplicateActiveTransactionError) Error() string {
	return fmt.Sprintf("you already have an active transaction %d for this listing", e.ExistingID)
}

type TransactionRepository interface {
	Create(ctx context.Context, t *model.Transaction) (*model.Transaction, error)
	Get(ctx context.Context, id int64) (*model.Transaction, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Transaction, error)
	Update(ctx context.Context, t *model.Transaction) (*model.Transaction, error)
	FindActive(ctx context.Context, listingID, buyerID int64) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ListingGate is the engine's window into the listing catalog: read the
// snapshot, flip the availability flag.
type ListingGate interface {
	Get(ctx context.Context, kind model.ListingKind, id int64) (*model.Listing, error)
	Reserve(ctx context.Context, kind model.ListingKind, id int64) error
	Release(ctx context.Context, kind model.ListingKind, id int64) error
}

type NotificationWriter interface {
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)
}

// ThreadLinker binds an existing pre-transaction inquiry thread to a newly
// created transaction.
type ThreadLinker interface {
	GetByKey(ctx context.Context, key string) (*model.ChatThread, error)
	LinkTransaction(ctx context.Context, threadID, transactionID int64) error
}

// TransactionService is the lifecycle engine. Every state transition goes
// through here: actor check, state guard, persist, listing gate, feed
// append, event publish - in that order.
type TransactionService struct {
	transactionRepo TransactionRepository
	listings        ListingGate
	notifications   NotificationWriter
	threads         ThreadLinker
	publisher       events.Publisher
}

func NewTransactionService(transactionRepo TransactionRepository, listings ListingGate, notifications NotificationWriter, threads ThreadLinker, publisher events.Publisher) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		listings:        listings,
		notifications:   notifications,
		threads:         threads,
		publisher:       publisher,
	}
}

// Create opens a deal on an available listing. The listing reserve is a
// conditional update inside the same DB transaction as the insert, so two
// concurrent creates on one listing cannot both succeed.
func (s *TransactionService) Create(ctx context.Context, p model.TransactionCreateRequest) (*model.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	listing, err := s.listings.Get(ctx, p.ListingKind, p.ListingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, fmt.Errorf("%w: listing %d", ErrNotFound, p.ListingID)
		}
		return nil, err
	}

	if listing.OwnerID == p.BuyerID {
		return nil, ErrSelfDealing
	}

	// The duplicate check runs before the availability check: the buyer's
	// own earlier create is what took the listing off the market, and that
	// retry must get the existing id back, not a generic conflict.
	if existing, err := s.transactionRepo.FindActive(ctx, p.ListingID, p.BuyerID); err == nil {
		return nil, &DuplicateActiveTransactionError{ExistingID: existing.ID}
	} else if !errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, err
	}

	if !listing.Available {
		return nil, ErrConflict
	}

	now := time.Now().UTC()
	t := &model.Transaction{
		ListingID:   p.ListingID,
		ListingKind: p.ListingKind,
		DealKind:    model.DealKindFor(p.ListingKind),
		BuyerID:     p.BuyerID,
		SellerID:    listing.OwnerID,
		OfferAmount: p.OfferAmount,
		Currency:    p.Currency,
		Status:      model.StatusPendingValidation,
		Escrow:      true,
		Appeal:      model.Appeal{State: model.AppealNone},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// Rental deals skip seller validation and never hold funds in escrow:
	// the term starts at payment.
	if t.DealKind == model.DealKindRental {
		t.Status = model.StatusPending
		t.Escrow = false
	}

	var created *model.Transaction
	err = s.transactionRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.listings.Reserve(ctx, p.ListingKind, p.ListingID); err != nil {
			if errors.Is(err, repository.ErrListingUnavailable) {
				return ErrConflict
			}
			if errors.Is(err, repository.ErrListingNotFound) {
				return fmt.Errorf("%w: listing %d", ErrNotFound, p.ListingID)
			}
			return fmt.Errorf("reserve listing: %w", err)
		}

		var err error
		created, err = s.transactionRepo.Create(ctx, t)
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		// Link the pre-transaction inquiry thread, if the pair talked
		// before making an offer.
		key := model.ThreadKey(p.ListingKind, p.ListingID, p.BuyerID, listing.OwnerID)
		if thread, err := s.threads.GetByKey(ctx, key); err == nil {
			if err := s.threads.LinkTransaction(ctx, thread.ID, created.ID); err != nil {
				return fmt.Errorf("link thread: %w", err)
			}
		} else if !errors.Is(err, repository.ErrThreadNotFound) {
			return err
		}

		_, err = s.notifications.Create(ctx, &model.Notification{
			RecipientID:   listing.OwnerID,
			TransactionID: created.ID,
			Message:       fmt.Sprintf("New interest in your listing %q. Offer: %s %d", listing.Title, created.Currency, created.OfferAmount),
			CreatedAt:     now,
		})
		return err
	})
	if err != nil {
		prom.IncTransactionTransition("create", "rejected")
		return nil, err
	}
	prom.IncTransactionTransition("create", "applied")

	ev := events.New(events.TopicTransactionCreated)
	ev.TransactionID = created.ID
	ev.ActorID = created.BuyerID
	ev.BuyerID = created.BuyerID
	ev.SellerID = created.SellerID
	ev.Status = string(created.Status)
	s.publish(ctx, ev)

	return created, nil
}

// Validate is the seller's confirmation of interest; it unblocks the buyer's
// payment step.
func (s *TransactionService) Validate(ctx context.Context, txID, actorID int64) (*model.Transaction, error) {
	updated, err := s.transition(ctx, "validate", txID, func(t *model.Transaction, now time.Time) (*model.Notification, error) {
		if t.SellerID != actorID {
			return nil, fmt.Errorf("%w: only the seller can validate", ErrForbidden)
		}
		if t.Status != model.StatusPendingValidation {
			return nil, transitionError(t.Status)
		}
		t.Status = model.StatusPending
		t.ValidatedAt = &now
		return &model.Notification{
			RecipientID:   t.BuyerID,
			TransactionID: t.ID,
			Message:       "The seller validated your offer. You can now proceed with the payment.",
			CreatedAt:     now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	ev := events.New(events.TopicTransactionValidated)
	ev.TransactionID = updated.ID
	ev.ActorID = actorID
	ev.BuyerID = updated.BuyerID
	ev.Status = string(updated.Status)
	s.publish(ctx, ev)

	return updated, nil
}

// Pay records the buyer's payment attestation. Sale deals move into escrow;
// rental deals complete immediately and the listing stays off the market
// for the term.
func (s *TransactionService) Pay(ctx context.Context, txID, actorID int64, p model.PayRequest) (*model.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	updated, err := s.transition(ctx, "pay", txID, func(t *model.Transaction, now time.Time) (*model.Notification, error) {
		if t.BuyerID != actorID {
			return nil, fmt.Errorf("%w: only the buyer can pay", ErrForbidden)
		}
		if t.Status != model.StatusPending {
			return nil, transitionError(t.Status)
		}
		t.Paid = true
		t.PaidAt = &now
		t.Payment = &model.PaymentAttestation{
			Method:      p.Method,
			ExternalRef: p.ExternalRef,
			ReceiptRef:  p.ReceiptRef,
			AttestedAt:  now,
		}
		msg := "The buyer attested the payment. Funds are held in escrow."
		if t.DealKind == model.DealKindRental {
			t.Status = model.StatusCompleted
			t.Escrow = false
			t.CompletedAt = &now
			msg = "Rent payment received. The rental is confirmed."
		} else {
			t.Status = model.StatusInEscrow
		}
		return &model.Notification{
			RecipientID:   t.SellerID,
			TransactionID: t.ID,
			Message:       msg,
			CreatedAt:     now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	topic := events.TopicTransactionPaid
	if updated.Status == model.StatusCompleted {
		topic = events.TopicTransactionCompleted
	}
	ev := events.New(topic)
	ev.TransactionID = updated.ID
	ev.ActorID = actorID
	ev.SellerID = updated.SellerID
	ev.Status = string(updated.Status)
	s.publish(ctx, ev)

	return updated, nil
}

// Release is buyer-triggered: the buyer confirms receipt before the
// attested funds leave escrow.
func (s *TransactionService) Release(ctx context.Context, txID, actorID int64) (*model.Transaction, error) {
	updated, err := s.transition(ctx, "release", txID, func(t *model.Transaction, now time.Time) (*model.Notification, error) {
		if t.BuyerID != actorID {
			return nil, fmt.Errorf("%w: only the buyer can release the funds", ErrForbidden)
		}
		if t.Status != model.StatusInEscrow {
			return nil, transitionError(t.Status)
		}
		t.Status = model.StatusCompleted
		t.Escrow = false
		t.CompletedAt = &now
		return &model.Notification{
			RecipientID:   t.SellerID,
			TransactionID: t.ID,
			Message:       "Transaction completed. The funds have been released.",
			CreatedAt:     now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	ev := events.New(events.TopicTransactionCompleted)
	ev.TransactionID = updated.ID
	ev.ActorID = actorID
	ev.BuyerID = updated.BuyerID
	ev.SellerID = updated.SellerID
	ev.Status = string(updated.Status)
	s.publish(ctx, ev)

	return updated, nil
}

// Cancel is allowed to either party before payment. It puts the listing
// back on the market in the same DB transaction as the status change.
func (s *TransactionService) Cancel(ctx context.Context, txID, actorID int64, reason string) (*model.Transaction, error) {
	var counterparty int64
	updated, err := s.transition(ctx, "cancel", txID, func(t *model.Transaction, now time.Time) (*model.Notification, error) {
		if !t.IsParticipant(actorID) {
			return nil, fmt.Errorf("%w: only a participant can cancel", ErrForbidden)
		}
		if t.Status != model.StatusPendingValidation && t.Status != model.StatusPending {
			return nil, transitionError(t.Status)
		}
		t.Status = model.StatusCancelled
		t.CancelledAt = &now
		counterparty = t.Counterparty(actorID)
		if reason == "" {
			reason = "not specified"
		}
		return &model.Notification{
			RecipientID:   counterparty,
			TransactionID: t.ID,
			Message:       fmt.Sprintf("The transaction was cancelled. Reason: %s", reason),
			CreatedAt:     now,
		}, nil
	}, s.releaseListing)
	if err != nil {
		return nil, err
	}

	ev := events.New(events.TopicTransactionCancelled)
	ev.TransactionID = updated.ID
	ev.ActorID = actorID
	ev.Reason = reason
	ev.Status = string(updated.Status)
	s.publish(ctx, ev)

	return updated, nil
}

// Appeal flags a dispute from any non-terminal state. It is recorded, not
// adjudicated; both parties are notified.
func (s *TransactionService) Appeal(ctx context.Context, txID, actorID int64, reason string) (*model.Transaction, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: appeal reason is required", ErrValidation)
	}

	var other int64
	updated, err := s.transition(ctx, "appeal", txID, func(t *model.Transaction, now time.Time) (*model.Notification, error) {
		if !t.IsParticipant(actorID) {
			return nil, fmt.Errorf("%w: only a participant can appeal", ErrForbidden)
		}
		if t.Status.Terminal() || t.Appeal.State != model.AppealNone {
			return nil, transitionError(t.Status)
		}
		t.Status = model.StatusAppealed
		t.Appeal = model.Appeal{
			State:    model.AppealPending,
			Reason:   reason,
			RaisedBy: actorID,
			RaisedAt: &now,
		}
		other = t.Counterparty(actorID)
		return &model.Notification{
			RecipientID:   other,
			TransactionID: t.ID,
			Message:       fmt.Sprintf("An appeal was raised on transaction %d: %s", t.ID, reason),
			CreatedAt:     now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	// The raiser gets a copy too: appeals broadcast to both parties.
	_, nerr := s.notifications.Create(ctx, &model.Notification{
		RecipientID:   actorID,
		TransactionID: updated.ID,
		Message:       fmt.Sprintf("Your appeal on transaction %d was recorded and is pending review.", updated.ID),
		CreatedAt:     time.Now().UTC(),
	})
	if nerr != nil {
		logger.Warn("failed to notify appeal raiser", "transaction_id", updated.ID, "error", nerr)
	}

	ev := events.New(events.TopicTransactionAppealed)
	ev.TransactionID = updated.ID
	ev.ActorID = actorID
	ev.Reason = reason
	ev.Status = string(updated.Status)
	s.publish(ctx, ev)

	return updated, nil
}

// Get returns a transaction to one of its participants.
func (s *TransactionService) Get(ctx context.Context, txID, actorID int64) (*model.Transaction, error) {
	t, err := s.transactionRepo.Get(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, txID)
		}
		return nil, err
	}
	if !t.IsParticipant(actorID) {
		return nil, fmt.Errorf("%w: you are not part of this transaction", ErrForbidden)
	}
	return t, nil
}

// List returns the caller's transactions, as buyer or seller.
func (s *TransactionService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.transactionRepo.List(ctx, f)
}

// transition loads the aggregate under a row lock, applies the guarded
// mutation, persists it with a version check and appends the notification -
// all inside one DB transaction, so a notification can never be observed
// before its state change is durable. sideEffects run in the same tx after
// the update (listing release on cancel).
func (s *TransactionService) transition(
	ctx context.Context,
	op string,
	txID int64,
	apply func(t *model.Transaction, now time.Time) (*model.Notification, error),
	sideEffects ...func(ctx context.Context, t *model.Transaction) error,
) (*model.Transaction, error) {
	var updated *model.Transaction
	err := s.transactionRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.transactionRepo.GetForUpdate(ctx, txID)
		if err != nil {
			if errors.Is(err, repository.ErrTransactionNotFound) {
				return fmt.Errorf("%w: transaction %d", ErrNotFound, txID)
			}
			return err
		}

		now := time.Now().UTC()
		notification, err := apply(t, now)
		if err != nil {
			return err
		}
		t.Touch(now)

		updated, err = s.transactionRepo.Update(ctx, t)
		if err != nil {
			if errors.Is(err, repository.ErrStaleTransaction) {
				return fmt.Errorf("%w: the transaction was modified concurrently", ErrConflict)
			}
			return fmt.Errorf("persist transition: %w", err)
		}

		for _, fn := range sideEffects {
			if err := fn(ctx, updated); err != nil {
				return err
			}
		}

		if notification != nil {
			if _, err := s.notifications.Create(ctx, notification); err != nil {
				return fmt.Errorf("append notification: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		prom.IncTransactionTransition(op, "rejected")
		return nil, err
	}
	prom.IncTransactionTransition(op, "applied")
	return updated, nil
}

func (s *TransactionService) releaseListing(ctx context.Context, t *model.Transaction) error {
	if err := s.listings.Release(ctx, t.ListingKind, t.ListingID); err != nil {
		return fmt.Errorf("release listing: %w", err)
	}
	return nil
}

func (s *TransactionService) publish(ctx context.Context, ev events.Event) {
	if s.publisher == nil {
		return
	}
	// The durable record is the source of truth; a lost event only costs a
	// client refresh.
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish event", "topic", ev.Topic, "transaction_id", ev.TransactionID, "error", err)
	}
}

func transitionError(current model.TransactionStatus) error {
	return fmt.Errorf("%w: transaction is %s", ErrInvalidTransition, current)
}
