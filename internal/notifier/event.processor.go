package notifier

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/propia/deal-gateway/internal/events"
	gateway "github.com/propia/deal-gateway/internal/gateways"
	"github.com/propia/deal-gateway/internal/queue"
	"github.com/propia/deal-gateway/pkg/logger"
	"github.com/propia/deal-gateway/pkg/prom"
)

type PushEventProcessor struct {
	client      *gateway.Client
	idempotency *IdempotencyService
}

func NewPushEventProcessor(client *gateway.Client, idempotency *IdempotencyService) *PushEventProcessor {
	return &PushEventProcessor{
		client:      client,
		idempotency: idempotency,
	}
}

func (p *PushEventProcessor) GetType() string {
	return "event"
}

// Process delivers a lifecycle event to the push fabric with idempotency guarantees
func (p *PushEventProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	// Step 1: Parse event
	var event events.Event
	err := json.Unmarshal(queueMessage.Data, &event)
	if err != nil || event.ID == "" {
		logger.Error("Failed to unmarshal event", "error", err)
		// Invalid payload - retrying cannot succeed, move to DLQ
		if err == nil {
			err = errors.New("event has no id")
		}
		return err
	}

	eventID := event.ID

	// Step 2: Acquire delivery lock and check idempotency
	delCtx, err := p.idempotency.AcquireDeliveryLock(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrAlreadyDelivered) {
			// Event already delivered - ACK to remove from queue
			logger.Info("Event already delivered, skipping", "event_id", eventID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Max retries exceeded - record and ACK; clients re-fetch on reconnect
			logger.Error("Max retries exceeded", "event_id", eventID)
			prom.IncEventDeliveryFailure(event.Topic)
			return nil // ACK to move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			// Another consumer is delivering - NACK to retry later
			logger.Info("Lock held by another consumer, will retry", "event_id", eventID)
			return errors.New("lock held by another consumer")
		}
		// Unexpected error - NACK to retry
		logger.Error("Failed to acquire lock", "event_id", eventID, "error", err)
		return err
	}

	// Ensure lock is released on exit (if not already marked success/failure)
	defer func() {
		if delCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, delCtx)
		}
	}()

	logger.Info("Delivering event",
		"event_id", eventID,
		"topic", event.Topic,
		"retry_count", delCtx.RetryCount,
		"is_retry", delCtx.IsRetry)

	// Step 3: Push event to fabric
	req := &gateway.PushRequest{
		EventID:    eventID,
		Topic:      event.Topic,
		Channels:   event.Channels(),
		Recipients: recipients(event),
		Payload:    json.RawMessage(queueMessage.Data),
	}

	res, err := p.client.SendEvent(ctx, req)
	if err != nil {
		// Step 4a: Push failed - mark failure and retry
		logger.Error("Failed to push event", "event_id", eventID, "error", err)
		prom.IncEventDeliveryFailure(event.Topic)
		if markErr := p.idempotency.MarkFailure(ctx, delCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "event_id", eventID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	// Step 4b: Push succeeded - record metrics and mark success
	logger.Info("Event pushed successfully",
		"event_id", eventID,
		"topic", event.Topic,
		"status", res.Status,
		"fanout", res.FanoutCount,
		"retry_count", delCtx.RetryCount)

	if res.Status == gateway.StatusDelivered {
		if res.DeliveredAt != nil {
			prom.AddEventDeliveredDuration(
				res.DeliveredAt.Sub(event.OccurredAt).Seconds(),
				event.Topic,
			)
		}

		// Mark as successfully delivered (sets 24-hour delivered marker)
		if markErr := p.idempotency.MarkSuccess(ctx, delCtx); markErr != nil {
			logger.Error("Failed to mark success", "event_id", eventID, "error", markErr)
			// Continue - event was pushed successfully
		}

		return nil // ACK message
	}

	// Fabric returned non-delivered status - treat as failure
	logger.Warn("Event not delivered", "event_id", eventID, "status", res.Status)
	prom.IncEventDeliveryFailure(event.Topic)
	if markErr := p.idempotency.MarkFailure(ctx, delCtx, errors.New("fabric returned non-delivered status")); markErr != nil {
		logger.Error("Failed to mark failure", "event_id", eventID, "error", markErr)
	}
	return errors.New("failed to deliver event")
}

func recipients(event events.Event) []int64 {
	var ids []int64
	if event.BuyerID != 0 {
		ids = append(ids, event.BuyerID)
	}
	if event.SellerID != 0 && event.SellerID != event.BuyerID {
		ids = append(ids, event.SellerID)
	}
	return ids
}
