package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Lifecycle and chat topics. Clients subscribe by transaction or thread id;
// the topic name is the routing key prefix.
const (
	TopicTransactionCreated   = "transaction.created"
	TopicTransactionValidated = "transaction.validated"
	TopicTransactionPaid      = "transaction.paid"
	TopicTransactionCompleted = "transaction.completed"
	TopicTransactionCancelled = "transaction.cancelled"
	TopicTransactionAppealed  = "transaction.appealed"
	TopicThreadMessage        = "thread.message"
)

// Event carries the affected ids and the minimal payload a client needs to
// refresh its state. The full aggregate is never shipped; disconnected
// clients re-fetch the record instead.
type Event struct {
	ID            string    `json:"id"`
	Topic         string    `json:"topic"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	ThreadID      int64     `json:"thread_id,omitempty"`
	MessageID     int64     `json:"message_id,omitempty"`
	ActorID       int64     `json:"actor_id,omitempty"`
	BuyerID       int64     `json:"buyer_id,omitempty"`
	SellerID      int64     `json:"seller_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Channels lists the routing channels an event fans out to. Participants
// subscribe to their own user channel; open detail views subscribe to the
// transaction or thread channel.
func (e Event) Channels() []string {
	var chs []string
	if e.TransactionID != 0 {
		chs = append(chs, fmt.Sprintf("transaction.%d", e.TransactionID))
	}
	if e.ThreadID != 0 {
		chs = append(chs, fmt.Sprintf("thread.%d", e.ThreadID))
	}
	if e.BuyerID != 0 {
		chs = append(chs, fmt.Sprintf("user.%d", e.BuyerID))
	}
	if e.SellerID != 0 && e.SellerID != e.BuyerID {
		chs = append(chs, fmt.Sprintf("user.%d", e.SellerID))
	}
	return chs
}

func New(topic string) Event {
	return Event{
		ID:         uuid.New().String(),
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
	}
}
