package model

import "time"

// Notification is a short advisory appended to a recipient's feed as a side
// effect of a lifecycle or chat event. The Read flag is client-settable and
// carries no business logic.
type Notification struct {
	ID            int64     `json:"id"`
	RecipientID   int64     `json:"recipient_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Message       string    `json:"message"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"created_at"`
}

// NotificationFilter controls feed queries.
type NotificationFilter struct {
	RecipientID int64
	UnreadOnly  bool
	Limit       int
	Offset      int
}
