package model

import (
	"fmt"
	"time"
)

// ChatThread is the single logical conversation between a listing's owner
// and one counterparty. One thread exists per (listing, unordered user pair);
// the canonical key makes the pairing order-independent.
type ChatThread struct {
	ID             int64       `json:"id"`
	Key            string      `json:"key"`
	ListingID      int64       `json:"listing_id"`
	ListingKind    ListingKind `json:"listing_kind"`
	OwnerID        int64       `json:"owner_id"`
	CounterpartyID int64       `json:"counterparty_id"`
	TransactionID  *int64      `json:"transaction_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (t *ChatThread) IsParticipant(userID int64) bool {
	return t.OwnerID == userID || t.CounterpartyID == userID
}

func (t *ChatThread) Counterparty(userID int64) int64 {
	if t.OwnerID == userID {
		return t.CounterpartyID
	}
	return t.OwnerID
}

// ThreadKey builds the canonical thread key for a listing and two users.
// The user ids are ordered so both "directions" of first contact map to the
// same key.
func ThreadKey(kind ListingKind, listingID, a, b int64) string {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%s-%d-%d-%d", kind, listingID, lo, hi)
}

// FileRef is chat attachment metadata. The bytes live in external storage;
// only the reference is kept here.
type FileRef struct {
	Name string `json:"name"`
	Mime string `json:"mime"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// ChatMessage is one entry of the append-only thread log. ID is the log
// order; CreatedAt is informational.
type ChatMessage struct {
	ID         int64     `json:"id"`
	ThreadID   int64     `json:"thread_id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Body       string    `json:"body,omitempty"`
	File       *FileRef  `json:"file,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatAppendRequest is the input for appending to a thread.
type ChatAppendRequest struct {
	ThreadID int64
	SenderID int64
	Body     string
	File     *FileRef
}
