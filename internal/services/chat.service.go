package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/propia/deal-gateway/internal/events"
	"github.com/propia/deal-gateway/internal/model"
	"github.com/propia/deal-gateway/internal/repository"
)

var (
	// ErrEmptyMessage rejects an append with neither text nor file.
	ErrEmptyMessage = errors.New("message must contain text or a file")
	// ErrMessageTooLong caps the message body length.
	ErrMessageTooLong = errors.New("message body exceeds maximum length")
)

const maxMessageLen = 4000

type ChatRepository interface {
	GetOrCreate(ctx context.Context, t *model.ChatThread) (*model.ChatThread, error)
	GetByID(ctx context.Context, id int64) (*model.ChatThread, error)
	AppendMessage(ctx context.Context, m *model.ChatMessage) (*model.ChatMessage, error)
	Messages(ctx context.Context, threadID int64) ([]*model.ChatMessage, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.ChatThread, error)
}

// ChatService is the one generic thread component covering all three
// listing kinds. A thread binds exactly two participants; the log is
// append-only and ordered by storage position.
type ChatService struct {
	chatRepo  ChatRepository
	listings  ListingGate
	publisher events.Publisher
}

func NewChatService(chatRepo ChatRepository, listings ListingGate, publisher events.Publisher) *ChatService {
	return &ChatService{
		chatRepo:  chatRepo,
		listings:  listings,
		publisher: publisher,
	}
}

// GetOrCreate returns the single logical thread for a listing and a
// counterparty, creating it on first contact. Idempotent: both directions
// of first contact land on the same canonical key.
func (s *ChatService) GetOrCreate(ctx context.Context, kind model.ListingKind, listingID, callerID int64) (*model.ChatThread, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown listing kind %q", ErrValidation, kind)
	}

	listing, err := s.listings.Get(ctx, kind, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, fmt.Errorf("%w: listing %d", ErrNotFound, listingID)
		}
		return nil, err
	}
	if listing.OwnerID == callerID {
		return nil, fmt.Errorf("%w: you cannot open an inquiry on your own listing", ErrValidation)
	}

	return s.chatRepo.GetOrCreate(ctx, &model.ChatThread{
		Key:            model.ThreadKey(kind, listingID, callerID, listing.OwnerID),
		ListingID:      listingID,
		ListingKind:    kind,
		OwnerID:        listing.OwnerID,
		CounterpartyID: callerID,
	})
}

// Append stores one message and publishes it to the thread channel. Only
// the two bound participants may write; the server assigns timestamp and
// log position.
func (s *ChatService) Append(ctx context.Context, p model.ChatAppendRequest) (*model.ChatMessage, error) {
	thread, err := s.chatRepo.GetByID(ctx, p.ThreadID)
	if err != nil {
		if errors.Is(err, repository.ErrThreadNotFound) {
			return nil, fmt.Errorf("%w: thread %d", ErrNotFound, p.ThreadID)
		}
		return nil, err
	}
	if !thread.IsParticipant(p.SenderID) {
		return nil, fmt.Errorf("%w: you are not part of this conversation", ErrForbidden)
	}

	p.Body = strings.TrimSpace(p.Body)
	if p.Body == "" && p.File == nil {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(p.Body) > maxMessageLen {
		return nil, ErrMessageTooLong
	}

	stored, err := s.chatRepo.AppendMessage(ctx, &model.ChatMessage{
		ThreadID:   thread.ID,
		SenderID:   p.SenderID,
		ReceiverID: thread.Counterparty(p.SenderID),
		Body:       p.Body,
		File:       p.File,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		ev := events.New(events.TopicThreadMessage)
		ev.ThreadID = thread.ID
		ev.MessageID = stored.ID
		ev.ActorID = p.SenderID
		if thread.TransactionID != nil {
			ev.TransactionID = *thread.TransactionID
		}
		// Fan-out is best effort; history is the source of truth.
		_ = s.publisher.Publish(ctx, ev)
	}

	return stored, nil
}

// History returns the full ordered log, restricted to the participants.
func (s *ChatService) History(ctx context.Context, threadID, callerID int64) ([]*model.ChatMessage, error) {
	thread, err := s.chatRepo.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, repository.ErrThreadNotFound) {
			return nil, fmt.Errorf("%w: thread %d", ErrNotFound, threadID)
		}
		return nil, err
	}
	if !thread.IsParticipant(callerID) {
		return nil, fmt.Errorf("%w: you are not part of this conversation", ErrForbidden)
	}
	return s.chatRepo.Messages(ctx, threadID)
}

// ListThreads returns the caller's conversations across all listing kinds.
func (s *ChatService) ListThreads(ctx context.Context, callerID int64) ([]*model.ChatThread, error) {
	return s.chatRepo.ListByUser(ctx, callerID)
}
