package repository

import (
	"time"

	"github.com/propia/deal-gateway/internal/model"
)

type ChatThreadEntity struct {
	ID             int64     `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	Key            string    `db:"key"             gorm:"column:key;not null;uniqueIndex"`
	ListingID      int64     `db:"listing_id"      gorm:"column:listing_id;not null;index"`
	ListingKind    string    `db:"listing_kind"    gorm:"column:listing_kind;not null"`
	OwnerID        int64     `db:"owner_id"        gorm:"column:owner_id;not null;index"`
	CounterpartyID int64     `db:"counterparty_id" gorm:"column:counterparty_id;not null;index"`
	TransactionID  *int64    `db:"transaction_id"  gorm:"column:transaction_id;index"`
	CreatedAt      time.Time `db:"created_at"      gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `db:"updated_at"      gorm:"column:updated_at;autoUpdateTime"`
}

func (ChatThreadEntity) TableName() string {
	return "chat_threads"
}

type ChatMessageEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	ThreadID   int64     `db:"thread_id"   gorm:"column:thread_id;not null;index"`
	SenderID   int64     `db:"sender_id"   gorm:"column:sender_id;not null"`
	ReceiverID int64     `db:"receiver_id" gorm:"column:receiver_id;not null"`
	Body       *string   `db:"body"        gorm:"column:body"`
	FileName   *string   `db:"file_name"   gorm:"column:file_name"`
	FileMime   *string   `db:"file_mime"   gorm:"column:file_mime"`
	FileSize   *int64    `db:"file_size"   gorm:"column:file_size"`
	FileURL    *string   `db:"file_url"    gorm:"column:file_url"`
	CreatedAt  time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (ChatMessageEntity) TableName() string {
	return "chat_messages"
}

func toChatThreadEntity(t *model.ChatThread) *ChatThreadEntity {
	if t == nil {
		return nil
	}
	return &ChatThreadEntity{
		ID:             t.ID,
		Key:            t.Key,
		ListingID:      t.ListingID,
		ListingKind:    string(t.ListingKind),
		OwnerID:        t.OwnerID,
		CounterpartyID: t.CounterpartyID,
		TransactionID:  t.TransactionID,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func toChatThreadModel(e *ChatThreadEntity) *model.ChatThread {
	if e == nil {
		return nil
	}
	return &model.ChatThread{
		ID:             e.ID,
		Key:            e.Key,
		ListingID:      e.ListingID,
		ListingKind:    model.ListingKind(e.ListingKind),
		OwnerID:        e.OwnerID,
		CounterpartyID: e.CounterpartyID,
		TransactionID:  e.TransactionID,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toChatThreadModels(entities []*ChatThreadEntity) []*model.ChatThread {
	if entities == nil {
		return nil
	}
	models := make([]*model.ChatThread, len(entities))
	for i, e := range entities {
		models[i] = toChatThreadModel(e)
	}
	return models
}

func toChatMessageEntity(m *model.ChatMessage) *ChatMessageEntity {
	if m == nil {
		return nil
	}
	e := &ChatMessageEntity{
		ID:         m.ID,
		ThreadID:   m.ThreadID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		CreatedAt:  m.CreatedAt,
	}
	if m.Body != "" {
		e.Body = &m.Body
	}
	if m.File != nil {
		e.FileName = &m.File.Name
		e.FileMime = &m.File.Mime
		e.FileSize = &m.File.Size
		e.FileURL = &m.File.URL
	}
	return e
}

func toChatMessageModel(e *ChatMessageEntity) *model.ChatMessage {
	if e == nil {
		return nil
	}
	m := &model.ChatMessage{
		ID:         e.ID,
		ThreadID:   e.ThreadID,
		SenderID:   e.SenderID,
		ReceiverID: e.ReceiverID,
		CreatedAt:  e.CreatedAt,
	}
	if e.Body != nil {
		m.Body = *e.Body
	}
	if e.FileURL != nil {
		m.File = &model.FileRef{URL: *e.FileURL}
		if e.FileName != nil {
			m.File.Name = *e.FileName
		}
		if e.FileMime != nil {
			m.File.Mime = *e.FileMime
		}
		if e.FileSize != nil {
			m.File.Size = *e.FileSize
		}
	}
	return m
}

func toChatMessageModels(entities []*ChatMessageEntity) []*model.ChatMessage {
	if entities == nil {
		return nil
	}
	models := make([]*model.ChatMessage, len(entities))
	for i, e := range entities {
		models[i] = toChatMessageModel(e)
	}
	return models
}
