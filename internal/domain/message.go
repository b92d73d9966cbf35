package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SenderType identifies who produced a message
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderSystem   SenderType = "system"
)

// MessageKind is the content category of a message
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindImage  MessageKind = "image"
	KindFile   MessageKind = "file"
	KindSystem MessageKind = "system"
)

// Message is a single immutable transcript entry. Messages are totally
// ordered within a session by (created_at, id).
type Message struct {
	ID         uuid.UUID   `json:"id"`
	SessionID  uuid.UUID   `json:"session_id"`
	SenderType SenderType  `json:"sender_type"`
	SenderID   *uuid.UUID  `json:"sender_id,omitempty"`
	Content    string      `json:"content"`
	Kind       MessageKind `json:"kind"`
	FileRef    string      `json:"file_ref,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	Append(ctx context.Context, message *Message) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
}
