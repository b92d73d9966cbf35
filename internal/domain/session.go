package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a chat session
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusResolved  SessionStatus = "resolved"
	StatusAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == StatusResolved || s == StatusAbandoned
}

// ChatSession represents a single customer conversation
type ChatSession struct {
	ID              uuid.UUID     `json:"id"`
	CustomerName    string        `json:"customer_name,omitempty"`
	CustomerEmail   string        `json:"customer_email,omitempty"`
	CustomerToken   string        `json:"-"`
	SourceURL       string        `json:"source_url,omitempty"`
	Status          SessionStatus `json:"status"`
	AssignedAgentID *uuid.UUID    `json:"assigned_agent_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	AssignedAt      *time.Time    `json:"assigned_at,omitempty"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
	Rating          *int          `json:"rating,omitempty"`
	Feedback        string        `json:"feedback,omitempty"`
	LastMessageAt   time.Time     `json:"last_message_at"`
}

// ChatInitRequest is the customer-side session creation payload
type ChatInitRequest struct {
	CustomerName  string `json:"customerName" validate:"omitempty,max=120"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email,max=255"`
	SourceURL     string `json:"sourceUrl" validate:"omitempty,max=2048"`
}

// RatingRequest is the post-chat rating payload
type RatingRequest struct {
	CustomerToken string `json:"customerToken" validate:"required"`
	Rating        int    `json:"rating" validate:"required,min=1,max=5"`
	Feedback      string `json:"feedback" validate:"omitempty,max=2000"`
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	Create(ctx context.Context, session *ChatSession, welcome *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*ChatSession, error)
	GetByToken(ctx context.Context, token string) (*ChatSession, error)
	SetRating(ctx context.Context, id uuid.UUID, rating int, feedback string) error
	ListWaiting(ctx context.Context) ([]ChatSession, error)
	ListActiveByAgent(ctx context.Context, agentID uuid.UUID) ([]ChatSession, error)
	ListResolvedByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]ChatSession, error)
	ListIdleSince(ctx context.Context, cutoff time.Time) ([]ChatSession, error)
}
