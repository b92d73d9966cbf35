package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CannedResponse is a prewritten reply agents can insert into chats. The
// admin screens that manage these live outside this service; we only read.
type CannedResponse struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CannedResponseRepository defines read access to canned responses
type CannedResponseRepository interface {
	List(ctx context.Context) ([]CannedResponse, error)
}
