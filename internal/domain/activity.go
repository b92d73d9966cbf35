package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEntry is one audit record: a session transition or an agent
// status change. Entries are write-only from the engine's point of view.
type ActivityEntry struct {
	ID        uuid.UUID      `json:"id" bson:"_id"`
	Action    string         `json:"action" bson:"action"`
	SessionID *uuid.UUID     `json:"session_id,omitempty" bson:"session_id,omitempty"`
	ActorID   *uuid.UUID     `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	ActorType string         `json:"actor_type" bson:"actor_type"`
	Detail    map[string]any `json:"detail,omitempty" bson:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}

// ActivityRepository is the audit sink. Implementations must be safe to call
// from transition handlers and must never block them on sink failures.
type ActivityRepository interface {
	Record(ctx context.Context, entry *ActivityEntry) error
}
