package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TxStore groups the multi-row transitions that must commit atomically:
// session status, agent capacity and the transition's system message move
// together or not at all. Implementations return the sentinel errors from
// errors.go on conflicts so racing callers can be told apart from faults.
type TxStore interface {
	// Assign moves a waiting session to active under agentID, increments the
	// agent's chat count (guarded against max_chats) and appends the join
	// system message. Fails with ErrAlreadyAssigned if the session is no
	// longer waiting, ErrAtCapacity or ErrNotOnline on the capacity guard.
	Assign(ctx context.Context, sessionID, agentID uuid.UUID, agentName string) (*ChatSession, *Message, error)

	// Transfer moves an active session from one agent to another, releasing
	// the source and reserving the target in the same transaction.
	Transfer(ctx context.Context, sessionID, fromID, toID uuid.UUID, toName string) (*ChatSession, *Message, error)

	// Resolve terminates an active session held by agentID and releases the
	// agent's capacity. Fails with ErrNotAssigned when agentID does not hold
	// the session.
	Resolve(ctx context.Context, sessionID, agentID uuid.UUID) (*ChatSession, *Message, error)

	// Abandon terminates a waiting or active session. When the session was
	// active the returned agent id identifies whose capacity was released.
	Abandon(ctx context.Context, sessionID uuid.UUID, reason string, at time.Time) (*ChatSession, *Message, *uuid.UUID, error)

	// Requeue moves an active session held by agentID back to waiting and
	// releases the agent's capacity. Used when a disconnected agent does not
	// come back within the grace period.
	Requeue(ctx context.Context, sessionID, agentID uuid.UUID) (*ChatSession, *Message, error)
}
