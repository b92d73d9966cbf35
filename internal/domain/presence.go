package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AgentState is the availability state of an agent
type AgentState string

const (
	AgentOnline  AgentState = "online"
	AgentBusy    AgentState = "busy"
	AgentOffline AgentState = "offline"
)

// AgentPresence is the capacity record for one agent. CurrentChats is kept
// consistent with the active-session count by transactional updates.
type AgentPresence struct {
	UserID       uuid.UUID  `json:"user_id"`
	Name         string     `json:"name,omitempty"`
	State        AgentState `json:"state"`
	CurrentChats int        `json:"current_chats"`
	MaxChats     int        `json:"max_chats"`
	LastActiveAt time.Time  `json:"last_active_at"`
}

// Available reports whether the agent can take another chat.
func (p AgentPresence) Available() bool {
	return p.State == AgentOnline && p.CurrentChats < p.MaxChats
}

// PresenceRepository defines the interface for persisted agent presence
type PresenceRepository interface {
	Upsert(ctx context.Context, presence *AgentPresence) error
	SetState(ctx context.Context, userID uuid.UUID, state AgentState) error
	Snapshot(ctx context.Context) ([]AgentPresence, error)
	SetAllOffline(ctx context.Context) error
}
