package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/livedesk/internal/domain"
)

const (
	onlineAgentsKey = "livedesk:agents:online"
	statsKey        = "livedesk:stats"
	presenceTTL     = 24 * time.Hour
	statsTTL        = 5 * time.Minute
)

// PresenceMirror keeps a Redis view of agent availability and queue stats so
// dashboards and sibling services can read them without touching Postgres.
// It is a mirror only; the registry and the store stay authoritative.
type PresenceMirror struct {
	client *Client
}

// NewPresenceMirror creates a new presence mirror
func NewPresenceMirror(client *Client) *PresenceMirror {
	return &PresenceMirror{client: client}
}

// SetAgent writes one agent's presence into the online hash, or removes it
// when the agent goes offline.
func (m *PresenceMirror) SetAgent(ctx context.Context, p domain.AgentPresence) error {
	field := p.UserID.String()
	if p.State == domain.AgentOffline {
		return m.client.rdb.HDel(ctx, onlineAgentsKey, field).Err()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}
	if err := m.client.rdb.HSet(ctx, onlineAgentsKey, field, data).Err(); err != nil {
		return fmt.Errorf("failed to mirror presence: %w", err)
	}
	return m.client.rdb.Expire(ctx, onlineAgentsKey, presenceTTL).Err()
}

// RemoveAgent drops an agent from the online hash.
func (m *PresenceMirror) RemoveAgent(ctx context.Context, userID uuid.UUID) error {
	return m.client.rdb.HDel(ctx, onlineAgentsKey, userID.String()).Err()
}

// OnlineAgents returns the mirrored presence set.
func (m *PresenceMirror) OnlineAgents(ctx context.Context) ([]domain.AgentPresence, error) {
	result, err := m.client.rdb.HGetAll(ctx, onlineAgentsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read online agents: %w", err)
	}

	agents := make([]domain.AgentPresence, 0, len(result))
	for _, raw := range result {
		var p domain.AgentPresence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		agents = append(agents, p)
	}
	return agents, nil
}

// Stats is the dashboard snapshot pushed on the admin-stats topic and cached
// here for REST reads.
type Stats struct {
	WaitingCount int                    `json:"waiting_count"`
	ActiveCount  int                    `json:"active_count"`
	OnlineAgents int                    `json:"online_agents"`
	Agents       []domain.AgentPresence `json:"agents"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// SetStats caches the latest stats snapshot.
func (m *PresenceMirror) SetStats(ctx context.Context, stats Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	return m.client.rdb.Set(ctx, statsKey, data, statsTTL).Err()
}

// GetStats returns the cached stats snapshot, or nil on a miss.
func (m *PresenceMirror) GetStats(ctx context.Context) (*Stats, error) {
	data, err := m.client.rdb.Get(ctx, statsKey).Bytes()
	if err != nil {
		return nil, nil // Cache miss
	}

	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return &stats, nil
}

// Flush clears the mirror. Called on shutdown alongside the presence flush.
func (m *PresenceMirror) Flush(ctx context.Context) error {
	return m.client.rdb.Del(ctx, onlineAgentsKey, statsKey).Err()
}
