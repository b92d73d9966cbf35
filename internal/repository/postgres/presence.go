package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rrens/livedesk/internal/domain"
)

// PresenceRepository implements domain.PresenceRepository
type PresenceRepository struct {
	pool *pgxpool.Pool
}

// NewPresenceRepository creates a new presence repository
func NewPresenceRepository(pool *pgxpool.Pool) *PresenceRepository {
	return &PresenceRepository{pool: pool}
}

// Upsert creates or refreshes the presence row for an agent. current_chats
// is left alone on conflict: the transactional transitions own it.
func (r *PresenceRepository) Upsert(ctx context.Context, p *domain.AgentPresence) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO agent_presence (user_id, state, current_chats, max_chats, last_active_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET state = EXCLUDED.state,
		    max_chats = EXCLUDED.max_chats,
		    last_active_at = EXCLUDED.last_active_at
	`, p.UserID, p.State, p.CurrentChats, p.MaxChats, p.LastActiveAt)
	if err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}
	return nil
}

func (r *PresenceRepository) SetState(ctx context.Context, userID uuid.UUID, state domain.AgentState) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE agent_presence SET state = $2, last_active_at = now() WHERE user_id = $1
	`, userID, state)
	if err != nil {
		return fmt.Errorf("failed to set agent state: %w", err)
	}
	return nil
}

// Snapshot returns all presence rows joined with agent names. Used to
// rehydrate the in-memory registry at startup and to resync on divergence.
func (r *PresenceRepository) Snapshot(ctx context.Context) ([]domain.AgentPresence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.user_id, u.name, p.state, p.current_chats, p.max_chats, p.last_active_at
		FROM agent_presence p
		JOIN users u ON u.id = p.user_id
		ORDER BY p.user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot presence: %w", err)
	}
	defer rows.Close()

	var all []domain.AgentPresence
	for rows.Next() {
		var p domain.AgentPresence
		if err := rows.Scan(&p.UserID, &p.Name, &p.State, &p.CurrentChats, &p.MaxChats, &p.LastActiveAt); err != nil {
			return nil, fmt.Errorf("failed to scan presence: %w", err)
		}
		all = append(all, p)
	}
	return all, rows.Err()
}

// SetAllOffline forces every agent offline. Called on shutdown.
func (r *PresenceRepository) SetAllOffline(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `UPDATE agent_presence SET state = 'offline' WHERE state <> 'offline'`)
	if err != nil {
		return fmt.Errorf("failed to flush presence: %w", err)
	}
	return nil
}
