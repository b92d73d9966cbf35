package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rrens/livedesk/internal/domain"
)

// TxStore implements domain.TxStore. Every transition locks the session row
// first, then mutates capacity with rows-affected guards, so two agents
// racing for one waiting session serialise on the row lock and the loser
// sees the session already active.
type TxStore struct {
	pool *pgxpool.Pool
}

// NewTxStore creates a new transactional store
func NewTxStore(pool *pgxpool.Pool) *TxStore {
	return &TxStore{pool: pool}
}

// Assign claims a waiting session for an agent.
func (s *TxStore) Assign(ctx context.Context, sessionID, agentID uuid.UUID, agentName string) (*domain.ChatSession, *domain.Message, error) {
	var session *domain.ChatSession
	var sysMsg *domain.Message

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		status, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if status != domain.StatusWaiting {
			return domain.ErrAlreadyAssigned
		}

		if err := reserveAgent(ctx, tx, agentID); err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = tx.Exec(ctx, `
			UPDATE chat_sessions
			SET status = 'active', assigned_agent_id = $2, assigned_at = $3
			WHERE id = $1
		`, sessionID, agentID, now)
		if err != nil {
			return fmt.Errorf("failed to activate session: %w", err)
		}

		sysMsg = systemMessage(sessionID, fmt.Sprintf("%s joined the chat", agentName), now)
		if err := appendMessageTx(ctx, tx, sysMsg); err != nil {
			return err
		}

		session, err = fetchSessionTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return session, sysMsg, nil
}

// Transfer hands an active session from one agent to another.
func (s *TxStore) Transfer(ctx context.Context, sessionID, fromID, toID uuid.UUID, toName string) (*domain.ChatSession, *domain.Message, error) {
	var session *domain.ChatSession
	var sysMsg *domain.Message

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		status, assigned, err := lockSessionWithAgent(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if status != domain.StatusActive || assigned == nil || *assigned != fromID {
			return domain.ErrNotAssigned
		}

		if err := reserveAgent(ctx, tx, toID); err != nil {
			// Reuse the reserve guard but surface transfer-specific codes.
			switch {
			case errors.Is(err, domain.ErrNotOnline):
				return domain.ErrTargetNotOnline
			case errors.Is(err, domain.ErrAtCapacity):
				return domain.ErrTargetAtCapacity
			}
			return err
		}
		if err := releaseAgent(ctx, tx, fromID); err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = tx.Exec(ctx, `
			UPDATE chat_sessions SET assigned_agent_id = $2, assigned_at = $3 WHERE id = $1
		`, sessionID, toID, now)
		if err != nil {
			return fmt.Errorf("failed to reassign session: %w", err)
		}

		sysMsg = systemMessage(sessionID, fmt.Sprintf("Chat transferred to %s", toName), now)
		if err := appendMessageTx(ctx, tx, sysMsg); err != nil {
			return err
		}

		session, err = fetchSessionTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return session, sysMsg, nil
}

// Resolve terminates an active session held by agentID.
func (s *TxStore) Resolve(ctx context.Context, sessionID, agentID uuid.UUID) (*domain.ChatSession, *domain.Message, error) {
	var session *domain.ChatSession
	var sysMsg *domain.Message

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		status, assigned, err := lockSessionWithAgent(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if status != domain.StatusActive || assigned == nil || *assigned != agentID {
			return domain.ErrNotAssigned
		}

		now := time.Now().UTC()
		sysMsg = systemMessage(sessionID, "Chat resolved", now)
		if err := appendMessageTx(ctx, tx, sysMsg); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE chat_sessions SET status = 'resolved', resolved_at = $2 WHERE id = $1
		`, sessionID, now)
		if err != nil {
			return fmt.Errorf("failed to resolve session: %w", err)
		}

		if err := releaseAgent(ctx, tx, agentID); err != nil {
			return err
		}

		session, err = fetchSessionTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return session, sysMsg, nil
}

// Abandon terminates a waiting or active session (customer leave or idle
// reaper). Returns the agent whose capacity was released, if any.
func (s *TxStore) Abandon(ctx context.Context, sessionID uuid.UUID, reason string, at time.Time) (*domain.ChatSession, *domain.Message, *uuid.UUID, error) {
	var session *domain.ChatSession
	var sysMsg *domain.Message
	var released *uuid.UUID

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		status, assigned, err := lockSessionWithAgent(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if status.Terminal() {
			return domain.ErrSessionClosed
		}

		sysMsg = systemMessage(sessionID, reason, at)
		if err := appendMessageTx(ctx, tx, sysMsg); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE chat_sessions SET status = 'abandoned', resolved_at = $2 WHERE id = $1
		`, sessionID, at)
		if err != nil {
			return fmt.Errorf("failed to abandon session: %w", err)
		}

		if status == domain.StatusActive && assigned != nil {
			if err := releaseAgent(ctx, tx, *assigned); err != nil {
				return err
			}
			released = assigned
		}

		session, err = fetchSessionTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return session, sysMsg, released, nil
}

// Requeue returns an active session to the waiting queue after its agent
// dropped without coming back.
func (s *TxStore) Requeue(ctx context.Context, sessionID, agentID uuid.UUID) (*domain.ChatSession, *domain.Message, error) {
	var session *domain.ChatSession
	var sysMsg *domain.Message

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		status, assigned, err := lockSessionWithAgent(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if status != domain.StatusActive || assigned == nil || *assigned != agentID {
			return domain.ErrNotAssigned
		}

		now := time.Now().UTC()
		_, err = tx.Exec(ctx, `
			UPDATE chat_sessions
			SET status = 'waiting', assigned_agent_id = NULL, assigned_at = NULL
			WHERE id = $1
		`, sessionID)
		if err != nil {
			return fmt.Errorf("failed to requeue session: %w", err)
		}

		if err := releaseAgent(ctx, tx, agentID); err != nil {
			return err
		}

		sysMsg = systemMessage(sessionID, "Agent disconnected, you are back in the queue", now)
		if err := appendMessageTx(ctx, tx, sysMsg); err != nil {
			return err
		}

		session, err = fetchSessionTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return session, sysMsg, nil
}

func (s *TxStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}
	return nil
}

func lockSession(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.SessionStatus, error) {
	status, _, err := lockSessionWithAgent(ctx, tx, id)
	return status, err
}

func lockSessionWithAgent(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.SessionStatus, *uuid.UUID, error) {
	var status domain.SessionStatus
	var assigned *uuid.UUID
	err := tx.QueryRow(ctx,
		`SELECT status, assigned_agent_id FROM chat_sessions WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&status, &assigned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, domain.ErrNotFound
		}
		return "", nil, fmt.Errorf("failed to lock session: %w", err)
	}
	return status, assigned, nil
}

// reserveAgent increments current_chats iff the agent is online with spare
// capacity. The WHERE clause is the capacity invariant.
func reserveAgent(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE agent_presence
		SET current_chats = current_chats + 1, last_active_at = now()
		WHERE user_id = $1 AND state = 'online' AND current_chats < max_chats
	`, agentID)
	if err != nil {
		return fmt.Errorf("failed to reserve agent capacity: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var state domain.AgentState
	err = tx.QueryRow(ctx,
		`SELECT state FROM agent_presence WHERE user_id = $1`, agentID,
	).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotOnline
		}
		return fmt.Errorf("failed to inspect agent presence: %w", err)
	}
	if state != domain.AgentOnline {
		return domain.ErrNotOnline
	}
	return domain.ErrAtCapacity
}

func releaseAgent(ctx context.Context, tx pgx.Tx, agentID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE agent_presence
		SET current_chats = GREATEST(current_chats - 1, 0)
		WHERE user_id = $1
	`, agentID)
	if err != nil {
		return fmt.Errorf("failed to release agent capacity: %w", err)
	}
	return nil
}

func fetchSessionTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ChatSession, error) {
	row := tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func systemMessage(sessionID uuid.UUID, content string, at time.Time) *domain.Message {
	return &domain.Message{
		ID:         uuid.New(),
		SessionID:  sessionID,
		SenderType: domain.SenderSystem,
		Content:    content,
		Kind:       domain.KindSystem,
		CreatedAt:  at,
	}
}
