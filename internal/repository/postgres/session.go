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

const sessionColumns = `id, customer_name, customer_email, customer_token, source_url,
	status, assigned_agent_id, created_at, assigned_at, resolved_at,
	rating, feedback, last_message_at`

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts a new waiting session together with its welcome system
// message in one transaction.
func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession, welcome *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_sessions (id, customer_name, customer_email, customer_token, source_url,
			status, created_at, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		session.ID,
		session.CustomerName,
		session.CustomerEmail,
		session.CustomerToken,
		session.SourceURL,
		session.Status,
		session.CreatedAt,
		session.LastMessageAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if welcome != nil {
		if err := appendMessageTx(ctx, tx, welcome); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session create: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE customer_token = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, token))
}

// SetRating records the post-chat rating. Only resolved, unrated sessions
// accept one.
func (r *SessionRepository) SetRating(ctx context.Context, id uuid.UUID, rating int, feedback string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chat_sessions
		SET rating = $2, feedback = $3
		WHERE id = $1 AND status = 'resolved' AND rating IS NULL
	`, id, rating, feedback)
	if err != nil {
		return fmt.Errorf("failed to set rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionClosed
	}
	return nil
}

// ListWaiting returns the waiting queue in FIFO order.
func (r *SessionRepository) ListWaiting(ctx context.Context) ([]domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE status = 'waiting' ORDER BY created_at, id`
	return r.list(ctx, query)
}

func (r *SessionRepository) ListActiveByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions
		WHERE status = 'active' AND assigned_agent_id = $1 ORDER BY assigned_at`
	return r.list(ctx, query, agentID)
}

func (r *SessionRepository) ListResolvedByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions
		WHERE status = 'resolved' AND assigned_agent_id = $1
		ORDER BY resolved_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, query, agentID, limit, offset)
}

// ListIdleSince returns non-terminal sessions whose last message predates the
// cutoff. Used by the idle reaper.
func (r *SessionRepository) ListIdleSince(ctx context.Context, cutoff time.Time) ([]domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions
		WHERE status IN ('waiting', 'active') AND last_message_at <= $1
		ORDER BY last_message_at`
	return r.list(ctx, query, cutoff)
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]domain.ChatSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) scanOne(row pgx.Row) (*domain.ChatSession, error) {
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func scanSession(row pgx.Row) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := row.Scan(
		&s.ID,
		&s.CustomerName,
		&s.CustomerEmail,
		&s.CustomerToken,
		&s.SourceURL,
		&s.Status,
		&s.AssignedAgentID,
		&s.CreatedAt,
		&s.AssignedAt,
		&s.ResolvedAt,
		&s.Rating,
		&s.Feedback,
		&s.LastMessageAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}
