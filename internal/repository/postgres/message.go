package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rrens/livedesk/internal/domain"
)

// MessageRepository implements domain.MessageRepository
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Append inserts a message. The session row is share-locked first so the
// append serialises against concurrent resolve/abandon: no message can land
// after resolved_at.
func (r *MessageRepository) Append(ctx context.Context, message *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status domain.SessionStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM chat_sessions WHERE id = $1 FOR SHARE`,
		message.SessionID,
	).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to check session status: %w", err)
	}
	if status.Terminal() {
		return domain.ErrSessionClosed
	}

	if err := appendMessageTx(ctx, tx, message); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit message append: %w", err)
	}
	return nil
}

// ListBySession returns the full ordered transcript.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT id, session_id, sender_type, sender_id, content, kind, file_ref, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID,
			&m.SessionID,
			&m.SenderType,
			&m.SenderID,
			&m.Content,
			&m.Kind,
			&m.FileRef,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// appendMessageTx inserts a message and bumps the session's last_message_at
// inside the caller's transaction. Shared with the transition transactions
// in txstore.go.
func appendMessageTx(ctx context.Context, tx pgx.Tx, message *domain.Message) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO chat_messages (id, session_id, sender_type, sender_id, content, kind, file_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		message.ID,
		message.SessionID,
		message.SenderType,
		message.SenderID,
		message.Content,
		message.Kind,
		message.FileRef,
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE chat_sessions SET last_message_at = $2 WHERE id = $1 AND last_message_at < $2`,
		message.SessionID, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to bump last_message_at: %w", err)
	}
	return nil
}
