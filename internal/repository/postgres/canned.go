package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rrens/livedesk/internal/domain"
)

// CannedResponseRepository implements domain.CannedResponseRepository
type CannedResponseRepository struct {
	pool *pgxpool.Pool
}

// NewCannedResponseRepository creates a new canned response repository
func NewCannedResponseRepository(pool *pgxpool.Pool) *CannedResponseRepository {
	return &CannedResponseRepository{pool: pool}
}

func (r *CannedResponseRepository) List(ctx context.Context) ([]domain.CannedResponse, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, content, created_by, created_at, updated_at
		FROM canned_responses
		ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list canned responses: %w", err)
	}
	defer rows.Close()

	var all []domain.CannedResponse
	for rows.Next() {
		var c domain.CannedResponse
		if err := rows.Scan(&c.ID, &c.Title, &c.Content, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan canned response: %w", err)
		}
		all = append(all, c)
	}
	return all, rows.Err()
}
