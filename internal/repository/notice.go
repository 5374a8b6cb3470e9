package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

type NoticeRepository struct {
	db *sql.DB
}

func NewNoticeRepository(db *sql.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

func (r *NoticeRepository) Create(ctx context.Context, n *domain.Notice) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notices (id, tenant_id, type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.TenantID, n.Type, n.Status, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Acknowledge moves matching open notices created in [from, to) to
// ACKNOWLEDGED and returns how many rows changed.
func (r *NoticeRepository) Acknowledge(ctx context.Context, tenantID uuid.UUID, types []domain.NoticeType, statuses []domain.NoticeStatus, from, to, at time.Time) (int64, error) {
	typeStrs := make([]string, len(types))
	for i, t := range types {
		typeStrs[i] = string(t)
	}
	statusStrs := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrs[i] = string(s)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE notices SET status = $1, updated_at = $2
		WHERE tenant_id = $3 AND type = ANY($4) AND status = ANY($5)
			AND created_at >= $6 AND created_at < $7`,
		domain.NoticeStatusAcknowledged, at, tenantID,
		pq.Array(typeStrs), pq.Array(statusStrs), from, to,
	)
	if err != nil {
		return 0, fmt.Errorf("Acknowledge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Acknowledge: rows affected: %w", err)
	}
	return n, nil
}

func (r *NoticeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notice, error) {
	var n domain.Notice
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, type, status, created_at, updated_at FROM notices WHERE id = $1`, id,
	).Scan(&n.ID, &n.TenantID, &n.Type, &n.Status, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &n, nil
}
