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

const leaseColumns = `l.id, l.tenant_id, l.unit_id, l.status, l.rent_amount,
	l.start_date, l.end_date, l.created_at, l.updated_at`

type LeaseRepository struct {
	db *sql.DB
}

func NewLeaseRepository(db *sql.DB) *LeaseRepository {
	return &LeaseRepository{db: db}
}

func (r *LeaseRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Lease, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+leaseColumns+` FROM leases l
		JOIN tenants t ON t.id = l.tenant_id
		WHERE l.id = $1 AND t.organization_id = $2`, id, orgID,
	)
	l, err := scanLease(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrLeaseNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	if err := r.attachClauses(ctx, []*domain.Lease{l}); err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return l, nil
}

// GetCurrentForTenant prefers the ACTIVE lease, then the most recently started.
func (r *LeaseRepository) GetCurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*domain.Lease, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+leaseColumns+` FROM leases l
		WHERE l.tenant_id = $1
		ORDER BY (l.status = $2) DESC, l.start_date DESC
		LIMIT 1`, tenantID, domain.LeaseStatusActive,
	)
	l, err := scanLease(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetCurrentForTenant: %w", domain.ErrLeaseNotFound)
		}
		return nil, fmt.Errorf("GetCurrentForTenant: %w", err)
	}
	if err := r.attachClauses(ctx, []*domain.Lease{l}); err != nil {
		return nil, fmt.Errorf("GetCurrentForTenant: %w", err)
	}
	return l, nil
}

// ListActive returns the organization's ACTIVE leases with clauses attached.
func (r *LeaseRepository) ListActive(ctx context.Context, orgID uuid.UUID) ([]domain.Lease, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+leaseColumns+` FROM leases l
		JOIN tenants t ON t.id = l.tenant_id
		WHERE t.organization_id = $1 AND l.status = $2
		ORDER BY l.tenant_id, l.id`, orgID, domain.LeaseStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer rows.Close()

	var leases []domain.Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive: scan: %w", err)
		}
		leases = append(leases, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListActive: rows: %w", err)
	}

	ptrs := make([]*domain.Lease, len(leases))
	for i := range leases {
		ptrs[i] = &leases[i]
	}
	if err := r.attachClauses(ctx, ptrs); err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	return leases, nil
}

func (r *LeaseRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.LeaseStatus, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE leases SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, at, id, from,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrVersionConflict)
	}
	return nil
}

func (r *LeaseRepository) attachClauses(ctx context.Context, leases []*domain.Lease) error {
	if len(leases) == 0 {
		return nil
	}
	ids := make([]string, len(leases))
	byID := make(map[uuid.UUID]*domain.Lease, len(leases))
	for i, l := range leases {
		ids[i] = l.ID.String()
		byID[l.ID] = l
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, lease_id, position, type, metadata FROM lease_clauses
		WHERE lease_id = ANY($1::uuid[]) ORDER BY lease_id, position`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("attachClauses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c    domain.LeaseClause
			meta []byte
		)
		if err := rows.Scan(&c.ID, &c.LeaseID, &c.Position, &c.Type, &meta); err != nil {
			return fmt.Errorf("attachClauses: scan: %w", err)
		}
		c.Metadata = meta
		if l, ok := byID[c.LeaseID]; ok {
			l.Clauses = append(l.Clauses, c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("attachClauses: rows: %w", err)
	}
	return nil
}

func scanLease(s scanner) (*domain.Lease, error) {
	var l domain.Lease
	err := s.Scan(
		&l.ID, &l.TenantID, &l.UnitID, &l.Status, &l.RentAmount,
		&l.StartDate, &l.EndDate, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
