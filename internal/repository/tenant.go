package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

const tenantColumns = `t.id, t.organization_id, t.unit_id, t.name, t.email, t.status,
	t.move_in_date, t.move_out_date, t.created_at`

type TenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants t WHERE t.id = $1 AND t.organization_id = $2`,
		id, orgID,
	)
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrTenantNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// ListActiveOccupants returns ACTIVE tenants of OCCUPIED units in the
// property, ordered by move-in date then id.
func (r *TenantRepository) ListActiveOccupants(ctx context.Context, orgID, propertyID uuid.UUID) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants t
		JOIN units u ON u.id = t.unit_id
		WHERE u.property_id = $1 AND t.organization_id = $2
			AND t.status = $3 AND u.status = $4
		ORDER BY t.move_in_date NULLS FIRST, t.id`,
		propertyID, orgID, domain.TenantStatusActive, domain.UnitStatusOccupied,
	)
	if err != nil {
		return nil, fmt.Errorf("ListActiveOccupants: %w", err)
	}
	tenants, err := collectTenants(rows)
	if err != nil {
		return nil, fmt.Errorf("ListActiveOccupants: %w", err)
	}
	return tenants, nil
}

// ListOverlapping returns every tenant of the property whose occupancy
// touches [from, to], including tenants who have since moved out.
func (r *TenantRepository) ListOverlapping(ctx context.Context, orgID, propertyID uuid.UUID, from, to time.Time) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants t
		JOIN units u ON u.id = t.unit_id
		WHERE u.property_id = $1 AND t.organization_id = $2
			AND t.move_in_date IS NOT NULL AND t.move_in_date <= $4
			AND (t.move_out_date IS NULL OR t.move_out_date >= $3)
		ORDER BY t.move_in_date, t.id`,
		propertyID, orgID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("ListOverlapping: %w", err)
	}
	tenants, err := collectTenants(rows)
	if err != nil {
		return nil, fmt.Errorf("ListOverlapping: %w", err)
	}
	return tenants, nil
}

func collectTenants(rows *sql.Rows) ([]domain.Tenant, error) {
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		tenants = append(tenants, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return tenants, nil
}

func scanTenant(s scanner) (*domain.Tenant, error) {
	var (
		t      domain.Tenant
		unitID uuid.NullUUID
		moveIn sql.NullTime
	)
	err := s.Scan(
		&t.ID, &t.OrganizationID, &unitID, &t.Name, &t.Email, &t.Status,
		&moveIn, &t.MoveOutDate, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.UnitID = unitID.UUID
	if moveIn.Valid {
		t.MoveInDate = moveIn.Time
	}
	return &t, nil
}
