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

const paymentColumns = `p.id, p.tenant_id, p.amount, p.method, p.paid_on, p.note,
	p.status, p.created_at, p.updated_at, p.resolved_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (
			id, tenant_id, amount, method, paid_on, note, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.ID, payment.TenantID, payment.Amount, payment.Method, payment.PaidOn,
		payment.Note, payment.Status, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// GetByID scopes the lookup to the organization through the tenant row.
func (r *PaymentRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments p
		JOIN tenants t ON t.id = p.tenant_id
		WHERE p.id = $1 AND t.organization_id = $2`, id, orgID,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, orgID, id uuid.UUID) (*domain.Payment, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments p
		JOIN tenants t ON t.id = p.tenant_id
		WHERE p.id = $1 AND t.organization_id = $2
		FOR UPDATE OF p`, id, orgID,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments p
		WHERE p.tenant_id = $1 ORDER BY p.created_at DESC`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByTenant: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByTenant: scan: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByTenant: rows: %w", err)
	}
	return payments, nil
}

// Resolve moves a PENDING payment to a terminal status.
func (r *PaymentRepository) Resolve(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.PaymentStatus, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = $2, resolved_at = $2
		WHERE id = $3 AND status = $4`,
		status, at, id, domain.PaymentStatusPending,
	)
	if err != nil {
		return fmt.Errorf("Resolve: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Resolve: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Resolve: %w", domain.ErrPaymentNotPending)
	}
	return nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	err := s.Scan(
		&p.ID, &p.TenantID, &p.Amount, &p.Method, &p.PaidOn, &p.Note,
		&p.Status, &p.CreatedAt, &p.UpdatedAt, &p.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
