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

const utilityBillColumns = `b.id, b.property_id, b.provider, b.type, b.account_number, b.amount,
	b.billing_start, b.billing_end, b.period, b.due_date, b.allocated, b.allocated_at, b.created_at`

type UtilityBillRepository struct {
	db *sql.DB
}

func NewUtilityBillRepository(db *sql.DB) *UtilityBillRepository {
	return &UtilityBillRepository{db: db}
}

func (r *UtilityBillRepository) Create(ctx context.Context, bill *domain.UtilityBill) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO utility_bills (
			id, property_id, provider, type, account_number, amount,
			billing_start, billing_end, period, due_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		bill.ID, bill.PropertyID, bill.Provider, bill.Type, bill.AccountNumber, bill.Amount,
		bill.BillingStart, bill.BillingEnd, bill.Period, bill.DueDate, bill.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// GetForUpdate locks the bill row; it is the allocation guard.
func (r *UtilityBillRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, orgID, id uuid.UUID) (*domain.UtilityBill, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+utilityBillColumns+` FROM utility_bills b
		JOIN properties p ON p.id = b.property_id
		WHERE b.id = $1 AND p.organization_id = $2
		FOR UPDATE OF b`, id, orgID,
	)
	b, err := scanUtilityBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrBillNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return b, nil
}

func (r *UtilityBillRepository) MarkAllocated(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE utility_bills SET allocated = true, allocated_at = $1
		WHERE id = $2 AND allocated = false`, at, id,
	)
	if err != nil {
		return fmt.Errorf("MarkAllocated: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkAllocated: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkAllocated: %w", domain.ErrBillAlreadyAllocated)
	}
	return nil
}

func (r *UtilityBillRepository) ListByPropertyPeriod(ctx context.Context, orgID, propertyID uuid.UUID, period string) ([]domain.UtilityBill, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+utilityBillColumns+` FROM utility_bills b
		JOIN properties p ON p.id = b.property_id
		WHERE b.property_id = $1 AND p.organization_id = $2 AND b.period = $3
		ORDER BY b.created_at, b.id`, propertyID, orgID, period,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByPropertyPeriod: %w", err)
	}
	defer rows.Close()

	var bills []domain.UtilityBill
	for rows.Next() {
		b, err := scanUtilityBill(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByPropertyPeriod: scan: %w", err)
		}
		bills = append(bills, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByPropertyPeriod: rows: %w", err)
	}
	return bills, nil
}

func scanUtilityBill(s scanner) (*domain.UtilityBill, error) {
	var b domain.UtilityBill
	err := s.Scan(
		&b.ID, &b.PropertyID, &b.Provider, &b.Type, &b.AccountNumber, &b.Amount,
		&b.BillingStart, &b.BillingEnd, &b.Period, &b.DueDate, &b.Allocated, &b.AllocatedAt, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
