package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

const ledgerColumns = `id, tenant_id, seq, type, amount, description, period,
	balance, idempotency_key, payment_id, created_at`

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// EnsureHead creates the tenant's head row on first use so that LockHead
// always has a row to lock.
func (r *LedgerRepository) EnsureHead(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_heads (tenant_id, seq, balance) VALUES ($1, 0, 0)
		ON CONFLICT (tenant_id) DO NOTHING`, tenantID,
	)
	if err != nil {
		return fmt.Errorf("EnsureHead: %w", err)
	}
	return nil
}

func (r *LedgerRepository) LockHead(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID) (*domain.LedgerHead, error) {
	h := domain.LedgerHead{TenantID: tenantID}
	err := tx.QueryRowContext(ctx,
		`SELECT seq, balance FROM ledger_heads WHERE tenant_id = $1 FOR UPDATE`, tenantID,
	).Scan(&h.Seq, &h.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("LockHead: %w", domain.ErrTenantNotFound)
		}
		return nil, fmt.Errorf("LockHead: %w", err)
	}
	return &h, nil
}

// AdvanceHead moves the head from fromSeq to the new entry. Zero rows affected
// means another writer moved the head first.
func (r *LedgerRepository) AdvanceHead(ctx context.Context, tx *sql.Tx, fromSeq int64, entry *domain.LedgerEntry) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ledger_heads SET seq = $1, balance = $2, updated_at = now()
		WHERE tenant_id = $3 AND seq = $4`,
		entry.Seq, entry.Balance, entry.TenantID, fromSeq,
	)
	if err != nil {
		return fmt.Errorf("AdvanceHead: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("AdvanceHead: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("AdvanceHead: %w", domain.ErrVersionConflict)
	}
	return nil
}

func (r *LedgerRepository) Insert(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (
			id, tenant_id, seq, type, amount, description, period,
			balance, idempotency_key, payment_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.TenantID, entry.Seq, entry.Type, entry.Amount, entry.Description,
		entry.Period, entry.Balance, entry.IdempotencyKey, entry.PaymentID, entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Insert: %w", domain.ErrDuplicateIdempotencyKey)
		}
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// FindByKey returns nil, nil when no entry carries the key. tx may be nil.
func (r *LedgerRepository) FindByKey(ctx context.Context, tx *sql.Tx, key string) (*domain.LedgerEntry, error) {
	row := pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE idempotency_key = $1`, key,
	)
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByKey: %w", err)
	}
	return e, nil
}

func (r *LedgerRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE tenant_id = $1`, tenantID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByTenant: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE tenant_id = $1 ORDER BY seq LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByTenant: %w", err)
	}
	entries, err := collectLedgerEntries(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByTenant: %w", err)
	}
	return entries, total, nil
}

// ListAll returns the whole ledger of a tenant in seq order.
func (r *LedgerRepository) ListAll(ctx context.Context, tenantID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE tenant_id = $1 ORDER BY seq`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListAll: %w", err)
	}
	entries, err := collectLedgerEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("ListAll: %w", err)
	}
	return entries, nil
}

// Head reads the head without locking. A tenant with no entries has a zero head.
func (r *LedgerRepository) Head(ctx context.Context, tenantID uuid.UUID) (*domain.LedgerHead, error) {
	h := domain.LedgerHead{TenantID: tenantID}
	err := r.db.QueryRowContext(ctx,
		`SELECT seq, balance FROM ledger_heads WHERE tenant_id = $1`, tenantID,
	).Scan(&h.Seq, &h.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return &h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Head: %w", err)
	}
	return &h, nil
}

func (r *LedgerRepository) ExistsForPeriod(ctx context.Context, tenantID uuid.UUID, entryType domain.EntryType, period string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM ledger_entries WHERE tenant_id = $1 AND type = $2 AND period = $3
		)`, tenantID, entryType, period,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ExistsForPeriod: %w", err)
	}
	return exists, nil
}

// SumByPeriod sums entries of the given types tagged with period.
func (r *LedgerRepository) SumByPeriod(ctx context.Context, tenantID uuid.UUID, types []domain.EntryType, period string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
		WHERE tenant_id = $1 AND type = ANY($2) AND period = $3`,
		tenantID, pq.Array(entryTypeStrings(types)), period,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumByPeriod: %w", err)
	}
	return sum, nil
}

// unreversedPayment matches PAYMENT rows whose payment has no reversal
// CREDIT. Rows without a payment id always match.
const unreversedPayment = `e.type = 'PAYMENT' AND NOT EXISTS (
			SELECT 1 FROM ledger_entries r
			WHERE r.tenant_id = e.tenant_id AND r.type = 'CREDIT' AND r.payment_id = e.payment_id)`

// SumPaymentsByPeriod sums the unreversed PAYMENT entries tagged with period.
func (r *LedgerRepository) SumPaymentsByPeriod(ctx context.Context, tenantID uuid.UUID, period string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(e.amount), 0) FROM ledger_entries e
		WHERE e.tenant_id = $1 AND e.period = $2 AND `+unreversedPayment,
		tenantID, period,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumPaymentsByPeriod: %w", err)
	}
	return sum, nil
}

// SumPaymentsInWindow sums the unreversed PAYMENT entries created in
// [from, to). A reversal posted after the window still cancels its payment.
func (r *LedgerRepository) SumPaymentsInWindow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(e.amount), 0) FROM ledger_entries e
		WHERE e.tenant_id = $1 AND e.created_at >= $2 AND e.created_at < $3 AND `+unreversedPayment,
		tenantID, from, to,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumPaymentsInWindow: %w", err)
	}
	return sum, nil
}

func (r *LedgerRepository) FindByPaymentID(ctx context.Context, tx *sql.Tx, paymentID uuid.UUID) (*domain.LedgerEntry, error) {
	row := pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE payment_id = $1 AND type = $2 ORDER BY seq LIMIT 1`,
		paymentID, domain.EntryTypePayment,
	)
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByPaymentID: %w", err)
	}
	return e, nil
}

// FindPendingPayment finds the most recent pending PAYMENT entry of exactly
// amount (negative) for the tenant.
func (r *LedgerRepository) FindPendingPayment(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID, amount decimal.Decimal) (*domain.LedgerEntry, error) {
	row := pick(r.db, tx).QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE tenant_id = $1 AND type = $2 AND amount = $3 AND position($4 in description) > 0
		ORDER BY seq DESC LIMIT 1`,
		tenantID, domain.EntryTypePayment, amount, domain.PendingMarker,
	)
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindPendingPayment: %w", err)
	}
	return e, nil
}

// UpdateDescription is the one mutation the ledger allows, used when a
// pending payment is confirmed.
func (r *LedgerRepository) UpdateDescription(ctx context.Context, tx *sql.Tx, entryID uuid.UUID, description string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ledger_entries SET description = $1 WHERE id = $2 AND type = $3`,
		description, entryID, domain.EntryTypePayment,
	)
	if err != nil {
		return fmt.Errorf("UpdateDescription: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateDescription: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateDescription: %w", domain.ErrNotFound)
	}
	return nil
}

func entryTypeStrings(types []domain.EntryType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func collectLedgerEntries(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var (
		e      domain.LedgerEntry
		key    sql.NullString
		period string
	)
	err := s.Scan(
		&e.ID, &e.TenantID, &e.Seq, &e.Type, &e.Amount, &e.Description, &period,
		&e.Balance, &key, &e.PaymentID, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Period = period
	if key.Valid {
		e.IdempotencyKey = &key.String
	}
	return &e, nil
}
