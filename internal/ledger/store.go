// Package ledger is the single write path for tenant ledgers. Every entry is
// appended under the tenant's locked head row, so the running balance of a
// tenant always equals the sum of its entries in seq order.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/metrics"
)

type Repository interface {
	EnsureHead(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID) error
	LockHead(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID) (*domain.LedgerHead, error)
	AdvanceHead(ctx context.Context, tx *sql.Tx, fromSeq int64, entry *domain.LedgerEntry) error
	Insert(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	FindByKey(ctx context.Context, tx *sql.Tx, key string) (*domain.LedgerEntry, error)
	FindByPaymentID(ctx context.Context, tx *sql.Tx, paymentID uuid.UUID) (*domain.LedgerEntry, error)
	FindPendingPayment(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID, amount decimal.Decimal) (*domain.LedgerEntry, error)
	UpdateDescription(ctx context.Context, tx *sql.Tx, entryID uuid.UUID, description string) error

	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
	ListAll(ctx context.Context, tenantID uuid.UUID) ([]domain.LedgerEntry, error)
	Head(ctx context.Context, tenantID uuid.UUID) (*domain.LedgerHead, error)
	ExistsForPeriod(ctx context.Context, tenantID uuid.UUID, entryType domain.EntryType, period string) (bool, error)
	SumByPeriod(ctx context.Context, tenantID uuid.UUID, types []domain.EntryType, period string) (decimal.Decimal, error)
	SumPaymentsByPeriod(ctx context.Context, tenantID uuid.UUID, period string) (decimal.Decimal, error)
	SumPaymentsInWindow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}

// Transactor runs fn inside a database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Store struct {
	repo Repository
	txm  Transactor
	now  func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used to stamp createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(repo Repository, txm Transactor, opts ...Option) *Store {
	s := &Store{repo: repo, txm: txm, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindByKey returns nil when no entry carries key.
func (s *Store) FindByKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	e, err := s.repo.FindByKey(ctx, nil, key)
	if err != nil {
		return nil, fmt.Errorf("FindByKey: %w", err)
	}
	return e, nil
}

// Append writes one entry inside tx. When the posting's idempotency key is
// already taken it returns the existing entry with created=false. If the key
// collides at insert time the transaction is unusable and Append returns
// domain.ErrAlreadyExists instead.
func (s *Store) Append(ctx context.Context, tx *sql.Tx, p domain.Posting) (*domain.LedgerEntry, bool, error) {
	if err := p.Validate(); err != nil {
		metrics.ObserveLedgerAppend(string(p.Type), metrics.ResultError)
		return nil, false, fmt.Errorf("Append: %w", err)
	}
	amount := domain.Round2(p.Amount)

	if err := s.repo.EnsureHead(ctx, tx, p.TenantID); err != nil {
		return nil, false, fmt.Errorf("Append: %w", err)
	}
	head, err := s.repo.LockHead(ctx, tx, p.TenantID)
	if err != nil {
		return nil, false, fmt.Errorf("Append: %w", err)
	}

	if p.IdempotencyKey != "" {
		existing, err := s.repo.FindByKey(ctx, tx, p.IdempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("Append: %w", err)
		}
		if existing != nil {
			metrics.ObserveLedgerAppend(string(p.Type), metrics.ResultExisting)
			return existing, false, nil
		}
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		TenantID:    p.TenantID,
		Seq:         head.Seq + 1,
		Type:        p.Type,
		Amount:      amount,
		Description: p.Description,
		Period:      p.Period,
		Balance:     head.Balance.Add(amount),
		PaymentID:   p.PaymentID,
		CreatedAt:   s.now().UTC(),
	}
	if p.IdempotencyKey != "" {
		key := p.IdempotencyKey
		entry.IdempotencyKey = &key
	}

	if err := s.repo.Insert(ctx, tx, entry); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			metrics.ObserveLedgerAppend(string(p.Type), metrics.ResultExisting)
			return nil, false, fmt.Errorf("Append: %w", domain.ErrAlreadyExists)
		}
		metrics.ObserveLedgerAppend(string(p.Type), metrics.ResultError)
		return nil, false, fmt.Errorf("Append: %w", err)
	}
	if err := s.repo.AdvanceHead(ctx, tx, head.Seq, entry); err != nil {
		metrics.ObserveLedgerAppend(string(p.Type), metrics.ResultError)
		return nil, false, fmt.Errorf("Append: %w", err)
	}

	metrics.ObserveLedgerAppend(string(p.Type), metrics.ResultCreated)
	logging.FromContext(ctx).Debug("ledger entry appended",
		"tenant_id", entry.TenantID,
		"seq", entry.Seq,
		"type", entry.Type,
		"amount", entry.Amount.StringFixed(domain.Cents),
		"balance", entry.Balance.StringFixed(domain.Cents),
	)
	return entry, true, nil
}

// Post appends in a transaction of its own.
func (s *Store) Post(ctx context.Context, p domain.Posting) (*domain.LedgerEntry, bool, error) {
	var (
		entry   *domain.LedgerEntry
		created bool
	)
	err := s.txm.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		entry, created, err = s.Append(ctx, tx, p)
		return err
	})
	if errors.Is(err, domain.ErrAlreadyExists) && p.IdempotencyKey != "" {
		existing, ferr := s.repo.FindByKey(ctx, nil, p.IdempotencyKey)
		if ferr != nil {
			return nil, false, fmt.Errorf("Post: %w", ferr)
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("Post: %w", err)
	}
	return entry, created, nil
}

func (s *Store) Entries(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	entries, total, err := s.repo.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("Entries: %w", err)
	}
	return entries, total, nil
}

func (s *Store) AllEntries(ctx context.Context, tenantID uuid.UUID) ([]domain.LedgerEntry, error) {
	entries, err := s.repo.ListAll(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("AllEntries: %w", err)
	}
	return entries, nil
}

// Balance is the running balance after the tenant's latest entry.
func (s *Store) Balance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	head, err := s.repo.Head(ctx, tenantID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}
	return head.Balance, nil
}

func (s *Store) HasEntry(ctx context.Context, tenantID uuid.UUID, entryType domain.EntryType, period string) (bool, error) {
	ok, err := s.repo.ExistsForPeriod(ctx, tenantID, entryType, period)
	if err != nil {
		return false, fmt.Errorf("HasEntry: %w", err)
	}
	return ok, nil
}

// PaidForPeriod is the positive total of payments tagged with period. A
// rejected payment counts as never made, so its PAYMENT entry and reversal
// CREDIT both drop out.
func (s *Store) PaidForPeriod(ctx context.Context, tenantID uuid.UUID, period string) (decimal.Decimal, error) {
	sum, err := s.repo.SumPaymentsByPeriod(ctx, tenantID, period)
	if err != nil {
		return decimal.Zero, fmt.Errorf("PaidForPeriod: %w", err)
	}
	return sum.Neg(), nil
}

// PaidInWindow is PaidForPeriod keyed by creation time instead of period tag.
func (s *Store) PaidInWindow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	sum, err := s.repo.SumPaymentsInWindow(ctx, tenantID, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("PaidInWindow: %w", err)
	}
	return sum.Neg(), nil
}

func (s *Store) SumByPeriod(ctx context.Context, tenantID uuid.UUID, period string, types ...domain.EntryType) (decimal.Decimal, error) {
	sum, err := s.repo.SumByPeriod(ctx, tenantID, types, period)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumByPeriod: %w", err)
	}
	return sum, nil
}

// ConfirmPaymentEntry strips the pending marker from the PAYMENT entry of a
// payment. Entries written before payment ids were recorded are matched by
// tenant, amount and marker instead. A missing entry is not an error.
func (s *Store) ConfirmPaymentEntry(ctx context.Context, tx *sql.Tx, payment *domain.Payment) (*domain.LedgerEntry, error) {
	entry, err := s.repo.FindByPaymentID(ctx, tx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("ConfirmPaymentEntry: %w", err)
	}
	if entry == nil {
		entry, err = s.repo.FindPendingPayment(ctx, tx, payment.TenantID, payment.Amount.Neg())
		if err != nil {
			return nil, fmt.Errorf("ConfirmPaymentEntry: %w", err)
		}
	}
	if entry == nil {
		logging.FromContext(ctx).Warn("no ledger entry found for confirmed payment",
			"payment_id", payment.ID, "tenant_id", payment.TenantID)
		return nil, nil
	}

	desc := domain.ConfirmedDescription(entry.Description)
	if desc == entry.Description {
		return entry, nil
	}
	if err := s.repo.UpdateDescription(ctx, tx, entry.ID, desc); err != nil {
		return nil, fmt.Errorf("ConfirmPaymentEntry: %w", err)
	}
	entry.Description = desc
	return entry, nil
}
