// Package ledgertest provides an in-memory ledger repository for tests that
// exercise billing logic without a database.
package ledgertest

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

// Memory implements ledger.Repository and ledger.Transactor. InTx holds a
// single lock for the whole transaction and restores the previous state when
// fn fails, which stands in for the head row lock and rollback.
type Memory struct {
	txMu sync.Mutex
	mu   sync.Mutex

	heads   map[uuid.UUID]domain.LedgerHead
	entries []domain.LedgerEntry
}

func NewMemory() *Memory {
	return &Memory{heads: make(map[uuid.UUID]domain.LedgerHead)}
}

func (m *Memory) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	heads := make(map[uuid.UUID]domain.LedgerHead, len(m.heads))
	for k, v := range m.heads {
		heads[k] = v
	}
	entries := append([]domain.LedgerEntry(nil), m.entries...)
	m.mu.Unlock()

	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.heads = heads
		m.entries = entries
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) EnsureHead(_ context.Context, _ *sql.Tx, tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.heads[tenantID]; !ok {
		m.heads[tenantID] = domain.LedgerHead{TenantID: tenantID, Balance: decimal.Zero}
	}
	return nil
}

func (m *Memory) LockHead(_ context.Context, _ *sql.Tx, tenantID uuid.UUID) (*domain.LedgerHead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.heads[tenantID]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	return &h, nil
}

func (m *Memory) AdvanceHead(_ context.Context, _ *sql.Tx, fromSeq int64, entry *domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.heads[entry.TenantID]
	if h.Seq != fromSeq {
		return domain.ErrVersionConflict
	}
	m.heads[entry.TenantID] = domain.LedgerHead{TenantID: entry.TenantID, Seq: entry.Seq, Balance: entry.Balance}
	return nil
}

func (m *Memory) Insert(_ context.Context, _ *sql.Tx, entry *domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if entry.IdempotencyKey != nil && e.IdempotencyKey != nil && *e.IdempotencyKey == *entry.IdempotencyKey {
			return domain.ErrDuplicateIdempotencyKey
		}
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *Memory) FindByKey(_ context.Context, _ *sql.Tx, key string) (*domain.LedgerEntry, error) {
	return m.find(func(e domain.LedgerEntry) bool {
		return e.IdempotencyKey != nil && *e.IdempotencyKey == key
	}), nil
}

func (m *Memory) FindByPaymentID(_ context.Context, _ *sql.Tx, paymentID uuid.UUID) (*domain.LedgerEntry, error) {
	return m.find(func(e domain.LedgerEntry) bool {
		return e.Type == domain.EntryTypePayment && e.PaymentID != nil && *e.PaymentID == paymentID
	}), nil
}

func (m *Memory) FindPendingPayment(_ context.Context, _ *sql.Tx, tenantID uuid.UUID, amount decimal.Decimal) (*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.TenantID == tenantID && e.Type == domain.EntryTypePayment &&
			e.Amount.Equal(amount) && strings.Contains(e.Description, domain.PendingMarker) {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpdateDescription(_ context.Context, _ *sql.Tx, entryID uuid.UUID, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == entryID {
			m.entries[i].Description = description
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Memory) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	all, _ := m.ListAll(ctx, tenantID)
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *Memory) ListAll(_ context.Context, tenantID uuid.UUID) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *Memory) Head(_ context.Context, tenantID uuid.UUID) (*domain.LedgerHead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.heads[tenantID]
	if !ok {
		return &domain.LedgerHead{TenantID: tenantID, Balance: decimal.Zero}, nil
	}
	return &h, nil
}

func (m *Memory) ExistsForPeriod(_ context.Context, tenantID uuid.UUID, entryType domain.EntryType, period string) (bool, error) {
	return m.find(func(e domain.LedgerEntry) bool {
		return e.TenantID == tenantID && e.Type == entryType && e.Period == period
	}) != nil, nil
}

func (m *Memory) SumByPeriod(_ context.Context, tenantID uuid.UUID, types []domain.EntryType, period string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, e := range m.entries {
		if e.TenantID != tenantID || e.Period != period {
			continue
		}
		for _, t := range types {
			if e.Type == t {
				sum = sum.Add(e.Amount)
				break
			}
		}
	}
	return sum, nil
}

func (m *Memory) SumPaymentsByPeriod(_ context.Context, tenantID uuid.UUID, period string) (decimal.Decimal, error) {
	return m.sumPayments(tenantID, func(e domain.LedgerEntry) bool { return e.Period == period }), nil
}

func (m *Memory) SumPaymentsInWindow(_ context.Context, tenantID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	return m.sumPayments(tenantID, func(e domain.LedgerEntry) bool {
		return !e.CreatedAt.Before(from) && e.CreatedAt.Before(to)
	}), nil
}

// sumPayments skips PAYMENT entries whose payment has a reversal CREDIT.
func (m *Memory) sumPayments(tenantID uuid.UUID, match func(domain.LedgerEntry) bool) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	reversed := make(map[uuid.UUID]bool)
	for _, e := range m.entries {
		if e.TenantID == tenantID && e.Type == domain.EntryTypeCredit && e.PaymentID != nil {
			reversed[*e.PaymentID] = true
		}
	}
	sum := decimal.Zero
	for _, e := range m.entries {
		if e.TenantID != tenantID || e.Type != domain.EntryTypePayment || !match(e) {
			continue
		}
		if e.PaymentID != nil && reversed[*e.PaymentID] {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum
}

// Tamper overwrites the stored balance of an entry. Tests use it to check
// chain verification.
func (m *Memory) Tamper(tenantID uuid.UUID, seq int64, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].TenantID == tenantID && m.entries[i].Seq == seq {
			m.entries[i].Balance = balance
		}
	}
}

func (m *Memory) find(match func(domain.LedgerEntry) bool) *domain.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if match(e) {
			e := e
			return &e
		}
	}
	return nil
}
