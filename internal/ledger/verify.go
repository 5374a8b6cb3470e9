package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

// ChainReport is the result of replaying a tenant's ledger.
type ChainReport struct {
	TenantID uuid.UUID       `json:"tenant_id"`
	Entries  int             `json:"entries"`
	Balance  decimal.Decimal `json:"balance"`
	Valid    bool            `json:"valid"`
	BrokenAt *int64          `json:"broken_at_seq,omitempty"`
	Expected *string         `json:"expected_balance,omitempty"`
	Actual   *string         `json:"actual_balance,omitempty"`
}

// Verify replays entries (in seq order) and reports the first entry whose
// stored balance or sequence number does not follow from its predecessor.
func Verify(tenantID uuid.UUID, entries []domain.LedgerEntry) ChainReport {
	report := ChainReport{TenantID: tenantID, Entries: len(entries), Valid: true, Balance: decimal.Zero}

	running := decimal.Zero
	for i, e := range entries {
		running = running.Add(e.Amount)
		if e.Seq != int64(i+1) || !e.Balance.Equal(running) {
			seq := e.Seq
			expected := running.StringFixed(domain.Cents)
			actual := e.Balance.StringFixed(domain.Cents)
			report.Valid = false
			report.BrokenAt = &seq
			report.Expected = &expected
			report.Actual = &actual
			report.Balance = e.Balance
			return report
		}
	}
	report.Balance = running
	return report
}

func (s *Store) VerifyChain(ctx context.Context, tenantID uuid.UUID) (ChainReport, error) {
	entries, err := s.repo.ListAll(ctx, tenantID)
	if err != nil {
		return ChainReport{}, fmt.Errorf("VerifyChain: %w", err)
	}
	report := Verify(tenantID, entries)

	head, err := s.repo.Head(ctx, tenantID)
	if err != nil {
		return ChainReport{}, fmt.Errorf("VerifyChain: %w", err)
	}
	if report.Valid && (head.Seq != int64(len(entries)) || !head.Balance.Equal(report.Balance)) {
		seq := head.Seq
		expected := report.Balance.StringFixed(domain.Cents)
		actual := head.Balance.StringFixed(domain.Cents)
		report.Valid = false
		report.BrokenAt = &seq
		report.Expected = &expected
		report.Actual = &actual
	}
	return report, nil
}
