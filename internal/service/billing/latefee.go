package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/metrics"
	"github.com/josh-kwaku/rentledger/internal/period"
)

type LateFeeOutcome string

const (
	LateFeeApplied        LateFeeOutcome = "applied"
	LateFeeNoClause       LateFeeOutcome = "no_late_fee_clause"
	LateFeeWithinGrace    LateFeeOutcome = "within_grace_period"
	LateFeeAlreadyApplied LateFeeOutcome = "already_applied"
	LateFeeNoRentCharge   LateFeeOutcome = "no_rent_charge"
	LateFeeRentPaid       LateFeeOutcome = "rent_paid"
	LateFeeInvalidFee     LateFeeOutcome = "invalid_fee"
	LateFeeError          LateFeeOutcome = "error"
)

type LateFeeResult struct {
	TenantID uuid.UUID        `json:"tenant_id"`
	LeaseID  uuid.UUID        `json:"lease_id"`
	Outcome  LateFeeOutcome   `json:"outcome"`
	Reason   string           `json:"reason,omitempty"`
	Deadline string           `json:"deadline,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	EntryID  *uuid.UUID       `json:"entry_id,omitempty"`
}

type LateFeeRun struct {
	Period  string          `json:"period"`
	Results []LateFeeResult `json:"results"`
	Applied int             `json:"applied"`
	Skipped int             `json:"skipped"`
	Failed  int             `json:"failed"`
}

// ApplyLateFees charges at most one late fee per tenant and period, once the
// grace deadline has passed and the period's rent is still not covered by
// payments received during the period. Posted fees are never withdrawn.
func (s *Service) ApplyLateFees(ctx context.Context, orgID uuid.UUID, billingPeriod string, now time.Time) (*LateFeeRun, error) {
	if _, err := period.Parse(billingPeriod); err != nil {
		return nil, fmt.Errorf("ApplyLateFees: %w", err)
	}
	label, _ := period.MonthLabel(billingPeriod)

	leases, err := s.leases.ListActive(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("ApplyLateFees: %w", err)
	}

	results := make([]LateFeeResult, len(leases))
	err = s.forEachLease(ctx, leases, func(i int, lease domain.Lease) {
		results[i] = s.evaluateLateFee(ctx, lease, billingPeriod, label, now)
	})
	if err != nil {
		return nil, fmt.Errorf("ApplyLateFees: %w", err)
	}

	run := &LateFeeRun{Period: billingPeriod, Results: results}
	for _, r := range results {
		switch r.Outcome {
		case LateFeeApplied:
			run.Applied++
		case LateFeeError:
			run.Failed++
		default:
			run.Skipped++
		}
		metrics.ObserveBillingOutcome("late_fee", string(r.Outcome))
	}

	logging.FromContext(ctx).Info("late fees evaluated",
		"organization_id", orgID,
		"period", billingPeriod,
		"applied", run.Applied,
		"skipped", run.Skipped,
		"failed", run.Failed,
	)
	return run, nil
}

func (s *Service) evaluateLateFee(ctx context.Context, lease domain.Lease, billingPeriod, label string, now time.Time) LateFeeResult {
	log := logging.FromContext(ctx).With("tenant_id", lease.TenantID, "lease_id", lease.ID, "period", billingPeriod)
	res := LateFeeResult{TenantID: lease.TenantID, LeaseID: lease.ID}
	fail := func(err error) LateFeeResult {
		log.Error("late fee evaluation failed", "error", err)
		res.Outcome, res.Reason = LateFeeError, err.Error()
		return res
	}

	policy, err := lease.BillingPolicy()
	if err != nil {
		return fail(err)
	}
	if policy.LateFee == nil {
		log.Debug("lease has no late fee clause", "outcome", LateFeeNoClause)
		res.Outcome = LateFeeNoClause
		return res
	}

	deadline, err := period.Deadline(billingPeriod, policy.DueDay, policy.GraceDays, s.loc)
	if err != nil {
		return fail(err)
	}
	res.Deadline = deadline.Format(time.DateOnly)
	if !period.PastDeadline(now, deadline) {
		res.Outcome = LateFeeWithinGrace
		return res
	}

	applied, err := s.ledger.HasEntry(ctx, lease.TenantID, domain.EntryTypeLateFee, billingPeriod)
	if err != nil {
		return fail(err)
	}
	if applied {
		res.Outcome = LateFeeAlreadyApplied
		return res
	}

	rentDue, err := s.ledger.SumByPeriod(ctx, lease.TenantID, billingPeriod, domain.EntryTypeRent)
	if err != nil {
		return fail(err)
	}
	if !rentDue.IsPositive() {
		res.Outcome = LateFeeNoRentCharge
		return res
	}

	from, to, err := period.Bounds(billingPeriod, s.loc)
	if err != nil {
		return fail(err)
	}
	paid, err := s.ledger.PaidInWindow(ctx, lease.TenantID, from, to)
	if err != nil {
		return fail(err)
	}
	if paid.GreaterThanOrEqual(rentDue) {
		res.Outcome = LateFeeRentPaid
		return res
	}

	fee := policy.LateFee.Fee(lease.RentAmount)
	if !fee.IsPositive() {
		log.Warn("late fee clause yields no fee", "outcome", LateFeeInvalidFee)
		res.Outcome = LateFeeInvalidFee
		return res
	}

	entry, created, err := s.ledger.Post(ctx, domain.Posting{
		TenantID:       lease.TenantID,
		Type:           domain.EntryTypeLateFee,
		Amount:         fee,
		Description:    "Late fee - " + label,
		Period:         billingPeriod,
		IdempotencyKey: domain.LateFeeKey(lease.TenantID, billingPeriod),
	})
	if err != nil {
		return fail(err)
	}
	if !created {
		res.Outcome = LateFeeAlreadyApplied
		return res
	}

	log.Info("late fee applied", "amount", entry.Amount.StringFixed(domain.Cents), "outcome", LateFeeApplied)
	res.Outcome = LateFeeApplied
	res.Amount = &entry.Amount
	res.EntryID = &entry.ID
	return res
}
