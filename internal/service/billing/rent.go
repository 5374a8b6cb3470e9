package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/metrics"
	"github.com/josh-kwaku/rentledger/internal/period"
)

type RentOutcome string

const (
	RentCharged        RentOutcome = "charged"
	RentAlreadyCharged RentOutcome = "already_charged"
	RentSkipped        RentOutcome = "skipped"
	RentError          RentOutcome = "error"
)

const reasonNoRentAmount = "no_rent_amount"

type RentResult struct {
	TenantID uuid.UUID        `json:"tenant_id"`
	LeaseID  uuid.UUID        `json:"lease_id"`
	Outcome  RentOutcome      `json:"outcome"`
	Reason   string           `json:"reason,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	EntryID  *uuid.UUID       `json:"entry_id,omitempty"`
}

type RentRun struct {
	Period  string       `json:"period"`
	Results []RentResult `json:"results"`
	Charged int          `json:"charged"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
}

// GenerateRentCharges posts one RENT entry per ACTIVE lease for billingPeriod.
// Tenants already charged for the period are left alone, so re-running a
// period is safe.
func (s *Service) GenerateRentCharges(ctx context.Context, orgID uuid.UUID, billingPeriod string) (*RentRun, error) {
	if _, err := period.Parse(billingPeriod); err != nil {
		return nil, fmt.Errorf("GenerateRentCharges: %w", err)
	}
	label, _ := period.MonthLabel(billingPeriod)

	leases, err := s.leases.ListActive(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("GenerateRentCharges: %w", err)
	}

	results := make([]RentResult, len(leases))
	err = s.forEachLease(ctx, leases, func(i int, lease domain.Lease) {
		results[i] = s.chargeRent(ctx, lease, billingPeriod, label)
	})
	if err != nil {
		return nil, fmt.Errorf("GenerateRentCharges: %w", err)
	}

	run := &RentRun{Period: billingPeriod, Results: results}
	for _, r := range results {
		switch r.Outcome {
		case RentCharged:
			run.Charged++
		case RentError:
			run.Failed++
		default:
			run.Skipped++
		}
		metrics.ObserveBillingOutcome("rent", string(r.Outcome))
	}

	logging.FromContext(ctx).Info("rent charges generated",
		"organization_id", orgID,
		"period", billingPeriod,
		"charged", run.Charged,
		"skipped", run.Skipped,
		"failed", run.Failed,
	)
	return run, nil
}

func (s *Service) chargeRent(ctx context.Context, lease domain.Lease, billingPeriod, label string) RentResult {
	log := logging.FromContext(ctx).With("tenant_id", lease.TenantID, "lease_id", lease.ID, "period", billingPeriod)
	res := RentResult{TenantID: lease.TenantID, LeaseID: lease.ID}

	exists, err := s.ledger.HasEntry(ctx, lease.TenantID, domain.EntryTypeRent, billingPeriod)
	if err != nil {
		log.Error("rent lookup failed", "error", err)
		res.Outcome, res.Reason = RentError, err.Error()
		return res
	}
	if exists {
		res.Outcome = RentAlreadyCharged
		return res
	}

	if !lease.RentAmount.IsPositive() {
		log.Warn("lease has no rent amount, skipping", "outcome", RentSkipped)
		res.Outcome, res.Reason = RentSkipped, reasonNoRentAmount
		return res
	}

	entry, created, err := s.ledger.Post(ctx, domain.Posting{
		TenantID:       lease.TenantID,
		Type:           domain.EntryTypeRent,
		Amount:         lease.RentAmount,
		Description:    "Monthly rent - " + label,
		Period:         billingPeriod,
		IdempotencyKey: domain.RentKey(lease.TenantID, billingPeriod),
	})
	if err != nil {
		log.Error("rent charge failed", "error", err)
		res.Outcome, res.Reason = RentError, err.Error()
		return res
	}
	if !created {
		res.Outcome = RentAlreadyCharged
		return res
	}

	res.Outcome = RentCharged
	res.Amount = &entry.Amount
	res.EntryID = &entry.ID
	return res
}
