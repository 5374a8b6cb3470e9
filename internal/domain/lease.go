package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LeaseStatus string

const (
	LeaseStatusDraft            LeaseStatus = "DRAFT"
	LeaseStatusPendingSignature LeaseStatus = "PENDING_SIGNATURE"
	LeaseStatusActive           LeaseStatus = "ACTIVE"
	LeaseStatusExpired          LeaseStatus = "EXPIRED"
	LeaseStatusTerminated       LeaseStatus = "TERMINATED"
)

var leaseTransitions = map[LeaseStatus][]LeaseStatus{
	LeaseStatusDraft:            {LeaseStatusPendingSignature, LeaseStatusTerminated},
	LeaseStatusPendingSignature: {LeaseStatusActive, LeaseStatusDraft, LeaseStatusTerminated},
	LeaseStatusActive:           {LeaseStatusExpired, LeaseStatusTerminated},
}

func (s LeaseStatus) IsValid() bool {
	switch s {
	case LeaseStatusDraft, LeaseStatusPendingSignature, LeaseStatusActive,
		LeaseStatusExpired, LeaseStatusTerminated:
		return true
	}
	return false
}

func (s LeaseStatus) IsTerminal() bool {
	return s == LeaseStatusExpired || s == LeaseStatusTerminated
}

// ValidateLeaseTransition returns a *TransitionError when from -> to is not in
// the allow-list. Unknown targets are validation errors.
func ValidateLeaseTransition(from, to LeaseStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("unknown lease status %q: %w", to, ErrInvalidRequest)
	}
	for _, allowed := range leaseTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &TransitionError{Entity: "lease", From: string(from), To: string(to)}
}

type ClauseType string

const (
	ClauseRentDueDate     ClauseType = "RENT_DUE_DATE"
	ClauseGracePeriod     ClauseType = "GRACE_PERIOD"
	ClauseLateFee         ClauseType = "LATE_FEE"
	ClauseSecurityDeposit ClauseType = "SECURITY_DEPOSIT"
	ClauseUtilities       ClauseType = "UTILITIES"
	ClausePets            ClauseType = "PETS"
	ClauseOther           ClauseType = "OTHER"
)

type LeaseClause struct {
	ID       uuid.UUID
	LeaseID  uuid.UUID
	Position int
	Type     ClauseType
	Metadata json.RawMessage
}

type Lease struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	UnitID     uuid.UUID
	Status     LeaseStatus
	RentAmount decimal.Decimal
	StartDate  time.Time
	EndDate    *time.Time
	Clauses    []LeaseClause
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clause returns the first clause of the given type.
func (l *Lease) Clause(t ClauseType) (LeaseClause, bool) {
	for _, c := range l.Clauses {
		if c.Type == t {
			return c, true
		}
	}
	return LeaseClause{}, false
}

type LateFeeKind string

const (
	LateFeeFixed      LateFeeKind = "fixed"
	LateFeePercentage LateFeeKind = "percentage"
)

// LateFeePolicy is the parsed form of a LATE_FEE clause.
type LateFeePolicy struct {
	Amount decimal.Decimal `json:"amount"`
	Kind   LateFeeKind     `json:"type"`
}

// Fee computes the fee against the lease's monthly rent. Prorated charges in
// the same period do not raise the base.
func (p LateFeePolicy) Fee(rent decimal.Decimal) decimal.Decimal {
	if p.Kind == LateFeePercentage {
		return Round2(rent.Mul(p.Amount).Div(decimal.NewFromInt(100)))
	}
	return Round2(p.Amount)
}

// BillingPolicy collects what the billing jobs need from a lease's clauses.
// LateFee is nil when the lease carries no LATE_FEE clause.
type BillingPolicy struct {
	DueDay    int
	GraceDays int
	LateFee   *LateFeePolicy
}

// BillingPolicy parses the lease's clauses. Missing RENT_DUE_DATE defaults to
// the 1st and missing GRACE_PERIOD to zero days.
func (l *Lease) BillingPolicy() (BillingPolicy, error) {
	policy := BillingPolicy{DueDay: 1}

	if c, ok := l.Clause(ClauseRentDueDate); ok {
		var m struct {
			DueDay *int `json:"dueDay"`
		}
		if err := json.Unmarshal(c.Metadata, &m); err != nil {
			return policy, fmt.Errorf("BillingPolicy: %s: %w", c.Type, ErrInvalidPolicy)
		}
		if m.DueDay != nil {
			if *m.DueDay < 1 || *m.DueDay > 31 {
				return policy, fmt.Errorf("BillingPolicy: dueDay %d: %w", *m.DueDay, ErrInvalidPolicy)
			}
			policy.DueDay = *m.DueDay
		}
	}

	if c, ok := l.Clause(ClauseGracePeriod); ok {
		var m struct {
			Days *int `json:"days"`
		}
		if err := json.Unmarshal(c.Metadata, &m); err != nil {
			return policy, fmt.Errorf("BillingPolicy: %s: %w", c.Type, ErrInvalidPolicy)
		}
		if m.Days != nil {
			if *m.Days < 0 {
				return policy, fmt.Errorf("BillingPolicy: grace days %d: %w", *m.Days, ErrInvalidPolicy)
			}
			policy.GraceDays = *m.Days
		}
	}

	if c, ok := l.Clause(ClauseLateFee); ok {
		var fee LateFeePolicy
		if err := json.Unmarshal(c.Metadata, &fee); err != nil {
			return policy, fmt.Errorf("BillingPolicy: %s: %w", c.Type, ErrInvalidPolicy)
		}
		if fee.Kind == "" {
			fee.Kind = LateFeeFixed
		}
		if fee.Kind != LateFeeFixed && fee.Kind != LateFeePercentage {
			return policy, fmt.Errorf("BillingPolicy: late fee type %q: %w", fee.Kind, ErrInvalidPolicy)
		}
		policy.LateFee = &fee
	}

	return policy, nil
}
