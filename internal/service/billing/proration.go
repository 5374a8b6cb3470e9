package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/period"
)

type ProrationCalculation struct {
	MonthlyRent    decimal.Decimal `json:"monthly_rent"`
	DaysInMonth    int             `json:"days_in_month"`
	RemainingDays  int             `json:"remaining_days"`
	DailyRate      decimal.Decimal `json:"daily_rate"`
	ProratedAmount decimal.Decimal `json:"prorated_amount"`
	Period         string          `json:"period"`
}

// Prorate charges the days from moveIn through the end of its month,
// inclusive. Only the final amount is rounded.
func Prorate(rent decimal.Decimal, moveIn time.Time) ProrationCalculation {
	days := period.DaysInMonthOf(moveIn)
	remaining := days - moveIn.Day() + 1
	d := decimal.NewFromInt(int64(days))

	return ProrationCalculation{
		MonthlyRent:    rent,
		DaysInMonth:    days,
		RemainingDays:  remaining,
		DailyRate:      domain.Round2(rent.Div(d)),
		ProratedAmount: domain.Round2(rent.Mul(decimal.NewFromInt(int64(remaining))).Div(d)),
		Period:         period.Format(moveIn),
	}
}

type ProrationResult struct {
	Entry       *domain.LedgerEntry  `json:"entry"`
	Calculation ProrationCalculation `json:"calculation"`
	Created     bool                 `json:"created"`
}

// GenerateProration posts the partial first-month rent for a tenant moving in
// on moveIn. Repeating the call returns the entry already posted.
func (s *Service) GenerateProration(ctx context.Context, orgID, tenantID uuid.UUID, moveIn time.Time) (*ProrationResult, error) {
	if moveIn.IsZero() {
		return nil, fmt.Errorf("GenerateProration: move-in date required: %w", domain.ErrInvalidRequest)
	}
	if _, err := s.tenants.GetByID(ctx, orgID, tenantID); err != nil {
		return nil, fmt.Errorf("GenerateProration: %w", err)
	}
	lease, err := s.leases.GetCurrentForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("GenerateProration: %w", err)
	}
	if !lease.RentAmount.IsPositive() {
		return nil, fmt.Errorf("GenerateProration: %w", domain.ErrNoRentConfigured)
	}

	calc := Prorate(lease.RentAmount, moveIn)
	label, _ := period.MonthLabel(calc.Period)

	entry, created, err := s.ledger.Post(ctx, domain.Posting{
		TenantID:       tenantID,
		Type:           domain.EntryTypeRent,
		Amount:         calc.ProratedAmount,
		Description:    fmt.Sprintf("Prorated rent - %s (%d of %d days)", label, calc.RemainingDays, calc.DaysInMonth),
		Period:         calc.Period,
		IdempotencyKey: domain.ProrationKey(tenantID, calc.Period),
	})
	if err != nil {
		return nil, fmt.Errorf("GenerateProration: %w", err)
	}

	return &ProrationResult{Entry: entry, Calculation: calc, Created: created}, nil
}
