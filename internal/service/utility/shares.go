package utility

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

// EqualSplit divides amount into n cent-rounded parts. The first part absorbs
// the rounding remainder so the parts sum to amount exactly.
func EqualSplit(amount decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	share := domain.Round2(amount.Div(decimal.NewFromInt(int64(n))))
	parts := make([]decimal.Decimal, n)
	for i := range parts {
		parts[i] = share
	}
	parts[0] = parts[0].Add(amount.Sub(share.Mul(decimal.NewFromInt(int64(n)))))
	return parts
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func inclusiveDays(from, to time.Time) int {
	return int(to.Sub(from).Hours()/24) + 1
}

// overlapDays counts the calendar days, inclusive, that occupancy o shares
// with [start, end].
func overlapDays(o domain.Occupancy, start, end time.Time) int {
	from := dateOnly(o.MoveIn)
	if from.Before(start) {
		from = start
	}
	to := end
	if o.MoveOut != nil {
		if out := dateOnly(*o.MoveOut); out.Before(to) {
			to = out
		}
	}
	if to.Before(from) {
		return 0
	}
	return inclusiveDays(from, to)
}

// CalculateShares splits amount across occupancies in proportion to the days
// each one overlaps [periodStart, periodEnd]. Tenants with no overlap get no
// share. Shares are cent-rounded and the residue goes to the largest share,
// so they always sum to amount.
func CalculateShares(amount decimal.Decimal, periodStart, periodEnd time.Time, occupancies []domain.Occupancy) []domain.Share {
	start, end := dateOnly(periodStart), dateOnly(periodEnd)
	if end.Before(start) {
		return nil
	}
	totalDays := decimal.NewFromInt(int64(inclusiveDays(start, end)))

	var (
		shares  []domain.Share
		sumDays int64
	)
	for _, o := range occupancies {
		days := overlapDays(o, start, end)
		if days <= 0 {
			continue
		}
		sumDays += int64(days)
		shares = append(shares, domain.Share{
			TenantID:     o.TenantID,
			DaysInPeriod: days,
			Weight:       decimal.NewFromInt(int64(days)).DivRound(totalDays, 4),
		})
	}
	if len(shares) == 0 {
		return nil
	}

	total := decimal.NewFromInt(sumDays)
	allocated := decimal.Zero
	largest := 0
	for i := range shares {
		shares[i].Amount = domain.Round2(amount.Mul(decimal.NewFromInt(int64(shares[i].DaysInPeriod))).Div(total))
		allocated = allocated.Add(shares[i].Amount)
		if shares[i].Amount.GreaterThan(shares[largest].Amount) {
			largest = i
		}
	}
	shares[largest].Amount = shares[largest].Amount.Add(amount.Sub(allocated))
	return shares
}
