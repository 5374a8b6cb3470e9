package utility

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sum(parts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range parts {
		total = total.Add(p)
	}
	return total
}

func TestEqualSplit(t *testing.T) {
	tests := []struct {
		amount string
		n      int
		want   []string
	}{
		{"100", 3, []string{"33.34", "33.33", "33.33"}},
		{"90", 3, []string{"30.00", "30.00", "30.00"}},
		{"10.01", 1, []string{"10.01"}},
	}

	for _, tt := range tests {
		amount := decimal.RequireFromString(tt.amount)
		parts := EqualSplit(amount, tt.n)
		require.Len(t, parts, tt.n)
		assert.True(t, sum(parts).Equal(amount), "%s / %d", tt.amount, tt.n)
		if len(tt.want) == tt.n {
			for i := range parts {
				assert.Equal(t, tt.want[i], parts[i].StringFixed(2))
			}
		}
	}

	assert.Nil(t, EqualSplit(decimal.NewFromInt(100), 0))
}

func TestEqualSplit_HalfCentRounding(t *testing.T) {
	parts := EqualSplit(decimal.RequireFromString("0.05"), 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "0.02", parts[0].StringFixed(2))
	assert.Equal(t, "0.03", parts[1].StringFixed(2))
}

func TestCalculateShares_FullMonthTenants(t *testing.T) {
	a, b, gone := uuid.New(), uuid.New(), uuid.New()
	movedOut := day(2024, 2, 20)

	shares := CalculateShares(decimal.NewFromInt(200), day(2024, 3, 1), day(2024, 3, 31), []domain.Occupancy{
		{TenantID: a, MoveIn: day(2023, 6, 1)},
		{TenantID: b, MoveIn: day(2024, 1, 15)},
		{TenantID: gone, MoveIn: day(2023, 1, 1), MoveOut: &movedOut},
	})

	require.Len(t, shares, 2)
	assert.Equal(t, a, shares[0].TenantID)
	assert.Equal(t, b, shares[1].TenantID)
	for _, s := range shares {
		assert.Equal(t, 31, s.DaysInPeriod)
		assert.Equal(t, "1.0000", s.Weight.StringFixed(4))
		assert.Equal(t, "100.00", s.Amount.StringFixed(2))
	}
}

func TestCalculateShares_PartialOccupancy(t *testing.T) {
	stay, leaver, arrival := uuid.New(), uuid.New(), uuid.New()
	out := day(2024, 4, 10)

	shares := CalculateShares(decimal.RequireFromString("100.00"), day(2024, 4, 1), day(2024, 4, 30), []domain.Occupancy{
		{TenantID: stay, MoveIn: day(2023, 1, 1)},
		{TenantID: leaver, MoveIn: day(2023, 1, 1), MoveOut: &out},
		{TenantID: arrival, MoveIn: day(2024, 4, 21)},
	})

	require.Len(t, shares, 3)
	assert.Equal(t, 30, shares[0].DaysInPeriod)
	assert.Equal(t, 10, shares[1].DaysInPeriod)
	assert.Equal(t, 10, shares[2].DaysInPeriod)

	assert.Equal(t, "60.00", shares[0].Amount.StringFixed(2))
	assert.Equal(t, "20.00", shares[1].Amount.StringFixed(2))
	assert.Equal(t, "20.00", shares[2].Amount.StringFixed(2))
	assert.Equal(t, "0.3333", shares[1].Weight.StringFixed(4))
}

func TestCalculateShares_ResidueToLargest(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	shares := CalculateShares(decimal.NewFromInt(100), day(2024, 3, 1), day(2024, 3, 31), []domain.Occupancy{
		{TenantID: a, MoveIn: day(2024, 3, 22)},
		{TenantID: b, MoveIn: day(2023, 1, 1)},
		{TenantID: c, MoveIn: day(2024, 3, 22)},
	})

	require.Len(t, shares, 3)
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}
	assert.Equal(t, "100.00", total.StringFixed(2))
	assert.True(t, shares[1].Amount.GreaterThan(shares[0].Amount))
}

func TestCalculateShares_NoOverlap(t *testing.T) {
	out := day(2024, 1, 31)
	shares := CalculateShares(decimal.NewFromInt(50), day(2024, 3, 1), day(2024, 3, 31), []domain.Occupancy{
		{TenantID: uuid.New(), MoveIn: day(2023, 1, 1), MoveOut: &out},
		{TenantID: uuid.New(), MoveIn: day(2024, 5, 1)},
	})
	assert.Nil(t, shares)
}
