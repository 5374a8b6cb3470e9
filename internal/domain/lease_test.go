package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLeaseTransition(t *testing.T) {
	tests := []struct {
		from, to LeaseStatus
		ok       bool
	}{
		{LeaseStatusDraft, LeaseStatusPendingSignature, true},
		{LeaseStatusDraft, LeaseStatusTerminated, true},
		{LeaseStatusDraft, LeaseStatusActive, false},
		{LeaseStatusPendingSignature, LeaseStatusActive, true},
		{LeaseStatusPendingSignature, LeaseStatusDraft, true},
		{LeaseStatusPendingSignature, LeaseStatusTerminated, true},
		{LeaseStatusActive, LeaseStatusExpired, true},
		{LeaseStatusActive, LeaseStatusTerminated, true},
		{LeaseStatusActive, LeaseStatusDraft, false},
		{LeaseStatusExpired, LeaseStatusActive, false},
		{LeaseStatusTerminated, LeaseStatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ValidateLeaseTransition(tt.from, tt.to)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidTransition)
			assert.True(t, IsStateConflict(err))
		})
	}
}

func TestValidateLeaseTransition_NamesPair(t *testing.T) {
	err := ValidateLeaseTransition(LeaseStatusActive, LeaseStatusDraft)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, `lease transition from "ACTIVE" to "DRAFT" is not allowed`, err.Error())
}

func TestValidateLeaseTransition_UnknownTarget(t *testing.T) {
	err := ValidateLeaseTransition(LeaseStatusActive, LeaseStatus("ARCHIVED"))
	assert.True(t, IsValidation(err))
}

func clause(t ClauseType, meta string) LeaseClause {
	return LeaseClause{Type: t, Metadata: json.RawMessage(meta)}
}

func TestBillingPolicy(t *testing.T) {
	t.Run("defaults without clauses", func(t *testing.T) {
		l := Lease{}
		p, err := l.BillingPolicy()
		require.NoError(t, err)
		assert.Equal(t, 1, p.DueDay)
		assert.Equal(t, 0, p.GraceDays)
		assert.Nil(t, p.LateFee)
	})

	t.Run("all clauses", func(t *testing.T) {
		l := Lease{Clauses: []LeaseClause{
			clause(ClauseRentDueDate, `{"dueDay":5}`),
			clause(ClauseGracePeriod, `{"days":3}`),
			clause(ClauseLateFee, `{"amount":5,"type":"percentage"}`),
		}}
		p, err := l.BillingPolicy()
		require.NoError(t, err)
		assert.Equal(t, 5, p.DueDay)
		assert.Equal(t, 3, p.GraceDays)
		require.NotNil(t, p.LateFee)
		assert.Equal(t, LateFeePercentage, p.LateFee.Kind)
	})

	t.Run("late fee type defaults to fixed", func(t *testing.T) {
		l := Lease{Clauses: []LeaseClause{clause(ClauseLateFee, `{"amount":50}`)}}
		p, err := l.BillingPolicy()
		require.NoError(t, err)
		assert.Equal(t, LateFeeFixed, p.LateFee.Kind)
	})

	t.Run("invalid metadata", func(t *testing.T) {
		l := Lease{Clauses: []LeaseClause{clause(ClauseRentDueDate, `{"dueDay":40}`)}}
		_, err := l.BillingPolicy()
		require.ErrorIs(t, err, ErrInvalidPolicy)
	})

	t.Run("unknown late fee type", func(t *testing.T) {
		l := Lease{Clauses: []LeaseClause{clause(ClauseLateFee, `{"amount":50,"type":"tiered"}`)}}
		_, err := l.BillingPolicy()
		require.ErrorIs(t, err, ErrInvalidPolicy)
	})
}

func TestLateFeePolicy_Fee(t *testing.T) {
	rent := decimal.RequireFromString("1234.50")

	fixed := LateFeePolicy{Amount: decimal.NewFromInt(50), Kind: LateFeeFixed}
	assert.Equal(t, "50.00", fixed.Fee(rent).StringFixed(2))

	pct := LateFeePolicy{Amount: decimal.NewFromInt(5), Kind: LateFeePercentage}
	assert.Equal(t, "61.73", pct.Fee(rent).StringFixed(2))
}

func TestPaymentDescriptions(t *testing.T) {
	assert.Equal(t, "Payment via check: #12 [Pending]", PaymentDescription("check", "#12"))
	assert.Equal(t, "Payment via cash [Pending]", PaymentDescription("cash", ""))
	assert.Equal(t, "Payment via cash", ConfirmedDescription("Payment via cash [Pending]"))
	assert.Equal(t, "Reversal: payment via ach rejected", ReversalDescription("ach"))
}

func TestErrorFamilies(t *testing.T) {
	assert.True(t, IsValidation(ErrInvalidAmount))
	assert.True(t, IsStateConflict(ErrBillAlreadyAllocated))
	assert.True(t, IsNotFound(ErrPaymentNotFound))
	assert.True(t, IsPolicyAbsent(ErrNoLateFeeClause))
	assert.False(t, IsValidation(ErrAlreadyExists))
}
