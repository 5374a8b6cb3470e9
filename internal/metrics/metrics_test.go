package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLedgerAppend(t *testing.T) {
	before := testutil.ToFloat64(ledgerAppends.WithLabelValues("RENT", ResultCreated))
	ObserveLedgerAppend("RENT", ResultCreated)
	ObserveLedgerAppend("RENT", ResultCreated)

	after := testutil.ToFloat64(ledgerAppends.WithLabelValues("RENT", ResultCreated))
	assert.Equal(t, before+2, after)
}

func TestObserveBillingOutcome(t *testing.T) {
	before := testutil.ToFloat64(billingOutcomes.WithLabelValues("late_fee", "applied"))
	ObserveBillingOutcome("late_fee", "applied")
	assert.Equal(t, before+1, testutil.ToFloat64(billingOutcomes.WithLabelValues("late_fee", "applied")))
}

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("/api/v1/payments", "POST", "201"))
	ObserveHTTPRequest("/api/v1/payments", "POST", 201, 15*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("/api/v1/payments", "POST", "201")))
}

func TestObserveHTTPPanic(t *testing.T) {
	before := testutil.ToFloat64(httpPanics.WithLabelValues("PUT"))
	ObserveHTTPPanic("PUT")
	assert.Equal(t, before+1, testutil.ToFloat64(httpPanics.WithLabelValues("PUT")))
}

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() {
		Register(reg)
		Register(reg)
	})

	ObserveAllocation("equal", errors.New("boom"), time.Second)
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["rentledger_utility_allocation_duration_seconds"])
}
