// Package metrics holds the Prometheus collectors shared by the API and the worker.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "rentledger_"

const (
	ResultCreated  = "created"
	ResultExisting = "existing"
	ResultError    = "error"
)

var (
	registerOnce sync.Once

	ledgerAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "ledger_appends_total",
			Help: "Ledger append attempts by entry type and result",
		},
		[]string{"type", "result"},
	)
	billingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "billing_outcomes_total",
			Help: "Per-tenant billing job outcomes",
		},
		[]string{"job", "outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	allocationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "utility_allocation_duration_seconds",
			Help:    "Utility bill allocation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "result"},
	)
	httpPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "http_panics_total",
			Help: "Handler panics recovered, by method",
		},
		[]string{"method"},
	)
)

// Register adds every collector to reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(ledgerAppends, billingOutcomes, httpRequests, httpLatency, allocationLatency, httpPanics)
	})
}

func ObserveLedgerAppend(entryType, result string) {
	ledgerAppends.WithLabelValues(entryType, result).Inc()
}

func ObserveHTTPPanic(method string) {
	httpPanics.WithLabelValues(method).Inc()
}

func ObserveBillingOutcome(job, outcome string) {
	billingOutcomes.WithLabelValues(job, outcome).Inc()
}

func ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func ObserveAllocation(method string, err error, elapsed time.Duration) {
	result := "success"
	if err != nil {
		result = ResultError
	}
	allocationLatency.WithLabelValues(method, result).Observe(elapsed.Seconds())
}
