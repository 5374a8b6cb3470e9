package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josh-kwaku/rentledger/internal/app"
	"github.com/josh-kwaku/rentledger/internal/config"
	"github.com/josh-kwaku/rentledger/internal/handler"
	"github.com/josh-kwaku/rentledger/internal/middleware"
	"github.com/josh-kwaku/rentledger/internal/tasks"
)

// newRouter mounts the API under /api/v1. queue may be nil, in which case
// async allocation requests are refused.
func newRouter(cfg *config.Config, db *sql.DB, svc *app.Services, queue *tasks.Client, gatherer prometheus.Gatherer) http.Handler {
	health := handler.NewHealthHandler(db)
	billingH := handler.NewBillingHandler(svc.Billing, svc.Location)
	paymentH := handler.NewPaymentHandler(svc.Payments, svc.Location)
	tenantH := handler.NewTenantHandler(svc.Tenants, svc.Ledger, svc.Notices, svc.Location)
	leaseH := handler.NewLeaseHandler(svc.Leases)
	utilityH := handler.NewUtilityHandler(svc.Utilities, svc.Location)
	if queue != nil {
		utilityH.WithQueue(queue)
		health.WithCheck("queue", queue.Ping)
	}

	r := chi.NewRouter()
	r.Use(middleware.Tracing, middleware.Metrics, middleware.Recovery)

	r.Get("/health", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret), middleware.Logging)

		r.Post("/billing/rent-charges", billingH.GenerateRentCharges)
		r.Post("/billing/late-fees", billingH.ApplyLateFees)

		r.Route("/tenants/{id}", func(r chi.Router) {
			r.Post("/proration", billingH.GenerateProration)
			r.Get("/ledger", tenantH.Ledger)
			r.Get("/ledger/export", tenantH.Export)
			r.Get("/ledger/verify", tenantH.Verify)
			r.Post("/notices/resolve", tenantH.ResolveNotices)
			r.Get("/payments", paymentH.ListForTenant)
		})

		r.With(middleware.Idempotency(svc.Idempotency, cfg.IdempotencyTTL)).
			Post("/payments", paymentH.Create)
		r.Get("/payments/{id}", paymentH.Get)
		r.Post("/payments/{id}/confirm", paymentH.Confirm)
		r.Post("/payments/{id}/reject", paymentH.Reject)

		r.Post("/utility-bills/{id}/allocate", utilityH.Allocate)
		r.Get("/properties/{id}/utility-shares", utilityH.PropertyShares)

		r.Post("/leases/{id}/transition", leaseH.Transition)
	})

	return r
}
