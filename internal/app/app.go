// Package app builds the repositories and services shared by the API and the
// worker binaries.
package app

import (
	"database/sql"
	"time"

	"github.com/josh-kwaku/rentledger/internal/config"
	"github.com/josh-kwaku/rentledger/internal/ledger"
	"github.com/josh-kwaku/rentledger/internal/repository"
	"github.com/josh-kwaku/rentledger/internal/service/billing"
	"github.com/josh-kwaku/rentledger/internal/service/lease"
	"github.com/josh-kwaku/rentledger/internal/service/notice"
	"github.com/josh-kwaku/rentledger/internal/service/payment"
	"github.com/josh-kwaku/rentledger/internal/service/utility"
)

type Services struct {
	Location    *time.Location
	Tenants     *repository.TenantRepository
	Idempotency *repository.IdempotencyRepository
	Ledger      *ledger.Store
	Billing     *billing.Service
	Payments    *payment.Service
	Notices     *notice.Resolver
	Utilities   *utility.Service
	Leases      *lease.Service
}

func NewServices(pool *sql.DB, cfg *config.Config, loc *time.Location) *Services {
	db := repository.NewDB(pool)
	tenants := repository.NewTenantRepository(pool)
	leases := repository.NewLeaseRepository(pool)

	store := ledger.NewStore(repository.NewLedgerRepository(pool), db)
	notices := notice.NewResolver(store, repository.NewNoticeRepository(pool), tenants, loc)

	return &Services{
		Location:    loc,
		Tenants:     tenants,
		Idempotency: repository.NewIdempotencyRepository(pool),
		Ledger:      store,
		Billing:     billing.NewService(leases, tenants, store, loc, cfg.BillingWorkers),
		Payments:    payment.NewService(repository.NewPaymentRepository(pool), tenants, store, notices, db, loc),
		Notices:     notices,
		Utilities:   utility.NewService(repository.NewUtilityBillRepository(pool), tenants, store, db),
		Leases:      lease.NewService(leases, db),
	}
}
