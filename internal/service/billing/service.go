// Package billing generates the recurring charges of a tenant ledger: monthly
// rent, first-month proration and late fees.
package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

type leaseRepo interface {
	ListActive(ctx context.Context, orgID uuid.UUID) ([]domain.Lease, error)
	GetCurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*domain.Lease, error)
}

type tenantRepo interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Tenant, error)
}

type ledgerStore interface {
	Post(ctx context.Context, p domain.Posting) (*domain.LedgerEntry, bool, error)
	HasEntry(ctx context.Context, tenantID uuid.UUID, entryType domain.EntryType, period string) (bool, error)
	SumByPeriod(ctx context.Context, tenantID uuid.UUID, period string, types ...domain.EntryType) (decimal.Decimal, error)
	PaidInWindow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}

type Service struct {
	leases  leaseRepo
	tenants tenantRepo
	ledger  ledgerStore
	loc     *time.Location
	workers int
}

func NewService(leases leaseRepo, tenants tenantRepo, ledger ledgerStore, loc *time.Location, workers int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if workers < 1 {
		workers = 1
	}
	return &Service{
		leases:  leases,
		tenants: tenants,
		ledger:  ledger,
		loc:     loc,
		workers: workers,
	}
}

// Location is the zone periods and deadlines are evaluated in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// forEachLease runs fn for every lease on a bounded pool. fn records its own
// per-tenant failures; the pool only stops scheduling once ctx is done.
func (s *Service) forEachLease(ctx context.Context, leases []domain.Lease, fn func(i int, lease domain.Lease)) error {
	var g errgroup.Group
	g.SetLimit(s.workers)

	for i := range leases {
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i, leases[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
