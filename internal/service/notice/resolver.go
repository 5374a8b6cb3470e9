// Package notice closes enforcement notices once the tenant has paid what the
// period required.
package notice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/period"
)

type ledgerStore interface {
	SumByPeriod(ctx context.Context, tenantID uuid.UUID, period string, types ...domain.EntryType) (decimal.Decimal, error)
	PaidForPeriod(ctx context.Context, tenantID uuid.UUID, period string) (decimal.Decimal, error)
}

type noticeRepo interface {
	Acknowledge(ctx context.Context, tenantID uuid.UUID, types []domain.NoticeType, statuses []domain.NoticeStatus, from, to, at time.Time) (int64, error)
}

type tenantRepo interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Tenant, error)
}

type Resolver struct {
	ledger  ledgerStore
	notices noticeRepo
	tenants tenantRepo
	loc     *time.Location
	now     func() time.Time
}

func NewResolver(ledger ledgerStore, notices noticeRepo, tenants tenantRepo, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{ledger: ledger, notices: notices, tenants: tenants, loc: loc, now: time.Now}
}

type Result struct {
	TenantID uuid.UUID       `json:"tenant_id"`
	Period   string          `json:"period"`
	Due      decimal.Decimal `json:"due"`
	Paid     decimal.Decimal `json:"paid"`
	Resolved int64           `json:"resolved"`
}

// ResolveNoticesIfPaid acknowledges the tenant's open payment-related notices
// issued during p when payments tagged with p cover its rent and late fees.
// Rejected payments do not count.
// Notices of other periods are never touched.
func (r *Resolver) ResolveNoticesIfPaid(ctx context.Context, tenantID uuid.UUID, p string) (*Result, error) {
	from, to, err := period.Bounds(p, r.loc)
	if err != nil {
		return nil, fmt.Errorf("ResolveNoticesIfPaid: %w", err)
	}

	due, err := r.ledger.SumByPeriod(ctx, tenantID, p, domain.EntryTypeRent, domain.EntryTypeLateFee)
	if err != nil {
		return nil, fmt.Errorf("ResolveNoticesIfPaid: %w", err)
	}
	paid, err := r.ledger.PaidForPeriod(ctx, tenantID, p)
	if err != nil {
		return nil, fmt.Errorf("ResolveNoticesIfPaid: %w", err)
	}

	res := &Result{TenantID: tenantID, Period: p, Due: due, Paid: paid}
	if res.Paid.LessThan(due) {
		return res, nil
	}

	n, err := r.notices.Acknowledge(ctx, tenantID,
		domain.PaymentResolvableNotices, domain.OpenNoticeStatuses,
		from, to, r.now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("ResolveNoticesIfPaid: %w", err)
	}
	res.Resolved = n

	if n > 0 {
		logging.FromContext(ctx).Info("notices resolved by payment",
			"tenant_id", tenantID,
			"period", p,
			"resolved", n,
		)
	}
	return res, nil
}

// ResolveForTenant scopes the resolution to a tenant of the organization.
func (r *Resolver) ResolveForTenant(ctx context.Context, orgID, tenantID uuid.UUID, p string) (*Result, error) {
	if _, err := r.tenants.GetByID(ctx, orgID, tenantID); err != nil {
		return nil, fmt.Errorf("ResolveForTenant: %w", err)
	}
	res, err := r.ResolveNoticesIfPaid(ctx, tenantID, p)
	if err != nil {
		return nil, fmt.Errorf("ResolveForTenant: %w", err)
	}
	return res, nil
}
