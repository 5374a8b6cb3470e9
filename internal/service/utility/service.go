// Package utility allocates shared utility bills to the tenants of a property.
package utility

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/metrics"
	"github.com/josh-kwaku/rentledger/internal/period"
)

type billRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, orgID, id uuid.UUID) (*domain.UtilityBill, error)
	MarkAllocated(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error
	ListByPropertyPeriod(ctx context.Context, orgID, propertyID uuid.UUID, period string) ([]domain.UtilityBill, error)
}

type tenantRepo interface {
	ListActiveOccupants(ctx context.Context, orgID, propertyID uuid.UUID) ([]domain.Tenant, error)
	ListOverlapping(ctx context.Context, orgID, propertyID uuid.UUID, from, to time.Time) ([]domain.Tenant, error)
}

type ledgerStore interface {
	Append(ctx context.Context, tx *sql.Tx, p domain.Posting) (*domain.LedgerEntry, bool, error)
}

type transactor interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Service struct {
	bills   billRepo
	tenants tenantRepo
	ledger  ledgerStore
	db      transactor
	now     func() time.Time
}

func NewService(bills billRepo, tenants tenantRepo, ledger ledgerStore, db transactor) *Service {
	return &Service{
		bills:   bills,
		tenants: tenants,
		ledger:  ledger,
		db:      db,
		now:     time.Now,
	}
}

type AllocationLine struct {
	TenantID uuid.UUID       `json:"tenant_id"`
	Amount   decimal.Decimal `json:"amount"`
	Days     int             `json:"days_in_period,omitempty"`
	EntryID  uuid.UUID       `json:"entry_id"`
	Created  bool            `json:"created"`
}

type Allocation struct {
	BillID      uuid.UUID               `json:"bill_id"`
	Method      domain.AllocationMethod `json:"method"`
	Total       decimal.Decimal         `json:"total"`
	Allocations []AllocationLine        `json:"allocations"`
}

// Allocate dispatches on method.
func (s *Service) Allocate(ctx context.Context, orgID, billID uuid.UUID, method domain.AllocationMethod) (*Allocation, error) {
	switch method {
	case domain.AllocationEqual, "":
		return s.AllocateEqual(ctx, orgID, billID)
	case domain.AllocationWeighted:
		return s.AllocateWeighted(ctx, orgID, billID)
	default:
		return nil, fmt.Errorf("Allocate: unknown method %q: %w", method, domain.ErrInvalidRequest)
	}
}

// AllocateEqual splits the bill evenly across the property's active
// occupants, ordered by move-in date.
func (s *Service) AllocateEqual(ctx context.Context, orgID, billID uuid.UUID) (*Allocation, error) {
	start := time.Now()
	alloc, err := s.allocate(ctx, orgID, billID, domain.AllocationEqual,
		func(bill *domain.UtilityBill) ([]domain.Share, error) {
			tenants, err := s.tenants.ListActiveOccupants(ctx, orgID, bill.PropertyID)
			if err != nil {
				return nil, err
			}
			parts := EqualSplit(bill.Amount, len(tenants))
			shares := make([]domain.Share, len(tenants))
			for i, t := range tenants {
				shares[i] = domain.Share{TenantID: t.ID, Amount: parts[i]}
			}
			return shares, nil
		})
	metrics.ObserveAllocation(string(domain.AllocationEqual), err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("AllocateEqual: %w", err)
	}
	return alloc, nil
}

// AllocateWeighted splits the bill by each tenant's days of occupancy within
// the bill's billing window, including tenants who have since moved out.
func (s *Service) AllocateWeighted(ctx context.Context, orgID, billID uuid.UUID) (*Allocation, error) {
	start := time.Now()
	alloc, err := s.allocate(ctx, orgID, billID, domain.AllocationWeighted,
		func(bill *domain.UtilityBill) ([]domain.Share, error) {
			tenants, err := s.tenants.ListOverlapping(ctx, orgID, bill.PropertyID, bill.BillingStart, bill.BillingEnd)
			if err != nil {
				return nil, err
			}
			occ := make([]domain.Occupancy, len(tenants))
			for i, t := range tenants {
				occ[i] = t.Occupancy()
			}
			return CalculateShares(bill.Amount, bill.BillingStart, bill.BillingEnd, occ), nil
		})
	metrics.ObserveAllocation(string(domain.AllocationWeighted), err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("AllocateWeighted: %w", err)
	}
	return alloc, nil
}

// allocate runs in one transaction: the bill row lock, every tenant's share
// and the allocated flag commit together or not at all. Shares go through
// ledger.Append on the same tx, so an allocation holds a single pooled
// connection however many tenants it touches.
func (s *Service) allocate(
	ctx context.Context,
	orgID, billID uuid.UUID,
	method domain.AllocationMethod,
	split func(bill *domain.UtilityBill) ([]domain.Share, error),
) (*Allocation, error) {
	var alloc *Allocation
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		bill, err := s.bills.GetForUpdate(ctx, tx, orgID, billID)
		if err != nil {
			return err
		}
		if bill.Allocated {
			return domain.ErrBillAlreadyAllocated
		}

		shares, err := split(bill)
		if err != nil {
			return err
		}
		if len(shares) == 0 {
			return domain.ErrNoActiveTenants
		}

		lines, err := s.postShares(ctx, tx, bill, shares)
		if err != nil {
			return err
		}
		if err := s.bills.MarkAllocated(ctx, tx, bill.ID, s.now().UTC()); err != nil {
			return err
		}

		alloc = &Allocation{BillID: bill.ID, Method: method, Total: bill.Amount, Allocations: lines}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("utility bill allocated",
		"bill_id", alloc.BillID,
		"method", method,
		"tenants", len(alloc.Allocations),
		"total", alloc.Total.StringFixed(domain.Cents),
	)
	return alloc, nil
}

// postShares appends in tenant id order so that concurrent allocations over
// the same tenants take their head locks in the same order. Lines keep the
// order of shares.
func (s *Service) postShares(ctx context.Context, tx *sql.Tx, bill *domain.UtilityBill, shares []domain.Share) ([]AllocationLine, error) {
	label, err := period.MonthLabel(bill.Period)
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Utility - %s %s - %s", bill.Provider, strings.ToLower(string(bill.Type)), label)

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return bytes.Compare(shares[a].TenantID[:], shares[b].TenantID[:])
	})

	lines := make([]AllocationLine, len(shares))
	for _, i := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sh := shares[i]
		line := AllocationLine{TenantID: sh.TenantID, Amount: sh.Amount, Days: sh.DaysInPeriod}
		if sh.Amount.IsZero() {
			lines[i] = line
			continue
		}
		entry, created, err := s.ledger.Append(ctx, tx, domain.Posting{
			TenantID:       sh.TenantID,
			Type:           domain.EntryTypeUtility,
			Amount:         sh.Amount,
			Description:    desc,
			Period:         bill.Period,
			IdempotencyKey: domain.UtilityKey(bill.ID, sh.TenantID),
		})
		if err != nil {
			return nil, fmt.Errorf("tenant %s: %w", sh.TenantID, err)
		}
		// A charge left by an earlier run must match this split, or the
		// bill's postings would no longer sum to its amount.
		if !created && !entry.Amount.Equal(domain.Round2(sh.Amount)) {
			return nil, fmt.Errorf("tenant %s: posted %s, split %s: %w",
				sh.TenantID, entry.Amount.StringFixed(domain.Cents), sh.Amount.StringFixed(domain.Cents),
				domain.ErrAllocationMismatch)
		}
		line.EntryID, line.Created = entry.ID, created
		lines[i] = line
	}
	return lines, nil
}

type PropertyShares struct {
	PropertyID uuid.UUID       `json:"property_id"`
	Period     string          `json:"period"`
	Bills      int             `json:"bills"`
	Total      decimal.Decimal `json:"total"`
	Shares     []domain.Share  `json:"shares"`
}

// CalculatePropertyShares previews the time-weighted split of every bill the
// property received for p, over the calendar month. Nothing is posted.
func (s *Service) CalculatePropertyShares(ctx context.Context, orgID, propertyID uuid.UUID, p string) (*PropertyShares, error) {
	from, next, err := period.Bounds(p, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("CalculatePropertyShares: %w", err)
	}
	to := next.AddDate(0, 0, -1)

	bills, err := s.bills.ListByPropertyPeriod(ctx, orgID, propertyID, p)
	if err != nil {
		return nil, fmt.Errorf("CalculatePropertyShares: %w", err)
	}
	total := decimal.Zero
	for _, b := range bills {
		total = total.Add(b.Amount)
	}

	tenants, err := s.tenants.ListOverlapping(ctx, orgID, propertyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("CalculatePropertyShares: %w", err)
	}
	occ := make([]domain.Occupancy, len(tenants))
	for i, t := range tenants {
		occ[i] = t.Occupancy()
	}

	shares := CalculateShares(total, from, to, occ)
	if shares == nil {
		shares = []domain.Share{}
	}
	return &PropertyShares{
		PropertyID: propertyID,
		Period:     p,
		Bills:      len(bills),
		Total:      total,
		Shares:     shares,
	}, nil
}
