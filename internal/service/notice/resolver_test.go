package notice

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/ledger"
	"github.com/josh-kwaku/rentledger/internal/ledger/ledgertest"
)

type ackCall struct {
	tenantID uuid.UUID
	from, to time.Time
}

type fakeNotices struct {
	calls []ackCall
	n     int64
}

func (f *fakeNotices) Acknowledge(_ context.Context, tenantID uuid.UUID, _ []domain.NoticeType, _ []domain.NoticeStatus, from, to, _ time.Time) (int64, error) {
	f.calls = append(f.calls, ackCall{tenantID: tenantID, from: from, to: to})
	return f.n, nil
}

type fakeTenants struct{ org uuid.UUID }

func (f fakeTenants) GetByID(_ context.Context, orgID, id uuid.UUID) (*domain.Tenant, error) {
	if orgID != f.org {
		return nil, domain.ErrTenantNotFound
	}
	return &domain.Tenant{ID: id, OrganizationID: orgID}, nil
}

func post(t *testing.T, store *ledger.Store, tenant uuid.UUID, typ domain.EntryType, amount, p string) {
	t.Helper()
	_, _, err := store.Post(context.Background(), domain.Posting{
		TenantID:    tenant,
		Type:        typ,
		Amount:      decimal.RequireFromString(amount),
		Description: string(typ),
		Period:      p,
	})
	require.NoError(t, err)
}

func postLinked(t *testing.T, store *ledger.Store, tenant, paymentID uuid.UUID, typ domain.EntryType, amount, p string) {
	t.Helper()
	_, _, err := store.Post(context.Background(), domain.Posting{
		TenantID:    tenant,
		Type:        typ,
		Amount:      decimal.RequireFromString(amount),
		Description: string(typ),
		Period:      p,
		PaymentID:   &paymentID,
	})
	require.NoError(t, err)
}

func TestResolveNoticesIfPaid(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()

	t.Run("underpaid leaves notices open", func(t *testing.T) {
		mem := ledgertest.NewMemory()
		store := ledger.NewStore(mem, mem)
		notices := &fakeNotices{n: 2}
		r := NewResolver(store, notices, fakeTenants{}, time.UTC)

		post(t, store, tenant, domain.EntryTypeRent, "1000", "2024-03")
		post(t, store, tenant, domain.EntryTypeLateFee, "50", "2024-03")
		post(t, store, tenant, domain.EntryTypePayment, "-1000", "2024-03")

		res, err := r.ResolveNoticesIfPaid(ctx, tenant, "2024-03")
		require.NoError(t, err)
		assert.Zero(t, res.Resolved)
		assert.Equal(t, "1050.00", res.Due.StringFixed(2))
		assert.Empty(t, notices.calls)
	})

	t.Run("paid in full acknowledges the period window", func(t *testing.T) {
		mem := ledgertest.NewMemory()
		store := ledger.NewStore(mem, mem)
		notices := &fakeNotices{n: 2}
		r := NewResolver(store, notices, fakeTenants{}, time.UTC)

		post(t, store, tenant, domain.EntryTypeRent, "1000", "2024-03")
		post(t, store, tenant, domain.EntryTypeLateFee, "50", "2024-03")
		post(t, store, tenant, domain.EntryTypePayment, "-1050", "2024-03")
		post(t, store, tenant, domain.EntryTypeRent, "1000", "2024-04")

		res, err := r.ResolveNoticesIfPaid(ctx, tenant, "2024-03")
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Resolved)
		require.Len(t, notices.calls, 1)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), notices.calls[0].from)
		assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), notices.calls[0].to)
	})

	t.Run("rejected payment does not count toward the period", func(t *testing.T) {
		mem := ledgertest.NewMemory()
		store := ledger.NewStore(mem, mem)
		notices := &fakeNotices{n: 2}
		r := NewResolver(store, notices, fakeTenants{}, time.UTC)

		rejected, small := uuid.New(), uuid.New()
		post(t, store, tenant, domain.EntryTypeRent, "1000", "2024-03")
		postLinked(t, store, tenant, rejected, domain.EntryTypePayment, "-1000", "2024-03")
		postLinked(t, store, tenant, rejected, domain.EntryTypeCredit, "1000", "2024-03")
		postLinked(t, store, tenant, small, domain.EntryTypePayment, "-100", "2024-03")

		res, err := r.ResolveNoticesIfPaid(ctx, tenant, "2024-03")
		require.NoError(t, err)
		assert.Equal(t, "100.00", res.Paid.StringFixed(2))
		assert.Zero(t, res.Resolved)
		assert.Empty(t, notices.calls)
	})

	t.Run("bad period", func(t *testing.T) {
		mem := ledgertest.NewMemory()
		r := NewResolver(ledger.NewStore(mem, mem), &fakeNotices{}, fakeTenants{}, time.UTC)
		_, err := r.ResolveNoticesIfPaid(ctx, tenant, "2024-3")
		require.ErrorIs(t, err, domain.ErrInvalidPeriod)
	})
}

func TestResolveForTenant_ScopesToOrganization(t *testing.T) {
	mem := ledgertest.NewMemory()
	org := uuid.New()
	r := NewResolver(ledger.NewStore(mem, mem), &fakeNotices{}, fakeTenants{org: org}, time.UTC)

	_, err := r.ResolveForTenant(context.Background(), uuid.New(), uuid.New(), "2024-03")
	assert.True(t, domain.IsNotFound(err))

	res, err := r.ResolveForTenant(context.Background(), org, uuid.New(), "2024-03")
	require.NoError(t, err)
	assert.Zero(t, res.Resolved)
}
