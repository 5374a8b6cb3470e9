package utility

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/ledger"
	"github.com/josh-kwaku/rentledger/internal/ledger/ledgertest"
	"github.com/josh-kwaku/rentledger/internal/repository"
)

type fakeBills struct {
	mu    sync.Mutex
	bills map[uuid.UUID]*domain.UtilityBill
}

func (f *fakeBills) GetForUpdate(_ context.Context, _ *sql.Tx, _, id uuid.UUID) (*domain.UtilityBill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bills[id]
	if !ok {
		return nil, domain.ErrBillNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBills) MarkAllocated(_ context.Context, _ *sql.Tx, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bills[id]
	if b.Allocated {
		return domain.ErrBillAlreadyAllocated
	}
	b.Allocated, b.AllocatedAt = true, &at
	return nil
}

func (f *fakeBills) ListByPropertyPeriod(_ context.Context, _, propertyID uuid.UUID, p string) ([]domain.UtilityBill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.UtilityBill
	for _, b := range f.bills {
		if b.PropertyID == propertyID && b.Period == p {
			out = append(out, *b)
		}
	}
	return out, nil
}

type fakeTenants struct {
	tenants []domain.Tenant
}

func (f *fakeTenants) ListActiveOccupants(_ context.Context, _, _ uuid.UUID) ([]domain.Tenant, error) {
	var out []domain.Tenant
	for _, t := range f.tenants {
		if t.Status == domain.TenantStatusActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTenants) ListOverlapping(_ context.Context, _, _ uuid.UUID, from, to time.Time) ([]domain.Tenant, error) {
	var out []domain.Tenant
	for _, t := range f.tenants {
		if t.MoveInDate.After(to) || (t.MoveOutDate != nil && t.MoveOutDate.Before(from)) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type utilityFixture struct {
	org      uuid.UUID
	property uuid.UUID
	bills    *fakeBills
	tenants  *fakeTenants
	mem      *ledgertest.Memory
	store    *ledger.Store
	svc      *Service
}

// The memory ledger doubles as the bill transaction, so a failed allocation
// rolls back every share it appended.
func newUtilityFixture() *utilityFixture {
	mem := ledgertest.NewMemory()
	f := &utilityFixture{
		org:      uuid.New(),
		property: uuid.New(),
		bills:    &fakeBills{bills: map[uuid.UUID]*domain.UtilityBill{}},
		tenants:  &fakeTenants{},
		mem:      mem,
		store:    ledger.NewStore(mem, mem),
	}
	f.svc = NewService(f.bills, f.tenants, f.store, mem)
	return f
}

func (f *utilityFixture) addBill(amount string) *domain.UtilityBill {
	b := &domain.UtilityBill{
		ID:           uuid.New(),
		PropertyID:   f.property,
		Provider:     "Duke Energy",
		Type:         domain.UtilityElectric,
		Amount:       decimal.RequireFromString(amount),
		BillingStart: day(2024, 3, 1),
		BillingEnd:   day(2024, 3, 31),
		Period:       "2024-03",
	}
	f.bills.bills[b.ID] = b
	return b
}

func (f *utilityFixture) addTenant(moveIn time.Time, moveOut *time.Time) domain.Tenant {
	status := domain.TenantStatusActive
	if moveOut != nil {
		status = domain.TenantStatusInactive
	}
	t := domain.Tenant{
		ID:             uuid.New(),
		OrganizationID: f.org,
		Status:         status,
		MoveInDate:     moveIn,
		MoveOutDate:    moveOut,
	}
	f.tenants.tenants = append(f.tenants.tenants, t)
	return t
}

func TestAllocateEqual(t *testing.T) {
	f := newUtilityFixture()
	ctx := context.Background()
	bill := f.addBill("100.00")
	a := f.addTenant(day(2023, 1, 1), nil)
	b := f.addTenant(day(2023, 2, 1), nil)
	c := f.addTenant(day(2023, 3, 1), nil)

	alloc, err := f.svc.AllocateEqual(ctx, f.org, bill.ID)
	require.NoError(t, err)
	require.Len(t, alloc.Allocations, 3)

	want := map[uuid.UUID]string{a.ID: "33.34", b.ID: "33.33", c.ID: "33.33"}
	for _, line := range alloc.Allocations {
		assert.Equal(t, want[line.TenantID], line.Amount.StringFixed(2))
		assert.True(t, line.Created)

		entries, err := f.store.AllEntries(ctx, line.TenantID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.EntryTypeUtility, entries[0].Type)
		assert.Equal(t, "Utility - Duke Energy electric - March 2024", entries[0].Description)
		require.NotNil(t, entries[0].IdempotencyKey)
		assert.Equal(t, domain.UtilityKey(bill.ID, line.TenantID), *entries[0].IdempotencyKey)
	}
	assert.True(t, f.bills.bills[bill.ID].Allocated)
}

func TestAllocateEqual_AlreadyAllocated(t *testing.T) {
	f := newUtilityFixture()
	ctx := context.Background()
	bill := f.addBill("100.00")
	f.addTenant(day(2023, 1, 1), nil)

	_, err := f.svc.AllocateEqual(ctx, f.org, bill.ID)
	require.NoError(t, err)

	_, err = f.svc.AllocateEqual(ctx, f.org, bill.ID)
	require.ErrorIs(t, err, domain.ErrBillAlreadyAllocated)
	assert.True(t, domain.IsStateConflict(err))
	assert.Equal(t, "This bill has already been allocated", domain.ErrBillAlreadyAllocated.Error())
}

func TestAllocateEqual_ConcurrentCallsAllocateOnce(t *testing.T) {
	f := newUtilityFixture()
	ctx := context.Background()
	bill := f.addBill("90.00")
	tenant := f.addTenant(day(2023, 1, 1), nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.AllocateEqual(ctx, f.org, bill.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	balance, err := f.store.Balance(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "90.00", balance.StringFixed(2))
}

func TestAllocateEqual_RetryKeepsMatchingCharge(t *testing.T) {
	f := newUtilityFixture()
	ctx := context.Background()
	bill := f.addBill("100.00")
	a := f.addTenant(day(2023, 1, 1), nil)
	b := f.addTenant(day(2023, 2, 1), nil)

	_, _, err := f.store.Post(ctx, domain.Posting{
		TenantID:       a.ID,
		Type:           domain.EntryTypeUtility,
		Amount:         decimal.RequireFromString("50.00"),
		Description:    "Utility - Duke Energy electric - March 2024",
		Period:         "2024-03",
		IdempotencyKey: domain.UtilityKey(bill.ID, a.ID),
	})
	require.NoError(t, err)

	alloc, err := f.svc.AllocateEqual(ctx, f.org, bill.ID)
	require.NoError(t, err)
	created := map[uuid.UUID]bool{}
	for _, line := range alloc.Allocations {
		created[line.TenantID] = line.Created
	}
	assert.False(t, created[a.ID])
	assert.True(t, created[b.ID])

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		bal, err := f.store.Balance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "50.00", bal.StringFixed(2))
	}
}

func TestAllocateEqual_RetryWithChangedOccupancyRollsBack(t *testing.T) {
	f := newUtilityFixture()
	ctx := context.Background()
	bill := f.addBill("90.00")
	a := f.addTenant(day(2023, 1, 1), nil)
	b := f.addTenant(day(2023, 2, 1), nil)
	c := f.addTenant(day(2023, 3, 1), nil)

	// Left by a run made while only a and b were in residence.
	_, _, err := f.store.Post(ctx, domain.Posting{
		TenantID:       a.ID,
		Type:           domain.EntryTypeUtility,
		Amount:         decimal.RequireFromString("45.00"),
		Description:    "Utility - Duke Energy electric - March 2024",
		Period:         "2024-03",
		IdempotencyKey: domain.UtilityKey(bill.ID, a.ID),
	})
	require.NoError(t, err)

	_, err = f.svc.AllocateEqual(ctx, f.org, bill.ID)
	require.ErrorIs(t, err, domain.ErrAllocationMismatch)
	assert.True(t, domain.IsStateConflict(err))
	assert.False(t, f.bills.bills[bill.ID].Allocated)

	want := map[uuid.UUID]string{a.ID: "45.00", b.ID: "0.00", c.ID: "0.00"}
	for id, w := range want {
		bal, err := f.store.Balance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, w, bal.StringFixed(2))
	}
}

func TestAllocateEqual_SingleConnectionPool(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	org, propertyID, billID := uuid.New(), uuid.New(), uuid.New()
	tenants := &fakeTenants{tenants: []domain.Tenant{
		{ID: uuid.New(), Status: domain.TenantStatusActive, MoveInDate: day(2023, 1, 1)},
		{ID: uuid.New(), Status: domain.TenantStatusActive, MoveInDate: day(2023, 2, 1)},
	}}
	ledgerRepo := repository.NewLedgerRepository(db)
	svc := NewService(repository.NewUtilityBillRepository(db), tenants,
		ledger.NewStore(ledgerRepo, repository.NewDB(db)), repository.NewDB(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM utility_bills b`).
		WithArgs(billID, org).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "property_id", "provider", "type", "account_number", "amount",
			"billing_start", "billing_end", "period", "due_date", "allocated", "allocated_at", "created_at",
		}).AddRow(billID.String(), propertyID.String(), "Duke Energy", "ELECTRIC", "", "100.00",
			day(2024, 3, 1), day(2024, 3, 31), "2024-03", nil, false, nil, day(2024, 4, 2)))
	for range tenants.tenants {
		mock.ExpectExec(`INSERT INTO ledger_heads`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT seq, balance FROM ledger_heads`).
			WillReturnRows(sqlmock.NewRows([]string{"seq", "balance"}).AddRow(0, "0"))
		mock.ExpectQuery(`FROM ledger_entries WHERE idempotency_key`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`INSERT INTO ledger_entries`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE ledger_heads`).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`UPDATE utility_bills SET allocated = true`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	alloc, err := svc.AllocateEqual(ctx, org, billID)
	require.NoError(t, err)
	require.Len(t, alloc.Allocations, 2)
	assert.Equal(t, "50.00", alloc.Allocations[0].Amount.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateEqual_NoTenants(t *testing.T) {
	f := newUtilityFixture()
	bill := f.addBill("100.00")

	_, err := f.svc.AllocateEqual(context.Background(), f.org, bill.ID)
	require.ErrorIs(t, err, domain.ErrNoActiveTenants)
	assert.True(t, domain.IsValidation(err))
	assert.False(t, f.bills.bills[bill.ID].Allocated)
}

func TestAllocateWeighted_ExcludesMovedOutTenant(t *testing.T) {
	f := newUtilityFixture()
	ctx := context.Background()
	bill := f.addBill("200.00")
	a := f.addTenant(day(2023, 1, 1), nil)
	b := f.addTenant(day(2023, 6, 1), nil)
	out := day(2024, 2, 15)
	gone := f.addTenant(day(2022, 1, 1), &out)

	alloc, err := f.svc.Allocate(ctx, f.org, bill.ID, domain.AllocationWeighted)
	require.NoError(t, err)
	require.Len(t, alloc.Allocations, 2)
	for _, line := range alloc.Allocations {
		assert.NotEqual(t, gone.ID, line.TenantID)
		assert.Equal(t, "100.00", line.Amount.StringFixed(2))
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		bal, err := f.store.Balance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "100.00", bal.StringFixed(2))
	}
}

func TestAllocate_UnknownMethod(t *testing.T) {
	f := newUtilityFixture()
	_, err := f.svc.Allocate(context.Background(), f.org, uuid.New(), "by_sqft")
	assert.True(t, domain.IsValidation(err))
}

func TestAllocate_BillNotFound(t *testing.T) {
	f := newUtilityFixture()
	_, err := f.svc.AllocateEqual(context.Background(), f.org, uuid.New())
	assert.True(t, domain.IsNotFound(err))
}

func TestCalculatePropertyShares(t *testing.T) {
	f := newUtilityFixture()
	f.addBill("120.00")
	f.addBill("80.00")
	a := f.addTenant(day(2023, 1, 1), nil)
	b := f.addTenant(day(2023, 1, 1), nil)

	res, err := f.svc.CalculatePropertyShares(context.Background(), f.org, f.property, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Bills)
	assert.Equal(t, "200.00", res.Total.StringFixed(2))
	require.Len(t, res.Shares, 2)

	got := map[uuid.UUID]string{}
	for _, s := range res.Shares {
		got[s.TenantID] = s.Amount.StringFixed(2)
	}
	assert.Equal(t, "100.00", got[a.ID])
	assert.Equal(t, "100.00", got[b.ID])
}
