package testutil

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func SeedProperty(t *testing.T, db *sql.DB, orgID uuid.UUID, name string) *domain.Property {
	t.Helper()

	p := &domain.Property{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		Address:        "1 Main St",
		CreatedAt:      time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO properties (id, organization_id, name, address, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.OrganizationID, p.Name, p.Address, p.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed property %s: %v", name, err)
	}
	return p
}

func SeedUnit(t *testing.T, db *sql.DB, propertyID uuid.UUID, name string, status domain.UnitStatus) *domain.Unit {
	t.Helper()

	u := &domain.Unit{ID: uuid.New(), PropertyID: propertyID, Name: name, Status: status}
	_, err := db.Exec(
		`INSERT INTO units (id, property_id, name, status) VALUES ($1, $2, $3, $4)`,
		u.ID, u.PropertyID, u.Name, u.Status,
	)
	if err != nil {
		t.Fatalf("seed unit %s: %v", name, err)
	}
	return u
}

func SeedTenant(t *testing.T, db *sql.DB, orgID, unitID uuid.UUID, name string, moveIn time.Time, moveOut *time.Time) *domain.Tenant {
	t.Helper()

	tn := &domain.Tenant{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UnitID:         unitID,
		Name:           name,
		Email:          name + "@example.com",
		Status:         domain.TenantStatusActive,
		MoveInDate:     moveIn,
		MoveOutDate:    moveOut,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO tenants (id, organization_id, unit_id, name, email, status, move_in_date, move_out_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tn.ID, tn.OrganizationID, tn.UnitID, tn.Name, tn.Email, tn.Status,
		tn.MoveInDate, tn.MoveOutDate, tn.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed tenant %s: %v", name, err)
	}
	return tn
}

// Clause is a lease clause to seed. Metadata is marshalled to JSON.
type Clause struct {
	Type     domain.ClauseType
	Metadata map[string]any
}

func SeedLease(t *testing.T, db *sql.DB, tenant *domain.Tenant, status domain.LeaseStatus, rent string, clauses ...Clause) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO leases (id, tenant_id, unit_id, status, rent_amount, start_date)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, tenant.ID, tenant.UnitID, status, decimal.RequireFromString(rent), tenant.MoveInDate,
	)
	if err != nil {
		t.Fatalf("seed lease for %s: %v", tenant.Name, err)
	}

	for i, c := range clauses {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			t.Fatalf("marshal clause metadata: %v", err)
		}
		_, err = db.Exec(
			`INSERT INTO lease_clauses (id, lease_id, position, type, metadata)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), id, i, c.Type, meta,
		)
		if err != nil {
			t.Fatalf("seed %s clause: %v", c.Type, err)
		}
	}
	return id
}

func SeedUtilityBill(t *testing.T, db *sql.DB, propertyID uuid.UUID, amount string, start, end time.Time) *domain.UtilityBill {
	t.Helper()

	b := &domain.UtilityBill{
		ID:           uuid.New(),
		PropertyID:   propertyID,
		Provider:     "Duke Energy",
		Type:         domain.UtilityElectric,
		Amount:       decimal.RequireFromString(amount),
		BillingStart: start,
		BillingEnd:   end,
		Period:       start.Format("2006-01"),
		CreatedAt:    time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO utility_bills (id, property_id, provider, type, amount, billing_start, billing_end, period, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.PropertyID, b.Provider, b.Type, b.Amount, b.BillingStart, b.BillingEnd, b.Period, b.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed utility bill: %v", err)
	}
	return b
}

func SeedNotice(t *testing.T, db *sql.DB, tenantID uuid.UUID, typ domain.NoticeType, status domain.NoticeStatus, createdAt time.Time) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO notices (id, tenant_id, type, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		id, tenantID, typ, status, createdAt,
	)
	if err != nil {
		t.Fatalf("seed notice: %v", err)
	}
	return id
}

func NoticeStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.NoticeStatus {
	t.Helper()

	var s domain.NoticeStatus
	if err := db.QueryRow(`SELECT status FROM notices WHERE id = $1`, id).Scan(&s); err != nil {
		t.Fatalf("get notice status %s: %v", id, err)
	}
	return s
}

func CountLedgerEntries(t *testing.T, db *sql.DB, tenantID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE tenant_id = $1`, tenantID).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for tenant %s: %v", tenantID, err)
	}
	return count
}
