package domain

import (
	"time"

	"github.com/google/uuid"
)

type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "ACTIVE"
	TenantStatusInactive TenantStatus = "INACTIVE"
)

type UnitStatus string

const (
	UnitStatusVacant   UnitStatus = "VACANT"
	UnitStatusOccupied UnitStatus = "OCCUPIED"
)

type Property struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Address        string
	CreatedAt      time.Time
}

type Unit struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	Name       string
	Status     UnitStatus
}

type Tenant struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	UnitID         uuid.UUID
	Name           string
	Email          string
	Status         TenantStatus
	MoveInDate     time.Time
	MoveOutDate    *time.Time
	CreatedAt      time.Time
}

// Occupancy is the date range a tenant lived in a unit. A nil MoveOut means
// the tenant is still there.
type Occupancy struct {
	TenantID uuid.UUID
	MoveIn   time.Time
	MoveOut  *time.Time
}

func (t Tenant) Occupancy() Occupancy {
	return Occupancy{TenantID: t.ID, MoveIn: t.MoveInDate, MoveOut: t.MoveOutDate}
}
