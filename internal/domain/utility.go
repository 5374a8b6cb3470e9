package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UtilityType string

const (
	UtilityElectric UtilityType = "ELECTRIC"
	UtilityGas      UtilityType = "GAS"
	UtilityWater    UtilityType = "WATER"
	UtilitySewer    UtilityType = "SEWER"
	UtilityTrash    UtilityType = "TRASH"
	UtilityInternet UtilityType = "INTERNET"
	UtilityOther    UtilityType = "OTHER"
)

type UtilityBill struct {
	ID            uuid.UUID
	PropertyID    uuid.UUID
	Provider      string
	Type          UtilityType
	AccountNumber string
	Amount        decimal.Decimal
	BillingStart  time.Time
	BillingEnd    time.Time
	Period        string
	DueDate       *time.Time
	Allocated     bool
	AllocatedAt   *time.Time
	CreatedAt     time.Time
}

type AllocationMethod string

const (
	AllocationEqual    AllocationMethod = "equal"
	AllocationWeighted AllocationMethod = "weighted"
)

// Share is one tenant's portion of a utility amount.
type Share struct {
	TenantID     uuid.UUID       `json:"tenant_id"`
	DaysInPeriod int             `json:"days_in_period"`
	Weight       decimal.Decimal `json:"weight"`
	Amount       decimal.Decimal `json:"share"`
}
