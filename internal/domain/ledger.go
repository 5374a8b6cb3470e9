package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryTypeRent      EntryType = "RENT"
	EntryTypePayment   EntryType = "PAYMENT"
	EntryTypeLateFee   EntryType = "LATE_FEE"
	EntryTypeCredit    EntryType = "CREDIT"
	EntryTypeDeduction EntryType = "DEDUCTION"
	EntryTypeUtility   EntryType = "UTILITY"
)

func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeRent, EntryTypePayment, EntryTypeLateFee,
		EntryTypeCredit, EntryTypeDeduction, EntryTypeUtility:
		return true
	}
	return false
}

// IsCharge reports whether entries of this type increase what the tenant owes.
func (t EntryType) IsCharge() bool {
	switch t {
	case EntryTypeRent, EntryTypeLateFee, EntryTypeDeduction, EntryTypeUtility:
		return true
	}
	return false
}

// PendingMarker tags the description of a PAYMENT entry until an operator
// confirms the payment.
const PendingMarker = "[Pending]"

type LedgerEntry struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Seq            int64
	Type           EntryType
	Amount         decimal.Decimal
	Description    string
	Period         string
	Balance        decimal.Decimal
	IdempotencyKey *string
	PaymentID      *uuid.UUID
	CreatedAt      time.Time
}

// LedgerHead mirrors the latest entry of a tenant's ledger. Locking it is what
// serializes appends for that tenant.
type LedgerHead struct {
	TenantID uuid.UUID
	Seq      int64
	Balance  decimal.Decimal
}

// Posting is a request to append one entry to a tenant's ledger.
type Posting struct {
	TenantID       uuid.UUID
	Type           EntryType
	Amount         decimal.Decimal
	Description    string
	Period         string
	IdempotencyKey string
	PaymentID      *uuid.UUID
}

// Validate enforces the sign convention: charges are positive, payments are
// negative, credits may go either way (a payment reversal is a positive credit).
func (p Posting) Validate() error {
	if p.TenantID == uuid.Nil {
		return fmt.Errorf("tenant id required: %w", ErrInvalidRequest)
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("%q: %w", p.Type, ErrInvalidEntryType)
	}
	if p.Amount.IsZero() {
		return fmt.Errorf("zero amount: %w", ErrInvalidAmount)
	}
	if p.Type.IsCharge() && p.Amount.IsNegative() {
		return fmt.Errorf("%s must be positive: %w", p.Type, ErrInvalidAmount)
	}
	if p.Type == EntryTypePayment && p.Amount.IsPositive() {
		return fmt.Errorf("%s must be negative: %w", p.Type, ErrInvalidAmount)
	}
	if !IsPeriod(p.Period) {
		return fmt.Errorf("%q: %w", p.Period, ErrInvalidPeriod)
	}
	return nil
}

// IsPeriod is a cheap structural check for "YYYY-MM". Calendar parsing lives in
// the period package; this avoids an import cycle.
func IsPeriod(s string) bool {
	if len(s) != 7 || s[4] != '-' {
		return false
	}
	for i, c := range s {
		if i == 4 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	month := int(s[5]-'0')*10 + int(s[6]-'0')
	return month >= 1 && month <= 12
}

func RentKey(tenantID uuid.UUID, period string) string {
	return fmt.Sprintf("rent:%s:%s", tenantID, period)
}

func ProrationKey(tenantID uuid.UUID, period string) string {
	return fmt.Sprintf("rent:%s:%s:prorated", tenantID, period)
}

func LateFeeKey(tenantID uuid.UUID, period string) string {
	return fmt.Sprintf("late_fee:%s:%s", tenantID, period)
}

func PaymentKey(paymentID uuid.UUID) string {
	return fmt.Sprintf("payment:%s", paymentID)
}

func PaymentReversalKey(paymentID uuid.UUID) string {
	return fmt.Sprintf("payment:%s:reversal", paymentID)
}

func UtilityKey(billID, tenantID uuid.UUID) string {
	return fmt.Sprintf("utility:%s:%s", billID, tenantID)
}
