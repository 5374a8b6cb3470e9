package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
	PaymentStatusRejected  PaymentStatus = "REJECTED"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusRejected
}

type Payment struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Amount     decimal.Decimal
	Method     string
	PaidOn     time.Time
	Note       string
	Status     PaymentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// PaymentDescription renders the ledger description of a freshly recorded
// payment. It carries PendingMarker until the payment is confirmed.
func PaymentDescription(method, note string) string {
	desc := "Payment via " + method
	if note != "" {
		desc += ": " + note
	}
	return desc + " " + PendingMarker
}

// ConfirmedDescription strips the pending marker from a payment description.
func ConfirmedDescription(desc string) string {
	return strings.TrimSpace(strings.ReplaceAll(desc, PendingMarker, ""))
}

func ReversalDescription(method string) string {
	return fmt.Sprintf("Reversal: payment via %s rejected", method)
}
