package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

const dateLayout = "2006-01-02"

// money renders an amount with exactly two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(domain.Cents)
}

func optionalMoney(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

type ledgerEntryDTO struct {
	ID          uuid.UUID  `json:"id"`
	Seq         int64      `json:"seq"`
	Type        string     `json:"type"`
	Amount      string     `json:"amount"`
	Balance     string     `json:"balance"`
	Description string     `json:"description"`
	Period      string     `json:"period"`
	PaymentID   *uuid.UUID `json:"payment_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toLedgerEntryDTO(e *domain.LedgerEntry) *ledgerEntryDTO {
	if e == nil {
		return nil
	}
	return &ledgerEntryDTO{
		ID:          e.ID,
		Seq:         e.Seq,
		Type:        string(e.Type),
		Amount:      money(e.Amount),
		Balance:     money(e.Balance),
		Description: e.Description,
		Period:      e.Period,
		PaymentID:   e.PaymentID,
		CreatedAt:   e.CreatedAt,
	}
}

type paymentDTO struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	Amount     string     `json:"amount"`
	Method     string     `json:"method"`
	PaidOn     string     `json:"paid_on"`
	Note       string     `json:"note,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	return paymentDTO{
		ID:         p.ID,
		TenantID:   p.TenantID,
		Amount:     money(p.Amount),
		Method:     p.Method,
		PaidOn:     p.PaidOn.Format(dateLayout),
		Note:       p.Note,
		Status:     string(p.Status),
		CreatedAt:  p.CreatedAt,
		ResolvedAt: p.ResolvedAt,
	}
}

type shareDTO struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	DaysInPeriod int       `json:"days_in_period"`
	Weight       string    `json:"weight"`
	Share        string    `json:"share"`
}

func toShareDTOs(shares []domain.Share) []shareDTO {
	out := make([]shareDTO, len(shares))
	for i, s := range shares {
		out[i] = shareDTO{
			TenantID:     s.TenantID,
			DaysInPeriod: s.DaysInPeriod,
			Weight:       s.Weight.StringFixed(4),
			Share:        money(s.Amount),
		}
	}
	return out
}
