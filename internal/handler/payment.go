package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/service/payment"
)

type paymentService interface {
	CreatePayment(ctx context.Context, orgID uuid.UUID, req payment.CreateRequest) (*payment.Result, error)
	ConfirmPayment(ctx context.Context, orgID, id uuid.UUID) (*payment.ConfirmResult, error)
	RejectPayment(ctx context.Context, orgID, id uuid.UUID) (*payment.Result, error)
	GetPayment(ctx context.Context, orgID, id uuid.UUID) (*domain.Payment, error)
	ListPayments(ctx context.Context, orgID, tenantID uuid.UUID) ([]domain.Payment, error)
}

type PaymentHandler struct {
	payments paymentService
	loc      *time.Location
}

func NewPaymentHandler(payments paymentService, loc *time.Location) *PaymentHandler {
	return &PaymentHandler{payments: payments, loc: loc}
}

type createPaymentRequest struct {
	TenantID string `json:"tenant_id"`
	Amount   string `json:"amount"`
	Method   string `json:"method"`
	PaidOn   string `json:"paid_on"`
	Note     string `json:"note"`
}

func (r createPaymentRequest) Validate(loc *time.Location) (payment.CreateRequest, []FieldError) {
	var (
		errs []FieldError
		out  = payment.CreateRequest{Method: r.Method, Note: r.Note}
		err  error
	)

	if out.TenantID, err = uuid.Parse(r.TenantID); err != nil {
		errs = append(errs, FieldError{Field: "tenant_id", Message: "must be a UUID"})
	}

	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if out.Amount, err = decimal.NewFromString(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a decimal number"})
	} else if !out.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	} else if out.Amount.Exponent() < -domain.Cents {
		errs = append(errs, FieldError{Field: "amount", Message: "must have at most 2 decimal places"})
	}

	if strings.TrimSpace(r.Method) == "" {
		errs = append(errs, FieldError{Field: "method", Message: "required"})
	}

	if r.PaidOn != "" {
		if out.PaidOn, err = time.ParseInLocation(dateLayout, r.PaidOn, loc); err != nil {
			errs = append(errs, FieldError{Field: "paid_on", Message: "must be formatted as YYYY-MM-DD"})
		}
	}

	return out, errs
}

type paymentResultDTO struct {
	Payment         paymentDTO      `json:"payment"`
	Entry           *ledgerEntryDTO `json:"entry,omitempty"`
	NoticesResolved *int64          `json:"notices_resolved,omitempty"`
}

// Create handles POST /payments. The Idempotency-Key middleware guards
// replays at the HTTP layer.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req createPaymentRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	in, fields := req.Validate(h.loc)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	res, err := h.payments.CreatePayment(r.Context(), orgID, in)
	if err != nil {
		log.Warn("payment creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/payments/%s", res.Payment.ID))
	RespondSuccess(w, http.StatusCreated, paymentResultDTO{
		Payment: toPaymentDTO(res.Payment),
		Entry:   toLedgerEntryDTO(res.Entry),
	})
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	paymentID, appErr := idParam(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	p, err := h.payments.GetPayment(r.Context(), orgID, paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	paymentID, appErr := idParam(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	res, err := h.payments.ConfirmPayment(r.Context(), orgID, paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment confirmation failed", "error", err, "payment_id", paymentID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, paymentResultDTO{
		Payment:         toPaymentDTO(res.Payment),
		Entry:           toLedgerEntryDTO(res.Entry),
		NoticesResolved: &res.NoticesResolved,
	})
}

func (h *PaymentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	paymentID, appErr := idParam(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	res, err := h.payments.RejectPayment(r.Context(), orgID, paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment rejection failed", "error", err, "payment_id", paymentID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, paymentResultDTO{
		Payment: toPaymentDTO(res.Payment),
		Entry:   toLedgerEntryDTO(res.Entry),
	})
}

// ListForTenant handles GET /tenants/{id}/payments.
func (h *PaymentHandler) ListForTenant(w http.ResponseWriter, r *http.Request) {
	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	tenantID, appErr := idParam(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	payments, err := h.payments.ListPayments(r.Context(), orgID, tenantID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	out := make([]paymentDTO, len(payments))
	for i := range payments {
		out[i] = toPaymentDTO(&payments[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}
