package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/period"
	"github.com/josh-kwaku/rentledger/internal/service/billing"
)

type billingService interface {
	GenerateRentCharges(ctx context.Context, orgID uuid.UUID, billingPeriod string) (*billing.RentRun, error)
	ApplyLateFees(ctx context.Context, orgID uuid.UUID, billingPeriod string, now time.Time) (*billing.LateFeeRun, error)
	GenerateProration(ctx context.Context, orgID, tenantID uuid.UUID, moveIn time.Time) (*billing.ProrationResult, error)
}

type BillingHandler struct {
	billing billingService
	loc     *time.Location
	now     func() time.Time
}

func NewBillingHandler(billing billingService, loc *time.Location) *BillingHandler {
	return &BillingHandler{billing: billing, loc: loc, now: time.Now}
}

type periodRequest struct {
	Period string `json:"period"`
}

type rentResultDTO struct {
	TenantID uuid.UUID  `json:"tenant_id"`
	LeaseID  uuid.UUID  `json:"lease_id"`
	Outcome  string     `json:"outcome"`
	Reason   string     `json:"reason,omitempty"`
	Amount   *string    `json:"amount,omitempty"`
	EntryID  *uuid.UUID `json:"entry_id,omitempty"`
}

type rentRunDTO struct {
	Period  string          `json:"period"`
	Charged int             `json:"charged"`
	Skipped int             `json:"skipped"`
	Failed  int             `json:"failed"`
	Results []rentResultDTO `json:"results"`
}

func toRentRunDTO(run *billing.RentRun) rentRunDTO {
	dto := rentRunDTO{
		Period:  run.Period,
		Charged: run.Charged,
		Skipped: run.Skipped,
		Failed:  run.Failed,
		Results: make([]rentResultDTO, len(run.Results)),
	}
	for i, r := range run.Results {
		dto.Results[i] = rentResultDTO{
			TenantID: r.TenantID,
			LeaseID:  r.LeaseID,
			Outcome:  string(r.Outcome),
			Reason:   r.Reason,
			Amount:   optionalMoney(r.Amount),
			EntryID:  r.EntryID,
		}
	}
	return dto
}

type lateFeeResultDTO struct {
	TenantID uuid.UUID  `json:"tenant_id"`
	LeaseID  uuid.UUID  `json:"lease_id"`
	Outcome  string     `json:"outcome"`
	Reason   string     `json:"reason,omitempty"`
	Deadline string     `json:"deadline,omitempty"`
	Amount   *string    `json:"amount,omitempty"`
	EntryID  *uuid.UUID `json:"entry_id,omitempty"`
}

type lateFeeRunDTO struct {
	Period  string             `json:"period"`
	Applied int                `json:"applied"`
	Skipped int                `json:"skipped"`
	Failed  int                `json:"failed"`
	Results []lateFeeResultDTO `json:"results"`
}

func toLateFeeRunDTO(run *billing.LateFeeRun) lateFeeRunDTO {
	dto := lateFeeRunDTO{
		Period:  run.Period,
		Applied: run.Applied,
		Skipped: run.Skipped,
		Failed:  run.Failed,
		Results: make([]lateFeeResultDTO, len(run.Results)),
	}
	for i, r := range run.Results {
		dto.Results[i] = lateFeeResultDTO{
			TenantID: r.TenantID,
			LeaseID:  r.LeaseID,
			Outcome:  string(r.Outcome),
			Reason:   r.Reason,
			Deadline: r.Deadline,
			Amount:   optionalMoney(r.Amount),
			EntryID:  r.EntryID,
		}
	}
	return dto
}

// GenerateRentCharges handles POST /billing/rent-charges. The period defaults
// to the current month in the billing timezone.
func (h *BillingHandler) GenerateRentCharges(w http.ResponseWriter, r *http.Request) {
	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req periodRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	p, err := period.Resolve(req.Period, h.now(), h.loc)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	run, err := h.billing.GenerateRentCharges(r.Context(), orgID, p)
	if err != nil {
		logging.FromContext(r.Context()).Warn("rent generation failed", "error", err, "period", p)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toRentRunDTO(run))
}

func (h *BillingHandler) ApplyLateFees(w http.ResponseWriter, r *http.Request) {
	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req periodRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	now := h.now()
	p, err := period.Resolve(req.Period, now, h.loc)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	run, err := h.billing.ApplyLateFees(r.Context(), orgID, p, now)
	if err != nil {
		logging.FromContext(r.Context()).Warn("late fee run failed", "error", err, "period", p)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLateFeeRunDTO(run))
}

type prorationRequest struct {
	MoveInDate string `json:"move_in_date"`
}

type prorationDTO struct {
	Created        bool            `json:"created"`
	Entry          *ledgerEntryDTO `json:"entry"`
	MonthlyRent    string          `json:"monthly_rent"`
	DaysInMonth    int             `json:"days_in_month"`
	RemainingDays  int             `json:"remaining_days"`
	DailyRate      string          `json:"daily_rate"`
	ProratedAmount string          `json:"prorated_amount"`
	Period         string          `json:"period"`
}

func (h *BillingHandler) GenerateProration(w http.ResponseWriter, r *http.Request) {
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

	var req prorationRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	moveIn, err := time.ParseInLocation(dateLayout, req.MoveInDate, h.loc)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "move_in_date", Message: "must be formatted as YYYY-MM-DD"}})
		return
	}

	res, err := h.billing.GenerateProration(r.Context(), orgID, tenantID, moveIn)
	if err != nil {
		logging.FromContext(r.Context()).Warn("proration failed", "error", err, "tenant_id", tenantID)
		RespondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	calc := res.Calculation
	RespondSuccess(w, status, prorationDTO{
		Created:        res.Created,
		Entry:          toLedgerEntryDTO(res.Entry),
		MonthlyRent:    money(calc.MonthlyRent),
		DaysInMonth:    calc.DaysInMonth,
		RemainingDays:  calc.RemainingDays,
		DailyRate:      money(calc.DailyRate),
		ProratedAmount: money(calc.ProratedAmount),
		Period:         calc.Period,
	})
}
