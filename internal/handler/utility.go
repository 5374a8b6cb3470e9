package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/period"
	"github.com/josh-kwaku/rentledger/internal/service/utility"
)

type utilityService interface {
	Allocate(ctx context.Context, orgID, billID uuid.UUID, method domain.AllocationMethod) (*utility.Allocation, error)
	CalculatePropertyShares(ctx context.Context, orgID, propertyID uuid.UUID, p string) (*utility.PropertyShares, error)
}

type allocationQueue interface {
	EnqueueAllocation(ctx context.Context, orgID, billID uuid.UUID, method domain.AllocationMethod) (string, error)
}

type UtilityHandler struct {
	utilities utilityService
	queue     allocationQueue
	loc       *time.Location
	now       func() time.Time
}

func NewUtilityHandler(utilities utilityService, loc *time.Location) *UtilityHandler {
	return &UtilityHandler{utilities: utilities, loc: loc, now: time.Now}
}

// WithQueue enables {"async": true} allocation requests.
func (h *UtilityHandler) WithQueue(q allocationQueue) *UtilityHandler {
	h.queue = q
	return h
}

type allocateRequest struct {
	Method string `json:"method"`
	Async  bool   `json:"async"`
}

type allocationLineDTO struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Amount   string    `json:"amount"`
	Days     int       `json:"days_in_period,omitempty"`
	EntryID  uuid.UUID `json:"entry_id"`
}

type allocationDTO struct {
	BillID      uuid.UUID           `json:"bill_id"`
	Method      string              `json:"method"`
	Total       string              `json:"total"`
	Allocations []allocationLineDTO `json:"allocations"`
}

// Allocate handles POST /utility-bills/{id}/allocate. The method defaults to
// an equal split.
func (h *UtilityHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	billID, appErr := idParam(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req allocateRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	method := domain.AllocationMethod(req.Method)
	if method == "" {
		method = domain.AllocationEqual
	}
	if method != domain.AllocationEqual && method != domain.AllocationWeighted {
		RespondValidationError(w, []FieldError{{Field: "method", Message: "must be equal or weighted"}})
		return
	}

	if req.Async {
		h.enqueue(w, r, orgID, billID, method)
		return
	}

	alloc, err := h.utilities.Allocate(r.Context(), orgID, billID, method)
	if err != nil {
		logging.FromContext(r.Context()).Warn("utility allocation failed", "error", err, "bill_id", billID)
		RespondDomainError(w, err)
		return
	}

	dto := allocationDTO{
		BillID:      alloc.BillID,
		Method:      string(alloc.Method),
		Total:       money(alloc.Total),
		Allocations: make([]allocationLineDTO, len(alloc.Allocations)),
	}
	for i, l := range alloc.Allocations {
		dto.Allocations[i] = allocationLineDTO{TenantID: l.TenantID, Amount: money(l.Amount), Days: l.Days, EntryID: l.EntryID}
	}
	RespondSuccess(w, http.StatusOK, dto)
}

func (h *UtilityHandler) enqueue(w http.ResponseWriter, r *http.Request, orgID, billID uuid.UUID, method domain.AllocationMethod) {
	if h.queue == nil {
		RespondValidationError(w, []FieldError{{Field: "async", Message: "background allocation is not enabled"}})
		return
	}
	taskID, err := h.queue.EnqueueAllocation(r.Context(), orgID, billID, method)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to enqueue allocation", "error", err, "bill_id", billID)
		RespondAppError(w, ErrInternalError, nil)
		return
	}
	RespondSuccess(w, http.StatusAccepted, map[string]any{
		"bill_id": billID,
		"method":  method,
		"task_id": taskID,
	})
}

// PropertyShares handles GET /properties/{id}/utility-shares?period=YYYY-MM.
func (h *UtilityHandler) PropertyShares(w http.ResponseWriter, r *http.Request) {
	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	propertyID, appErr := idParam(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	p, err := period.Resolve(r.URL.Query().Get("period"), h.now(), h.loc)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	res, err := h.utilities.CalculatePropertyShares(r.Context(), orgID, propertyID, p)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"property_id": res.PropertyID,
		"period":      res.Period,
		"bills":       res.Bills,
		"total":       money(res.Total),
		"shares":      toShareDTOs(res.Shares),
	})
}
