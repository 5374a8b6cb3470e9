package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
)

type leaseService interface {
	Transition(ctx context.Context, orgID, leaseID uuid.UUID, target domain.LeaseStatus) (*domain.Lease, error)
}

type LeaseHandler struct {
	leases leaseService
}

func NewLeaseHandler(leases leaseService) *LeaseHandler {
	return &LeaseHandler{leases: leases}
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *LeaseHandler) Transition(w http.ResponseWriter, r *http.Request) {
	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	leaseID, appErr := idParam(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req transitionRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	if req.Status == "" {
		RespondValidationError(w, []FieldError{{Field: "status", Message: "required"}})
		return
	}

	l, err := h.leases.Transition(r.Context(), orgID, leaseID, domain.LeaseStatus(req.Status))
	if err != nil {
		logging.FromContext(r.Context()).Warn("lease transition failed", "error", err, "lease_id", leaseID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"id":          l.ID,
		"tenant_id":   l.TenantID,
		"status":      l.Status,
		"rent_amount": money(l.RentAmount),
	})
}
