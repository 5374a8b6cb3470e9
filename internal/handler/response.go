package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps an error from the service layer onto the HTTP
// envelope. Specific conflicts are matched before their family.
func RespondDomainError(w http.ResponseWriter, err error) {
	var (
		appErr  *AppError
		details any
	)

	var transition *domain.TransitionError
	switch {
	case errors.Is(err, domain.ErrBillAlreadyAllocated):
		appErr = ErrBillAlreadyAllocated
	case errors.Is(err, domain.ErrPaymentNotPending):
		appErr = ErrPaymentNotPending
	case errors.Is(err, domain.ErrVersionConflict):
		appErr = ErrVersionConflict
	case errors.As(err, &transition):
		appErr = ErrStateConflict
		details = map[string]string{"from": transition.From, "to": transition.To}
	case domain.IsStateConflict(err):
		appErr = ErrStateConflict
	case domain.IsNotFound(err):
		appErr = ErrResourceNotFound
	case domain.IsValidation(err):
		appErr = ErrValidationFailed
		details = map[string]string{"reason": validationMessage(err)}
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, details)
}

// validationMessage returns the message of the most specific validation
// error in the chain instead of the wrapped call path.
func validationMessage(err error) string {
	for _, e := range []error{
		domain.ErrInvalidAmount,
		domain.ErrInvalidPeriod,
		domain.ErrNoRentConfigured,
		domain.ErrNoActiveTenants,
		domain.ErrInvalidEntryType,
		domain.ErrInvalidPolicy,
		domain.ErrInvalidRequest,
	} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return domain.ErrValidation.Error()
}
