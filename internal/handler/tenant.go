package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/export"
	"github.com/josh-kwaku/rentledger/internal/ledger"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/period"
	"github.com/josh-kwaku/rentledger/internal/service/notice"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type tenantLookup interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Tenant, error)
}

type ledgerReader interface {
	Entries(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
	AllEntries(ctx context.Context, tenantID uuid.UUID) ([]domain.LedgerEntry, error)
	Balance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error)
	VerifyChain(ctx context.Context, tenantID uuid.UUID) (ledger.ChainReport, error)
}

type noticeService interface {
	ResolveForTenant(ctx context.Context, orgID, tenantID uuid.UUID, p string) (*notice.Result, error)
}

type TenantHandler struct {
	tenants tenantLookup
	ledger  ledgerReader
	notices noticeService
	loc     *time.Location
	now     func() time.Time
}

func NewTenantHandler(tenants tenantLookup, ledger ledgerReader, notices noticeService, loc *time.Location) *TenantHandler {
	return &TenantHandler{tenants: tenants, ledger: ledger, notices: notices, loc: loc, now: time.Now}
}

// tenant resolves the {id} path parameter to a tenant of the caller's
// organization.
func (h *TenantHandler) tenant(w http.ResponseWriter, r *http.Request) (*domain.Tenant, bool) {
	orgID, appErr := orgFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return nil, false
	}
	tenantID, appErr := idParam(r, "id")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return nil, false
	}
	t, err := h.tenants.GetByID(r.Context(), orgID, tenantID)
	if err != nil {
		RespondDomainError(w, err)
		return nil, false
	}
	return t, true
}

type ledgerPageDTO struct {
	TenantID uuid.UUID        `json:"tenant_id"`
	Balance  string           `json:"balance"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
	Entries  []ledgerEntryDTO `json:"entries"`
}

func pageParams(r *http.Request) (int, int, []FieldError) {
	var errs []FieldError
	limit, offset := defaultPageSize, 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			errs = append(errs, FieldError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxPageSize)})
		} else {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, FieldError{Field: "offset", Message: "must be a non-negative integer"})
		} else {
			offset = n
		}
	}
	return limit, offset, errs
}

// Ledger handles GET /tenants/{id}/ledger.
func (h *TenantHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	limit, offset, fields := pageParams(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}
	t, ok := h.tenant(w, r)
	if !ok {
		return
	}

	entries, total, err := h.ledger.Entries(r.Context(), t.ID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("ledger listing failed", "error", err, "tenant_id", t.ID)
		RespondDomainError(w, err)
		return
	}
	balance, err := h.ledger.Balance(r.Context(), t.ID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	page := ledgerPageDTO{
		TenantID: t.ID,
		Balance:  money(balance),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		Entries:  make([]ledgerEntryDTO, len(entries)),
	}
	for i := range entries {
		page.Entries[i] = *toLedgerEntryDTO(&entries[i])
	}
	RespondSuccess(w, http.StatusOK, page)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export handles GET /tenants/{id}/ledger/export and streams an XLSX statement.
func (h *TenantHandler) Export(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenant(w, r)
	if !ok {
		return
	}
	log := logging.FromContext(r.Context()).With("tenant_id", t.ID)

	entries, err := h.ledger.AllEntries(r.Context(), t.ID)
	if err != nil {
		log.Error("statement export failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	report := ledger.Verify(t.ID, entries)

	st := export.Statement{
		TenantID:    t.ID,
		TenantName:  t.Name,
		Entries:     entries,
		Balance:     report.Balance,
		ChainValid:  report.Valid,
		GeneratedAt: h.now(),
	}
	body, err := export.BuildLedgerStatementXLSX(st)
	if err != nil {
		log.Error("statement export failed", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", st.Filename()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error("failed to write statement", "error", err)
	}
}

// Verify handles GET /tenants/{id}/ledger/verify.
func (h *TenantHandler) Verify(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenant(w, r)
	if !ok {
		return
	}

	report, err := h.ledger.VerifyChain(r.Context(), t.ID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if !report.Valid {
		logging.FromContext(r.Context()).Error("ledger balance chain broken",
			"tenant_id", t.ID,
			"broken_at_seq", *report.BrokenAt,
		)
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"tenant_id":        report.TenantID,
		"entries":          report.Entries,
		"balance":          money(report.Balance),
		"valid":            report.Valid,
		"broken_at_seq":    report.BrokenAt,
		"expected_balance": report.Expected,
		"actual_balance":   report.Actual,
	})
}

type resolveNoticesRequest struct {
	Period string `json:"period"`
}

// ResolveNotices handles POST /tenants/{id}/notices/resolve.
func (h *TenantHandler) ResolveNotices(w http.ResponseWriter, r *http.Request) {
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

	var req resolveNoticesRequest
	if appErr := decodeBody(r, &req); appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	p, err := period.Resolve(req.Period, h.now(), h.loc)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	res, err := h.notices.ResolveForTenant(r.Context(), orgID, tenantID, p)
	if err != nil {
		logging.FromContext(r.Context()).Warn("notice resolution failed", "error", err, "tenant_id", tenantID)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"tenant_id": res.TenantID,
		"period":    res.Period,
		"due":       money(res.Due),
		"paid":      money(res.Paid),
		"resolved":  res.Resolved,
	})
}
