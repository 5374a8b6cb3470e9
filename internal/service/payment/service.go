// Package payment records tenant payments and settles them. A payment hits
// the ledger as soon as it is recorded; confirmation only clears its pending
// marker and rejection posts a reversing credit.
package payment

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/period"
	"github.com/josh-kwaku/rentledger/internal/service/notice"
)

type paymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Payment, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, orgID, id uuid.UUID) (*domain.Payment, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.Payment, error)
	Resolve(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.PaymentStatus, at time.Time) error
}

type tenantRepo interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Tenant, error)
}

type ledgerStore interface {
	Append(ctx context.Context, tx *sql.Tx, p domain.Posting) (*domain.LedgerEntry, bool, error)
	ConfirmPaymentEntry(ctx context.Context, tx *sql.Tx, payment *domain.Payment) (*domain.LedgerEntry, error)
}

type noticeResolver interface {
	ResolveNoticesIfPaid(ctx context.Context, tenantID uuid.UUID, period string) (*notice.Result, error)
}

type transactor interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Service struct {
	payments paymentRepo
	tenants  tenantRepo
	ledger   ledgerStore
	notices  noticeResolver
	db       transactor
	loc      *time.Location
	now      func() time.Time
}

func NewService(
	payments paymentRepo,
	tenants tenantRepo,
	ledger ledgerStore,
	notices noticeResolver,
	db transactor,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		payments: payments,
		tenants:  tenants,
		ledger:   ledger,
		notices:  notices,
		db:       db,
		loc:      loc,
		now:      time.Now,
	}
}

type CreateRequest struct {
	TenantID uuid.UUID
	Amount   decimal.Decimal
	Method   string
	PaidOn   time.Time
	Note     string
}

type Result struct {
	Payment *domain.Payment     `json:"payment"`
	Entry   *domain.LedgerEntry `json:"entry,omitempty"`
}

type ConfirmResult struct {
	Result
	NoticesResolved int64 `json:"notices_resolved"`
}

func validateCreate(req CreateRequest) error {
	if req.TenantID == uuid.Nil {
		return fmt.Errorf("validateCreate: tenant id: %w", domain.ErrInvalidRequest)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("validateCreate: %w", domain.ErrInvalidAmount)
	}
	if strings.TrimSpace(req.Method) == "" {
		return fmt.Errorf("validateCreate: method required: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// CreatePayment stores a PENDING payment and its negative PAYMENT entry in one
// transaction.
func (s *Service) CreatePayment(ctx context.Context, orgID uuid.UUID, req CreateRequest) (*Result, error) {
	if err := validateCreate(req); err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}
	if _, err := s.tenants.GetByID(ctx, orgID, req.TenantID); err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}

	now := s.now().UTC()
	paidOn := req.PaidOn
	if paidOn.IsZero() {
		paidOn = now.In(s.loc)
	}
	method := strings.TrimSpace(req.Method)
	note := strings.TrimSpace(req.Note)

	p := &domain.Payment{
		ID:        uuid.New(),
		TenantID:  req.TenantID,
		Amount:    domain.Round2(req.Amount),
		Method:    method,
		PaidOn:    paidOn,
		Note:      note,
		Status:    domain.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var entry *domain.LedgerEntry
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.payments.Create(ctx, tx, p); err != nil {
			return err
		}
		var err error
		entry, _, err = s.ledger.Append(ctx, tx, domain.Posting{
			TenantID:       p.TenantID,
			Type:           domain.EntryTypePayment,
			Amount:         p.Amount.Neg(),
			Description:    domain.PaymentDescription(method, note),
			Period:         period.Format(paidOn),
			IdempotencyKey: domain.PaymentKey(p.ID),
			PaymentID:      &p.ID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}

	logging.FromContext(ctx).Info("payment recorded",
		"payment_id", p.ID,
		"tenant_id", p.TenantID,
		"amount", p.Amount.StringFixed(domain.Cents),
		"method", p.Method,
	)
	return &Result{Payment: p, Entry: entry}, nil
}

// ConfirmPayment marks a PENDING payment CONFIRMED, clears the pending marker
// on its ledger entry and then tries to resolve notices for the payment's
// period. Notice failures are logged and do not undo the confirmation.
func (s *Service) ConfirmPayment(ctx context.Context, orgID, id uuid.UUID) (*ConfirmResult, error) {
	var (
		p     *domain.Payment
		entry *domain.LedgerEntry
	)
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = s.lockPending(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		at := s.now().UTC()
		if err := s.payments.Resolve(ctx, tx, p.ID, domain.PaymentStatusConfirmed, at); err != nil {
			return err
		}
		p.Status, p.UpdatedAt, p.ResolvedAt = domain.PaymentStatusConfirmed, at, &at

		entry, err = s.ledger.ConfirmPaymentEntry(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ConfirmPayment: %w", err)
	}

	log := logging.FromContext(ctx).With("payment_id", p.ID, "tenant_id", p.TenantID)
	log.Info("payment confirmed")

	res := &ConfirmResult{Result: Result{Payment: p, Entry: entry}}
	if s.notices != nil {
		resolved, err := s.notices.ResolveNoticesIfPaid(ctx, p.TenantID, period.Format(p.PaidOn))
		if err != nil {
			log.Error("notice resolution after payment failed", "error", err)
		} else {
			res.NoticesResolved = resolved.Resolved
		}
	}
	return res, nil
}

// RejectPayment marks a PENDING payment REJECTED and posts a positive CREDIT
// that cancels its PAYMENT entry. The original entry stays untouched.
func (s *Service) RejectPayment(ctx context.Context, orgID, id uuid.UUID) (*Result, error) {
	var (
		p        *domain.Payment
		reversal *domain.LedgerEntry
	)
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = s.lockPending(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		at := s.now().UTC()
		if err := s.payments.Resolve(ctx, tx, p.ID, domain.PaymentStatusRejected, at); err != nil {
			return err
		}
		p.Status, p.UpdatedAt, p.ResolvedAt = domain.PaymentStatusRejected, at, &at

		reversal, _, err = s.ledger.Append(ctx, tx, domain.Posting{
			TenantID:       p.TenantID,
			Type:           domain.EntryTypeCredit,
			Amount:         p.Amount,
			Description:    domain.ReversalDescription(p.Method),
			Period:         period.Format(p.PaidOn),
			IdempotencyKey: domain.PaymentReversalKey(p.ID),
			PaymentID:      &p.ID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("RejectPayment: %w", err)
	}

	logging.FromContext(ctx).Info("payment rejected",
		"payment_id", p.ID,
		"tenant_id", p.TenantID,
		"amount", p.Amount.StringFixed(domain.Cents),
	)
	return &Result{Payment: p, Entry: reversal}, nil
}

func (s *Service) lockPending(ctx context.Context, tx *sql.Tx, orgID, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetForUpdate(ctx, tx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("lockPending: %w", err)
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, fmt.Errorf("lockPending: payment is %s: %w", p.Status, domain.ErrPaymentNotPending)
	}
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, orgID, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("GetPayment: %w", err)
	}
	return p, nil
}

func (s *Service) ListPayments(ctx context.Context, orgID, tenantID uuid.UUID) ([]domain.Payment, error) {
	if _, err := s.tenants.GetByID(ctx, orgID, tenantID); err != nil {
		return nil, fmt.Errorf("ListPayments: %w", err)
	}
	payments, err := s.payments.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ListPayments: %w", err)
	}
	return payments, nil
}
