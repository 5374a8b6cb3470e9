// Package lease drives lease status changes through the allowed transitions.
package lease

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
)

type leaseRepo interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Lease, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.LeaseStatus, at time.Time) error
}

type transactor interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Service struct {
	leases leaseRepo
	db     transactor
	now    func() time.Time
}

func NewService(leases leaseRepo, db transactor) *Service {
	return &Service{leases: leases, db: db, now: time.Now}
}

// Transition moves the lease to target. The update is conditional on the
// status read, so a concurrent change surfaces as a version conflict.
func (s *Service) Transition(ctx context.Context, orgID, leaseID uuid.UUID, target domain.LeaseStatus) (*domain.Lease, error) {
	l, err := s.leases.GetByID(ctx, orgID, leaseID)
	if err != nil {
		return nil, fmt.Errorf("Transition: %w", err)
	}
	if err := domain.ValidateLeaseTransition(l.Status, target); err != nil {
		return nil, fmt.Errorf("Transition: %w", err)
	}

	at := s.now().UTC()
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		return s.leases.UpdateStatus(ctx, tx, l.ID, l.Status, target, at)
	})
	if err != nil {
		return nil, fmt.Errorf("Transition: %w", err)
	}

	logging.FromContext(ctx).Info("lease status changed",
		"lease_id", l.ID,
		"tenant_id", l.TenantID,
		"from", l.Status,
		"to", target,
	)
	l.Status, l.UpdatedAt = target, at
	return l, nil
}
