package lease

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

type noTx struct{}

func (noTx) InTx(_ context.Context, fn func(tx *sql.Tx) error) error { return fn(nil) }

type fakeLeases struct {
	org    uuid.UUID
	leases map[uuid.UUID]*domain.Lease
}

func (f *fakeLeases) GetByID(_ context.Context, orgID, id uuid.UUID) (*domain.Lease, error) {
	l, ok := f.leases[id]
	if !ok || orgID != f.org {
		return nil, domain.ErrLeaseNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLeases) UpdateStatus(_ context.Context, _ *sql.Tx, id uuid.UUID, from, to domain.LeaseStatus, _ time.Time) error {
	l := f.leases[id]
	if l.Status != from {
		return domain.ErrVersionConflict
	}
	l.Status = to
	return nil
}

func setup(status domain.LeaseStatus) (*Service, *fakeLeases, uuid.UUID) {
	repo := &fakeLeases{org: uuid.New(), leases: map[uuid.UUID]*domain.Lease{}}
	id := uuid.New()
	repo.leases[id] = &domain.Lease{ID: id, TenantID: uuid.New(), Status: status}
	return NewService(repo, noTx{}), repo, id
}

func TestTransition(t *testing.T) {
	svc, repo, id := setup(domain.LeaseStatusDraft)
	ctx := context.Background()

	for _, next := range []domain.LeaseStatus{
		domain.LeaseStatusPendingSignature,
		domain.LeaseStatusActive,
		domain.LeaseStatusExpired,
	} {
		l, err := svc.Transition(ctx, repo.org, id, next)
		require.NoError(t, err)
		assert.Equal(t, next, l.Status)
		assert.Equal(t, next, repo.leases[id].Status)
	}
}

func TestTransition_Rejected(t *testing.T) {
	svc, repo, id := setup(domain.LeaseStatusActive)

	_, err := svc.Transition(context.Background(), repo.org, id, domain.LeaseStatusDraft)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Contains(t, err.Error(), `transition from "ACTIVE" to "DRAFT" is not allowed`)
	assert.Equal(t, domain.LeaseStatusActive, repo.leases[id].Status)
}

func TestTransition_TerminalStates(t *testing.T) {
	for _, status := range []domain.LeaseStatus{domain.LeaseStatusExpired, domain.LeaseStatusTerminated} {
		svc, repo, id := setup(status)
		_, err := svc.Transition(context.Background(), repo.org, id, domain.LeaseStatusActive)
		assert.True(t, domain.IsStateConflict(err), string(status))
	}
}

func TestTransition_OtherOrganization(t *testing.T) {
	svc, _, id := setup(domain.LeaseStatusDraft)
	_, err := svc.Transition(context.Background(), uuid.New(), id, domain.LeaseStatusPendingSignature)
	assert.True(t, domain.IsNotFound(err))
}
