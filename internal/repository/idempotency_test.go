package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idempotencyColumns = []string{
	"idempotency_key", "organization_id", "request_hash", "status_code", "response_body", "created_at", "expires_at",
}

func TestIdempotencyRepository_GetScopedToOrganization(t *testing.T) {
	db, mock := newMock(t)
	repo := NewIdempotencyRepository(db)
	org := uuid.New()
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM idempotency_cache`).
		WithArgs("pay-1", org).
		WillReturnRows(sqlmock.NewRows(idempotencyColumns).
			AddRow("pay-1", org.String(), "abc", 201, []byte(`{"success":true}`), now, now.Add(24*time.Hour)))
	mock.ExpectQuery(`FROM idempotency_cache`).
		WithArgs("pay-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(idempotencyColumns))

	got, err := repo.Get(context.Background(), "pay-1", org)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 201, got.StatusCode)
	assert.Equal(t, org, got.OrgID)

	miss, err := repo.Get(context.Background(), "pay-1", uuid.New())
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestIdempotencyRepository_CleanExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewIdempotencyRepository(db)

	mock.ExpectExec(`DELETE FROM idempotency_cache WHERE expires_at < now\(\)`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.CleanExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
