package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/service/billing"
	"github.com/josh-kwaku/rentledger/internal/service/utility"
)

type mockBilling struct {
	mock.Mock
}

func (m *mockBilling) GenerateRentCharges(ctx context.Context, orgID uuid.UUID, billingPeriod string) (*billing.RentRun, error) {
	args := m.Called(ctx, orgID, billingPeriod)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.RentRun), args.Error(1)
}

func (m *mockBilling) ApplyLateFees(ctx context.Context, orgID uuid.UUID, billingPeriod string, now time.Time) (*billing.LateFeeRun, error) {
	args := m.Called(ctx, orgID, billingPeriod, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.LateFeeRun), args.Error(1)
}

type mockAllocator struct {
	mock.Mock
}

func (m *mockAllocator) Allocate(ctx context.Context, orgID, billID uuid.UUID, method domain.AllocationMethod) (*utility.Allocation, error) {
	args := m.Called(ctx, orgID, billID, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*utility.Allocation), args.Error(1)
}

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) CleanExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

var fixedNow = time.Date(2024, time.March, 31, 23, 30, 0, 0, time.UTC)

func newTestProcessor(b billingRunner, a allocator, c cacheCleaner, loc *time.Location) *Processor {
	p := NewProcessor(b, a, c, loc)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestHandleRentGenerate_ResolvesCurrentPeriod(t *testing.T) {
	orgID := uuid.New()
	mb := new(mockBilling)
	mb.On("GenerateRentCharges", mock.Anything, orgID, "2024-03").
		Return(&billing.RentRun{Period: "2024-03", Charged: 3}, nil).Once()

	task, err := NewRentGenerateTask(orgID, "")
	require.NoError(t, err)

	p := newTestProcessor(mb, nil, nil, time.UTC)
	require.NoError(t, p.HandleRentGenerate(context.Background(), task))
	mb.AssertExpectations(t)
}

func TestHandleRentGenerate_UsesBillingTimezone(t *testing.T) {
	// 23:30 UTC on March 31 is already April 1 in Tokyo.
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	orgID := uuid.New()
	mb := new(mockBilling)
	mb.On("GenerateRentCharges", mock.Anything, orgID, "2024-04").
		Return(&billing.RentRun{Period: "2024-04"}, nil).Once()

	task, err := NewRentGenerateTask(orgID, "")
	require.NoError(t, err)

	p := newTestProcessor(mb, nil, nil, tokyo)
	require.NoError(t, p.HandleRentGenerate(context.Background(), task))
	mb.AssertExpectations(t)
}

func TestHandleRentGenerate_ExplicitPeriod(t *testing.T) {
	orgID := uuid.New()
	mb := new(mockBilling)
	mb.On("GenerateRentCharges", mock.Anything, orgID, "2023-12").
		Return(&billing.RentRun{Period: "2023-12"}, nil).Once()

	task, err := NewRentGenerateTask(orgID, "2023-12")
	require.NoError(t, err)

	p := newTestProcessor(mb, nil, nil, time.UTC)
	require.NoError(t, p.HandleRentGenerate(context.Background(), task))
	mb.AssertExpectations(t)
}

func TestHandleRentGenerate_PartialFailureRetries(t *testing.T) {
	orgID := uuid.New()
	mb := new(mockBilling)
	mb.On("GenerateRentCharges", mock.Anything, orgID, "2024-03").
		Return(&billing.RentRun{Period: "2024-03", Charged: 2, Failed: 1}, nil)

	task, err := NewRentGenerateTask(orgID, "")
	require.NoError(t, err)

	err = newTestProcessor(mb, nil, nil, time.UTC).HandleRentGenerate(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleRentGenerate_BadPayloadSkipsRetry(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"not json", []byte("{")},
		{"missing organization", []byte(`{"period":"2024-03"}`)},
		{"bad period", []byte(fmt.Sprintf(`{"organization_id":%q,"period":"2024-13"}`, uuid.NewString()))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb := new(mockBilling)
			p := newTestProcessor(mb, nil, nil, time.UTC)

			err := p.HandleRentGenerate(context.Background(), asynq.NewTask(TypeRentGenerate, tt.payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, asynq.SkipRetry)
			mb.AssertNotCalled(t, "GenerateRentCharges", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandleLateFeeApply_PassesClock(t *testing.T) {
	orgID := uuid.New()
	mb := new(mockBilling)
	mb.On("ApplyLateFees", mock.Anything, orgID, "2024-03", fixedNow).
		Return(&billing.LateFeeRun{Period: "2024-03", Applied: 1}, nil).Once()

	task, err := NewLateFeeApplyTask(orgID, "")
	require.NoError(t, err)

	p := newTestProcessor(mb, nil, nil, time.UTC)
	require.NoError(t, p.HandleLateFeeApply(context.Background(), task))
	mb.AssertExpectations(t)
}

func TestHandleLateFeeApply_InfrastructureErrorRetries(t *testing.T) {
	orgID := uuid.New()
	mb := new(mockBilling)
	mb.On("ApplyLateFees", mock.Anything, orgID, "2024-03", fixedNow).
		Return(nil, errors.New("connection reset"))

	task, err := NewLateFeeApplyTask(orgID, "")
	require.NoError(t, err)

	err = newTestProcessor(mb, nil, nil, time.UTC).HandleLateFeeApply(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleUtilityAllocate(t *testing.T) {
	orgID, billID := uuid.New(), uuid.New()

	t.Run("defaults to equal", func(t *testing.T) {
		ma := new(mockAllocator)
		ma.On("Allocate", mock.Anything, orgID, billID, domain.AllocationEqual).
			Return(&utility.Allocation{BillID: billID, Method: domain.AllocationEqual, Total: decimal.RequireFromString("100.00")}, nil).Once()

		task, err := NewAllocateTask(orgID, billID, "")
		require.NoError(t, err)
		require.NoError(t, newTestProcessor(nil, ma, nil, time.UTC).HandleUtilityAllocate(context.Background(), task))
		ma.AssertExpectations(t)
	})

	t.Run("already allocated is done", func(t *testing.T) {
		ma := new(mockAllocator)
		ma.On("Allocate", mock.Anything, orgID, billID, domain.AllocationWeighted).
			Return(nil, fmt.Errorf("allocate: %w", domain.ErrBillAlreadyAllocated))

		task, err := NewAllocateTask(orgID, billID, domain.AllocationWeighted)
		require.NoError(t, err)
		assert.NoError(t, newTestProcessor(nil, ma, nil, time.UTC).HandleUtilityAllocate(context.Background(), task))
	})

	t.Run("missing bill is final", func(t *testing.T) {
		ma := new(mockAllocator)
		ma.On("Allocate", mock.Anything, orgID, billID, domain.AllocationEqual).
			Return(nil, domain.ErrBillNotFound)

		task, err := NewAllocateTask(orgID, billID, domain.AllocationEqual)
		require.NoError(t, err)
		err = newTestProcessor(nil, ma, nil, time.UTC).HandleUtilityAllocate(context.Background(), task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorIs(t, err, domain.ErrBillNotFound)
	})
}

func TestHandleIdempotencyCleanup(t *testing.T) {
	mc := new(mockCleaner)
	mc.On("CleanExpired", mock.Anything).Return(int64(4), nil).Once()

	p := newTestProcessor(nil, nil, mc, time.UTC)
	require.NoError(t, p.HandleIdempotencyCleanup(context.Background(), NewIdempotencyCleanupTask()))
	mc.AssertExpectations(t)
}

func TestNewAllocateTask_Payload(t *testing.T) {
	orgID, billID := uuid.New(), uuid.New()
	task, err := NewAllocateTask(orgID, billID, domain.AllocationWeighted)
	require.NoError(t, err)

	assert.Equal(t, TypeUtilityAllocate, task.Type())
	var got map[string]string
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	assert.Equal(t, map[string]string{
		"organization_id": orgID.String(),
		"bill_id":         billID.String(),
		"method":          "weighted",
	}, got)
}

func TestServeMux_Routes(t *testing.T) {
	mc := new(mockCleaner)
	mc.On("CleanExpired", mock.Anything).Return(int64(0), nil).Once()
	mux := NewServeMux(newTestProcessor(nil, nil, mc, time.UTC))

	require.NoError(t, mux.ProcessTask(context.Background(), NewIdempotencyCleanupTask()))
	mc.AssertExpectations(t)

	err := mux.ProcessTask(context.Background(), asynq.NewTask("billing:unknown", nil))
	assert.Error(t, err)
}

func TestServeMux_LogsOneLinePerTask(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	orgID := uuid.New()
	mb := new(mockBilling)
	mb.On("GenerateRentCharges", mock.Anything, orgID, "2024-03").
		Return(&billing.RentRun{Period: "2024-03", Charged: 2}, nil).Once()
	mb.On("ApplyLateFees", mock.Anything, orgID, "2024-03", fixedNow).
		Return(&billing.LateFeeRun{Period: "2024-03", Applied: 1}, nil).Once()
	mux := NewServeMux(newTestProcessor(mb, nil, nil, time.UTC))

	rent, err := NewRentGenerateTask(orgID, "")
	require.NoError(t, err)
	fees, err := NewLateFeeApplyTask(orgID, "")
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(ctx, rent))
	require.NoError(t, mux.ProcessTask(ctx, fees))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for i, typ := range []string{TypeRentGenerate, TypeLateFeeApply} {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &rec))
		assert.Equal(t, "task finished", rec["msg"])
		assert.Equal(t, typ, rec["task_type"])
	}
	mb.AssertExpectations(t)
}
