package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/rentledger/internal/domain"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/period"
	"github.com/josh-kwaku/rentledger/internal/service/billing"
	"github.com/josh-kwaku/rentledger/internal/service/utility"
)

const (
	TypeRentGenerate       = "billing:rent:generate"
	TypeLateFeeApply       = "billing:latefee:apply"
	TypeUtilityAllocate    = "utility:bill:allocate"
	TypeIdempotencyCleanup = "maintenance:idempotency:cleanup"
)

const (
	QueueBilling     = "billing"
	QueueAllocation  = "allocation"
	QueueMaintenance = "maintenance"
)

// BillingPayload drives both billing jobs. An empty Period means the current
// period in the billing time zone at the moment the task runs.
type BillingPayload struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Period         string    `json:"period,omitempty"`
}

type AllocationPayload struct {
	OrganizationID uuid.UUID               `json:"organization_id"`
	BillID         uuid.UUID               `json:"bill_id"`
	Method         domain.AllocationMethod `json:"method"`
}

func NewRentGenerateTask(orgID uuid.UUID, billingPeriod string) (*asynq.Task, error) {
	return newTask(TypeRentGenerate, BillingPayload{OrganizationID: orgID, Period: billingPeriod}, asynq.Queue(QueueBilling))
}

func NewLateFeeApplyTask(orgID uuid.UUID, billingPeriod string) (*asynq.Task, error) {
	return newTask(TypeLateFeeApply, BillingPayload{OrganizationID: orgID, Period: billingPeriod}, asynq.Queue(QueueBilling))
}

// NewAllocateTask is unique per bill for an hour so a double submit does not
// queue two runs. The second run would be refused by the bill guard anyway.
func NewAllocateTask(orgID, billID uuid.UUID, method domain.AllocationMethod) (*asynq.Task, error) {
	return newTask(TypeUtilityAllocate,
		AllocationPayload{OrganizationID: orgID, BillID: billID, Method: method},
		asynq.Queue(QueueAllocation), asynq.Unique(time.Hour), asynq.MaxRetry(5),
	)
}

func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeIdempotencyCleanup, nil, asynq.Queue(QueueMaintenance), asynq.MaxRetry(1))
}

func newTask(typ string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("newTask %s: %w", typ, err)
	}
	return asynq.NewTask(typ, b, opts...), nil
}

// RedisOpt turns a connected go-redis client into asynq connection options so
// both sides share one set of settings.
func RedisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	o := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	}
}

type billingRunner interface {
	GenerateRentCharges(ctx context.Context, orgID uuid.UUID, billingPeriod string) (*billing.RentRun, error)
	ApplyLateFees(ctx context.Context, orgID uuid.UUID, billingPeriod string, now time.Time) (*billing.LateFeeRun, error)
}

type allocator interface {
	Allocate(ctx context.Context, orgID, billID uuid.UUID, method domain.AllocationMethod) (*utility.Allocation, error)
}

type cacheCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// Processor holds what the task handlers need.
type Processor struct {
	billing   billingRunner
	utilities allocator
	cache     cacheCleaner
	loc       *time.Location
	now       func() time.Time
}

func NewProcessor(b billingRunner, u allocator, cache cacheCleaner, loc *time.Location) *Processor {
	return &Processor{billing: b, utilities: u, cache: cache, loc: loc, now: time.Now}
}

// NewServeMux registers every task handler.
func NewServeMux(p *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(withTaskLogger)
	mux.HandleFunc(TypeRentGenerate, p.HandleRentGenerate)
	mux.HandleFunc(TypeLateFeeApply, p.HandleLateFeeApply)
	mux.HandleFunc(TypeUtilityAllocate, p.HandleUtilityAllocate)
	mux.HandleFunc(TypeIdempotencyCleanup, p.HandleIdempotencyCleanup)
	return mux
}

// withTaskLogger tags everything a handler logs with the task type and id.
func withTaskLogger(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		taskID, _ := asynq.GetTaskID(ctx)
		ctx, logger := logging.With(ctx, "task_type", t.Type(), "task_id", taskID)

		err := next.ProcessTask(ctx, t)
		logger.Info("task finished", "duration_ms", time.Since(start).Milliseconds(), "ok", err == nil)
		return err
	})
}

func (p *Processor) HandleRentGenerate(ctx context.Context, t *asynq.Task) error {
	payload, billingPeriod, err := p.billingPayload(t)
	if err != nil {
		return err
	}

	run, err := p.billing.GenerateRentCharges(ctx, payload.OrganizationID, billingPeriod)
	if err != nil {
		return retryable(fmt.Errorf("HandleRentGenerate: %w", err))
	}
	if run.Failed > 0 {
		// Charged tenants are skipped on retry by their idempotency keys.
		return fmt.Errorf("HandleRentGenerate: %d tenants failed", run.Failed)
	}
	return nil
}

func (p *Processor) HandleLateFeeApply(ctx context.Context, t *asynq.Task) error {
	payload, billingPeriod, err := p.billingPayload(t)
	if err != nil {
		return err
	}

	run, err := p.billing.ApplyLateFees(ctx, payload.OrganizationID, billingPeriod, p.now())
	if err != nil {
		return retryable(fmt.Errorf("HandleLateFeeApply: %w", err))
	}
	if run.Failed > 0 {
		return fmt.Errorf("HandleLateFeeApply: %d tenants failed", run.Failed)
	}
	return nil
}

func (p *Processor) HandleUtilityAllocate(ctx context.Context, t *asynq.Task) error {
	var payload AllocationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("HandleUtilityAllocate: payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.OrganizationID == uuid.Nil || payload.BillID == uuid.Nil {
		return fmt.Errorf("HandleUtilityAllocate: organization_id and bill_id required: %w", asynq.SkipRetry)
	}
	if payload.Method == "" {
		payload.Method = domain.AllocationEqual
	}

	// The services log their own run summaries under the task's logger.
	if _, err := p.utilities.Allocate(ctx, payload.OrganizationID, payload.BillID, payload.Method); err != nil {
		if errors.Is(err, domain.ErrBillAlreadyAllocated) {
			logging.FromContext(ctx).Info("bill already allocated", "bill_id", payload.BillID)
			return nil
		}
		return retryable(fmt.Errorf("HandleUtilityAllocate: %w", err))
	}
	return nil
}

func (p *Processor) HandleIdempotencyCleanup(ctx context.Context, _ *asynq.Task) error {
	n, err := p.cache.CleanExpired(ctx)
	if err != nil {
		return fmt.Errorf("HandleIdempotencyCleanup: %w", err)
	}
	logging.FromContext(ctx).Info("expired idempotency entries removed", "count", n)
	return nil
}

// billingPayload decodes the payload and resolves the period once, here, so
// the whole run sees the same period even across midnight.
func (p *Processor) billingPayload(t *asynq.Task) (BillingPayload, string, error) {
	var payload BillingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, "", fmt.Errorf("%s: payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if payload.OrganizationID == uuid.Nil {
		return payload, "", fmt.Errorf("%s: organization_id required: %w", t.Type(), asynq.SkipRetry)
	}
	billingPeriod, err := period.Resolve(payload.Period, p.now(), p.loc)
	if err != nil {
		return payload, "", fmt.Errorf("%s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return payload, billingPeriod, nil
}

// retryable marks domain rejections as final. Everything else goes through
// asynq's retry policy.
func retryable(err error) error {
	if domain.IsValidation(err) || domain.IsNotFound(err) || domain.IsStateConflict(err) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
