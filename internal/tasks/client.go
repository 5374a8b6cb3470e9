package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/rentledger/internal/domain"
)

// Client enqueues work for the worker from the API process.
type Client struct {
	c   *asynq.Client
	rdb *redis.Client
}

func NewClient(rdb *redis.Client) *Client {
	return &Client{c: asynq.NewClient(RedisOpt(rdb)), rdb: rdb}
}

// Ping reports whether the queue's Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// EnqueueAllocation returns the task id the allocation will run under.
func (c *Client) EnqueueAllocation(ctx context.Context, orgID, billID uuid.UUID, method domain.AllocationMethod) (string, error) {
	task, err := NewAllocateTask(orgID, billID, method)
	if err != nil {
		return "", fmt.Errorf("EnqueueAllocation: %w", err)
	}
	info, err := c.c.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("EnqueueAllocation: %w", err)
	}
	return info.ID, nil
}

func (c *Client) Close() error {
	return c.c.Close()
}
