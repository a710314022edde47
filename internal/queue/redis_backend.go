package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fvitu/offliner/internal/shared"
)

const (
	pendingKey  = "offliner:queue:pending"
	inflightKey = "offliner:queue:inflight"
)

// RedisBackend implements Backend on top of two Redis lists: jobs sit in
// pendingKey until a worker moves them atomically into inflightKey via
// BRPOPLPUSH, and Ack removes them from inflightKey with LREM. A job left in
// inflightKey by a crashed worker is not auto-requeued here; the supervisor
// relies on [queue.Timeout] and an external reaper to call Nack.
type RedisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend wraps an already-configured [redis.Client].
func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func (b *RedisBackend) Enqueue(ctx context.Context, job Job) error {
	payload, err := job.Marshal()
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := b.rdb.LPush(ctx, pendingKey, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrBrokerUnavailable, err)
	}
	return nil
}

func (b *RedisBackend) Dequeue(ctx context.Context, timeout time.Duration) (Job, bool, error) {
	raw, err := b.rdb.BRPopLPush(ctx, pendingKey, inflightKey, timeout).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("%w: %v", shared.ErrBrokerUnavailable, err)
	}

	job, err := Unmarshal([]byte(raw))
	if err != nil {
		return Job{}, false, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, true, nil
}

func (b *RedisBackend) Ack(ctx context.Context, requestID string) error {
	return b.removeFromInflight(ctx, requestID)
}

func (b *RedisBackend) Nack(ctx context.Context, requestID string) error {
	entries, err := b.rdb.LRange(ctx, inflightKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrBrokerUnavailable, err)
	}

	for _, raw := range entries {
		job, err := Unmarshal([]byte(raw))
		if err != nil {
			continue
		}
		if job.RequestID != requestID {
			continue
		}
		pipe := b.rdb.TxPipeline()
		pipe.LRem(ctx, inflightKey, 1, raw)
		pipe.LPush(ctx, pendingKey, raw)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrBrokerUnavailable, err)
		}
		return nil
	}
	return nil
}

func (b *RedisBackend) removeFromInflight(ctx context.Context, requestID string) error {
	entries, err := b.rdb.LRange(ctx, inflightKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrBrokerUnavailable, err)
	}

	for _, raw := range entries {
		job, err := Unmarshal([]byte(raw))
		if err != nil {
			continue
		}
		if job.RequestID != requestID {
			continue
		}
		if err := b.rdb.LRem(ctx, inflightKey, 1, raw).Err(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrBrokerUnavailable, err)
		}
		return nil
	}
	return nil
}

func (b *RedisBackend) Length(ctx context.Context) (int64, error) {
	n, err := b.rdb.LLen(ctx, pendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrBrokerUnavailable, err)
	}
	return n, nil
}

func (b *RedisBackend) InFlight(ctx context.Context) ([]Job, error) {
	entries, err := b.rdb.LRange(ctx, inflightKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrBrokerUnavailable, err)
	}

	jobs := make([]Job, 0, len(entries))
	for _, raw := range entries {
		job, err := Unmarshal([]byte(raw))
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (b *RedisBackend) Health(ctx context.Context) HealthStatus {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return HealthStatus{Healthy: false, Detail: err.Error()}
	}
	return HealthStatus{Healthy: true}
}

func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
