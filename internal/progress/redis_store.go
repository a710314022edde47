package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fvitu/offliner/internal/shared"
)

// keyPrefix namespaces progress records in the shared Redis keyspace.
const keyPrefix = "progress:"

// RedisStore is the production Store backend: one string key per request
// id, holding the JSON-encoded Record. Create sets the initial TTL; Update
// preserves whatever TTL remains (spec.md §4.1 "preserves remaining TTL").
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an already-configured [redis.Client].
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func key(id string) string {
	return keyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, id string, totalItems int) error {
	rec := Record{Phase: PhasePreparing, TotalItems: totalItems}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal progress record: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, key(id), payload, TTL).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Record)) error {
	raw, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("unmarshal progress record: %w", err)
	}

	rec = rec.Mutate(fn)

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal progress record: %w", err)
	}
	if err := s.rdb.Set(ctx, key(id), payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	raw, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NotFound(), nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal progress record: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) RequestCancel(ctx context.Context, id string) error {
	return s.Update(ctx, id, func(r *Record) {
		r.CancelRequested = true
	})
}

func (s *RedisStore) IsCancelled(ctx context.Context, id string) (bool, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.CancelRequested, nil
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}
