package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore de-duplicates checkouts that share a client-supplied
// key.  A request first reserves the key; only the holder calls the
// processor and then either stores its result or releases the key.
type IdempotencyStore interface {
	// Reserve claims key for ttl and reports false when it is already
	// reserved or holds a result.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Get returns the stored result.  done is false while the key is
	// absent or only reserved.
	Get(ctx context.Context, key string) (res CheckoutResult, done bool, err error)
	// Put replaces the reservation with res.  The first stored result wins.
	Put(ctx context.Context, key string, res CheckoutResult, ttl time.Duration) error
	// Release drops a reservation that never produced a result.
	Release(ctx context.Context, key string) error
}

// pendingMarker is the value of a reserved key with no result yet.
const pendingMarker = "pending"

// completeScript stores ARGV[2] for ARGV[3] ms when the key is absent or
// still pending.
var completeScript = redis.NewScript(`
	local cur = redis.call('GET', KEYS[1])
	if cur == false or cur == ARGV[1] then
		redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
		return 1
	end
	return 0
`)

// releaseScript deletes the key only while it is still pending.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisIdempotencyStore keeps reservations and checkout results in Redis
// under "<prefix>:<key>".
type RedisIdempotencyStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisIdempotencyStore(rdb *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb, prefix: "checkout:idem"}
}

func (s *RedisIdempotencyStore) key(k string) string { return s.prefix + ":" + k }

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.key(key), pendingMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (CheckoutResult, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CheckoutResult{}, false, nil
		}
		return CheckoutResult{}, false, fmt.Errorf("redis get: %w", err)
	}
	if string(raw) == pendingMarker {
		return CheckoutResult{}, false, nil
	}
	var res CheckoutResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return CheckoutResult{}, false, fmt.Errorf("decode stored checkout: %w", err)
	}
	return res, true, nil
}

func (s *RedisIdempotencyStore) Put(ctx context.Context, key string, res CheckoutResult, ttl time.Duration) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode checkout: %w", err)
	}
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if err := completeScript.Run(ctx, s.rdb, []string{s.key(key)}, pendingMarker, string(raw), ms).Err(); err != nil {
		return fmt.Errorf("redis store checkout: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.rdb, []string{s.key(key)}, pendingMarker).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}
