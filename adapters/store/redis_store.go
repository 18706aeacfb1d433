package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript bumps a fixed-window counter, arms its expiry on the first
// hit and compares it with the limit, all inside one EVALSHA.
const incrementScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local limited = 0
if count > tonumber(ARGV[2]) then
  limited = 1
end
return {count, limited}
`

var incrementLua = redis.NewScript(incrementScript)

// RedisStore keeps revoked token ids and rate counters in Redis
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "nostrauth:",
	}
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.prefix + "invalidated:" + tokenID

	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.prefix + "invalidated:" + tokenID

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}

	return val > 0, nil
}

// ClaimToken invalidates a token with SETNX so only one caller wins
func (s *RedisStore) ClaimToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	key := s.prefix + "invalidated:" + tokenID

	ok, err := s.client.SetNX(ctx, key, "1", expiry).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim token: %w", err)
	}
	return ok, nil
}

// Increment atomically counts one hit against key
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, limit int64) (int64, bool, error) {
	res, err := incrementLua.Run(ctx, s.client, []string{s.prefix + "rl:" + key}, window.Milliseconds(), limit).Int64Slice()
	if err != nil {
		return 0, true, fmt.Errorf("failed to increment counter: %w", err)
	}
	if len(res) != 2 {
		return 0, true, fmt.Errorf("unexpected counter reply: %v", res)
	}
	return res[0], res[1] == 1, nil
}
