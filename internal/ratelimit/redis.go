package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// slidingWindowScript trims, counts, and conditionally records in one atomic step.
// Returns {allowed, remaining, retry_after_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, window)
  return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local retry = window
if oldest[2] then
  retry = tonumber(oldest[2]) + window - now
end
return {0, 0, retry}
`)

// RedisStore shares sliding windows across gateway instances through a
// sorted set per key, scored by admission time in milliseconds.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "whitecross:ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// NewRedisStoreFromURL parses a redis:// URL and verifies connectivity.
func NewRedisStoreFromURL(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, ""), nil
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := s.now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now, window.Milliseconds(), limit, uuid.NewString(),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("sliding window script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("sliding window script: unexpected reply %v", res)
	}

	allowed, _ := res[0].(int64)
	remaining, _ := res[1].(int64)
	retryMs, _ := res[2].(int64)

	d := Decision{Allowed: allowed == 1, Limit: limit, Remaining: int(remaining)}
	if !d.Allowed {
		d.RetryAfter = time.Duration(retryMs) * time.Millisecond
	}
	return d, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
