package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Scores are unix milliseconds. ARGV[1] is the inclusive prune cutoff
// (now-span), ARGV[2] the score, ARGV[3] the member, ARGV[4] the key TTL in ms.
const addScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return redis.call("ZCARD", KEYS[1])
`

const addBelowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[5]) then
  return {0, count}
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return {1, count + 1}
`

const countScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
return redis.call("ZCARD", KEYS[1])
`

var (
	addLua      = redis.NewScript(addScript)
	addBelowLua = redis.NewScript(addBelowScript)
	countLua    = redis.NewScript(countScript)
)

// RedisStore keeps one sorted set per key so that several processes share a
// window. Each key expires one span after its newest entry.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore]. prefix namespaces every key.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{redis: client, prefix: prefix}
}

func (r *RedisStore) key(key string) string {
	return r.prefix + key
}

// Add implements [Store].
func (r *RedisStore) Add(ctx context.Context, key string, now time.Time, span time.Duration) (int, error) {
	count, err := addLua.Run(ctx, r.redis, []string{r.key(key)}, windowArgs(now, span)...).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(count), nil
}

// AddBelow implements [Store].
func (r *RedisStore) AddBelow(ctx context.Context, key string, now time.Time, span time.Duration, limit int) (bool, int, error) {
	args := append(windowArgs(now, span), limit)
	res, err := addBelowLua.Run(ctx, r.redis, []string{r.key(key)}, args...).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("%w: unexpected script reply", ErrUnavailable)
	}
	return res[0] == 1, int(res[1]), nil
}

// Count implements [Store].
func (r *RedisStore) Count(ctx context.Context, key string, now time.Time, span time.Duration) (int, error) {
	count, err := countLua.Run(ctx, r.redis, []string{r.key(key)}, cutoff(now, span)).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(count), nil
}

// Clear implements [Store].
func (r *RedisStore) Clear(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func windowArgs(now time.Time, span time.Duration) []interface{} {
	ttl := span.Milliseconds()
	if ttl < 1 {
		ttl = 1
	}
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
	return []interface{}{cutoff(now, span), now.UnixMilli(), member, ttl}
}

func cutoff(now time.Time, span time.Duration) int64 {
	return now.Add(-span).UnixMilli()
}
