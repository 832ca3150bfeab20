package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	touchMissing int64 = 0
	touchExpired int64 = 1
	touchOK      int64 = 2
)

// touchScript: KEYS[1]=session hash, ARGV = now_ms, idle_ms, max_ms,
// session_id, user index prefix, ttl_ms.
var touchScript = redis.NewScript(`
local last = redis.call("HGET", KEYS[1], "last_activity")
if not last then
  return {0}
end
local now = tonumber(ARGV[1])
local idle = tonumber(ARGV[2])
local maxlife = tonumber(ARGV[3])
local created = tonumber(redis.call("HGET", KEYS[1], "created_at") or "0")
if (now - tonumber(last)) > idle or (maxlife > 0 and (now - created) > maxlife) then
  local uid = redis.call("HGET", KEYS[1], "user_id")
  redis.call("DEL", KEYS[1])
  if uid then
    redis.call("SREM", ARGV[5] .. uid, ARGV[4])
  end
  return {1}
end
redis.call("HSET", KEYS[1], "last_activity", ARGV[1])
redis.call("PEXPIRE", KEYS[1], ARGV[6])
local uid = redis.call("HGET", KEYS[1], "user_id")
if uid then
  redis.call("PEXPIRE", ARGV[5] .. uid, ARGV[6])
end
return {2, redis.call("HGETALL", KEYS[1])}
`)

var deleteScript = redis.NewScript(`
local uid = redis.call("HGET", KEYS[1], "user_id")
local existed = redis.call("DEL", KEYS[1])
if uid then
  redis.call("SREM", ARGV[2] .. uid, ARGV[1])
end
return existed
`)

// RedisStore keeps each session as a hash (see [Record.ToMap]) plus a
// per-user set of session IDs. Keys outlive the idle timeout by a minute so
// Touch can still report ErrExpired before Redis drops them. The user set
// gets the same TTL on every Save and Touch, so it lives exactly as long as
// its most recently active session.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore] with keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "as"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *RedisStore) userPrefix() string {
	return s.prefix + "u:"
}

func (s *RedisStore) Save(ctx context.Context, r *Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}
	key := s.key(r.SessionID)
	userKey := s.userPrefix() + r.UserID

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, flatten(r.ToMap()))
		pipe.PExpire(ctx, key, ttl)
		pipe.SAdd(ctx, userKey, r.SessionID)
		pipe.PExpire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return FromMap(fields)
}

func (s *RedisStore) Touch(ctx context.Context, sessionID string, now time.Time, policy Policy) (*Record, error) {
	res, err := touchScript.Run(ctx, s.redis, []string{s.key(sessionID)},
		now.UnixMilli(),
		policy.IdleTimeout.Milliseconds(),
		policy.MaxLifetime.Milliseconds(),
		sessionID,
		s.userPrefix(),
		policy.keyTTL().Milliseconds(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) == 0 {
		return nil, ErrCorrupt
	}

	status, _ := res[0].(int64)
	switch status {
	case touchMissing:
		return nil, ErrNotFound
	case touchExpired:
		return nil, ErrExpired
	case touchOK:
		if len(res) < 2 {
			return nil, ErrCorrupt
		}
		return FromMap(flatToMap(res[1]))
	default:
		return nil, ErrCorrupt
	}
}

// Delete is idempotent.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	err := deleteScript.Run(ctx, s.redis, []string{s.key(sessionID)}, sessionID, s.userPrefix()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteUser removes every session of userID. Sessions created while the
// call runs may survive it.
func (s *RedisStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userPrefix() + userID
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	var del *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, keys...)
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(del.Val()), nil
}

func flatten(m map[string]string) []string {
	out := make([]string, 0, 2*len(m))
	for k, v := range m {
		out = append(out, k, v)
	}
	return out
}

func flatToMap(v interface{}) map[string]string {
	items, _ := v.([]interface{})
	out := make(map[string]string, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		k, _ := items[i].(string)
		val, _ := items[i+1].(string)
		out[k] = val
	}
	return out
}
