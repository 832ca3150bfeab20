// Package window provides keyed sliding-window timestamp stores shared by the
// attempt tracker and the per-client rate limiter.
//
// # Window semantics
//
// A window holds the event timestamps of one key. Every operation first prunes
// entries for which now-t >= span, then counts or appends. Pruning is lazy: there
// is no background sweep, and a key whose window becomes empty is dropped on the
// next access.
//
// # Backends
//
//   - [MemoryStore]: striped mutex over fixed shards; the default.
//   - [RedisStore]: one sorted set per key, prune/count/append in a single Lua
//     script so concurrent processes share one window.
//
// # What this package must NOT do
//
//   - Decide lockout or admission policy (callers own thresholds).
//   - Hold a shard lock across anything other than in-memory bookkeeping.
package window
