package rate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned by the limiter checks when a budget is
// exhausted or a lockout flag is active.
var ErrRateLimited = errors.New("rate limited")

// Increment and expiry must be one atomic step so two racing failed
// attempts cannot observe the same count or drop the window TTL.
var incrWindowLua = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Counters is the atomic counter/flag store. Redis is the primary
// backend; any Redis failure routes the call to the local fallback.
type Counters struct {
	redis redis.UniversalClient
	local *memoryCounters
	log   *slog.Logger
}

// NewCounters creates a [Counters] over the given Redis client. client
// may be nil, which pins every operation to the local fallback.
func NewCounters(client redis.UniversalClient, log *slog.Logger) *Counters {
	if log == nil {
		log = slog.Default()
	}
	return &Counters{
		redis: client,
		local: newMemoryCounters(),
		log:   log,
	}
}

// Increment bumps the counter for key and returns the new count. A
// missing or expired key restarts at 1 with a fresh window.
func (c *Counters) Increment(ctx context.Context, key string, window time.Duration) int64 {
	if c.redis != nil {
		count, err := incrWindowLua.Run(ctx, c.redis, []string{key}, window.Milliseconds()).Int64()
		if err == nil {
			return count
		}
		c.log.Debug("counter backend unreachable, using local fallback", "key", key, "error", err)
	}
	return c.local.increment(key, window)
}

// Lock sets the lockout flag for key with its own expiry, independent of
// any counter.
func (c *Counters) Lock(ctx context.Context, key string, ttl time.Duration) {
	if c.redis != nil {
		err := c.redis.Set(ctx, key, "1", ttl).Err()
		if err == nil {
			return
		}
		c.log.Debug("lockout backend unreachable, using local fallback", "key", key, "error", err)
	}
	c.local.lock(key, ttl)
}

// IsLocked reports whether the lockout flag for key is active.
func (c *Counters) IsLocked(ctx context.Context, key string) bool {
	if c.redis != nil {
		n, err := c.redis.Exists(ctx, key).Result()
		if err == nil {
			return n > 0
		}
		c.log.Debug("lockout backend unreachable, using local fallback", "key", key, "error", err)
	}
	return c.local.isLocked(key)
}
