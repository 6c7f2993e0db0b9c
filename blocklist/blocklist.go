// Package blocklist tracks revoked access-token identifiers until their
// natural expiry. Entries self-expire in Redis; no cleanup pass exists or
// is needed.
package blocklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable indicates the blocklist backend is unreachable.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultPrefix = "sg:block"

// Blocklist is a Redis-backed set of revoked access-token identifiers.
type Blocklist struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Blocklist] on the given Redis client. prefix namespaces
// the keys; empty selects the default.
func New(client redis.UniversalClient, prefix string) *Blocklist {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Blocklist{redis: client, prefix: prefix}
}

func (b *Blocklist) key(accessTokenID string) string {
	return b.prefix + ":" + accessTokenID
}

// Add revokes accessTokenID for ttl, which callers set to the token's
// remaining natural lifetime. A non-positive ttl is a no-op: the token is
// already expired and the verifier will reject it anyway.
func (b *Blocklist) Add(ctx context.Context, accessTokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.redis.Set(ctx, b.key(accessTokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Contains reports whether accessTokenID is currently revoked. After the
// entry's natural expiry this returns false without any cleanup.
func (b *Blocklist) Contains(ctx context.Context, accessTokenID string) (bool, error) {
	n, err := b.redis.Exists(ctx, b.key(accessTokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
