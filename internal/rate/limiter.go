package rate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds abuse-control thresholds. Zero values disable the
// corresponding check.
type Config struct {
	LoginMaxAttempts int
	LoginWindow      time.Duration
	LockoutDuration  time.Duration

	RefreshMaxAttempts int
	RefreshWindow      time.Duration
}

// Limiter applies the soft-lockout protocol for logins and the per-IP
// throttle for refreshes on top of [Counters].
type Limiter struct {
	counters *Counters
	config   Config
	log      *slog.Logger
}

// New creates a [Limiter] backed by the given Redis client.
func New(client redis.UniversalClient, cfg Config, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{
		counters: NewCounters(client, log),
		config:   cfg,
		log:      log,
	}
}

// Counters exposes the underlying counter store.
func (l *Limiter) Counters() *Counters {
	return l.counters
}

// CheckLogin rejects the attempt with [ErrRateLimited] while the soft
// lockout for this ip+identifier is active. Runs before authentication so
// a locked caller never reaches the credential check.
func (l *Limiter) CheckLogin(ctx context.Context, ip, identifier string) error {
	if l.config.LoginMaxAttempts <= 0 || identifier == "" {
		return nil
	}
	if l.counters.IsLocked(ctx, lockoutLoginKey(ip, identifier)) {
		l.log.Warn("login soft lockout in effect", "ip", ip, "identifier", identifier)
		return ErrRateLimited
	}
	return nil
}

// RecordLoginFailure counts a failed authentication and activates the
// lockout flag once the attempt budget for the window is exceeded.
// Reports whether this failure activated the lockout.
func (l *Limiter) RecordLoginFailure(ctx context.Context, ip, identifier string) bool {
	if l.config.LoginMaxAttempts <= 0 || identifier == "" {
		return false
	}

	count := l.counters.Increment(ctx, attemptsLoginKey(ip, identifier), l.config.LoginWindow)
	if count > int64(l.config.LoginMaxAttempts) {
		l.counters.Lock(ctx, lockoutLoginKey(ip, identifier), l.config.LockoutDuration)
		l.log.Warn("login soft lockout activated", "ip", ip, "identifier", identifier, "attempts", count)
		return true
	}
	return false
}

// CheckRefresh counts a refresh attempt for ip and rejects with
// [ErrRateLimited] once the window budget is exceeded. No lockout flag is
// involved; the counter self-clears when the window rolls.
func (l *Limiter) CheckRefresh(ctx context.Context, ip string) error {
	if l.config.RefreshMaxAttempts <= 0 || ip == "" {
		return nil
	}

	count := l.counters.Increment(ctx, refreshKey(ip), l.config.RefreshWindow)
	if count > int64(l.config.RefreshMaxAttempts) {
		l.log.Warn("refresh rate limit exceeded", "ip", ip, "attempts", count)
		return ErrRateLimited
	}
	return nil
}

func attemptsLoginKey(ip, identifier string) string {
	return "attempts:login:" + ip + ":" + strings.ToLower(identifier)
}

func lockoutLoginKey(ip, identifier string) string {
	return "lockout:login:" + ip + ":" + strings.ToLower(identifier)
}

func refreshKey(ip string) string {
	return "rate:refresh:" + ip
}
