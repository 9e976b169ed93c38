package auth

import (
	"context"
	"fmt"
	"time"

	"authmedia/internal/cache"
)

const rateLimitKeyPrefix = "ratelimit:"

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a client may proceed.
type Limiter interface {
	Allow(ctx context.Context, scope, client string) Decision
}

// RateLimiter is a fixed-window counter kept in Redis. When Redis is
// unavailable every request is allowed.
type RateLimiter struct {
	cache  *cache.Client
	max    int
	window time.Duration
}

// Ensure RateLimiter implements Limiter
var _ Limiter = (*RateLimiter)(nil)

// NewRateLimiter creates a limiter admitting max requests per window.
func NewRateLimiter(cache *cache.Client, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{cache: cache, max: max, window: window}
}

func (l *RateLimiter) key(scope, client string) string {
	return fmt.Sprintf("%s%s:%s", rateLimitKeyPrefix, scope, client)
}

// Allow counts one request from client within scope.
func (l *RateLimiter) Allow(ctx context.Context, scope, client string) Decision {
	if l.max <= 0 {
		return Decision{Allowed: true}
	}
	key := l.key(scope, client)
	n, ok := l.cache.Incr(ctx, key, l.window)
	if !ok {
		return Decision{Allowed: true, Remaining: l.max}
	}
	if n > int64(l.max) {
		retry := l.cache.TTL(ctx, key)
		if retry == 0 {
			retry = l.window
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}
	return Decision{Allowed: true, Remaining: l.max - int(n)}
}
