package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// TokenBucketLimiter implements token bucket rate limiting
type TokenBucketLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxTokens  float64
	perSecond  float64
	idleExpiry time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucketLimiter allows burst requests at once and refills perSecond
// tokens every second.
func NewTokenBucketLimiter(burst int, perSecond float64) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  float64(burst),
		perSecond:  perSecond,
		idleExpiry: time.Hour,
		now:        time.Now,
	}
}

// Allow checks if a request is allowed
func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: l.maxTokens, lastRefill: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.perSecond
		if b.tokens > l.maxTokens {
			b.tokens = l.maxTokens
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// sweep drops buckets idle for longer than idleExpiry. Caller holds mu.
func (l *TokenBucketLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < 5*time.Minute {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > l.idleExpiry {
			delete(l.buckets, key)
		}
	}
}

// Reset resets the rate limit for a key
func (l *TokenBucketLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

// PrefixedLimiter namespaces keys so one limiter type can serve IPs and users.
type PrefixedLimiter struct {
	prefix  string
	limiter RateLimiter
}

// NewIPRateLimiter creates a limiter keyed by client IP
func NewIPRateLimiter(burst int, perSecond float64) *PrefixedLimiter {
	return &PrefixedLimiter{prefix: "ip:", limiter: NewTokenBucketLimiter(burst, perSecond)}
}

// NewUserRateLimiter creates a limiter keyed by user ID
func NewUserRateLimiter(burst int, perSecond float64) *PrefixedLimiter {
	return &PrefixedLimiter{prefix: "user:", limiter: NewTokenBucketLimiter(burst, perSecond)}
}

func (l *PrefixedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(ctx, l.prefix+key)
}

func (l *PrefixedLimiter) Reset(ctx context.Context, key string) error {
	return l.limiter.Reset(ctx, l.prefix+key)
}
