// Package ratelimit throttles abuse-prone endpoints: a per-key token bucket
// in process memory and a fixed-window counter shared through Redis.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/respond"
	"golang.org/x/time/rate"
)

// KeyLimiter decides whether one more event for key is allowed now.
type KeyLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// PerKey keeps one token bucket per key. Idle buckets are dropped after idleTTL.
type PerKey struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	every   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

// NewPerKey allows burst events at once and perMinute sustained per key.
func NewPerKey(perMinute, burst int) *PerKey {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &PerKey{
		buckets: make(map[string]*bucket),
		every:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

func (p *PerKey) Allow(_ context.Context, key string) (bool, error) {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[key]
	if !ok {
		p.sweep(now)
		b = &bucket{lim: rate.NewLimiter(p.every, p.burst)}
		p.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1), nil
}

func (p *PerKey) sweep(now time.Time) {
	for k, b := range p.buckets {
		if now.Sub(b.seen) > p.idleTTL {
			delete(p.buckets, k)
		}
	}
}

// Middleware rejects requests over the limit of l keyed by client IP.
// Limiter errors let the request through.
func Middleware(l KeyLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), "ip:"+c.ClientIP())
		if err == nil && !ok {
			c.Header("Retry-After", "60")
			respond.Error(c, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		c.Next()
	}
}
