// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a process-local token-bucket limiter with one bucket
// per caller identity. Buckets live in a concurrent map and idle ones are
// swept every few thousand lookups. Requests that IdempotencyValidator marked
// as replays are never limited.
//
// The limiter protects the service from noisy bots; it is not the credit
// window. Credits are enforced in the claim path regardless of this layer.
package middleware

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

// HeaderBotID optionally identifies the calling bot for rate limiting.
const HeaderBotID = "X-Bot-ID"

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByBotOrIP keys buckets by the calling bot when it identifies itself via
// the X-Bot-ID header or a botId query parameter, and by client IP otherwise.
// Prefixes keep the two namespaces apart ("bot:b1" vs "ip:203.0.113.7").
func KeyByBotOrIP() keyFunc {
	return func(c *gin.Context) string {
		id := strings.TrimSpace(c.GetHeader(HeaderBotID))
		if id == "" {
			id = strings.TrimSpace(c.Query("botId"))
		}
		if id != "" {
			return "bot:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimiter is a per-key token-bucket limiter. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	visitors *xsync.MapOf[string, *visitor]

	ttl      time.Duration
	sweepN   uint64
	lookups  atomic.Uint64
	sweeping atomic.Bool
}

// NewRateLimiter builds a limiter refilling rps tokens per second with the
// given burst (coerced to at least 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByBotOrIP()
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: xsync.NewMapOf[string, *visitor](),
		ttl:      10 * time.Minute,
		sweepN:   5000,
	}
}

// getVisitor returns the limiter for key, creating it if absent. The sweep
// runs before the requested entry is touched so a stale entry for key is
// replaced rather than refreshed.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	if rl.lookups.Add(1)%rl.sweepN == 0 {
		rl.sweep(now)
	}

	v, _ := rl.visitors.LoadOrCompute(key, func() *visitor {
		return &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
	})
	v.lastSeen.Store(now.UnixNano())
	return v.limiter
}

func (rl *RateLimiter) sweep(now time.Time) {
	if !rl.sweeping.CompareAndSwap(false, true) {
		return
	}
	defer rl.sweeping.Store(false)

	cutoff := now.Add(-rl.ttl).UnixNano()
	rl.visitors.Range(func(k string, v *visitor) bool {
		if v.lastSeen.Load() <= cutoff {
			rl.visitors.Delete(k)
		}
		return true
	})
}

// Len returns the number of live buckets.
func (rl *RateLimiter) Len() int { return rl.visitors.Size() }

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay that must not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the Gin middleware. Denied requests get 429 with
// Retry-After: 1 and the standard error envelope:
//
//	{"request_id": "<uuid>", "code": "rate_limited", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		key := rl.keyFn(c)
		if rl.getVisitor(key).Allow() {
			c.Next()
			return
		}

		httpRateLimited.WithLabelValues(keyKind(key)).Inc()
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}

// keyKind returns the prefix of a limiter key ("bot", "ip") or "other".
func keyKind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		switch k := key[:i]; k {
		case "bot", "ip":
			return k
		}
	}
	return "other"
}
