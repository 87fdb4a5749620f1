package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	rateLimitSweepEvery = 5 * time.Minute
	rateLimitIdleAfter  = 10 * time.Minute
)

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter is a per-client token bucket.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*bucket
	maxTokens  float64
	refillRate float64 // tokens per second
}

// NewRateLimiter allows bursts of maxRequests, refilled evenly over perDuration.
// Idle buckets are swept until ctx is done.
func NewRateLimiter(ctx context.Context, maxRequests int, perDuration time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients:    make(map[string]*bucket),
		maxTokens:  float64(maxRequests),
		refillRate: float64(maxRequests) / perDuration.Seconds(),
	}
	go rl.sweep(ctx)
	return rl
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(rateLimitSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.clients {
		if now.Sub(b.lastCheck) > rateLimitIdleAfter {
			delete(rl.clients, key)
		}
	}
}

// take consumes a token for key. When the bucket is empty it returns how long
// until the next token is available.
func (rl *RateLimiter) take(key string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.clients[key]
	if !exists {
		rl.clients[key] = &bucket{tokens: rl.maxTokens - 1, lastCheck: now}
		return true, 0
	}

	b.tokens = math.Min(rl.maxTokens, b.tokens+now.Sub(b.lastCheck).Seconds()*rl.refillRate)
	b.lastCheck = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / rl.refillRate * float64(time.Second))
	return false, wait
}

// Middleware rejects clients that exhausted their bucket with 429 and a
// Retry-After header.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		ok, wait := rl.take(clientIP, time.Now())
		if !ok {
			retry := int(math.Ceil(wait.Seconds()))
			if retry < 1 {
				retry = 1
			}
			log.Warn().Str("ip", clientIP).Str("path", c.Request.URL.Path).Msg("rate limited")
			c.Header("Retry-After", strconv.Itoa(retry))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
			c.Abort()
			return
		}
		c.Next()
	}
}
