package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained refill rate
	RequestsPerMinute int
	// BurstSize is the bucket capacity
	BurstSize int
	// CleanupInterval is how often idle clients are forgotten
	CleanupInterval time.Duration
}

// LoginRateLimitConfig returns limits for POST /admin/login. Each attempt also
// costs a bcrypt comparison, so the burst is small.
func LoginRateLimitConfig(attemptsPerMinute int) RateLimitConfig {
	if attemptsPerMinute <= 0 {
		attemptsPerMinute = 10
	}
	return RateLimitConfig{
		RequestsPerMinute: attemptsPerMinute,
		BurstSize:         min(5, attemptsPerMinute),
		CleanupInterval:   5 * time.Minute,
	}
}

// UploadRateLimitConfig returns limits for admin endpoints that accept logo uploads
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// rateLimitEntry tracks the bucket for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter implements a per-key token bucket.
type RateLimiter struct {
	config  RateLimitConfig
	clock   clockwork.Clock
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	stopCh  chan struct{}
	stop    sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine. Pass a
// fake clock in tests; nil means the wall clock.
func NewRateLimiter(config RateLimitConfig, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		clock:   clock,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := rl.clock.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			rl.mu.Lock()
			now := rl.clock.Now()
			for key, entry := range rl.entries {
				if now.Sub(entry.lastUpdate) > 2*rl.config.CleanupInterval {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stop.Do(func() { close(rl.stopCh) })
}

// refillLocked brings the bucket for key up to date and returns it.
func (rl *RateLimiter) refillLocked(key string) *rateLimitEntry {
	now := rl.clock.Now()
	entry, exists := rl.entries[key]
	if !exists {
		entry = &rateLimitEntry{tokens: float64(rl.config.BurstSize), lastUpdate: now}
		rl.entries[key] = entry
		return entry
	}

	tokensPerSecond := float64(rl.config.RequestsPerMinute) / 60.0
	entry.tokens = min(float64(rl.config.BurstSize), entry.tokens+now.Sub(entry.lastUpdate).Seconds()*tokensPerSecond)
	entry.lastUpdate = now
	return entry
}

// Allow checks if a request from the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry := rl.refillLocked(key)
	if entry.tokens >= 1 {
		entry.tokens--
		return true
	}
	return false
}

// RemainingTokens returns how many whole tokens are left for a key
func (rl *RateLimiter) RemainingTokens(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if _, exists := rl.entries[key]; !exists {
		return rl.config.BurstSize
	}
	return int(rl.refillLocked(key).tokens)
}

// RateLimitMiddleware limits requests per client IP. Browsers get a plain-text
// 429; API clients get JSON.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()

		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			switch c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) {
			case gin.MIMEHTML:
				c.Data(http.StatusTooManyRequests, "text/plain; charset=utf-8",
					[]byte("Too many attempts. Please wait a minute and try again."))
				c.Abort()
			default:
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"error":       "Rate limit exceeded",
					"retry_after": 60,
				})
			}
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.RemainingTokens(key)))

		c.Next()
	}
}
