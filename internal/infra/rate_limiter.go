package infra

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter.
// Thread-safe and suitable for concurrent API calls.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter.
// maxRequests: maximum burst size
// perSecond: refill rate (requests per second)
func NewRateLimiter(maxRequests int, perSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(maxRequests),
		maxTokens:  float64(maxRequests),
		refillRate: perSecond,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		deficit := 1 - r.tokens
		waitTime := time.Duration(deficit / r.refillRate * float64(time.Second))
		r.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire attempts to acquire a token without blocking.
// Returns true if a token was acquired, false otherwise.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// refill adds tokens based on elapsed time.
// Must be called with mutex held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * r.refillRate

	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	r.lastRefill = now
}

// Alpaca allows 200 requests per minute per account on both the
// trading and the market data API.
var (
	alpacaTradingLimiter *RateLimiter
	alpacaDataLimiter    *RateLimiter
	rateLimiterOnce      sync.Once
)

// GetTradingLimiter returns the shared limiter for trading endpoints.
func GetTradingLimiter() *RateLimiter {
	rateLimiterOnce.Do(initAlpacaLimiters)
	return alpacaTradingLimiter
}

// GetDataLimiter returns the shared limiter for market data endpoints.
func GetDataLimiter() *RateLimiter {
	rateLimiterOnce.Do(initAlpacaLimiters)
	return alpacaDataLimiter
}

func initAlpacaLimiters() {
	// 200 req/min, bursts kept small to stay clear of the cap
	alpacaTradingLimiter = NewRateLimiter(10, 200.0/60.0)
	alpacaDataLimiter = NewRateLimiter(10, 200.0/60.0)
}
