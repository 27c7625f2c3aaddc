package infra

import (
	"math/rand"
	"time"
)

const (
	// Standard backoff constants
	baseDelay   = 1 * time.Second
	maxDelay    = 60 * time.Second
	jitterRatio = 0.2
)

// CalculateBackoff returns the exponential backoff duration for a given retry count.
// Logic: baseDelay * 2^retryCount, capped at maxDelay.
// If retryCount is negative, it returns baseDelay.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return baseDelay
	}

	// 2^30 seconds already exceeds maxDelay by far; cap early so the
	// shift below cannot overflow.
	if retryCount > 30 {
		return maxDelay
	}

	backoff := baseDelay * time.Duration(1<<retryCount)

	if backoff > maxDelay {
		return maxDelay
	}

	return backoff
}

// JitteredBackoff perturbs CalculateBackoff by up to ±20% so a fleet of
// reconnecting workers does not stampede the venue in lockstep.
func JitteredBackoff(retryCount int) time.Duration {
	base := CalculateBackoff(retryCount)
	// rand.Float64 in [0,1) maps to a factor in [1-jitterRatio, 1+jitterRatio).
	factor := 1 + jitterRatio*(2*rand.Float64()-1)
	return time.Duration(float64(base) * factor)
}
