// Package server implements a token bucket that throttles how many chat lines
// a single peer may broadcast.
package server

import (
	"sync"
	"time"
)

// lineLimiter is a token bucket refilled continuously at burst tokens per
// interval. A nil *lineLimiter allows everything.
type lineLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	perSec   float64
	last     time.Time
}

// newLineLimiter returns nil when cfg disables rate limiting.
func newLineLimiter(cfg RateLimitConfig) *lineLimiter {
	if cfg.Burst <= 0 {
		return nil
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	return &lineLimiter{
		tokens:   float64(cfg.Burst),
		capacity: float64(cfg.Burst),
		perSec:   float64(cfg.Burst) / interval.Seconds(),
		last:     time.Now(),
	}
}

// allow takes one token if available at now.
func (l *lineLimiter) allow(now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
		l.tokens = min(l.capacity, l.tokens+elapsed*l.perSec)
		l.last = now
	}

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
