// Package ratelimit provides per-key token bucket rate limiting for the
// nudge MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrLimited is wrapped by CheckLimit when a tool is over its rate.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter keeps one token bucket per key, all with the same rate and
// burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and
// burst size. The burst also serves as the initial number of tokens.
func NewLimiter(r float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rate:    r,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed, taking a token
// when it does.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.rate), l.burst)
		l.buckets[key] = b
	}
	return b.AllowN(l.nowFunc(), 1)
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default per-tool limiters. Selection runs
// once per agent interaction and gets the most headroom.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"nudge_select":        NewLimiter(2.0, 20),      // 120/minute, burst 20
		"nudge_complete":      NewLimiter(1.0, 10),      // 60/minute, burst 10
		"nudge_explain":       NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"nudge_list":          NewLimiter(1.0, 10),      // 60/minute, burst 10
		"nudge_check_removal": NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"nudge_stats":         NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
	}
}

// CheckLimit checks the rate limit for a tool. Tools without a limiter are
// always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if !limiter.Allow(toolName) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, toolName)
	}
	return nil
}
