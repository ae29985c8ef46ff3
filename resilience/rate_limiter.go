package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by Execute when no token is available.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	// Name identifies the limiter in logs.
	Name string
	// Rate is the number of events allowed per second. Zero or less means
	// unlimited.
	Rate float64
	// Burst is the maximum burst size. Defaults to Rate rounded up, at
	// least 1.
	Burst int
	// OnLimit is called whenever Allow or Execute rejects an event.
	OnLimit func(name string)
}

// RateLimiter is a token bucket shared by concurrent callers.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
	limited atomic.Int64
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	limit := rate.Limit(config.Rate)
	if config.Rate <= 0 {
		limit = rate.Inf
	}
	if config.Burst <= 0 {
		config.Burst = max(1, int(config.Rate+0.999))
	}
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(limit, config.Burst),
	}
}

// Name returns the configured name.
func (rl *RateLimiter) Name() string { return rl.config.Name }

// Allow takes a token without blocking.
func (rl *RateLimiter) Allow() bool {
	if rl.limiter.Allow() {
		return true
	}
	rl.reject()
	return false
}

// Wait blocks until a token is available or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limiter: %w", rl.config.Name, err)
	}
	return nil
}

// Execute runs fn if a token is available and returns ErrRateLimited
// otherwise.
func (rl *RateLimiter) Execute(fn func() error) error {
	if !rl.Allow() {
		return ErrRateLimited
	}
	return fn()
}

// ExecuteWait waits for a token, then runs fn.
func (rl *RateLimiter) ExecuteWait(ctx context.Context, fn func() error) error {
	if err := rl.Wait(ctx); err != nil {
		return err
	}
	return fn()
}

func (rl *RateLimiter) reject() {
	rl.limited.Add(1)
	if rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name)
	}
}

// Limited returns the number of rejected events.
func (rl *RateLimiter) Limited() int64 { return rl.limited.Load() }

// Rate returns the configured rate; 0 for unlimited.
func (rl *RateLimiter) Rate() float64 {
	if rl.limiter.Limit() == rate.Inf {
		return 0
	}
	return float64(rl.limiter.Limit())
}

// Burst returns the bucket size.
func (rl *RateLimiter) Burst() int { return rl.limiter.Burst() }
