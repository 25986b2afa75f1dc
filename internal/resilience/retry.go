// Package resilience provides retry with exponential backoff for the
// outbound API calls the extraction pipeline depends on.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff and jitter.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first
	// try. A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the computed
	// delay (0.25 = ±25%). Default: 0.25.
	JitterFraction float64

	// ShouldRetry overrides the default transient-error check. If nil,
	// IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with the attempt number
	// and the error that triggered it.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the retry policy used for LLM and reader calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Do executes fn until it succeeds, fails with a non-transient error, or
// the policy's attempts are exhausted. Context cancellation stops retries
// immediately; the last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = withDefaults(p)

	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= p.MaxAttempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(backoff(attempt, p))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func withDefaults(p Policy) Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	return p
}

func backoff(attempt int, p Policy) time.Duration {
	delay := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	if p.JitterFraction > 0 {
		span := delay * p.JitterFraction
		delay += (rand.Float64()*2 - 1) * span
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
