package resilience

import (
	"math"
	"time"
)

// Operation names a guarded call. Only idempotent operations are attempted
// more than once; every other call gets exactly one try regardless of the
// retry budget.
type Operation struct {
	Name       string
	Idempotent bool
}

// Read marks a call that can be repeated without side effects on the server.
func Read(name string) Operation {
	return Operation{Name: name, Idempotent: true}
}

// Write marks a call that must reach the server at most once per invocation.
func Write(name string) Operation {
	return Operation{Name: name}
}

type RetryPolicy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
	Multiplier float64
}

type BreakerPolicy struct {
	Enabled       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenFor       time.Duration
	HalfOpenCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// DefaultConfig tries each call once and guards every operation with a
// breaker.
func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			Attempts:   1,
			Backoff:    100 * time.Millisecond,
			MaxBackoff: 400 * time.Millisecond,
			Multiplier: 2,
		},
		Breaker: BreakerPolicy{
			Enabled:       true,
			MinRequests:   10,
			FailureRatio:  0.5,
			OpenFor:       30 * time.Second,
			HalfOpenCalls: 2,
		},
	}
}

// withDefaults fills unset tuning values. Breaker.Enabled is taken as given.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	r, b := &c.Retry, &c.Breaker

	r.Attempts = max(r.Attempts, 1)
	if r.Backoff <= 0 {
		r.Backoff = def.Retry.Backoff
	}
	r.MaxBackoff = max(r.MaxBackoff, r.Backoff)
	if r.Multiplier < 1 {
		r.Multiplier = def.Retry.Multiplier
	}

	if b.MinRequests == 0 {
		b.MinRequests = def.Breaker.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.Breaker.FailureRatio
	}
	if b.OpenFor <= 0 {
		b.OpenFor = def.Breaker.OpenFor
	}
	if b.HalfOpenCalls == 0 {
		b.HalfOpenCalls = def.Breaker.HalfOpenCalls
	}
	return c
}

// attemptsFor is the number of tries op is allowed.
func (p RetryPolicy) attemptsFor(op Operation) int {
	if !op.Idempotent {
		return 1
	}
	return max(p.Attempts, 1)
}

// delay is the wait after the n-th failed try (n starts at 1).
func (p RetryPolicy) delay(n int) time.Duration {
	wait := float64(p.Backoff) * math.Pow(p.Multiplier, float64(n-1))
	if wait >= float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(wait)
}
