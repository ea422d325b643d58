package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Classification says what a failure means to the executor.
type Classification struct {
	// Transient failures may go away when an idempotent call is repeated.
	Transient bool
	// Trips counts the failure against the operation's breaker.
	Trips bool
}

type Classifier func(err error) Classification

func tripsOnly(error) Classification {
	return Classification{Trips: true}
}

// Executor guards server calls with one breaker per operation and repeats
// idempotent ones on transient failures.
type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// States reports the breaker state of every operation seen so far.
func (e *Executor) States() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.breakers))
	for name, breaker := range e.breakers {
		out[name] = breaker.State().String()
	}
	return out
}

func (e *Executor) Execute(ctx context.Context, op Operation, call func(context.Context) error, classify Classifier) error {
	if call == nil {
		return fmt.Errorf("resilience: nil call for %q", op.Name)
	}
	if op.Name == "" {
		op.Name = "unnamed"
	}
	if classify == nil {
		classify = tripsOnly
	}

	if !e.cfg.Breaker.Enabled {
		return e.run(ctx, op, call, classify)
	}
	_, err := e.breaker(op.Name, classify).Execute(func() (struct{}, error) {
		return struct{}{}, e.run(ctx, op, call, classify)
	})
	return err
}

func (e *Executor) run(ctx context.Context, op Operation, call func(context.Context) error, classify Classifier) error {
	limit := e.cfg.Retry.attemptsFor(op)
	var err error
	for n := 1; ; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		if err = call(ctx); err == nil {
			return nil
		}
		if n >= limit || !classify(err).Transient {
			return err
		}

		wait := e.cfg.Retry.delay(n)
		e.logger.Warn("retrying_operation",
			"operation", op.Name,
			"attempt", n,
			"attempts", limit,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		if !pause(ctx, wait) {
			return err
		}
	}
}

func pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(name string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if breaker, ok := e.breakers[name]; ok {
		return breaker
	}

	policy := e.cfg.Breaker
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: policy.HalfOpenCalls,
		Timeout:     policy.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= policy.MinRequests &&
				float64(counts.TotalFailures) >= policy.FailureRatio*float64(counts.Requests)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).Trips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("breaker_state_changed", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[name] = breaker
	return breaker
}

// IsCircuitOpen reports whether err came from a breaker refusing the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
