// Package resilience guards outbound calls (model providers, the event bus)
// with a shared rate limiter, bounded retries and per-operation circuit
// breakers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrorClassification tells the Executor what to do with a failed attempt.
type ErrorClassification struct {
	// Retryable failures are attempted again, up to RetryMaxAttempts.
	Retryable bool
	// RecordFailure counts the failure against the circuit breaker.
	RecordFailure bool
	// RetryAfter is the provider's own back-off hint. The next attempt waits
	// at least this long, capped at RetryMaxBackoff.
	RetryAfter time.Duration
}

// ErrorClassifier maps a failed attempt to its classification.
type ErrorClassifier func(err error) ErrorClassification

// Executor runs an operation under a shared rate limiter, a bounded
// exponential retry and one circuit breaker per operation name. It is safe
// for concurrent use.
type Executor struct {
	cfg     Config
	limiter *rate.Limiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewExecutor creates an Executor. Zero fields of cfg take their defaults; a
// zero RateLimit leaves calls unthrottled.
func NewExecutor(cfg Config) *Executor {
	cfg = cfg.normalize()
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Executor{
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, cfg.RateBurst),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn for operation. A nil classify treats every error as final
// and counts it against the breaker. The whole retry sequence is one breaker
// request, so an open breaker fails fast with gobreaker.ErrOpenState.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classify ErrorClassifier) error {
	if fn == nil {
		return errors.New("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = failFinal
	}

	attempt := func() error { return e.retry(ctx, op, fn, classify) }
	if !e.cfg.BreakerEnabled {
		return attempt()
	}
	_, err := e.breaker(op, classify).Execute(func() (any, error) {
		return nil, attempt()
	})
	return err
}

func (e *Executor) retry(ctx context.Context, op string, fn func(context.Context) error, classify ErrorClassifier) error {
	delay := e.cfg.RetryInitialBackoff
	for n := 1; ; n++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("resilience: %s: waiting for rate limiter: %w", op, err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		class := classify(err)
		if !class.Retryable || n >= e.cfg.RetryMaxAttempts {
			return err
		}

		wait := e.backoff(delay, class.RetryAfter)
		zap.L().Warn("resilience.Executor: retrying",
			zap.String("operation", op),
			zap.Int("attempt", n),
			zap.Int("max_attempts", e.cfg.RetryMaxAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if !sleep(ctx, wait) {
			return err
		}
		delay = min(time.Duration(float64(delay)*e.cfg.RetryMultiplier), e.cfg.RetryMaxBackoff)
	}
}

// backoff is the exponential delay, raised to the provider hint, never above
// RetryMaxBackoff.
func (e *Executor) backoff(delay, hint time.Duration) time.Duration {
	return min(max(delay, hint), e.cfg.RetryMaxBackoff)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(op string, classify ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[op]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("resilience.Executor: circuit breaker state change",
				zap.String("operation", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	e.breakers[op] = cb
	return cb
}

// IsCircuitOpen reports whether err was produced by an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func failFinal(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
