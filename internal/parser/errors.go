package parser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// RateLimitError indicates a parser provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// TransportError is a non-2xx answer or a network failure talking to a provider.
// StatusCode is 0 for network failures.
type TransportError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s transport error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a TransportError.
func NewTransportError(provider string, statusCode int, err error) *TransportError {
	return &TransportError{Provider: provider, StatusCode: statusCode, Err: err}
}

// Retryable reports whether another attempt may succeed.
func (e *TransportError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// IsRetryable classifies parser errors for the retry loop. Rate limits,
// network failures and 5xx answers are transient; other 4xx answers and
// caller cancellation are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
