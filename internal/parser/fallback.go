package parser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"aforo/internal/port"
)

// provider is one model behind the fallback chain. A provider that answers
// with a rate limit is parked until its Retry-After has passed.
type provider struct {
	name   string
	parser port.DocumentParser

	mu          sync.RWMutex
	parkedUntil time.Time
}

func (p *provider) parked(now time.Time) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.parkedUntil, now.Before(p.parkedUntil)
}

func (p *provider) park(until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if until.After(p.parkedUntil) {
		p.parkedUntil = until
	}
}

// FallbackOption configures a FallbackParser.
type FallbackOption func(*FallbackParser)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) FallbackOption {
	return func(f *FallbackParser) { f.now = now }
}

// FallbackParser asks providers in order and returns the first complete
// answer. A truncated answer is kept but the next provider still gets a
// chance; it is returned only when nobody does better, so the extractor can
// reject it. It implements port.DocumentParser.
type FallbackParser struct {
	providers []*provider
	now       func() time.Time
}

// NewFallbackParser creates a FallbackParser from an ordered list of parsers and their names.
func NewFallbackParser(parsers []port.DocumentParser, names []string, opts ...FallbackOption) *FallbackParser {
	f := &FallbackParser{now: time.Now}
	for i, p := range parsers {
		f.providers = append(f.providers, &provider{name: names[i], parser: p})
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FallbackParser) Parse(ctx context.Context, input port.ParseInput) (*port.ParseOutput, error) {
	now := f.now()
	var (
		lastErr   error
		truncated *port.ParseOutput
		wake      time.Time
		limited   int
	)

	for _, p := range f.providers {
		if until, parked := p.parked(now); parked {
			zap.L().Debug("parser.FallbackParser: skipping parked provider",
				zap.String("provider", p.name), zap.Time("until", until))
			wake = earliest(wake, until)
			limited++
			continue
		}

		out, err := p.parser.Parse(ctx, input)
		if err == nil {
			if !out.Truncated {
				return out, nil
			}
			zap.L().Warn("parser.FallbackParser: truncated answer, trying next provider",
				zap.String("provider", p.name), zap.String("document_type", input.DocumentType))
			if truncated == nil {
				truncated = out
			}
			continue
		}
		if ctx.Err() != nil {
			return nil, err
		}

		zap.L().Warn("parser.FallbackParser: provider failed",
			zap.String("provider", p.name), zap.Error(err))
		lastErr = err

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			until := now.Add(rlErr.RetryAfter)
			p.park(until)
			wake = earliest(wake, until)
			limited++
		}
	}

	if truncated != nil {
		return truncated, nil
	}
	if limited == len(f.providers) {
		wait := wake.Sub(now)
		if wait < time.Second {
			wait = time.Second
		}
		return nil, NewRateLimitError("all", errors.New("all providers rate limited"), int(math.Ceil(wait.Seconds())))
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// Names returns the provider names in fallback order.
func (f *FallbackParser) Names() []string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.name
	}
	return names
}

func earliest(a, b time.Time) time.Time {
	if a.IsZero() || b.Before(a) {
		return b
	}
	return a
}
