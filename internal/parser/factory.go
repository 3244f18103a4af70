package parser

import (
	"fmt"

	"aforo/internal/config"
	"aforo/internal/port"
)

// ProviderFactory is a function that creates a DocumentParser from a provider config.
type ProviderFactory func(cfg *config.ParserProviderConfig) (port.DocumentParser, error)

// registry of parser provider factories, populated by RegisterProvider at wiring time.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a parser provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewParser creates a DocumentParser from a provider config using the registered factory.
func NewParser(cfg *config.ParserProviderConfig) (port.DocumentParser, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown parser provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewChain builds a FallbackParser over every configured provider, in order.
// A chain with a single provider returns that provider directly.
func NewChain(cfg *config.ParserConfig) (port.DocumentParser, error) {
	chain := cfg.Chain()
	parsers := make([]port.DocumentParser, 0, len(chain))
	names := make([]string, 0, len(chain))
	for _, pc := range chain {
		p, err := NewParser(pc)
		if err != nil {
			return nil, fmt.Errorf("creating %s parser: %w", pc.Provider, err)
		}
		parsers = append(parsers, p)
		names = append(names, pc.Provider)
	}
	if len(parsers) == 1 {
		return parsers[0], nil
	}
	return NewFallbackParser(parsers, names), nil
}
