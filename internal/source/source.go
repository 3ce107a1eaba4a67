// Package source defines the adapter contract every data source implements
// (C1) and the registry adapters self-register into, generalizing the
// original BaseSource/SourceConfig split into a single Go interface backed
// by the shared internal/httpclient.Client.
package source

import (
	"context"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
)

// Config mirrors the original per-source configuration dataclass: pacing,
// retry budget, and arbitrary source-specific parameters.
type Config struct {
	Name         string
	SourceType   string // "federal_us", "state_us", "eu", "uk", "third_party"
	BaseURL      string
	RequestDelay time.Duration
	MaxRetries   int
	Timeout      time.Duration
	Headers      map[string]string
	Params       map[string]any
	Enabled      bool
}

// Source fetches raw disclosure records from one upstream. lookbackDays
// bounds how far back a fetch should look; offset/limit support the batch
// variant sources with paginated APIs (US Senate, UK Parliament) implement.
type Source interface {
	// Name returns the source's registry key, e.g. "us_senate".
	Name() string

	// Configure applies an external Config over the source's defaults.
	Configure(cfg Config)

	// Fetch retrieves every record published within the last lookbackDays.
	Fetch(ctx context.Context, lookbackDays int) ([]model.RawDisclosure, error)

	// FetchBatch retrieves one page of records, for sources whose upstream
	// API is paginated. Sources without native pagination return the full
	// Fetch result on offset 0 and an empty slice for any other offset,
	// matching the original's default fallback behavior.
	FetchBatch(ctx context.Context, offset, limit, lookbackDays int) ([]model.RawDisclosure, error)
}

// Factory builds a new Source instance; adapters register one per source
// name in their package init().
type Factory func() Source

var registry = map[string]Factory{}

// Register adds a factory to the registry. Adapter files call this from
// init() so importing internal/source is sufficient to make every adapter's
// source available by name.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Get constructs a new Source instance for name, or false if no adapter
// registered that name.
func Get(name string) (Source, bool) {
	factory, ok := registry[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Names returns every registered source name, sorted is the caller's job if
// order matters (the registry is a plain map).
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
