package source

import (
	"context"

	"github.com/gwicho38/polidisc/internal/model"
)

func init() {
	Register("california", func() Source { return newStateSource("california", "state_us") })
	Register("new_york", func() Source { return newStateSource("new_york", "state_us") })
	Register("texas", func() Source { return newStateSource("texas", "state_us") })
}

// stateSource is a registered-but-dormant adapter for a US state financial
// disclosure registry. Each state publishes its own filing portal with its
// own authentication and export format; none is implemented here, matching
// this system's original scope, which enabled only the federal, EU, and
// third-party sources by default. The source factory still resolves these
// names so `polidisc run --source california` fails with a clear
// not-implemented error rather than an unknown-source error, and so a
// concrete state adapter can be dropped in later without touching the
// registry or the orchestrator.
type stateSource struct {
	name       string
	sourceType string
	cfg        Config
}

func newStateSource(name, sourceType string) *stateSource {
	return &stateSource{name: name, sourceType: sourceType}
}

func (s *stateSource) Name() string { return s.name }

func (s *stateSource) Configure(cfg Config) { s.cfg = cfg }

func (s *stateSource) Fetch(ctx context.Context, lookbackDays int) ([]model.RawDisclosure, error) {
	return nil, &NotImplementedError{Source: s.name}
}

func (s *stateSource) FetchBatch(ctx context.Context, offset, limit, lookbackDays int) ([]model.RawDisclosure, error) {
	return nil, &NotImplementedError{Source: s.name}
}

// NotImplementedError is returned by a registered-but-dormant adapter.
type NotImplementedError struct {
	Source string
}

func (e *NotImplementedError) Error() string {
	return "source " + e.Source + " is registered but has no adapter implementation yet"
}
