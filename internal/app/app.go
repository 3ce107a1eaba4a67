// Package app wires together configuration, storage, the job scheduler, and
// the orchestrator into a single Deps struct that commands receive at
// runtime.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gwicho38/polidisc/internal/config"
	"github.com/gwicho38/polidisc/internal/etl"
	"github.com/gwicho38/polidisc/internal/logging"
	"github.com/gwicho38/polidisc/internal/orchestrator"
	"github.com/gwicho38/polidisc/internal/pipeline"
	"github.com/gwicho38/polidisc/internal/ratelimit"
	"github.com/gwicho38/polidisc/internal/scheduler"
	"github.com/gwicho38/polidisc/internal/source"
	"github.com/gwicho38/polidisc/internal/storage"
	"github.com/gwicho38/polidisc/internal/transform"
)

// RunFunctionPrefix namespaces scheduler function references that trigger
// an orchestrator run for one source, e.g. "run:us_house".
const RunFunctionPrefix = "run:"

// Deps holds all runtime dependencies injected into command Run functions.
type Deps struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        *storage.Store
	Matcher      *transform.PoliticianMatcher
	Scheduler    *scheduler.Scheduler
	Orchestrator *orchestrator.Orchestrator
	ETL          *etl.Registry
}

// New builds a Deps from resolved config, opening the bbolt store at
// cfg.DBPath and wiring the scheduler singleton against it.
func New(cfg *config.Config) (*Deps, error) {
	logger := logging.New(cfg.LogLevel)

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("app: opening store at %s: %w", cfg.DBPath, err)
	}

	matcher := transform.NewPoliticianMatcher(store)
	sched := scheduler.Get(store, logger)
	orch := &orchestrator.Orchestrator{Store: store, Matcher: matcher, Corrections: store, Storage: store}

	etlRegistry := etl.NewRegistry()
	etlRegistry.UploadLimiter = ratelimit.New(cfg.Rate)

	for _, name := range source.Names() {
		name := name
		sched.RegisterFunc(RunFunctionPrefix+name, func(ctx context.Context) error {
			_, err := orch.Run(ctx, name, defaultSourceConfig(cfg, name))
			return err
		})

		adapter, ok := source.Get(name)
		if !ok {
			continue
		}
		adapter.Configure(defaultSourceConfig(cfg, name))
		if err := etlRegistry.Register(etl.FromSource(adapter, store, matcher, pipeline.Options{})); err != nil {
			return nil, fmt.Errorf("app: registering ETL service for %s: %w", name, err)
		}
	}

	return &Deps{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Matcher:      matcher,
		Scheduler:    sched,
		Orchestrator: orch,
		ETL:          etlRegistry,
	}, nil
}

// Close releases resources held by Deps, in particular the bbolt handle.
func (d *Deps) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}

// defaultSourceConfig builds the source.Config a scheduled or ad hoc run
// uses when the caller has no source-specific overrides, pacing each
// adapter from the resolved rate/timeout configuration.
func defaultSourceConfig(cfg *config.Config, name string) source.Config {
	delay := time.Duration(0)
	if cfg.Rate > 0 {
		delay = time.Duration(float64(time.Second) / cfg.Rate)
	}
	return source.Config{
		Name:         name,
		RequestDelay: delay,
		MaxRetries:   3,
		Timeout:      cfg.Timeout,
		Enabled:      true,
		Params: map[string]any{
			"quiverquant_api_key": cfg.QuiverQuantKey,
		},
	}
}
