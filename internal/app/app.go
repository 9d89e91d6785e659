// Package app wires configuration, the dataset store and the dashboard together.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chrissnell/solarcompare/internal/controllers/dashboard"
	"github.com/chrissnell/solarcompare/internal/dataset"
	"github.com/chrissnell/solarcompare/internal/log"
	"github.com/chrissnell/solarcompare/pkg/config"
	"github.com/chrissnell/solarcompare/pkg/solar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// LoadOptions translates the dataset section of the configuration
func LoadOptions(d config.DatasetData) dataset.LoadOptions {
	opts := dataset.LoadOptions{
		SourceField:  d.SourceField,
		Metrics:      d.Metrics,
		OnUnreadable: dataset.UnreadablePolicy(d.OnUnreadable),
	}
	if d.Delimiter != "" {
		opts.Delimiter = []rune(d.Delimiter)[0]
	}
	return opts
}

// Sources translates the configured sources
func Sources(cfg []config.SourceData) []dataset.Source {
	sources := make([]dataset.Source, len(cfg))
	for i, s := range cfg {
		sources[i] = dataset.Source{ID: s.ID, Path: s.Path, Format: dataset.Format(s.Format)}
	}
	return sources
}

// Sites collects the locations of sources that have one
func Sites(cfg []config.SourceData) map[string]solar.Site {
	sites := make(map[string]solar.Site)
	for _, s := range cfg {
		if site, ok := s.Site(); ok {
			sites[s.ID] = site
		}
	}
	return sites
}

// BuildDataset loads every configured source and normalizes the timestamp field
func (a *App) BuildDataset() (*dataset.Dataset, error) {
	loader := dataset.NewLoader(LoadOptions(a.cfg.Dataset), a.logger)

	ds, report, err := loader.Load(Sources(a.cfg.Sources))
	if err != nil {
		return nil, fmt.Errorf("could not load dataset: %w", err)
	}
	for _, skipped := range report.Skipped {
		a.logger.Warnw("source skipped", "source", skipped.Source, "path", skipped.Path, "error", skipped.Err)
	}
	for field, n := range report.InvalidCells {
		a.logger.Warnw("non-numeric values treated as missing", "field", field, "cells", n)
	}

	ds, nreport, err := dataset.NormalizeTimestamp(ds, a.cfg.Dataset.TimestampField, dataset.MalformedPolicy(a.cfg.Dataset.OnMalformedTimestamp))
	if err != nil {
		return nil, fmt.Errorf("could not normalize timestamps: %w", err)
	}
	if nreport.Dropped > 0 {
		a.logger.Warnw("rows with malformed timestamps dropped", "field", nreport.Field, "rows", nreport.Dropped)
	}

	a.logger.Infow("dataset loaded",
		"rows", ds.Len(),
		"sources", ds.Sources(),
		"columns", len(ds.Columns()),
		"time_field", ds.TimeField(),
	)
	return ds, nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := dataset.NewStore(a.BuildDataset)

	// Load eagerly so configuration and data problems surface at startup
	if _, err := store.Get(); err != nil {
		return err
	}

	ctrl, err := dashboard.NewController(a.cfg.Dashboard, a.cfg.Dataset.Metrics, store, a.logger)
	if err != nil {
		return fmt.Errorf("could not create dashboard: %w", err)
	}
	ctrl.SetSites(Sites(a.cfg.Sources))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	// Set up signal handling
	g.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case <-sigs:
			log.Info("shutdown signal received, initiating graceful shutdown...")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	log.Info("Application started successfully")

	err = g.Wait()
	log.Info("shutdown complete")
	return err
}
