// Package app wires the configured store into the reporting services shared
// by the commands.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/revenue-cohorts/internal/aggregation"
	"github.com/dvloznov/revenue-cohorts/internal/compare"
	"github.com/dvloznov/revenue-cohorts/internal/config"
	"github.com/dvloznov/revenue-cohorts/internal/infra/bigquery"
	"github.com/dvloznov/revenue-cohorts/internal/infra/memory"
	"github.com/dvloznov/revenue-cohorts/internal/infra/sqlite"
	"github.com/dvloznov/revenue-cohorts/internal/metrics"
	"github.com/dvloznov/revenue-cohorts/internal/period"
	"github.com/dvloznov/revenue-cohorts/internal/report"
	"github.com/dvloznov/revenue-cohorts/internal/trend"
)

// App holds the services built over one store.
type App struct {
	Store      aggregation.Store
	Resolver   *period.Resolver
	Calculator *metrics.Calculator
	Reports    *report.Service
	Comparator *compare.Comparator
}

// OpenStore opens the backend named by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.Config) (aggregation.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendMemory, "":
		return memory.NewStore(), nil
	case config.BackendSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return s, nil
	case config.BackendBigQuery:
		s, err := bigquery.NewStore(ctx, bigquery.Dataset{ProjectID: cfg.ProjectID, DatasetID: cfg.DatasetID})
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("OpenStore: unknown backend %q", cfg.Backend)
}

// New validates cfg, opens its store and builds the services over it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(store, period.NewResolver(loc)), nil
}

// NewWithStore builds the services over an already opened store.
func NewWithStore(store aggregation.Store, resolver *period.Resolver) *App {
	engine := aggregation.NewEngine(store, resolver)
	calc := metrics.NewCalculator(engine)
	return &App{
		Store:      store,
		Resolver:   resolver,
		Calculator: calc,
		Reports:    report.NewService(calc, trend.NewBuilder(engine)),
		Comparator: compare.NewComparator(calc),
	}
}

// Close closes the store.
func (a *App) Close() error {
	return a.Store.Close()
}
