// Package ingestion drives the refresh cycle: fetch every enabled source for
// a city, fuse the readings into a grid, publish it, and archive it in the
// background.
package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Deiviidsito/backend-nasa/internal/archive"
	"github.com/Deiviidsito/backend-nasa/internal/config"
	"github.com/Deiviidsito/backend-nasa/internal/fusion"
	"github.com/Deiviidsito/backend-nasa/internal/grid"
	"github.com/Deiviidsito/backend-nasa/internal/models"
	"github.com/Deiviidsito/backend-nasa/internal/observability"
	"github.com/Deiviidsito/backend-nasa/internal/source"
	"github.com/Deiviidsito/backend-nasa/internal/store"
	"github.com/Deiviidsito/backend-nasa/internal/worker"
)

type Manager struct {
	cfg      *config.Config
	cities   []config.City
	adapters []source.Adapter
	engine   *fusion.Engine
	store    *store.Store
	archive  archive.GridArchive
	metrics  *observability.Metrics
	clock    clockwork.Clock
	pool     *worker.WorkerPool
}

// NewManager wires the refresh pipeline. archive and metrics may be nil;
// clock nil means wall clock.
func NewManager(cfg *config.Config, cities []config.City, adapters []source.Adapter,
	st *store.Store, ar archive.GridArchive, metrics *observability.Metrics,
	clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		cfg:      cfg,
		cities:   cities,
		adapters: adapters,
		engine:   fusion.NewEngine(clock),
		store:    st,
		archive:  ar,
		metrics:  metrics,
		clock:    clock,
		pool:     worker.NewWorkerPool(cfg.Worker.Count, cfg.Worker.BufferSize),
	}
}

// Start launches the background workers that persist published grids.
func (m *Manager) Start(ctx context.Context) {
	m.pool.Start(ctx)
}

// Stop drains the background workers.
func (m *Manager) Stop() {
	m.pool.Stop()
	slog.Info("ingestion manager stopped")
}

// RefreshAll refreshes every configured city concurrently. Per-city failures
// are logged and counted; they never fail the cycle for other cities.
func (m *Manager) RefreshAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, city := range m.cities {
		wg.Add(1)
		go func(city config.City) {
			defer wg.Done()
			if err := m.RefreshCity(ctx, city); err != nil {
				slog.Error("refresh failed", "city", city.ID, "error", err)
			}
		}(city)
	}
	wg.Wait()
}

// RefreshCity runs one full cycle for a city: concurrent source fetches with
// a per-source timeout, fusion, publish, and an async archive write. On error
// the previously published grid stays authoritative.
func (m *Manager) RefreshCity(ctx context.Context, city config.City) error {
	started := m.clock.Now()

	layout, err := grid.Define(city.BBox, city.Resolution)
	if err != nil {
		m.observeRefresh(city.ID, err, 0)
		return err
	}

	now := m.clock.Now().UTC()
	window := models.TimeWindow{Start: now.Add(-m.cfg.Fusion.Window), End: now}

	inputs := m.fetchAll(ctx, city.BBox, window)

	g, err := m.engine.Fuse(city.ID, layout, inputs, window)
	took := m.clock.Since(started)
	m.observeRefresh(city.ID, err, took)
	if err != nil {
		return err
	}

	m.store.Publish(g)
	if m.metrics != nil {
		m.metrics.CellsPublished.WithLabelValues(city.ID).Add(float64(len(g.Cells)))
	}
	slog.Info("published grid",
		"city", city.ID, "cells", len(g.Cells),
		"generated_at", g.GeneratedAt, "took", took)

	if m.archive != nil {
		snapshot := g
		m.pool.Submit(func(ctx context.Context) error {
			if err := m.archive.SaveGrid(ctx, snapshot); err != nil {
				return err
			}
			if keep := m.cfg.Archive.KeepGenerations; keep > 0 {
				if _, err := m.archive.Prune(ctx, snapshot.CityID, keep); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return nil
}

// fetchAll queries every adapter concurrently and waits for all of them to
// settle. A timeout or fetch error becomes a failed Input, never a missing
// one.
func (m *Manager) fetchAll(ctx context.Context, bbox models.BoundingBox, window models.TimeWindow) []fusion.Input {
	inputs := make([]fusion.Input, len(m.adapters))

	var wg sync.WaitGroup
	for i, adapter := range m.adapters {
		wg.Add(1)
		go func(i int, adapter source.Adapter) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.Sources.FetchTimeout)
			defer cancel()

			batch, err := adapter.Fetch(fetchCtx, bbox, window)
			if m.metrics != nil {
				m.metrics.ObserveFetch(adapter.Name(), err)
			}
			if err != nil {
				slog.Warn("source fetch failed", "source", adapter.Name(), "error", err)
				inputs[i] = fusion.Input{SourceID: adapter.Name(), Resolution: adapter.Resolution(), Err: err}
				return
			}
			slog.Debug("source fetch complete", "source", adapter.Name(), "readings", len(batch.Readings))
			inputs[i] = fusion.Input{
				SourceID:   adapter.Name(),
				Resolution: adapter.Resolution(),
				Readings:   batch.Readings,
			}
		}(i, adapter)
	}
	wg.Wait()

	return inputs
}

func (m *Manager) observeRefresh(cityID string, err error, took time.Duration) {
	if m.metrics != nil {
		m.metrics.ObserveRefresh(cityID, err, took)
	}
}
