package ingestion

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Deiviidsito/backend-nasa/internal/config"
	"github.com/Deiviidsito/backend-nasa/internal/models"
	"github.com/Deiviidsito/backend-nasa/internal/source"
	"github.com/Deiviidsito/backend-nasa/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAdapter struct {
	name       string
	resolution float64
	variable   string
	value      float64
	err        error
	calls      atomic.Int64
	delay      time.Duration
}

func (f *fakeAdapter) Name() string        { return f.name }
func (f *fakeAdapter) Resolution() float64 { return f.resolution }

func (f *fakeAdapter) Fetch(ctx context.Context, bbox models.BoundingBox, window models.TimeWindow) (models.ReadingBatch, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return models.ReadingBatch{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return models.ReadingBatch{}, f.err
	}

	// A handful of points spread along the bbox diagonal.
	var readings []models.Reading
	for i := 0; i < 5; i++ {
		frac := float64(i) / 5
		readings = append(readings, models.Reading{
			SourceID:  f.name,
			Variable:  f.variable,
			Timestamp: window.End.Add(-time.Minute),
			Latitude:  bbox.South + frac*(bbox.North-bbox.South),
			Longitude: bbox.West + frac*(bbox.East-bbox.West),
			Value:     f.value,
		})
	}
	return models.ReadingBatch{SourceID: f.name, Readings: readings}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Worker:  config.WorkerConfig{Count: 1, BufferSize: 10},
		Sources: config.SourcesConfig{FetchTimeout: time.Second},
		Fusion:  config.FusionConfig{RefreshInterval: 15 * time.Minute, Window: time.Hour},
	}
}

var testCity = config.City{
	ID:         "los_angeles",
	Name:       "Los Angeles, CA",
	BBox:       models.BoundingBox{West: -118.7, South: 33.6, East: -117.8, North: 34.4},
	Resolution: 0.03,
}

func TestRefreshCity_PublishesGrid(t *testing.T) {
	st := store.New()
	adapters := []source.Adapter{
		&fakeAdapter{name: "openaq", variable: models.VarPM25, value: 30},
		&fakeAdapter{name: "merra2", resolution: 0.5, variable: models.VarTemp, value: 298},
	}
	m := NewManager(testConfig(), []config.City{testCity}, adapters, st, nil, nil, nil)

	if err := m.RefreshCity(context.Background(), testCity); err != nil {
		t.Fatalf("RefreshCity failed: %v", err)
	}

	g, err := st.Get("los_angeles")
	if err != nil {
		t.Fatalf("grid not published: %v", err)
	}
	if len(g.Cells) != g.Rows*g.Cols {
		t.Errorf("published grid incomplete: %d cells for %dx%d", len(g.Cells), g.Rows, g.Cols)
	}
}

func TestRefreshCity_FailedSourceLowersQuality(t *testing.T) {
	healthy := []source.Adapter{
		&fakeAdapter{name: "openaq", variable: models.VarPM25, value: 30},
		&fakeAdapter{name: "merra2", resolution: 0.5, variable: models.VarTemp, value: 298},
	}
	degraded := []source.Adapter{
		&fakeAdapter{name: "openaq", variable: models.VarPM25, value: 30},
		&fakeAdapter{name: "merra2", resolution: 0.5, err: errors.New("upstream down")},
	}

	stHealthy := store.New()
	if err := NewManager(testConfig(), nil, healthy, stHealthy, nil, nil, nil).
		RefreshCity(context.Background(), testCity); err != nil {
		t.Fatalf("healthy refresh failed: %v", err)
	}
	stDegraded := store.New()
	if err := NewManager(testConfig(), nil, degraded, stDegraded, nil, nil, nil).
		RefreshCity(context.Background(), testCity); err != nil {
		t.Fatalf("one failed source must not fail the cycle: %v", err)
	}

	gh, _ := stHealthy.Get("los_angeles")
	gd, _ := stDegraded.Get("los_angeles")
	if gd.Cells[0].DataQuality >= gh.Cells[0].DataQuality {
		t.Errorf("failed source should lower data quality: degraded %g vs healthy %g",
			gd.Cells[0].DataQuality, gh.Cells[0].DataQuality)
	}
}

func TestRefreshCity_AllSourcesFailedKeepsPreviousGrid(t *testing.T) {
	st := store.New()
	good := []source.Adapter{&fakeAdapter{name: "openaq", variable: models.VarPM25, value: 30}}
	if err := NewManager(testConfig(), nil, good, st, nil, nil, nil).
		RefreshCity(context.Background(), testCity); err != nil {
		t.Fatalf("seed refresh failed: %v", err)
	}
	seeded, _ := st.Get("los_angeles")

	bad := []source.Adapter{&fakeAdapter{name: "openaq", err: errors.New("down")}}
	err := NewManager(testConfig(), nil, bad, st, nil, nil, nil).
		RefreshCity(context.Background(), testCity)
	if !errors.Is(err, models.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}

	current, getErr := st.Get("los_angeles")
	if getErr != nil {
		t.Fatalf("previous grid should still be served: %v", getErr)
	}
	if !current.GeneratedAt.Equal(seeded.GeneratedAt) {
		t.Error("failed cycle must not replace the published grid")
	}
}

func TestRefreshCity_SlowSourceTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.Sources.FetchTimeout = 20 * time.Millisecond

	st := store.New()
	adapters := []source.Adapter{
		&fakeAdapter{name: "openaq", variable: models.VarPM25, value: 30},
		&fakeAdapter{name: "tempo", resolution: 0.1, variable: models.VarNO2, value: 1e16, delay: time.Second},
	}
	m := NewManager(cfg, nil, adapters, st, nil, nil, nil)

	start := time.Now()
	if err := m.RefreshCity(context.Background(), testCity); err != nil {
		t.Fatalf("RefreshCity failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("slow source should be cut off by the timeout, took %v", elapsed)
	}

	g, _ := st.Get("los_angeles")
	for _, s := range g.Cells[0].Sources {
		if s == "tempo" {
			t.Error("timed-out source must not contribute readings")
		}
	}
}

func TestRefreshAll_AllCitiesPublished(t *testing.T) {
	cities := []config.City{
		testCity,
		{ID: "chicago", BBox: models.BoundingBox{West: -88.0, South: 41.6, East: -87.5, North: 42.1}, Resolution: 0.03},
	}
	st := store.New()
	adapter := &fakeAdapter{name: "openaq", variable: models.VarPM25, value: 30}
	m := NewManager(testConfig(), cities, []source.Adapter{adapter}, st, nil, nil, nil)

	m.RefreshAll(context.Background())

	for _, city := range cities {
		if !st.Ready(city.ID) {
			t.Errorf("city %s not published", city.ID)
		}
	}
	if adapter.calls.Load() != 2 {
		t.Errorf("expected one fetch per city, got %d", adapter.calls.Load())
	}
}

func TestManager_ArchivesInBackground(t *testing.T) {
	st := store.New()
	ar := &fakeArchive{}
	adapters := []source.Adapter{&fakeAdapter{name: "openaq", variable: models.VarPM25, value: 30}}
	m := NewManager(testConfig(), nil, adapters, st, ar, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	if err := m.RefreshCity(ctx, testCity); err != nil {
		t.Fatalf("RefreshCity failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ar.saves.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	m.Stop()

	if ar.saves.Load() != 1 {
		t.Errorf("expected 1 archived grid, got %d", ar.saves.Load())
	}
}

type fakeArchive struct {
	saves atomic.Int64
}

func (f *fakeArchive) SaveGrid(ctx context.Context, g *models.CityGrid) error {
	f.saves.Add(1)
	return nil
}

func (f *fakeArchive) ListGenerations(ctx context.Context, cityID string, limit int) ([]time.Time, error) {
	return nil, nil
}

func (f *fakeArchive) LoadGrid(ctx context.Context, cityID string, generatedAt time.Time) (*models.CityGrid, error) {
	return nil, models.ErrGridNotReady
}

func (f *fakeArchive) Prune(ctx context.Context, cityID string, keep int) (int64, error) {
	return 0, nil
}

func (f *fakeArchive) Close() error { return nil }
