package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testGrid(cityID string, generation time.Time, score float64) *models.CityGrid {
	cells := make([]models.GridCell, 4)
	for i := range cells {
		cells[i] = models.GridCell{
			Row:       i / 2,
			Col:       i % 2,
			RiskScore: score,
			RiskClass: models.ClassifyRisk(score),
		}
	}
	return &models.CityGrid{
		CityID:      cityID,
		Rows:        2,
		Cols:        2,
		GeneratedAt: generation,
		Cells:       cells,
	}
}

func TestGet_NotReady(t *testing.T) {
	s := New()
	_, err := s.Get("los_angeles")
	if !errors.Is(err, models.ErrGridNotReady) {
		t.Errorf("expected ErrGridNotReady, got %v", err)
	}
	if s.Ready("los_angeles") {
		t.Error("Ready should be false before first publish")
	}
}

func TestPublishGet(t *testing.T) {
	s := New()
	gen := time.Now().UTC()
	s.Publish(testGrid("los_angeles", gen, 40))

	g, err := s.Get("los_angeles")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !g.GeneratedAt.Equal(gen) {
		t.Errorf("expected generation %v, got %v", gen, g.GeneratedAt)
	}

	got, ok := s.Generation("los_angeles")
	if !ok || !got.Equal(gen) {
		t.Errorf("Generation = %v,%v, want %v,true", got, ok, gen)
	}
}

func TestPublish_CitiesIndependent(t *testing.T) {
	s := New()
	s.Publish(testGrid("los_angeles", time.Now(), 40))

	if _, err := s.Get("chicago"); !errors.Is(err, models.ErrGridNotReady) {
		t.Errorf("publishing one city must not affect another: %v", err)
	}
}

// A reader racing a republish must observe one generation in its entirety:
// every cell's score matches the grid's generation stamp.
func TestPublish_AtomicSwap(t *testing.T) {
	s := New()
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	s.Publish(testGrid("los_angeles", base, 0))

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			s.Publish(testGrid("los_angeles", base.Add(time.Duration(i)*time.Second), float64(i%100)))
		}
		close(done)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				g, err := s.Get("los_angeles")
				if err != nil {
					t.Errorf("Get failed mid-publish: %v", err)
					return
				}
				want := g.Cells[0].RiskScore
				for _, cell := range g.Cells {
					if cell.RiskScore != want {
						t.Errorf("observed mixed generations: %g vs %g", cell.RiskScore, want)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}

func TestBroadcaster_PublishNotifies(t *testing.T) {
	s := New()
	id, events := s.Broadcaster().Subscribe()
	defer s.Broadcaster().Unsubscribe(id)

	gen := time.Now().UTC()
	s.Publish(testGrid("chicago", gen, 25))

	select {
	case ev := <-events:
		if ev.CityID != "chicago" || !ev.GeneratedAt.Equal(gen) {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a publish event")
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.Subscribe()
	b.Close()

	if _, open := <-ch; open {
		t.Error("expected subscriber channel to be closed")
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("expected no subscribers after Close, got %d", b.SubscriberCount())
	}
}
