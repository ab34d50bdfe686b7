// Package store holds the latest published, immutable grid snapshot per city.
package store

import (
	"sync"
	"time"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

// Store keeps one reference per city to the latest published CityGrid.
// Publish swaps the reference atomically: a reader holds either the old or
// the new grid in its entirety, never a mix, because grids are immutable and
// handed out by pointer. A failed fusion for one city never disturbs the
// reference of another.
type Store struct {
	mu          sync.RWMutex
	grids       map[string]*models.CityGrid
	broadcaster *Broadcaster
}

func New() *Store {
	return &Store{
		grids:       make(map[string]*models.CityGrid),
		broadcaster: NewBroadcaster(),
	}
}

// Publish installs grid as the current snapshot for its city and notifies
// subscribers of the new generation.
func (s *Store) Publish(grid *models.CityGrid) {
	s.mu.Lock()
	s.grids[grid.CityID] = grid
	s.mu.Unlock()

	s.broadcaster.Broadcast(PublishEvent{
		CityID:      grid.CityID,
		GeneratedAt: grid.GeneratedAt,
	})
}

// Get returns the current snapshot, or ErrGridNotReady if nothing has been
// published for the city yet.
func (s *Store) Get(cityID string) (*models.CityGrid, error) {
	s.mu.RLock()
	grid, ok := s.grids[cityID]
	s.mu.RUnlock()

	if !ok {
		return nil, models.ErrGridNotReady
	}
	return grid, nil
}

// Generation reports the generated_at stamp of the current snapshot. ok is
// false when no grid has been published.
func (s *Store) Generation(cityID string) (time.Time, bool) {
	s.mu.RLock()
	grid, ok := s.grids[cityID]
	s.mu.RUnlock()

	if !ok {
		return time.Time{}, false
	}
	return grid.GeneratedAt, true
}

// Ready reports whether a grid has ever been published for the city.
func (s *Store) Ready(cityID string) bool {
	_, ok := s.Generation(cityID)
	return ok
}

func (s *Store) Broadcaster() *Broadcaster {
	return s.broadcaster
}
