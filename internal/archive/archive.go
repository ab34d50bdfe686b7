// Package archive persists published grids so past generations can be
// replayed and pruned independently of the in-memory snapshot store.
package archive

import (
	"context"
	"time"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

type GridArchive interface {
	SaveGrid(ctx context.Context, g *models.CityGrid) error
	ListGenerations(ctx context.Context, cityID string, limit int) ([]time.Time, error)
	LoadGrid(ctx context.Context, cityID string, generatedAt time.Time) (*models.CityGrid, error)
	Prune(ctx context.Context, cityID string, keep int) (int64, error)
	Close() error
}
