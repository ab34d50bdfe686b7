// Package source defines the adapter capability every upstream data source
// implements, plus concrete clients for the satellite, ground-station,
// meteorology, and precipitation feeds.
package source

import (
	"context"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

// Adapter fetches normalized readings for a bounding box and time window.
// Every adapter failure is isolated by the fusion cycle: it degrades data
// quality for the affected cells and never aborts the cycle.
type Adapter interface {
	Name() string
	// Resolution is the native sample spacing of the source in degrees.
	// Zero means point data such as ground stations.
	Resolution() float64
	Fetch(ctx context.Context, bbox models.BoundingBox, window models.TimeWindow) (models.ReadingBatch, error)
}
