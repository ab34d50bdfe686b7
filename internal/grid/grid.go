// Package grid maps a city bounding box and resolution onto a fixed,
// deterministic array of cells.
package grid

import (
	"fmt"
	"math"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

// Layout is the cell geometry for a city. It carries no data, only the
// mapping between coordinates and (row, col) indices.
type Layout struct {
	BBox       models.BoundingBox
	Resolution float64
	Rows       int
	Cols       int
}

// Define builds the layout covering bbox at the given resolution in degrees
// per cell. Degenerate boxes or non-positive resolutions fail with
// ErrInvalidGridDefinition.
func Define(bbox models.BoundingBox, resolution float64) (Layout, error) {
	if resolution <= 0 {
		return Layout{}, fmt.Errorf("%w: resolution %g", models.ErrInvalidGridDefinition, resolution)
	}
	if !bbox.Valid() {
		return Layout{}, fmt.Errorf("%w: bbox (%g,%g,%g,%g)", models.ErrInvalidGridDefinition,
			bbox.West, bbox.South, bbox.East, bbox.North)
	}

	rows := cellSpan(bbox.North-bbox.South, resolution)
	cols := cellSpan(bbox.East-bbox.West, resolution)
	if rows <= 0 || cols <= 0 {
		return Layout{}, fmt.Errorf("%w: %dx%d cells", models.ErrInvalidGridDefinition, rows, cols)
	}

	return Layout{BBox: bbox, Resolution: resolution, Rows: rows, Cols: cols}, nil
}

// cellSpan counts the cells needed to cover extent. The epsilon keeps an
// extent that is an exact multiple of the resolution, up to float rounding,
// from gaining a spurious extra cell (0.9/0.03 evaluates just above 30).
func cellSpan(extent, resolution float64) int {
	return int(math.Ceil(extent/resolution - 1e-9))
}

// Of recovers the layout of a published grid.
func Of(g *models.CityGrid) Layout {
	return Layout{BBox: g.BBox, Resolution: g.Resolution, Rows: g.Rows, Cols: g.Cols}
}

func (l Layout) CellCount() int { return l.Rows * l.Cols }

// Center returns the center coordinates of cell (row, col).
func (l Layout) Center(row, col int) (lat, lon float64) {
	lat = l.BBox.South + (float64(row)+0.5)*l.Resolution
	lon = l.BBox.West + (float64(col)+0.5)*l.Resolution
	return lat, lon
}

// Nearest returns the indices of the cell whose center is closest to the
// point. ok is false when the point lies outside the bounding box; the bound
// check is strict, there is no nearest-wrap. A point equidistant between two
// centers resolves to the lower index.
func (l Layout) Nearest(lat, lon float64) (row, col int, ok bool) {
	if !l.BBox.Contains(lat, lon) {
		return 0, 0, false
	}
	row = nearestIndex(lat-l.BBox.South, l.Resolution, l.Rows)
	col = nearestIndex(lon-l.BBox.West, l.Resolution, l.Cols)
	return row, col, true
}

func nearestIndex(offset, resolution float64, n int) int {
	idx := int(math.Floor(offset / resolution))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	// A point on the shared edge of two cells is equidistant to both centers;
	// resolve to the lower index.
	if idx > 0 && offset == float64(idx)*resolution {
		idx--
	}
	return idx
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two points in km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
