// Package fusion aligns readings from heterogeneous sources onto a city grid
// and computes a composite risk score per cell.
package fusion

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/jonboulle/clockwork"

	"github.com/Deiviidsito/backend-nasa/internal/grid"
	"github.com/Deiviidsito/backend-nasa/internal/models"
)

// Input is the settled outcome of one source adapter for a cycle: either a
// batch of readings or a failure. A failed source is excluded from fusion for
// every cell; it lowers data quality but never aborts the cycle.
type Input struct {
	SourceID string
	// Resolution is the source's native sample spacing in degrees. Zero means
	// point data (ground stations).
	Resolution float64
	Readings   []models.Reading
	Err        error
}

type Engine struct {
	clock clockwork.Clock
}

func NewEngine(clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{clock: clock}
}

// cellAccum collects weighted contributions per variable before reduction.
type cellAccum struct {
	sum     map[string]float64
	weight  map[string]float64
	sources map[string]struct{}
}

// Fuse produces one fully populated CityGrid from the settled source inputs.
// It fails only when the layout is unusable or every source failed; in both
// cases the caller keeps serving the previously published grid.
func (e *Engine) Fuse(cityID string, layout grid.Layout, inputs []Input, window models.TimeWindow) (*models.CityGrid, error) {
	if layout.Rows <= 0 || layout.Cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d cells", models.ErrInvalidGridDefinition, layout.Rows, layout.Cols)
	}

	expected := len(inputs)
	if expected == 0 {
		return nil, fmt.Errorf("%w: no sources configured", models.ErrSourceUnavailable)
	}

	contributing := 0
	accums := make([]cellAccum, layout.CellCount())
	for i := range accums {
		accums[i] = cellAccum{
			sum:     make(map[string]float64),
			weight:  make(map[string]float64),
			sources: make(map[string]struct{}),
		}
	}

	for _, in := range inputs {
		if in.Err != nil {
			slog.Warn("source excluded from fusion", "city", cityID, "source", in.SourceID, "error", in.Err)
			continue
		}
		contributing++
		e.assign(layout, accums, in, window)
	}

	if contributing == 0 {
		return nil, fmt.Errorf("%w: all %d sources failed for %s", models.ErrSourceUnavailable, expected, cityID)
	}

	cells := make([]models.GridCell, layout.CellCount())
	for r := 0; r < layout.Rows; r++ {
		for c := 0; c < layout.Cols; c++ {
			idx := r*layout.Cols + c
			acc := accums[idx]

			values := make(map[string]float64, len(acc.sum))
			for variable, sum := range acc.sum {
				if w := acc.weight[variable]; w > 0 {
					values[variable] = sum / w
				}
			}

			sources := make([]string, 0, len(acc.sources))
			for s := range acc.sources {
				sources = append(sources, s)
			}
			sort.Strings(sources)

			score := computeRisk(values)
			lat, lon := layout.Center(r, c)

			cells[idx] = models.GridCell{
				Row:         r,
				Col:         c,
				CenterLat:   lat,
				CenterLon:   lon,
				Values:      values,
				RiskScore:   score,
				RiskClass:   models.ClassifyRisk(score),
				DataQuality: float64(len(sources)) / float64(expected),
				Sources:     sources,
			}
		}
	}

	return &models.CityGrid{
		CityID:      cityID,
		BBox:        layout.BBox,
		Resolution:  layout.Resolution,
		Rows:        layout.Rows,
		Cols:        layout.Cols,
		GeneratedAt: e.clock.Now().UTC(),
		Cells:       cells,
	}, nil
}

// assign maps one source's readings onto grid cells. Point sources land on
// the single nearest cell; a source whose native resolution is more than
// twice the grid's spreads each reading over the cells within one native
// spacing, weighted by inverse squared distance. Assignment is deterministic:
// cell order is row-major so distance ties resolve to the lowest (row, col).
func (e *Engine) assign(layout grid.Layout, accums []cellAccum, in Input, window models.TimeWindow) {
	coarse := in.Resolution > 2*layout.Resolution

	for _, r := range in.Readings {
		if !window.Contains(r.Timestamp) {
			continue
		}

		if !coarse {
			row, col, ok := layout.Nearest(r.Latitude, r.Longitude)
			if !ok {
				continue
			}
			acc := &accums[row*layout.Cols+col]
			acc.sum[r.Variable] += r.Value
			acc.weight[r.Variable] += 1
			acc.sources[in.SourceID] = struct{}{}
			continue
		}

		e.spread(layout, accums, in, r)
	}
}

// spread distributes a coarse reading across every cell center within one
// native resolution of the sample point.
func (e *Engine) spread(layout grid.Layout, accums []cellAccum, in Input, r models.Reading) {
	radius := in.Resolution

	minRow := int(math.Floor((r.Latitude - radius - layout.BBox.South) / layout.Resolution))
	maxRow := int(math.Ceil((r.Latitude + radius - layout.BBox.South) / layout.Resolution))
	minCol := int(math.Floor((r.Longitude - radius - layout.BBox.West) / layout.Resolution))
	maxCol := int(math.Ceil((r.Longitude + radius - layout.BBox.West) / layout.Resolution))

	touched := false
	for row := max(0, minRow); row <= min(layout.Rows-1, maxRow); row++ {
		for col := max(0, minCol); col <= min(layout.Cols-1, maxCol); col++ {
			lat, lon := layout.Center(row, col)
			dLat := lat - r.Latitude
			dLon := lon - r.Longitude
			d2 := dLat*dLat + dLon*dLon
			if d2 > radius*radius {
				continue
			}

			// Small floor keeps a sample sitting exactly on a center finite.
			w := 1 / (d2 + 1e-6)
			acc := &accums[row*layout.Cols+col]
			acc.sum[r.Variable] += w * r.Value
			acc.weight[r.Variable] += w
			acc.sources[in.SourceID] = struct{}{}
			touched = true
		}
	}

	// A coarse sample whose radius covers no cell center still counts for the
	// single nearest cell, if it is inside the grid at all.
	if !touched {
		if row, col, ok := layout.Nearest(r.Latitude, r.Longitude); ok {
			acc := &accums[row*layout.Cols+col]
			acc.sum[r.Variable] += r.Value
			acc.weight[r.Variable] += 1
			acc.sources[in.SourceID] = struct{}{}
		}
	}
}
