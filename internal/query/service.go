// Package query resolves spatial queries against published city grids:
// nearest-cell lookups, bounding-box filters, and format conversion.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Deiviidsito/backend-nasa/internal/cache"
	"github.com/Deiviidsito/backend-nasa/internal/grid"
	"github.com/Deiviidsito/backend-nasa/internal/models"
	"github.com/Deiviidsito/backend-nasa/internal/store"
)

type Service struct {
	known map[string]struct{}
	store *store.Store
	cache *cache.Cache
}

// NewService builds a query service over the given store. cityIDs is the set
// of configured cities; anything else resolves to CityNotFound. qc may be nil
// to disable memoization.
func NewService(cityIDs []string, st *store.Store, qc *cache.Cache) *Service {
	known := make(map[string]struct{}, len(cityIDs))
	for _, id := range cityIDs {
		known[id] = struct{}{}
	}
	return &Service{known: known, store: st, cache: qc}
}

// CellView is one grid cell projected for the API surface.
type CellView struct {
	Row         int                `json:"row"`
	Col         int                `json:"col"`
	Lat         float64            `json:"lat"`
	Lon         float64            `json:"lon"`
	Values      map[string]float64 `json:"values"`
	RiskScore   float64            `json:"risk_score"`
	RiskClass   models.RiskClass   `json:"risk_class"`
	DataQuality float64            `json:"data_quality"`
	Sources     []string           `json:"sources"`
}

// NearestResult is the answer to a point lookup.
type NearestResult struct {
	CityID      string   `json:"city_id"`
	GeneratedAt string   `json:"generated_at"`
	DistanceKm  float64  `json:"distance_km"`
	Cell        CellView `json:"cell"`
}

// GridResult is the answer to a grid query: the matching cells of exactly one
// published generation.
type GridResult struct {
	CityID      string             `json:"city_id"`
	GeneratedAt string             `json:"generated_at"`
	BBox        models.BoundingBox `json:"bbox"`
	TotalCells  int                `json:"total_cells"`
	Cells       []CellView         `json:"cells"`
	Summary     Summary            `json:"summary"`
}

// Summary counts returned cells per risk class.
type Summary struct {
	Good     int `json:"good"`
	Moderate int `json:"moderate"`
	Bad      int `json:"bad"`
}

// Params are the optional filters of a grid query.
type Params struct {
	BBox       *models.BoundingBox
	MinRisk    *float64
	MinQuality *float64
	Pollutants []string
	Limit      int
}

func (s *Service) grid(cityID string) (*models.CityGrid, error) {
	if _, ok := s.known[cityID]; !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrCityNotFound, cityID)
	}
	return s.store.Get(cityID)
}

// Nearest returns the cell whose center is closest to (lat, lon). Points
// outside the grid's bounding box fail with ErrOutOfBounds; the bound check
// is strict, not nearest-wrap.
func (s *Service) Nearest(cityID string, lat, lon float64) (*NearestResult, error) {
	g, err := s.grid(cityID)
	if err != nil {
		return nil, err
	}

	layout := grid.Of(g)
	row, col, ok := layout.Nearest(lat, lon)
	if !ok {
		return nil, fmt.Errorf("%w: (%g, %g) outside (%g,%g,%g,%g)", models.ErrOutOfBounds,
			lat, lon, g.BBox.West, g.BBox.South, g.BBox.East, g.BBox.North)
	}

	cell := g.Cell(row, col)
	return &NearestResult{
		CityID:      cityID,
		GeneratedAt: g.GeneratedAt.Format(time.RFC3339),
		DistanceKm:  grid.Haversine(lat, lon, cell.CenterLat, cell.CenterLon),
		Cell:        viewOf(cell, nil),
	}, nil
}

// Query returns the cells matching the filters, reading the whole result
// from exactly one grid generation. Results are memoized until the city
// republishes or the cache TTL lapses.
func (s *Service) Query(cityID string, p Params) (*GridResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	key := cache.Key("query", []string{cityID}, p.cacheParams())
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(*GridResult), nil
		}
	}

	g, err := s.grid(cityID)
	if err != nil {
		return nil, err
	}

	result := collect(g, p)
	if s.cache != nil {
		s.cache.Put(key, result, []string{cityID})
	}
	return result, nil
}

func collect(g *models.CityGrid, p Params) *GridResult {
	result := &GridResult{
		CityID:      g.CityID,
		GeneratedAt: g.GeneratedAt.Format(time.RFC3339),
		BBox:        g.BBox,
		TotalCells:  len(g.Cells),
		Cells:       []CellView{},
	}

	for i := range g.Cells {
		cell := &g.Cells[i]
		if p.BBox != nil && !p.BBox.Contains(cell.CenterLat, cell.CenterLon) {
			continue
		}
		if p.MinRisk != nil && cell.RiskScore < *p.MinRisk {
			continue
		}
		if p.MinQuality != nil && cell.DataQuality < *p.MinQuality {
			continue
		}
		if p.Limit > 0 && len(result.Cells) >= p.Limit {
			break
		}

		result.Cells = append(result.Cells, viewOf(cell, p.Pollutants))
		switch cell.RiskClass {
		case models.RiskGood:
			result.Summary.Good++
		case models.RiskModerate:
			result.Summary.Moderate++
		case models.RiskBad:
			result.Summary.Bad++
		}
	}

	return result
}

// viewOf projects a cell, optionally restricted to the requested variables.
func viewOf(cell *models.GridCell, pollutants []string) CellView {
	values := cell.Values
	if len(pollutants) > 0 {
		values = make(map[string]float64, len(pollutants))
		for _, v := range pollutants {
			if val, ok := cell.Values[v]; ok {
				values[v] = val
			}
		}
	}

	return CellView{
		Row:         cell.Row,
		Col:         cell.Col,
		Lat:         cell.CenterLat,
		Lon:         cell.CenterLon,
		Values:      values,
		RiskScore:   cell.RiskScore,
		RiskClass:   cell.RiskClass,
		DataQuality: cell.DataQuality,
		Sources:     cell.Sources,
	}
}

func (p Params) validate() error {
	if p.BBox != nil && !p.BBox.Valid() {
		return fmt.Errorf("%w: bbox (%g,%g,%g,%g)", models.ErrInvalidQuery,
			p.BBox.West, p.BBox.South, p.BBox.East, p.BBox.North)
	}
	if p.MinRisk != nil && (*p.MinRisk < 0 || *p.MinRisk > 100) {
		return fmt.Errorf("%w: min_risk %g outside [0,100]", models.ErrInvalidQuery, *p.MinRisk)
	}
	if p.MinQuality != nil && (*p.MinQuality < 0 || *p.MinQuality > 1) {
		return fmt.Errorf("%w: min_quality %g outside [0,1]", models.ErrInvalidQuery, *p.MinQuality)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", models.ErrInvalidQuery, p.Limit)
	}
	return nil
}

func (p Params) cacheParams() map[string]string {
	params := make(map[string]string)
	if p.BBox != nil {
		params["bbox"] = fmt.Sprintf("%g,%g,%g,%g", p.BBox.West, p.BBox.South, p.BBox.East, p.BBox.North)
	}
	if p.MinRisk != nil {
		params["min_risk"] = fmt.Sprintf("%g", *p.MinRisk)
	}
	if p.MinQuality != nil {
		params["min_quality"] = fmt.Sprintf("%g", *p.MinQuality)
	}
	if len(p.Pollutants) > 0 {
		sorted := make([]string, len(p.Pollutants))
		copy(sorted, p.Pollutants)
		sort.Strings(sorted)
		params["pollutants"] = strings.Join(sorted, ",")
	}
	if p.Limit > 0 {
		params["limit"] = fmt.Sprintf("%d", p.Limit)
	}
	return params
}


