// Package compare ranks cities against each other by the risk surface of
// their latest published grids.
package compare

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Deiviidsito/backend-nasa/internal/cache"
	"github.com/Deiviidsito/backend-nasa/internal/models"
	"github.com/Deiviidsito/backend-nasa/internal/store"
)

// CityStats summarizes one city's latest grid for side-by-side comparison.
type CityStats struct {
	CityID      string             `json:"city_id"`
	CityName    string             `json:"city_name,omitempty"`
	GeneratedAt string             `json:"generated_at"`
	Cells       int                `json:"cells"`
	AvgRisk     float64            `json:"avg_risk"`
	MinRisk     float64            `json:"min_risk"`
	MaxRisk     float64            `json:"max_risk"`
	StdRisk     float64            `json:"std_risk"`
	ClassPct    map[string]float64 `json:"class_pct"`
	Rank        int                `json:"rank"`
}

// Result holds the ranked comparison. Missing lists requested cities that
// could not be compared: unknown IDs and cities whose grid is not ready yet.
type Result struct {
	Cities  []CityStats `json:"cities"`
	Missing []string    `json:"missing,omitempty"`
}

// Comparator computes ranked comparisons over the snapshot store.
type Comparator struct {
	names map[string]string
	store *store.Store
	cache *cache.Cache
}

// NewComparator builds a comparator over the configured cities. names maps
// city ID to display name. The cache may be nil.
func NewComparator(names map[string]string, st *store.Store, qc *cache.Cache) *Comparator {
	return &Comparator{names: names, store: st, cache: qc}
}

// Compare ranks the requested cities by average risk, lowest first. Ties
// break on city ID. Cities that are unknown or not yet published land in
// Missing instead of failing the whole request; a request where no city can
// be compared fails with ErrCityNotFound or ErrGridNotReady.
func (c *Comparator) Compare(cityIDs []string) (*Result, error) {
	if len(cityIDs) == 0 {
		return nil, fmt.Errorf("%w: no cities requested", models.ErrInvalidQuery)
	}

	ids := dedupe(cityIDs)

	var key string
	if c.cache != nil {
		key = cache.Key("compare", ids, nil)
		if cached, ok := c.cache.Get(key); ok {
			return cached.(*Result), nil
		}
	}

	result := &Result{}
	anyKnown := false
	for _, id := range ids {
		if _, ok := c.names[id]; !ok {
			result.Missing = append(result.Missing, id)
			continue
		}
		anyKnown = true

		g, err := c.store.Get(id)
		if err != nil {
			if errors.Is(err, models.ErrGridNotReady) {
				result.Missing = append(result.Missing, id)
				continue
			}
			return nil, err
		}
		result.Cities = append(result.Cities, statsOf(id, c.names[id], g))
	}

	if !anyKnown {
		return nil, fmt.Errorf("%w: none of %v is configured", models.ErrCityNotFound, ids)
	}
	if len(result.Cities) == 0 {
		return nil, fmt.Errorf("%w: no requested city has a published grid", models.ErrGridNotReady)
	}

	sort.Slice(result.Cities, func(i, j int) bool {
		if result.Cities[i].AvgRisk != result.Cities[j].AvgRisk {
			return result.Cities[i].AvgRisk < result.Cities[j].AvgRisk
		}
		return result.Cities[i].CityID < result.Cities[j].CityID
	})
	for i := range result.Cities {
		result.Cities[i].Rank = i + 1
	}
	sort.Strings(result.Missing)

	if c.cache != nil {
		c.cache.Put(key, result, ids)
	}
	return result, nil
}

func statsOf(id, name string, g *models.CityGrid) CityStats {
	scores := make([]float64, len(g.Cells))
	classes := map[models.RiskClass]int{}
	for i, cell := range g.Cells {
		scores[i] = cell.RiskScore
		classes[cell.RiskClass]++
	}

	n := float64(len(scores))
	pct := map[string]float64{
		string(models.RiskGood):     100 * float64(classes[models.RiskGood]) / n,
		string(models.RiskModerate): 100 * float64(classes[models.RiskModerate]) / n,
		string(models.RiskBad):      100 * float64(classes[models.RiskBad]) / n,
	}

	// StdDev needs two samples; a single-cell grid would otherwise yield NaN,
	// which is not JSON-encodable.
	std := 0.0
	if len(scores) > 1 {
		std = stat.StdDev(scores, nil)
	}

	return CityStats{
		CityID:      id,
		CityName:    name,
		GeneratedAt: g.GeneratedAt.Format(time.RFC3339),
		Cells:       len(scores),
		AvgRisk:     stat.Mean(scores, nil),
		MinRisk:     floats.Min(scores),
		MaxRisk:     floats.Max(scores),
		StdRisk:     std,
		ClassPct:    pct,
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
