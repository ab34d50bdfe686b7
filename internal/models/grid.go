package models

import "time"

// BoundingBox is a rectangular geographic region (west, south, east, north).
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// Valid reports whether the box spans a positive area.
func (b BoundingBox) Valid() bool {
	return b.East > b.West && b.North > b.South
}

type RiskClass string

const (
	RiskGood     RiskClass = "good"
	RiskModerate RiskClass = "moderate"
	RiskBad      RiskClass = "bad"
)

// Class boundaries partition [0,100] with no gaps or overlaps:
// [0,34) good, [34,67) moderate, [67,100] bad.
const (
	ThresholdModerate = 34.0
	ThresholdBad      = 67.0
)

func ClassifyRisk(score float64) RiskClass {
	switch {
	case score >= ThresholdBad:
		return RiskBad
	case score >= ThresholdModerate:
		return RiskModerate
	default:
		return RiskGood
	}
}

// GridCell holds the fused values for one spatial bucket. Cells are owned
// exclusively by the CityGrid that contains them.
type GridCell struct {
	Row       int
	Col       int
	CenterLat float64
	CenterLon float64
	// Values maps variable name to its aggregated value. A variable with no
	// readings in the cycle is absent from the map, never zero.
	Values      map[string]float64
	RiskScore   float64
	RiskClass   RiskClass
	DataQuality float64
	// Sources lists the source IDs that contributed to this cell, sorted.
	Sources []string
}

// CityGrid is one published generation of a city's risk surface. It is
// immutable after construction; a new fusion cycle supersedes it with a fresh
// grid rather than mutating it in place.
type CityGrid struct {
	CityID      string
	BBox        BoundingBox
	Resolution  float64
	Rows        int
	Cols        int
	GeneratedAt time.Time
	// Cells is row-major: index = row*Cols + col.
	Cells []GridCell
}

func (g *CityGrid) Cell(row, col int) *GridCell {
	return &g.Cells[row*g.Cols+col]
}
