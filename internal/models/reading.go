package models

import "time"

// Variable names shared by source adapters, the fusion engine, and the query
// surface. Every per-cell value is keyed by one of these.
const (
	VarNO2    = "no2"
	VarO3     = "o3"
	VarPM25   = "pm25"
	VarTemp   = "temp"
	VarWind   = "wind"
	VarPrecip = "precip"
)

// Reading is one normalized observation produced by a source adapter.
// Readings are consumed by a single fusion cycle and not persisted.
type Reading struct {
	SourceID  string
	Variable  string
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Value     float64
	Unit      string
}

// ReadingBatch is the result of one successful adapter fetch.
type ReadingBatch struct {
	SourceID string
	Readings []Reading
}

// TimeWindow bounds the readings a fusion cycle will accept, inclusive.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
