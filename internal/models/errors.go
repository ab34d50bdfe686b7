package models

import "errors"

// Error taxonomy for the grid service. Source-level failures are recovered
// inside the fusion engine and surface only as reduced data quality; the rest
// map directly onto HTTP statuses at the API boundary.
var (
	ErrCityNotFound          = errors.New("city not found")
	ErrGridNotReady          = errors.New("no grid published for city")
	ErrOutOfBounds           = errors.New("coordinates outside city grid")
	ErrInvalidQuery          = errors.New("invalid query")
	ErrInvalidGridDefinition = errors.New("invalid grid definition")
	ErrSourceUnavailable     = errors.New("source unavailable")
)
