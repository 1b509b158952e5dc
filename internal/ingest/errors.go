package ingest

import "errors"

// Validation failures are reported before any side effect takes place.
var (
	// ErrInvalidReport indicates an inbound event failed validation.
	ErrInvalidReport = errors.New("ingest: invalid report")
)
