package engine

import "errors"

var (
	// ErrNoCandidates is returned when universe filtering leaves nothing
	// to allocate to. Unlike data gaps this is fatal for the request.
	ErrNoCandidates = errors.New("no suitable assets found")
	// ErrInvalidConfig is returned when a weight vector fails validation.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)
