package domain

import "errors"

var (
	// ErrInvalidInput is returned for empty or malformed request input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRouteNotFound is returned when no path exists between two locations.
	ErrRouteNotFound = errors.New("route not found")
	// ErrUpstreamTimeout is returned when the route provider or the
	// catalogue store does not answer before the deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstreamUnavailable is returned when an upstream cannot be reached
	// or fails.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInvalidCoordinate is returned for latitude/longitude out of range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrStationNotFound is returned by catalogue lookups by ID.
	ErrStationNotFound = errors.New("station not found")
)
