package domain

import "errors"

// Sentinel errors shared across components. Handlers translate these into
// structured failure responses; anything else is treated as unexpected.
var (
	// ErrNotFound indicates a session, plugin, order or invoice is absent.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates an owner mismatch on a session operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidArgument indicates malformed input: bad date formats,
	// non-positive quantities, unknown enum values.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstream indicates a model or network failure.
	ErrUpstream = errors.New("upstream failure")

	// ErrConfiguration indicates missing required startup configuration.
	// Fatal at process start, never returned from request paths.
	ErrConfiguration = errors.New("configuration error")
)
