package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch is returned when an embedding does not have the
	// dimensionality of the index it is added to.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
