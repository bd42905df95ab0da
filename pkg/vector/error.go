package vector

import "errors"

var (
	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrConnection is returned when the vector store is unreachable.
	ErrConnection = errors.New("vector store connection failed")
)
