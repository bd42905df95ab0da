package episodic

import "errors"

var (
	// ErrStorage is returned when the metadata store fails. It is fatal for
	// the triggering operation.
	ErrStorage = errors.New("episodic storage failed")

	// ErrNotFound is returned when a requested interaction doesn't exist.
	ErrNotFound = errors.New("interaction not found")
)
