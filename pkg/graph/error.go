package graph

import "errors"

// ErrUnknownEntity is returned when an operation references a node that
// doesn't exist.
var ErrUnknownEntity = errors.New("unknown graph entity")

func isUnknown(err error) bool {
	return errors.Is(err, ErrUnknownEntity)
}
