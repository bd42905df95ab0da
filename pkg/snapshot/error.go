package snapshot

import "errors"

// ErrSnapshot is returned when a checkpoint cannot be recorded or read.
// Snapshot failures never corrupt the underlying stores.
var ErrSnapshot = errors.New("snapshot failed")
