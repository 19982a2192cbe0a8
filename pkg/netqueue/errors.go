package netqueue

import "errors"

// ErrNotFound is returned when an operation references a request ID
// that is not (or no longer) in the queue.
var ErrNotFound = errors.New("netqueue: request not found")
