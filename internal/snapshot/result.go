// Package snapshot turns raw catalog and event rows for one connection into
// the immutable models the diff engine compares.
package snapshot

import (
	"fmt"

	"github.com/kamusis/envdiff/internal/config"
)

// Unavailable marks a connection whose data could not be obtained.
// The diff engine treats it as "not inspected", never as "empty".
type Unavailable struct {
	Key string
	Err error
}

func (e *Unavailable) Error() string {
	return fmt.Sprintf("snapshot unavailable for %s: %v", e.Key, e.Err)
}

func (e *Unavailable) Unwrap() error { return e.Err }

// Result is one connection's slot in the collected snapshot set.
// Exactly one of Snapshot and Err is set.
type Result[T any] struct {
	Conn     config.Connection
	Snapshot T
	Err      error
}

// Available reports whether the snapshot was built.
func (r Result[T]) Available() bool {
	return r.Err == nil
}
