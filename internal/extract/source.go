// Package extract runs the per-connection extraction phase of a comparison.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/kamusis/envdiff/internal/config"
	"github.com/kamusis/envdiff/internal/snapshot"
)

// Source is the database collaborator. Each call opens its own session and
// releases it before returning.
type Source interface {
	FetchCatalog(ctx context.Context, conn config.Connection) ([]snapshot.CatalogRow, error)
	FetchEvents(ctx context.Context, conn config.Connection) ([]snapshot.EventRow, error)
}

// ConnectionError is a failure reported by the collaborator for one connection.
type ConnectionError struct {
	Key string
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Options bounds the extraction phase.
type Options struct {
	// Workers caps concurrent extractions; values below 1 mean 1.
	Workers int
	// Timeout bounds a single connection's extraction; zero means none.
	Timeout time.Duration
	// Grace is how long a timed out extraction gets to close its session
	// before the worker gives up on it; zero means DefaultGrace.
	Grace time.Duration
}

const DefaultGrace = 5 * time.Second
