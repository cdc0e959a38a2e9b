package extract

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kamusis/envdiff/internal/config"
	"github.com/kamusis/envdiff/internal/snapshot"
)

// Collector fans extraction out over a bounded worker pool.
type Collector struct {
	src    Source
	opts   Options
	logger *zap.Logger
}

func NewCollector(src Source, opts Options, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	return &Collector{src: src, opts: opts, logger: logger}
}

// Schemas extracts and builds one schema snapshot per connection.
// results[i] always belongs to conns[i].
func (c *Collector) Schemas(ctx context.Context, conns []config.Connection) []snapshot.Result[*snapshot.SchemaSnapshot] {
	return collect(ctx, c, conns, "fetch catalog", func(ctx context.Context, conn config.Connection) (*snapshot.SchemaSnapshot, int, error) {
		rows, err := c.src.FetchCatalog(ctx, conn)
		if err != nil {
			return nil, 0, err
		}
		snap := snapshot.BuildSchema(conn, rows)
		return snap, len(snap.Tables), nil
	})
}

// Events extracts and builds one event snapshot per connection.
func (c *Collector) Events(ctx context.Context, conns []config.Connection) []snapshot.Result[*snapshot.EventSnapshot] {
	return collect(ctx, c, conns, "fetch events", func(ctx context.Context, conn config.Connection) (*snapshot.EventSnapshot, int, error) {
		rows, err := c.src.FetchEvents(ctx, conn)
		if err != nil {
			return nil, 0, err
		}
		snap := snapshot.BuildEvents(conn, rows)
		for name, anomalies := range snap.Anomalies() {
			for _, a := range anomalies {
				c.logger.Debug("unrecognized subroutine call",
					zap.String("connection", conn.ID()),
					zap.String("event", name),
					zap.String("trigger_point", a.TriggerPoint),
					zap.Int("line", a.Line),
					zap.String("text", a.Text))
			}
		}
		return snap, len(snap.Events), nil
	})
}

// CollectSchemas is Collector.Schemas without a logger.
func CollectSchemas(ctx context.Context, src Source, conns []config.Connection, opts Options) []snapshot.Result[*snapshot.SchemaSnapshot] {
	return NewCollector(src, opts, nil).Schemas(ctx, conns)
}

// CollectEvents is Collector.Events without a logger.
func CollectEvents(ctx context.Context, src Source, conns []config.Connection, opts Options) []snapshot.Result[*snapshot.EventSnapshot] {
	return NewCollector(src, opts, nil).Events(ctx, conns)
}

type outcome[T any] struct {
	snap  T
	count int
	err   error
}

func collect[T any](
	ctx context.Context,
	c *Collector,
	conns []config.Connection,
	op string,
	build func(context.Context, config.Connection) (T, int, error),
) []snapshot.Result[T] {
	results := make([]snapshot.Result[T], len(conns))

	g := new(errgroup.Group)
	g.SetLimit(c.opts.Workers)
	for i, conn := range conns {
		i, conn := i, conn
		g.Go(func() error {
			results[i] = extractOne(ctx, c, conn, op, build)
			return nil
		})
	}
	// Workers never return errors; failures live in their result slot.
	_ = g.Wait()
	return results
}

// extractOne runs a single extraction under the per-connection timeout. The
// build runs in its own goroutine so a driver that ignores cancellation
// cannot hold up the barrier for longer than the grace period. Within it,
// a cancelled build is waited for so its session is closed before the
// result is returned.
func extractOne[T any](
	ctx context.Context,
	c *Collector,
	conn config.Connection,
	op string,
	build func(context.Context, config.Connection) (T, int, error),
) snapshot.Result[T] {
	logger := c.logger.With(zap.String("connection", conn.ID()))
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	logger.Info("extracting", zap.String("op", op), zap.String("dsn", conn.MaskedDSN()))

	done := make(chan outcome[T], 1)
	go func() {
		snap, count, err := build(ctx, conn)
		done <- outcome[T]{snap: snap, count: count, err: err}
	}()

	var out outcome[T]
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
		select {
		case <-done:
		case <-time.After(c.opts.Grace):
			logger.Warn("extraction ignored cancellation, session may still be open", zap.Duration("grace", c.opts.Grace))
		}
	}

	if out.err != nil {
		var zero T
		var connErr *ConnectionError
		if !errors.As(out.err, &connErr) {
			connErr = &ConnectionError{Key: conn.ID(), Op: op, Err: out.err}
		}
		err := &snapshot.Unavailable{Key: conn.ID(), Err: connErr}
		logger.Warn("connection unavailable", zap.Duration("elapsed", time.Since(start)), zap.Error(out.err))
		return snapshot.Result[T]{Conn: conn, Snapshot: zero, Err: err}
	}
	logger.Info("extracted", zap.Int("entities", out.count), zap.Duration("elapsed", time.Since(start)))
	return snapshot.Result[T]{Conn: conn, Snapshot: out.snap}
}
