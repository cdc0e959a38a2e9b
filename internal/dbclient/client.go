// Package dbclient is the database collaborator: it opens a session per
// extraction, reads catalog and event rows, and closes the session again.
package dbclient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/kamusis/envdiff/internal/config"
	"github.com/kamusis/envdiff/internal/snapshot"
)

// dialect holds the vendor specific parts of a session.
type dialect interface {
	driverName() string
	dsn(conn config.Connection) string
	columnsQuery() string
	indexesQuery() string
	constraintsQuery() string
	triggersQuery() string
	// schemaName maps the configured owner onto the catalog's schema name.
	schemaName(owner string) string
}

func dialectFor(driver string) (dialect, error) {
	switch config.NormalizeDriver(driver) {
	case config.DriverOracle:
		return oracleDialect{}, nil
	case config.DriverPostgres:
		return postgresDialect{}, nil
	case config.DriverMySQL:
		return mysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

var ownerPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#]{0,127}$`)

// Client implements extract.Source.
type Client struct {
	limits config.Limits
	logger *zap.Logger
	open   func(driver, dsn string) (*sql.DB, error)
}

func New(limits config.Limits, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{limits: limits, logger: logger, open: sql.Open}
}

// withSession opens one database session, runs fn and always closes it.
func (c *Client) withSession(ctx context.Context, conn config.Connection, fn func(*sql.DB, dialect, string) error) error {
	d, err := dialectFor(conn.Driver)
	if err != nil {
		return err
	}
	owner := conn.Owner
	if !ownerPattern.MatchString(owner) {
		return fmt.Errorf("invalid schema owner %q", owner)
	}

	db, err := c.open(d.driverName(), d.dsn(conn))
	if err != nil {
		return fmt.Errorf("open %s: %w", conn.MaskedDSN(), err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", conn.MaskedDSN(), err)
	}
	c.logger.Debug("session opened", zap.String("connection", conn.ID()), zap.String("dsn", conn.MaskedDSN()))
	return fn(db, d, d.schemaName(owner))
}

// Ping checks that a session can be opened.
func (c *Client) Ping(ctx context.Context, conn config.Connection) error {
	return c.withSession(ctx, conn, func(*sql.DB, dialect, string) error { return nil })
}

// FetchCatalog reads columns, indexes, constraints and triggers of the owner's tables.
func (c *Client) FetchCatalog(ctx context.Context, conn config.Connection) ([]snapshot.CatalogRow, error) {
	var rows []snapshot.CatalogRow
	err := c.withSession(ctx, conn, func(db *sql.DB, d dialect, schema string) error {
		steps := []struct {
			kind  snapshot.RowKind
			query string
			scan  func(*sql.Rows) (snapshot.CatalogRow, error)
		}{
			{snapshot.KindColumn, d.columnsQuery(), scanColumn},
			{snapshot.KindIndex, d.indexesQuery(), scanIndex},
			{snapshot.KindConstraint, d.constraintsQuery(), scanConstraint},
			{snapshot.KindTrigger, d.triggersQuery(), scanTrigger},
		}
		for _, step := range steps {
			n, err := queryCatalog(ctx, db, step.query, schema, step.scan, &rows)
			if err != nil {
				return fmt.Errorf("read %ss: %w", step.kind, err)
			}
			c.logger.Debug("catalog rows", zap.String("connection", conn.ID()), zap.String("kind", string(step.kind)), zap.Int("rows", n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func queryCatalog(ctx context.Context, db *sql.DB, query, schema string, scan func(*sql.Rows) (snapshot.CatalogRow, error), out *[]snapshot.CatalogRow) (int, error) {
	rs, err := db.QueryContext(ctx, query, schema)
	if err != nil {
		return 0, err
	}
	defer rs.Close()
	n := 0
	for rs.Next() {
		row, err := scan(rs)
		if err != nil {
			return n, err
		}
		*out = append(*out, row)
		n++
	}
	return n, rs.Err()
}

// ErrRecordLimit means a connection holds more event rows than
// total_records_limit allows. Events are never compared on a partial read.
var ErrRecordLimit = errors.New("record limit exceeded")

// FetchEvents reads every row of the three event tables. Exceeding the total
// record limit fails the extraction.
func (c *Client) FetchEvents(ctx context.Context, conn config.Connection) ([]snapshot.EventRow, error) {
	var rows []snapshot.EventRow
	err := c.withSession(ctx, conn, func(db *sql.DB, d dialect, _ string) error {
		b := newBudget(c.limits)
		for _, q := range eventQueries(conn.Owner) {
			n, err := queryEvents(ctx, db, q, b, &rows)
			if err != nil {
				return fmt.Errorf("read %s: %w", q.source, err)
			}
			c.logger.Info("event rows",
				zap.String("connection", conn.ID()),
				zap.String("source", q.source),
				zap.Int("rows", n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func queryEvents(ctx context.Context, db *sql.DB, q eventQuery, b *budget, out *[]snapshot.EventRow) (int, error) {
	rs, err := db.QueryContext(ctx, q.sql)
	if err != nil {
		return 0, err
	}
	defer rs.Close()
	n := 0
	for rs.Next() {
		if err := b.take(); err != nil {
			return n, err
		}
		var entity, tp, text sql.NullString
		if err := rs.Scan(&entity, &tp, &text); err != nil {
			return n, err
		}
		*out = append(*out, q.row(entity.String, tp.String, text.String))
		n++
	}
	return n, rs.Err()
}

// budget caps the event rows read from one connection; zero means no cap.
type budget struct {
	total, used int
}

func newBudget(l config.Limits) *budget {
	return &budget{total: l.TotalRecordsLimit}
}

func (b *budget) take() error {
	if b.total > 0 && b.used >= b.total {
		return fmt.Errorf("%w: more than %d event rows, raise total_records_limit", ErrRecordLimit, b.total)
	}
	b.used++
	return nil
}
