package dbclient

import (
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kamusis/envdiff/internal/config"
)

type mysqlDialect struct{}

func (mysqlDialect) driverName() string { return "mysql" }

func (mysqlDialect) dsn(conn config.Connection) string {
	cfg := mysql.NewConfig()
	cfg.User = conn.User
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(conn.Port))
	cfg.DBName = conn.ServiceName
	cfg.Timeout = 30 * time.Second
	return cfg.FormatDSN()
}

// In MySQL the schema is the database; the owner names it.
func (mysqlDialect) schemaName(owner string) string { return owner }

func (mysqlDialect) columnsQuery() string {
	return `
		SELECT c.TABLE_NAME, c.COLUMN_NAME, c.ORDINAL_POSITION, c.DATA_TYPE,
		       c.CHARACTER_MAXIMUM_LENGTH, c.NUMERIC_PRECISION, c.NUMERIC_SCALE, c.IS_NULLABLE
		FROM information_schema.COLUMNS c
		JOIN information_schema.TABLES t
		  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
		WHERE c.TABLE_SCHEMA = ?
		  AND t.TABLE_TYPE = 'BASE TABLE'
		ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`
}

func (mysqlDialect) indexesQuery() string {
	return `
		SELECT TABLE_NAME, INDEX_NAME,
		       CASE WHEN NON_UNIQUE = 0 THEN 'Y' ELSE 'N' END,
		       COLUMN_NAME, SEQ_IN_INDEX
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ?
		  AND COLUMN_NAME IS NOT NULL
		ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`
}

func (mysqlDialect) constraintsQuery() string {
	return `
		SELECT tc.TABLE_NAME, tc.CONSTRAINT_NAME, tc.CONSTRAINT_TYPE,
		       k.COLUMN_NAME, k.ORDINAL_POSITION, k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME
		FROM information_schema.TABLE_CONSTRAINTS tc
		LEFT JOIN information_schema.KEY_COLUMN_USAGE k
		  ON k.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
		 AND k.TABLE_NAME = tc.TABLE_NAME
		 AND k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
		WHERE tc.TABLE_SCHEMA = ?
		ORDER BY tc.TABLE_NAME, tc.CONSTRAINT_NAME, k.ORDINAL_POSITION`
}

func (mysqlDialect) triggersQuery() string {
	return `
		SELECT EVENT_OBJECT_TABLE, TRIGGER_NAME, ACTION_TIMING, EVENT_MANIPULATION
		FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY EVENT_OBJECT_TABLE, TRIGGER_NAME`
}
