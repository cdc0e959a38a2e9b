package dbclient

import (
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/kamusis/envdiff/internal/config"
)

type postgresDialect struct{}

func (postgresDialect) driverName() string { return "pgx" }

func (postgresDialect) dsn(conn config.Connection) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(conn.User, conn.Password),
		Host:   conn.Host + ":" + strconv.Itoa(conn.Port),
		Path:   "/" + conn.ServiceName,
	}
	return u.String()
}

func (postgresDialect) schemaName(owner string) string { return owner }

func (postgresDialect) columnsQuery() string {
	return `
		SELECT c.table_name, c.column_name, c.ordinal_position, c.data_type,
		       c.character_maximum_length, c.numeric_precision, c.numeric_scale, c.is_nullable
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = $1
		  AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`
}

func (postgresDialect) indexesQuery() string {
	return `
		SELECT t.relname, i.relname,
		       CASE WHEN ix.indisunique THEN 'Y' ELSE 'N' END,
		       a.attname, k.ord
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
		ORDER BY t.relname, i.relname, k.ord`
}

func (postgresDialect) constraintsQuery() string {
	return `
		SELECT t.relname, c.conname, c.contype::text, a.attname, k.ord,
		       rt.relname, ra.attname
		FROM pg_constraint c
		JOIN pg_class t ON t.oid = c.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(c.conkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		LEFT JOIN pg_class rt ON rt.oid = c.confrelid
		LEFT JOIN pg_attribute ra ON ra.attrelid = c.confrelid AND ra.attnum = c.confkey[k.ord]
		WHERE n.nspname = $1
		  AND c.contype IN ('p', 'u', 'f', 'c')
		ORDER BY t.relname, c.conname, k.ord`
}

func (postgresDialect) triggersQuery() string {
	return `
		SELECT event_object_table, trigger_name, action_timing,
		       string_agg(event_manipulation, ' OR ' ORDER BY event_manipulation)
		FROM information_schema.triggers
		WHERE trigger_schema = $1
		GROUP BY event_object_table, trigger_name, action_timing
		ORDER BY event_object_table, trigger_name`
}
