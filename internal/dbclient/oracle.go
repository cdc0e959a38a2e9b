package dbclient

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/godror/godror" // Oracle driver

	"github.com/kamusis/envdiff/internal/config"
)

type oracleDialect struct{}

func (oracleDialect) driverName() string { return "godror" }

// dsn uses godror's logfmt form so passwords containing '@' or '/' survive.
func (oracleDialect) dsn(conn config.Connection) string {
	return fmt.Sprintf("user=%s password=%s connectString=%s",
		strconv.Quote(conn.User),
		strconv.Quote(conn.Password),
		strconv.Quote(fmt.Sprintf("%s:%d/%s", conn.Host, conn.Port, conn.ServiceName)))
}

func (oracleDialect) schemaName(owner string) string { return strings.ToUpper(owner) }

// System generated SYS_ columns (virtual columns, function based index
// expressions) differ between environments and are skipped.
func (oracleDialect) columnsQuery() string {
	return `
		SELECT c.table_name, c.column_name, c.column_id, c.data_type,
		       c.data_length, c.data_precision, c.data_scale, c.nullable
		FROM all_tab_columns c
		JOIN all_tables t ON t.owner = c.owner AND t.table_name = c.table_name
		WHERE c.owner = :1
		  AND c.column_name NOT LIKE 'SYS\_%' ESCAPE '\'
		ORDER BY c.table_name, c.column_id`
}

func (oracleDialect) indexesQuery() string {
	return `
		SELECT i.table_name, i.index_name, i.uniqueness, c.column_name, c.column_position
		FROM all_indexes i
		JOIN all_ind_columns c ON c.index_owner = i.owner AND c.index_name = i.index_name
		WHERE i.table_owner = :1
		  AND i.generated = 'N'
		ORDER BY i.table_name, i.index_name, c.column_position`
}

// Only user named constraints are read; SYS_C names are assigned per database.
func (oracleDialect) constraintsQuery() string {
	return `
		SELECT c.table_name, c.constraint_name, c.constraint_type,
		       cc.column_name, cc.position, r.table_name, rc.column_name
		FROM all_constraints c
		LEFT JOIN all_cons_columns cc ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name
		LEFT JOIN all_constraints r ON r.owner = c.r_owner AND r.constraint_name = c.r_constraint_name
		LEFT JOIN all_cons_columns rc ON rc.owner = r.owner AND rc.constraint_name = r.constraint_name
		                             AND rc.position = cc.position
		WHERE c.owner = :1
		  AND c.constraint_type IN ('P', 'U', 'R', 'C')
		  AND c.generated = 'USER NAME'
		ORDER BY c.table_name, c.constraint_name, cc.position`
}

func (oracleDialect) triggersQuery() string {
	return `
		SELECT table_name, trigger_name, trigger_type, triggering_event
		FROM all_triggers
		WHERE table_owner = :1
		  AND base_object_type = 'TABLE'
		ORDER BY table_name, trigger_name`
}
