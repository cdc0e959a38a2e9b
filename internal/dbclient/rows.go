package dbclient

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/kamusis/envdiff/internal/snapshot"
)

// Catalog queries of every dialect return their columns in the order these
// scanners expect.

// scanColumn: table, column, position, data type, length, precision, scale, nullable.
func scanColumn(rs *sql.Rows) (snapshot.CatalogRow, error) {
	var (
		table, name, dataType, nullable string
		position                        int
		length, precision, scale        sql.NullInt64
	)
	if err := rs.Scan(&table, &name, &position, &dataType, &length, &precision, &scale, &nullable); err != nil {
		return snapshot.CatalogRow{}, err
	}
	return snapshot.CatalogRow{
		Kind:      snapshot.KindColumn,
		Table:     table,
		Name:      name,
		Position:  position,
		DataType:  dataType,
		Length:    length.Int64,
		Precision: nullInt(precision),
		Scale:     nullInt(scale),
		Nullable:  parseFlag(nullable),
	}, nil
}

// scanIndex: table, index, unique flag, column, position.
func scanIndex(rs *sql.Rows) (snapshot.CatalogRow, error) {
	var (
		table, name, unique, column string
		position                    int
	)
	if err := rs.Scan(&table, &name, &unique, &column, &position); err != nil {
		return snapshot.CatalogRow{}, err
	}
	return snapshot.CatalogRow{
		Kind:     snapshot.KindIndex,
		Table:    table,
		Name:     name,
		Unique:   parseFlag(unique),
		Column:   column,
		Position: position,
	}, nil
}

// scanConstraint: table, constraint, kind, column, position, ref table, ref column.
func scanConstraint(rs *sql.Rows) (snapshot.CatalogRow, error) {
	var (
		table, name, kind           string
		column, refTable, refColumn sql.NullString
		position                    sql.NullInt64
	)
	if err := rs.Scan(&table, &name, &kind, &column, &position, &refTable, &refColumn); err != nil {
		return snapshot.CatalogRow{}, err
	}
	return snapshot.CatalogRow{
		Kind:           snapshot.KindConstraint,
		Table:          table,
		Name:           name,
		ConstraintType: normalizeConstraintKind(kind),
		Column:         column.String,
		Position:       int(position.Int64),
		RefTable:       refTable.String,
		RefColumn:      refColumn.String,
	}, nil
}

// scanTrigger: table, trigger, timing, event.
func scanTrigger(rs *sql.Rows) (snapshot.CatalogRow, error) {
	var table, name, timing, event sql.NullString
	if err := rs.Scan(&table, &name, &timing, &event); err != nil {
		return snapshot.CatalogRow{}, err
	}
	return snapshot.CatalogRow{
		Kind:   snapshot.KindTrigger,
		Table:  table.String,
		Name:   name.String,
		Timing: strings.TrimSpace(timing.String),
		Event:  strings.TrimSpace(event.String),
	}, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// parseFlag reads the yes/no spellings used across catalogs.
func parseFlag(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "Y", "YES", "TRUE", "T", "1", "UNIQUE":
		return true
	default:
		return false
	}
}

// normalizeConstraintKind maps vendor constraint types onto P, U, R and C.
func normalizeConstraintKind(kind string) string {
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case "P", "PRIMARY KEY":
		return "P"
	case "U", "UNIQUE":
		return "U"
	case "R", "F", "FOREIGN KEY":
		return "R"
	case "C", "CHECK":
		return "C"
	default:
		return strings.ToUpper(strings.TrimSpace(kind))
	}
}

type eventQuery struct {
	source string
	sql    string
	row    func(entity, triggerPoint, text string) snapshot.EventRow
}

// eventQueries returns the reads for events, test_events and database_events.
// owner has already been checked against ownerPattern.
func eventQueries(owner string) []eventQuery {
	formulaRow := func(source string) func(string, string, string) snapshot.EventRow {
		return func(entity, tp, text string) snapshot.EventRow {
			return snapshot.EventRow{Source: source, Entity: entity, TriggerPoint: tp, Formula: text}
		}
	}
	return []eventQuery{
		{
			source: snapshot.SourceEvents,
			sql: fmt.Sprintf(`SELECT e.template, e.event, e.formula FROM %s.events e
WHERE e.enabled_flag = 'T' AND e.formula_flag = 'T' ORDER BY e.template, e.event`, owner),
			row: formulaRow(snapshot.SourceEvents),
		},
		{
			source: snapshot.SourceTestEvents,
			sql: fmt.Sprintf(`SELECT te.template, te.event, te.formula FROM %s.test_events te
WHERE te.enabled_flag = 'T' AND te.formula_flag = 'T' ORDER BY te.template, te.event`, owner),
			row: formulaRow(snapshot.SourceTestEvents),
		},
		{
			source: snapshot.SourceDatabaseEvents,
			sql: fmt.Sprintf(`SELECT db.table_name, db.event_name, db.sub_name FROM %s.database_events db
ORDER BY db.table_name, db.event_name`, owner),
			row: func(table, event, sub string) snapshot.EventRow {
				return snapshot.EventRow{
					Source:       snapshot.SourceDatabaseEvents,
					Entity:       table,
					TriggerPoint: event,
					Formula:      databaseEventFormula(sub),
				}
			},
		},
	}
}

// databaseEventFormula renders a database_events sub_name as a call so it is
// scanned like any other formula.
func databaseEventFormula(sub string) string {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return ""
	}
	return `Subroutine("` + sub + `")`
}
