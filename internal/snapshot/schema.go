package snapshot

import (
	"sort"
	"strings"

	"github.com/kamusis/envdiff/internal/config"
)

// RowKind tags a catalog row with the metadata it describes.
type RowKind string

const (
	KindColumn     RowKind = "column"
	KindIndex      RowKind = "index"
	KindConstraint RowKind = "constraint"
	KindTrigger    RowKind = "trigger"
)

// CatalogRow is one raw metadata row as returned by the database collaborator.
// Which fields are meaningful depends on Kind.
type CatalogRow struct {
	Kind  RowKind
	Table string
	// Name is the column, index, constraint or trigger name.
	Name string
	// Position is the column ordinal for columns, and the position of Column
	// within the index or constraint otherwise.
	Position int

	DataType  string
	Length    int64
	Precision *int64
	Scale     *int64
	Nullable  bool

	Column         string
	Unique         bool
	ConstraintType string
	RefTable       string
	RefColumn      string

	Timing string
	Event  string
}

type ColumnDef struct {
	Name      string
	DataType  string
	Length    int64
	Precision *int64
	Scale     *int64
	Nullable  bool
	Position  int
}

type IndexDef struct {
	Name    string
	Columns []string
	Unique  bool
}

type ConstraintDef struct {
	Name       string
	Kind       string
	Columns    []string
	RefTable   string
	RefColumns []string
}

type TriggerDef struct {
	Name   string
	Timing string
	Event  string
}

// TableDef holds one table. Columns are ordered by position; indexes,
// constraints and triggers are ordered by name.
type TableDef struct {
	Name        string
	Columns     []ColumnDef
	Indexes     []IndexDef
	Constraints []ConstraintDef
	Triggers    []TriggerDef
}

// Column returns the named column.
func (t *TableDef) Column(name string) (ColumnDef, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// SchemaSnapshot is the normalized schema of one connection.
type SchemaSnapshot struct {
	Conn   config.Connection
	Tables map[string]*TableDef
}

// TableNames returns the table names sorted.
func (s *SchemaSnapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaStats summarizes a snapshot for report headers.
type SchemaStats struct {
	Tables    int
	Columns   int
	DataTypes []string
}

func (s *SchemaSnapshot) Stats() SchemaStats {
	st := SchemaStats{Tables: len(s.Tables)}
	types := map[string]bool{}
	for _, t := range s.Tables {
		st.Columns += len(t.Columns)
		for _, c := range t.Columns {
			types[c.DataType] = true
		}
	}
	for dt := range types {
		st.DataTypes = append(st.DataTypes, dt)
	}
	sort.Strings(st.DataTypes)
	return st
}

type memberRow struct {
	position int
	column   string
	ref      string
}

type indexAcc struct {
	unique  bool
	members []memberRow
}

type constraintAcc struct {
	kind     string
	refTable string
	members  []memberRow
}

// BuildSchema groups rows by table and metadata kind. The result depends only
// on the row contents, not their arrival order. Duplicate column names keep
// the lowest position.
func BuildSchema(conn config.Connection, rows []CatalogRow) *SchemaSnapshot {
	snap := &SchemaSnapshot{Conn: conn, Tables: map[string]*TableDef{}}

	table := func(name string) *TableDef {
		t, ok := snap.Tables[name]
		if !ok {
			t = &TableDef{Name: name}
			snap.Tables[name] = t
		}
		return t
	}

	columns := map[string]map[string]ColumnDef{}
	indexes := map[string]map[string]*indexAcc{}
	constraints := map[string]map[string]*constraintAcc{}
	triggers := map[string]map[string]TriggerDef{}

	for _, r := range rows {
		if r.Table == "" {
			continue
		}
		table(r.Table)
		switch r.Kind {
		case KindColumn:
			if columns[r.Table] == nil {
				columns[r.Table] = map[string]ColumnDef{}
			}
			c := ColumnDef{
				Name:      r.Name,
				DataType:  r.DataType,
				Length:    r.Length,
				Precision: r.Precision,
				Scale:     r.Scale,
				Nullable:  r.Nullable,
				Position:  r.Position,
			}
			if prev, ok := columns[r.Table][r.Name]; !ok || c.Position < prev.Position {
				columns[r.Table][r.Name] = c
			}
		case KindIndex:
			if indexes[r.Table] == nil {
				indexes[r.Table] = map[string]*indexAcc{}
			}
			acc, ok := indexes[r.Table][r.Name]
			if !ok {
				acc = &indexAcc{}
				indexes[r.Table][r.Name] = acc
			}
			acc.unique = acc.unique || r.Unique
			if r.Column != "" {
				acc.members = append(acc.members, memberRow{position: r.Position, column: r.Column})
			}
		case KindConstraint:
			if constraints[r.Table] == nil {
				constraints[r.Table] = map[string]*constraintAcc{}
			}
			acc, ok := constraints[r.Table][r.Name]
			if !ok {
				acc = &constraintAcc{}
				constraints[r.Table][r.Name] = acc
			}
			acc.kind = maxString(acc.kind, r.ConstraintType)
			acc.refTable = maxString(acc.refTable, r.RefTable)
			if r.Column != "" {
				acc.members = append(acc.members, memberRow{position: r.Position, column: r.Column, ref: r.RefColumn})
			}
		case KindTrigger:
			if triggers[r.Table] == nil {
				triggers[r.Table] = map[string]TriggerDef{}
			}
			tr := TriggerDef{Name: r.Name, Timing: r.Timing, Event: r.Event}
			if prev, ok := triggers[r.Table][r.Name]; ok {
				tr.Timing = maxString(prev.Timing, tr.Timing)
				tr.Event = maxString(prev.Event, tr.Event)
			}
			triggers[r.Table][r.Name] = tr
		}
	}

	for name, t := range snap.Tables {
		for _, c := range columns[name] {
			t.Columns = append(t.Columns, c)
		}
		sort.Slice(t.Columns, func(i, j int) bool {
			if t.Columns[i].Position != t.Columns[j].Position {
				return t.Columns[i].Position < t.Columns[j].Position
			}
			return t.Columns[i].Name < t.Columns[j].Name
		})

		for idxName, acc := range indexes[name] {
			cols, _ := orderedMembers(acc.members)
			t.Indexes = append(t.Indexes, IndexDef{Name: idxName, Columns: cols, Unique: acc.unique})
		}
		sort.Slice(t.Indexes, func(i, j int) bool { return t.Indexes[i].Name < t.Indexes[j].Name })

		for conName, acc := range constraints[name] {
			cols, refs := orderedMembers(acc.members)
			t.Constraints = append(t.Constraints, ConstraintDef{
				Name:       conName,
				Kind:       acc.kind,
				Columns:    cols,
				RefTable:   acc.refTable,
				RefColumns: refs,
			})
		}
		sort.Slice(t.Constraints, func(i, j int) bool { return t.Constraints[i].Name < t.Constraints[j].Name })

		for _, tr := range triggers[name] {
			t.Triggers = append(t.Triggers, tr)
		}
		sort.Slice(t.Triggers, func(i, j int) bool { return t.Triggers[i].Name < t.Triggers[j].Name })
	}
	return snap
}

// orderedMembers sorts member rows by position then column, drops duplicates,
// and returns the column list plus the referenced column list (nil if none).
func orderedMembers(members []memberRow) ([]string, []string) {
	sorted := append([]memberRow(nil), members...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].position != sorted[j].position {
			return sorted[i].position < sorted[j].position
		}
		if sorted[i].column != sorted[j].column {
			return sorted[i].column < sorted[j].column
		}
		return sorted[i].ref < sorted[j].ref
	})
	var cols, refs []string
	seen := map[string]bool{}
	hasRef := false
	for _, m := range sorted {
		if seen[m.column] {
			continue
		}
		seen[m.column] = true
		cols = append(cols, m.column)
		refs = append(refs, m.ref)
		if m.ref != "" {
			hasRef = true
		}
	}
	if !hasRef {
		refs = nil
	}
	return cols, refs
}

// maxString picks deterministically between values reported on several rows.
func maxString(a, b string) string {
	if strings.Compare(a, b) >= 0 {
		return a
	}
	return b
}
