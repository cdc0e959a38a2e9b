package diff

import (
	"strconv"
	"strings"

	"github.com/kamusis/envdiff/internal/snapshot"
)

// SchemaOptions tunes schema comparison.
type SchemaOptions struct {
	// IgnoreColumnPosition drops column ordinals from the comparison, so a
	// column added at a different place does not flag every later column.
	IgnoreColumnPosition bool
}

// Schemas diffs the schema snapshots of all results. Unavailable results are
// flagged in the matrix and take no part in the comparison.
func Schemas(results []snapshot.Result[*snapshot.SchemaSnapshot], opts SchemaOptions) *Matrix {
	ids := make([]string, len(results))
	flat := make([]map[string][]Attribute, len(results))
	reasons := map[string]string{}
	for i, r := range results {
		ids[i] = r.Conn.ID()
		if !r.Available() || r.Snapshot == nil {
			reasons[ids[i]] = unavailableReason(r.Err)
			continue
		}
		tables := make(map[string][]Attribute, len(r.Snapshot.Tables))
		for name, t := range r.Snapshot.Tables {
			tables[name] = FlattenTable(t, opts)
		}
		flat[i] = tables
	}

	m := compare(KindSchema, ids, flat, reasons)
	for _, r := range results {
		if r.Available() && r.Snapshot != nil {
			st := r.Snapshot.Stats()
			m.Stats[r.Conn.ID()] = []Stat{
				{Name: "Tables", Value: strconv.Itoa(st.Tables)},
				{Name: "Columns", Value: strconv.Itoa(st.Columns)},
				{Name: "Data types", Value: strings.Join(st.DataTypes, ", ")},
			}
		}
	}
	return m
}

// FlattenTable lists a table's attributes in a stable order.
func FlattenTable(t *snapshot.TableDef, opts SchemaOptions) []Attribute {
	var out []Attribute
	add := func(parent, path, value string) {
		out = append(out, Attribute{Path: path, Parent: parent, Value: value})
	}

	for _, c := range t.Columns {
		base := "columns." + c.Name
		add("", base, "")
		add(base, base+".type", c.DataType)
		add(base, base+".length", strconv.FormatInt(c.Length, 10))
		add(base, base+".precision", optInt(c.Precision))
		add(base, base+".scale", optInt(c.Scale))
		add(base, base+".nullable", yesNo(c.Nullable))
		if !opts.IgnoreColumnPosition {
			add(base, base+".position", strconv.Itoa(c.Position))
		}
	}
	for _, ix := range t.Indexes {
		base := "indexes." + ix.Name
		add("", base, "")
		add(base, base+".columns", strings.Join(ix.Columns, ","))
		add(base, base+".unique", yesNo(ix.Unique))
	}
	for _, con := range t.Constraints {
		base := "constraints." + con.Name
		add("", base, "")
		add(base, base+".kind", con.Kind)
		add(base, base+".columns", strings.Join(con.Columns, ","))
		if con.RefTable != "" {
			add(base, base+".ref_table", con.RefTable)
			add(base, base+".ref_columns", strings.Join(con.RefColumns, ","))
		}
	}
	for _, tr := range t.Triggers {
		base := "triggers." + tr.Name
		add("", base, "")
		add(base, base+".timing", tr.Timing)
		add(base, base+".event", tr.Event)
	}
	return out
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

func unavailableReason(err error) string {
	if err == nil {
		return "no snapshot"
	}
	return err.Error()
}
