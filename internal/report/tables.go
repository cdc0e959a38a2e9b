package report

import "github.com/kamusis/envdiff/internal/diff"

type tableRow struct {
	cells     []string
	highlight bool
}

// summaryTable flattens the summary into rows. The entity name is written
// on the first row of its block only.
func summaryTable(r *Report) ([]string, []tableRow) {
	compared := r.Compared()
	header := append([]string{"ENTITY", "STATUS", "DESCRIPTION", "ATTRIBUTE", "DIFFERENCE"}, compared...)

	var rows []tableRow
	for _, e := range r.Summary {
		lead := []string{e.Entity, string(e.Status), e.Description}
		flagged := e.Status != diff.StatusIdentical
		if len(e.Divergences) == 0 {
			rows = append(rows, tableRow{cells: lead, highlight: flagged})
			continue
		}
		for i, d := range e.Divergences {
			cells := []string{"", "", ""}
			if i == 0 {
				cells = lead
			}
			cells = append(cells, d.Attribute, d.Label)
			cells = append(cells, valuesByConnection(d, compared)...)
			rows = append(rows, tableRow{cells: cells, highlight: flagged})
		}
	}
	return header, rows
}

// valuesByConnection lines divergence values up with the compared columns;
// connections the divergence does not concern stay blank.
func valuesByConnection(d SummaryDivergence, compared []string) []string {
	byID := map[string]string{}
	for _, v := range d.Values {
		byID[v.ConnectionID] = v.Value
	}
	out := make([]string, len(compared))
	for i, id := range compared {
		out[i] = byID[id]
	}
	return out
}
