package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kamusis/envdiff/internal/config"
	"github.com/kamusis/envdiff/internal/diff"
)

const (
	SummarySheet     = "Summary"
	ConnectionsSheet = "Connections"
)

func entityNoun(k diff.Kind) string {
	if k == diff.KindEvents {
		return "event"
	}
	return "table"
}

// Assemble builds the report for m. all is every configured connection in
// declaration order; those m does not mention are reported as excluded.
func Assemble(m *diff.Matrix, all []config.Connection) *Report {
	r := &Report{
		Kind:  m.Kind,
		Title: titleFor(m.Kind),
	}

	inRun := map[string]bool{}
	for _, id := range m.Connections {
		inRun[id] = true
	}
	compared := map[string]bool{}
	for _, id := range m.Compared {
		compared[id] = true
	}

	known := map[string]bool{}
	for _, conn := range all {
		known[conn.ID()] = true
		r.Connections = append(r.Connections, connectionEntry(conn.ID(), conn.DisplayName(), conn.MaskedDSN(), m, inRun[conn.ID()], compared[conn.ID()]))
	}
	for _, id := range m.Connections {
		if !known[id] {
			r.Connections = append(r.Connections, connectionEntry(id, id, "", m, true, compared[id]))
		}
	}

	for _, c := range r.Connections {
		if c.Status != StatusCompared {
			continue
		}
		r.Sheets = append(r.Sheets, buildSheet(m, c.ID))
	}

	noun := entityNoun(m.Kind)
	counts := map[string]int{}
	for _, e := range m.Entities {
		r.Summary = append(r.Summary, summarize(e, len(m.Compared)))
		switch e.Status() {
		case diff.StatusOnlyIn:
			counts[noun+" only in one connection"]++
		case diff.StatusPartial:
			counts[noun+" missing"]++
		}
		for _, d := range e.Divergences {
			counts[d.Label()]++
		}
	}
	if n := len(m.Unavailable); n > 0 {
		counts["unavailable connection"] = n
	}
	for label, n := range counts {
		r.Counts = append(r.Counts, Count{Label: label, N: n})
	}
	sort.Slice(r.Counts, func(i, j int) bool { return r.Counts[i].Label < r.Counts[j].Label })
	return r
}

func titleFor(k diff.Kind) string {
	if k == diff.KindEvents {
		return "Events comparison"
	}
	return "Schema comparison"
}

func connectionEntry(id, name, dsn string, m *diff.Matrix, inRun, compared bool) ConnectionEntry {
	e := ConnectionEntry{ID: id, Name: name, DSN: dsn}
	switch {
	case !inRun:
		e.Status = StatusExcluded
	case compared:
		e.Status = StatusCompared
		e.Sheet = id
	default:
		e.Status = StatusUnavailable
		e.Reason = m.Unavailable[id]
	}
	return e
}

func buildSheet(m *diff.Matrix, id string) Sheet {
	s := Sheet{Name: id, ConnectionID: id, Stats: m.Stats[id]}
	for _, name := range m.EntityNames(id) {
		attrs := m.Attributes[id][name]
		if len(attrs) == 0 {
			s.Rows = append(s.Rows, Row{Entity: name})
			continue
		}
		for _, a := range attrs {
			s.Rows = append(s.Rows, Row{Entity: name, Attribute: a.Path, Value: a.Value})
		}
	}
	return s
}

func summarize(e diff.Entity, compared int) SummaryEntry {
	s := SummaryEntry{
		Entity:  e.Name,
		Status:  e.Status(),
		Present: e.Present,
	}
	switch s.Status {
	case diff.StatusOnlyIn, diff.StatusPartial:
		s.Description = fmt.Sprintf("present only in {%s}", strings.Join(e.Present, ", "))
	case diff.StatusDivergent:
		s.Description = fmt.Sprintf("%d divergent attribute(s)", len(e.Divergences))
	default:
		s.Description = fmt.Sprintf("identical across all %d", compared)
	}

	for _, d := range e.Divergences {
		sd := SummaryDivergence{Attribute: d.Path, Kind: d.Kind, Label: d.Label()}
		absent := map[string]bool{}
		for _, id := range d.Absent {
			absent[id] = true
		}
		for _, id := range e.Present {
			v, ok := d.Values[id]
			switch {
			case absent[id]:
				v = AbsentValue
			case !ok:
				continue
			case v == "" && d.Kind == diff.Missing:
				v = "present"
			}
			sd.Values = append(sd.Values, ConnectionValue{ConnectionID: id, Value: v})
		}
		s.Divergences = append(s.Divergences, sd)
	}
	return s
}
