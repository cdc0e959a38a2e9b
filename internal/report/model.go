// Package report folds a comparison matrix into a format neutral report and
// renders it as a workbook, delimited files or a console summary.
package report

import "github.com/kamusis/envdiff/internal/diff"

// ConnectionStatus is what happened to a configured connection in a run.
type ConnectionStatus string

const (
	StatusCompared    ConnectionStatus = "compared"
	StatusUnavailable ConnectionStatus = "unavailable"
	StatusExcluded    ConnectionStatus = "excluded by filter"
)

// AbsentValue marks a connection lacking an attribute in summary values.
const AbsentValue = "<absent>"

// ConnectionEntry is one row of the connections overview. Every configured
// connection has one.
type ConnectionEntry struct {
	ID     string
	Name   string
	DSN    string
	Status ConnectionStatus
	// Reason is set for unavailable connections.
	Reason string
	// Sheet names the connection's sheet; empty unless compared.
	Sheet string
}

// Row is one attribute line of a connection sheet.
type Row struct {
	Entity    string
	Attribute string
	Value     string
}

// Sheet lists one compared connection's own entities and attributes.
type Sheet struct {
	Name         string
	ConnectionID string
	Stats        []diff.Stat
	Rows         []Row
}

// ConnectionValue is one connection's side of a divergence.
type ConnectionValue struct {
	ConnectionID string
	Value        string
}

// SummaryDivergence is one divergent attribute of an entity.
type SummaryDivergence struct {
	Attribute string
	Kind      diff.DivergenceKind
	Label     string
	Values    []ConnectionValue
}

// SummaryEntry is one entity in the summary. Each entity of the universe
// appears exactly once.
type SummaryEntry struct {
	Entity      string
	Status      diff.Status
	Description string
	Present     []string
	Divergences []SummaryDivergence
}

// Count is the number of findings with the same label.
type Count struct {
	Label string
	N     int
}

// Report is the assembled, writer agnostic output of a run.
type Report struct {
	Kind        diff.Kind
	Title       string
	Connections []ConnectionEntry
	Sheets      []Sheet
	Summary     []SummaryEntry
	Counts      []Count
}

// Compared returns the IDs of compared connections in report order.
func (r *Report) Compared() []string {
	var ids []string
	for _, c := range r.Connections {
		if c.Status == StatusCompared {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// HasDifferences reports whether any entity is not identical.
func (r *Report) HasDifferences() bool {
	for _, e := range r.Summary {
		if e.Status != diff.StatusIdentical {
			return true
		}
	}
	return false
}
