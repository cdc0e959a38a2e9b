package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/kamusis/envdiff/internal/diff"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// ConsoleWriter prints the connection statuses, the non identical entities
// and the difference type counts.
type ConsoleWriter struct {
	Out io.Writer
	// Plain forces ASCII borders.
	Plain bool
	// MaxWidth truncates cells; zero disables truncation.
	MaxWidth int
	// Verbose also lists identical entities.
	Verbose bool
}

func (w *ConsoleWriter) newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(w.Out)
	// Keep headers exactly as given (e.g. CONNECTION).
	table.Options(tablewriter.WithConfig(tablewriter.Config{
		Header: tw.CellConfig{
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
	}))
	if w.Plain {
		table.Options(tablewriter.WithSymbols(&tw.SymbolASCII{}))
	}
	return table
}

func (w *ConsoleWriter) cell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return TruncateWithEllipsis(s, w.MaxWidth)
}

func (w *ConsoleWriter) Write(r *Report) error {
	fmt.Fprintf(w.Out, "%s\n\n", r.Title)

	conns := w.newTable()
	conns.Header("CONNECTION", "NAME", "STATUS", "REASON")
	for _, c := range r.Connections {
		if err := conns.Append(c.ID, w.cell(c.Name), string(c.Status), w.cell(c.Reason)); err != nil {
			return err
		}
	}
	if err := conns.Render(); err != nil {
		return err
	}

	header, rows := summaryTable(r)
	entities := w.newTable()
	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	entities.Header(hdr...)
	shown := 0
	for _, sr := range rows {
		if !sr.highlight && !w.Verbose {
			continue
		}
		cells := make([]any, len(header))
		for i := range header {
			v := ""
			if i < len(sr.cells) {
				v = sr.cells[i]
			}
			cells[i] = w.cell(v)
		}
		if err := entities.Append(cells...); err != nil {
			return err
		}
		shown++
	}
	fmt.Fprintln(w.Out)
	if shown > 0 {
		if err := entities.Render(); err != nil {
			return err
		}
	}
	fmt.Fprintf(w.Out, "\n(%d entities, %d identical)\n", len(r.Summary), countIdentical(r))

	if len(r.Counts) == 0 {
		fmt.Fprintln(w.Out, "No differences found.")
		return nil
	}
	counts := w.newTable()
	counts.Header("DIFFERENCE TYPE", "COUNT")
	for _, c := range r.Counts {
		if err := counts.Append(c.Label, fmt.Sprint(c.N)); err != nil {
			return err
		}
	}
	fmt.Fprintln(w.Out)
	return counts.Render()
}

func countIdentical(r *Report) int {
	n := 0
	for _, e := range r.Summary {
		if e.Status == diff.StatusIdentical {
			n++
		}
	}
	return n
}

// TruncateWithEllipsis shortens s to width runes; width <= 0 leaves s alone.
func TruncateWithEllipsis(s string, width int) string {
	if width <= 0 {
		return s
	}
	rs := []rune(s)
	if len(rs) <= width {
		return s
	}
	if width <= 3 {
		return string(rs[:width])
	}
	return string(rs[:width-3]) + "..."
}
