package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Writer renders a report to some output.
type Writer interface {
	Write(r *Report) error
}

const (
	maxColumnWidth = 80
	minColumnWidth = 10
)

// ExcelWriter writes the report as one workbook: Summary, Connections and
// one sheet per compared connection.
type ExcelWriter struct {
	Path string
}

func (w *ExcelWriter) Write(r *Report) error {
	if err := os.MkdirAll(filepath.Dir(w.Path), 0755); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"70AD47"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	highlight, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFEB9C"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	link, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "0563C1", Underline: "single"},
	})
	if err != nil {
		return err
	}
	st := sheetStyles{header: header, highlight: highlight, link: link}

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	if err := writeSummarySheet(f, r, st); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if _, err := f.NewSheet(ConnectionsSheet); err != nil {
		return err
	}
	if err := writeConnectionsSheet(f, r, st); err != nil {
		return fmt.Errorf("connections sheet: %w", err)
	}
	for _, s := range r.Sheets {
		if _, err := f.NewSheet(s.Name); err != nil {
			return err
		}
		if err := writeConnectionSheet(f, s, st); err != nil {
			return fmt.Errorf("sheet %s: %w", s.Name, err)
		}
	}
	f.SetActiveSheet(0)

	return f.SaveAs(w.Path)
}

type sheetStyles struct {
	header, highlight, link int
}

// grid writes rows of cells into one sheet and tracks column widths.
type grid struct {
	f      *excelize.File
	sheet  string
	row    int
	widths map[int]int
}

func newGrid(f *excelize.File, sheet string) *grid {
	return &grid{f: f, sheet: sheet, widths: map[int]int{}}
}

// put appends a row and returns its 1-based number.
func (g *grid) put(values ...string) (int, error) {
	g.row++
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, g.row)
		if err != nil {
			return 0, err
		}
		if err := g.f.SetCellValue(g.sheet, cell, v); err != nil {
			return 0, err
		}
		for _, line := range strings.Split(v, "\n") {
			if n := utf8.RuneCountInString(line); n > g.widths[i+1] {
				g.widths[i+1] = n
			}
		}
	}
	return g.row, nil
}

func (g *grid) skip() { g.row++ }

func (g *grid) style(row, cols, style int) error {
	if cols < 1 {
		return nil
	}
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, row)
	if err != nil {
		return err
	}
	return g.f.SetCellStyle(g.sheet, first, last, style)
}

// fit sizes every used column to its content, capped at maxColumnWidth.
func (g *grid) fit() error {
	for col, w := range g.widths {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		width := w + 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if width < minColumnWidth {
			width = minColumnWidth
		}
		if err := g.f.SetColWidth(g.sheet, name, name, float64(width)); err != nil {
			return err
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, r *Report, st sheetStyles) error {
	g := newGrid(f, SummarySheet)
	if _, err := g.put(r.Title); err != nil {
		return err
	}
	g.skip()

	hdr := []string{"CONNECTION", "STATUS", "REASON"}
	row, err := g.put(hdr...)
	if err != nil {
		return err
	}
	if err := g.style(row, len(hdr), st.header); err != nil {
		return err
	}
	for _, c := range r.Connections {
		if _, err := g.put(c.ID, string(c.Status), c.Reason); err != nil {
			return err
		}
	}
	g.skip()

	hdr, rows := summaryTable(r)
	row, err = g.put(hdr...)
	if err != nil {
		return err
	}
	if err := g.style(row, len(hdr), st.header); err != nil {
		return err
	}
	for _, sr := range rows {
		row, err := g.put(sr.cells...)
		if err != nil {
			return err
		}
		if sr.highlight {
			if err := g.style(row, len(hdr), st.highlight); err != nil {
				return err
			}
		}
	}

	if len(r.Counts) > 0 {
		g.skip()
		row, err := g.put("DIFFERENCE TYPE", "COUNT")
		if err != nil {
			return err
		}
		if err := g.style(row, 2, st.header); err != nil {
			return err
		}
		for _, c := range r.Counts {
			if _, err := g.put(c.Label, fmt.Sprint(c.N)); err != nil {
				return err
			}
		}
	}
	return g.fit()
}

func writeConnectionsSheet(f *excelize.File, r *Report, st sheetStyles) error {
	g := newGrid(f, ConnectionsSheet)
	hdr := []string{"CONNECTION", "NAME", "DSN", "STATUS", "REASON"}
	row, err := g.put(hdr...)
	if err != nil {
		return err
	}
	if err := g.style(row, len(hdr), st.header); err != nil {
		return err
	}
	for _, c := range r.Connections {
		row, err := g.put(c.ID, c.Name, c.DSN, string(c.Status), c.Reason)
		if err != nil {
			return err
		}
		if c.Sheet == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellHyperLink(ConnectionsSheet, cell, fmt.Sprintf("'%s'!A1", c.Sheet), "Location"); err != nil {
			return err
		}
		if err := f.SetCellStyle(ConnectionsSheet, cell, cell, st.link); err != nil {
			return err
		}
	}
	return g.fit()
}

func writeConnectionSheet(f *excelize.File, s Sheet, st sheetStyles) error {
	g := newGrid(f, s.Name)
	for _, stat := range s.Stats {
		if _, err := g.put(stat.Name, stat.Value); err != nil {
			return err
		}
	}
	if len(s.Stats) > 0 {
		g.skip()
	}

	hdr := []string{"ENTITY", "ATTRIBUTE", "VALUE"}
	row, err := g.put(hdr...)
	if err != nil {
		return err
	}
	if err := g.style(row, len(hdr), st.header); err != nil {
		return err
	}
	for _, r := range s.Rows {
		if _, err := g.put(r.Entity, r.Attribute, r.Value); err != nil {
			return err
		}
	}
	return g.fit()
}
