package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// CSVWriter writes the report as delimited files in Dir: <prefix>_summary,
// <prefix>_connections and one <prefix>_<connection> file per sheet.
type CSVWriter struct {
	Dir       string
	Prefix    string
	Separator string
}

func (w *CSVWriter) comma() (rune, error) {
	if w.Separator == "" {
		return '|', nil
	}
	r, size := utf8.DecodeRuneInString(w.Separator)
	if size != len(w.Separator) || r == '"' || r == '\n' || r == '\r' {
		return 0, fmt.Errorf("invalid separator %q: want a single character", w.Separator)
	}
	return r, nil
}

func (w *CSVWriter) Write(r *Report) error {
	comma, err := w.comma()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return err
	}

	header, rows := summaryTable(r)
	summary := [][]string{header}
	for _, sr := range rows {
		summary = append(summary, sr.cells)
	}
	if err := w.writeFile("summary", comma, summary); err != nil {
		return err
	}

	conns := [][]string{{"CONNECTION", "NAME", "DSN", "STATUS", "REASON"}}
	for _, c := range r.Connections {
		conns = append(conns, []string{c.ID, c.Name, c.DSN, string(c.Status), c.Reason})
	}
	if err := w.writeFile("connections", comma, conns); err != nil {
		return err
	}

	for _, s := range r.Sheets {
		records := [][]string{{"ENTITY", "ATTRIBUTE", "VALUE"}}
		for _, row := range s.Rows {
			records = append(records, []string{row.Entity, row.Attribute, row.Value})
		}
		if err := w.writeFile(s.Name, comma, records); err != nil {
			return err
		}
	}
	return nil
}

func (w *CSVWriter) path(name string) string {
	if w.Prefix != "" {
		name = w.Prefix + "_" + name
	}
	return filepath.Join(w.Dir, name+".csv")
}

func (w *CSVWriter) writeFile(name string, comma rune, records [][]string) error {
	path := w.path(name)
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(fh)
	cw.Comma = comma
	if err := cw.WriteAll(records); err != nil {
		fh.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return fh.Close()
}
