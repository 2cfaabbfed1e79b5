package views

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Table is the export shape of a view: a header row and string cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t *Table) add(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// ContentType returns the MIME type for format, or "" if unsupported.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return ""
	}
}

// Write encodes t in the given format.
func (t Table) Write(w io.Writer, format string) error {
	switch format {
	case FormatCSV:
		return t.writeCSV(w)
	case FormatJSON:
		return t.writeJSON(w)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func (t Table) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// writeJSON writes an array of objects keyed by column name, keeping the
// column order of the header.
func (t Table) writeJSON(w io.Writer) error {
	rows := make([]json.RawMessage, 0, len(t.Rows))
	for _, row := range t.Rows {
		buf := []byte{'{'}
		for i, col := range t.Columns {
			if i > 0 {
				buf = append(buf, ',')
			}
			k, _ := json.Marshal(col)
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			v, _ := json.Marshal(cell)
			buf = append(append(append(buf, k...), ':'), v...)
		}
		rows = append(rows, append(buf, '}'))
	}
	return json.NewEncoder(w).Encode(rows)
}

// optInt renders 0 as an empty cell (unclassified, pit lane start).
func optInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func ftoa2(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
