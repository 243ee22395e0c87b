// Package table holds the in-memory representation of the delimited
// tabular files passed between pipeline stages: a header row plus string
// cells, with typed access for the numeric columns.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Table is one tabular artifact. Cells are kept as strings exactly as
// they appear on disk; numeric interpretation happens at access time.
type Table struct {
	Header []string
	Rows   [][]string
}

// New creates an empty table with the given header.
func New(header []string) *Table {
	return &Table{Header: append([]string(nil), header...)}
}

// ReadCSV loads a comma-separated file with a header row. A missing file
// or a ragged row is a structural failure and aborts the caller's run.
func ReadCSV(filePath string) (*Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header from %s: %w", filePath, err)
	}

	t := &Table{Header: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record from %s: %w", filePath, err)
		}
		t.Rows = append(t.Rows, record)
	}

	return t, nil
}

// WriteCSV writes the table as a comma-separated file with a header row.
func (t *Table) WriteCSV(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write header to %s: %w", filePath, err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record to %s: %w", filePath, err)
		}
	}
	writer.Flush()

	return writer.Error()
}

// ColumnIndex returns the position of a named column. An absent column is
// a structural failure.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("missing expected column %q", name)
}

// Cell returns the raw string cell at (row, col).
func (t *Table) Cell(row, col int) string {
	return t.Rows[row][col]
}

// SetCell overwrites the raw string cell at (row, col).
func (t *Table) SetCell(row, col int, value string) {
	t.Rows[row][col] = value
}

// Value parses the cell at (row, col) as a nullable numeric value. A
// non-empty cell that does not parse is a structural failure.
func (t *Table) Value(row, col int) (Value, error) {
	v, err := Parse(t.Rows[row][col])
	if err != nil {
		return Value{}, fmt.Errorf("row %d column %q: %w", row, t.Header[col], err)
	}
	return v, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Select returns a new table containing the rows for which mask is true.
// Header and column order are shared with the receiver.
func (t *Table) Select(mask []bool) *Table {
	out := &Table{Header: t.Header}
	for i, keep := range mask {
		if keep {
			out.Rows = append(out.Rows, t.Rows[i])
		}
	}
	return out
}

// AppendColumn adds a column at the end of the table. The cell count must
// match the row count.
func (t *Table) AppendColumn(name string, cells []string) error {
	if len(cells) != len(t.Rows) {
		return fmt.Errorf("column %q has %d cells for %d rows", name, len(cells), len(t.Rows))
	}
	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], cells[i])
	}
	return nil
}

// DropColumns returns a new table without the named columns, preserving
// the relative order of the remaining ones. Names not present are ignored.
func (t *Table) DropColumns(names map[string]bool) *Table {
	var keep []int
	out := &Table{}
	for i, h := range t.Header {
		if !names[h] {
			keep = append(keep, i)
			out.Header = append(out.Header, h)
		}
	}
	for _, row := range t.Rows {
		newRow := make([]string, 0, len(keep))
		for _, i := range keep {
			newRow = append(newRow, row[i])
		}
		out.Rows = append(out.Rows, newRow)
	}
	return out
}
