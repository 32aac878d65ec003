// Package table provides the small column-ordered table type that extraction
// results and consent forms are built from.
//
// Tables serialize to JSON as an array of row objects, the shape the
// presentation layer consumes. Large tables are split into fixed-size chunks
// before rendering, because presenters struggle with very large single tables.
package table

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Table is a rectangular result table with a fixed column order. Cells are
// strings; extractors format timestamps and counts before appending rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given column order.
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// AppendRow adds one row. The cell count must match the column count.
func (t *Table) AppendRow(cells ...string) error {
	if len(cells) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.Columns))
	}
	t.Rows = append(t.Rows, cells)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Split partitions the table into chunks of at most rowCount rows each,
// preserving row order. A table that fits in one chunk is returned as a
// single-element slice. rowCount below 1 returns the table unsplit.
func (t *Table) Split(rowCount int) []*Table {
	if rowCount < 1 || len(t.Rows) <= rowCount {
		return []*Table{t}
	}

	var out []*Table
	for start := 0; start < len(t.Rows); start += rowCount {
		end := start + rowCount
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		out = append(out, &Table{Columns: t.Columns, Rows: t.Rows[start:end]})
	}
	return out
}

// MarshalJSON renders the table as an array of row objects with fields in
// column order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range t.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			value, err := json.Marshal(cell)
			if err != nil {
				return nil, err
			}
			buf.Write(name)
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
