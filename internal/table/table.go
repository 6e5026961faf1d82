// Package table holds the in-memory tabular result produced by tile
// aggregation functions: one row per grid cell, X/Y cell centres plus a
// fixed set of named float columns, tagged with the resolution the
// cells were computed at.
package table

import (
	"fmt"
	"slices"
)

// Row is one output record. X and Y are the representative cell-centre
// coordinates; Values align positionally with the table's Columns.
type Row struct {
	X, Y   float64
	Values []float64
}

// Table is an ordered set of rows sharing one column schema and one
// operating resolution.
type Table struct {
	Resolution float64
	Columns    []string
	Rows       []Row
}

// New returns an empty table with the given schema.
func New(resolution float64, columns ...string) *Table {
	return &Table{Resolution: resolution, Columns: columns}
}

// Append adds one row. The value count must match the column count.
func (t *Table) Append(x, y float64, values ...float64) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, Row{X: x, Y: y, Values: values})
	return nil
}

// Len returns the row count. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Filter returns a new table containing only the rows keep accepts,
// preserving order. Schema and resolution carry over.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{Resolution: t.Resolution, Columns: t.Columns}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Concat merges tables in the given order into one. Nil and empty
// tables are skipped. All non-empty inputs must agree on columns and
// resolution; the first non-empty input fixes the schema. Concat of
// nothing returns nil.
func Concat(tables []*Table) (*Table, error) {
	var out *Table
	for i, t := range tables {
		if t.Len() == 0 {
			continue
		}
		if out == nil {
			out = &Table{Resolution: t.Resolution, Columns: t.Columns}
		} else {
			if t.Resolution != out.Resolution {
				return nil, fmt.Errorf("table %d: resolution %g != %g", i, t.Resolution, out.Resolution)
			}
			if !slices.Equal(t.Columns, out.Columns) {
				return nil, fmt.Errorf("table %d: columns %v != %v", i, t.Columns, out.Columns)
			}
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}
