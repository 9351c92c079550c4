package quality

import (
	"fmt"
	"sort"

	"dqmon/domain/core"
)

// Row maps column name to cell
type Row map[string]Value

// Dataset is an in-memory tabular snapshot. Every row carries exactly the
// dataset's column set; construction enforces it.
type Dataset struct {
	columns []string
	sorted  []string
	index   map[string]int
	rows    []Row
}

// NewDataset validates rows against the column list and returns a Dataset
func NewDataset(columns []string, rows []Row) (*Dataset, error) {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, dup := index[col]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", core.ErrSchemaMismatch, col)
		}
		index[col] = i
	}

	owned := make([]Row, len(rows))
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", core.ErrSchemaMismatch, r, len(row), len(columns))
		}
		cp := make(Row, len(row))
		for col, val := range row {
			if _, ok := index[col]; !ok {
				return nil, fmt.Errorf("%w: row %d has unknown column %q", core.ErrSchemaMismatch, r, col)
			}
			cp[col] = val
		}
		owned[r] = cp
	}

	cols := make([]string, len(columns))
	copy(cols, columns)
	sorted := make([]string, len(columns))
	copy(sorted, columns)
	sort.Strings(sorted)
	return &Dataset{columns: cols, sorted: sorted, index: index, rows: owned}, nil
}

// FromColumns builds a Dataset from column-major data. All columns must have the same length.
func FromColumns(columns []string, data map[string][]Value) (*Dataset, error) {
	n := -1
	for _, col := range columns {
		vals, ok := data[col]
		if !ok {
			return nil, fmt.Errorf("%w: no data for column %q", core.ErrSchemaMismatch, col)
		}
		if n >= 0 && len(vals) != n {
			return nil, fmt.Errorf("%w: column %q has %d values, want %d", core.ErrSchemaMismatch, col, len(vals), n)
		}
		n = len(vals)
	}
	if n < 0 {
		n = 0
	}

	rows := make([]Row, n)
	for r := 0; r < n; r++ {
		row := make(Row, len(columns))
		for _, col := range columns {
			row[col] = data[col][r]
		}
		rows[r] = row
	}
	return NewDataset(columns, rows)
}

// Columns returns the column names in declaration order
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// HasColumn reports whether the column exists
func (d *Dataset) HasColumn(col string) bool {
	_, ok := d.index[col]
	return ok
}

// Value returns the cell at (row, col)
func (d *Dataset) Value(row int, col string) Value {
	return d.rows[row][col]
}

// Row returns a copy of the row at index i
func (d *Dataset) Row(i int) Row {
	cp := make(Row, len(d.rows[i]))
	for k, v := range d.rows[i] {
		cp[k] = v
	}
	return cp
}

// Column returns the values of one column in row order
func (d *Dataset) Column(col string) ([]Value, error) {
	if !d.HasColumn(col) {
		return nil, core.NewColumnNotFoundError(col)
	}
	out := make([]Value, len(d.rows))
	for i, row := range d.rows {
		out[i] = row[col]
	}
	return out, nil
}

// NumericColumns returns the columns whose non-null cells are all integers or
// floats, in declaration order. A column with no non-null cell is not numeric.
func (d *Dataset) NumericColumns() []string {
	var out []string
	for _, col := range d.columns {
		seen := false
		numeric := true
		for _, row := range d.rows {
			v := row[col]
			if v.IsNull() {
				continue
			}
			seen = true
			if !v.IsNumeric() {
				numeric = false
				break
			}
		}
		if seen && numeric {
			out = append(out, col)
		}
	}
	return out
}

// RowKey returns a canonical key of the row over all columns in sorted name
// order, so two rows with the same cells share a key regardless of column order.
func (d *Dataset) RowKey(i int) string {
	key := make([]byte, 0, 16*len(d.sorted))
	for _, col := range d.sorted {
		key = append(key, col...)
		key = append(key, '=')
		key = append(key, d.rows[i][col].Key()...)
		key = append(key, 0x1f)
	}
	return string(key)
}
