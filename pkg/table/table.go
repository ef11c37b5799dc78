// Package table holds the tabular time-series model shared by the unifier,
// the metric library and the comparator.
package table

import (
	"math"

	"github.com/vjranagit/simregress/pkg/failure"
)

// TimeColumn is the name of the distinguished time column.
const TimeColumn = "time"

// Table is an ordered set of rows with uniquely named float64 columns, one of
// which is TimeColumn. Data is stored column-major. Missing cells are NaN.
//
// Tables are treated as immutable once built: every transformation in this
// module returns a new Table.
type Table struct {
	columns []string
	index   map[string]int
	data    [][]float64
}

// New builds a table from column names and column-major data. The data
// slices are used as given; callers must not modify them afterwards.
func New(columns []string, data [][]float64) (*Table, error) {
	if len(columns) != len(data) {
		return nil, failure.Validationf("table has %d column names but %d data columns", len(columns), len(data))
	}

	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, failure.Validationf("duplicate column %q", name)
		}
		index[name] = i
	}

	if _, ok := index[TimeColumn]; !ok {
		return nil, failure.Validationf("table has no %q column", TimeColumn)
	}

	n := len(data[0])
	for i, col := range data {
		if len(col) != n {
			return nil, failure.Validationf("column %q has %d rows, expected %d", columns[i], len(col), n)
		}
	}

	cols := make([]string, len(columns))
	copy(cols, columns)

	return &Table{
		columns: cols,
		index:   index,
		data:    data,
	}, nil
}

// FromRows builds a table from row-major data.
func FromRows(columns []string, rows [][]float64) (*Table, error) {
	data := make([][]float64, len(columns))
	for j := range data {
		data[j] = make([]float64, len(rows))
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, failure.Validationf("row %d has %d fields, expected %d", i, len(row), len(columns))
		}
		for j, v := range row {
			data[j][i] = v
		}
	}
	return New(columns, data)
}

// MustFromRows is FromRows that panics on error. Intended for tests and
// literals.
func MustFromRows(columns []string, rows [][]float64) *Table {
	t, err := FromRows(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.data[0])
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// ValueColumns returns every column name except TimeColumn, in order.
func (t *Table) ValueColumns() []string {
	out := make([]string, 0, len(t.columns)-1)
	for _, c := range t.columns {
		if c != TimeColumn {
			out = append(out, c)
		}
	}
	return out
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the values of the named column. The returned slice is
// shared with the table and must not be modified.
func (t *Table) Column(name string) ([]float64, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.data[i], true
}

// Time returns the time column. The returned slice must not be modified.
func (t *Table) Time() []float64 {
	return t.data[t.index[TimeColumn]]
}

// Row returns a copy of row i in column order.
func (t *Table) Row(i int) []float64 {
	row := make([]float64, len(t.columns))
	for j := range t.data {
		row[j] = t.data[j][i]
	}
	return row
}

// Select returns a copied two-column (time, name) view.
func (t *Table) Select(name string) (*Table, error) {
	if name == TimeColumn {
		return nil, failure.Validationf("cannot select %q as a value column", TimeColumn)
	}
	col, ok := t.Column(name)
	if !ok {
		return nil, failure.Validationf("column %q not found", name)
	}
	return New([]string{TimeColumn, name}, [][]float64{cloneFloats(t.Time()), cloneFloats(col)})
}

// WithColumn returns a copy of the table with an extra column appended.
func (t *Table) WithColumn(name string, values []float64) (*Table, error) {
	if t.Has(name) {
		return nil, failure.Validationf("column %q already exists", name)
	}
	if len(values) != t.Len() {
		return nil, failure.Validationf("column %q has %d rows, expected %d", name, len(values), t.Len())
	}
	c := t.Clone()
	c.columns = append(c.columns, name)
	c.index[name] = len(c.data)
	c.data = append(c.data, cloneFloats(values))
	return c, nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)

	index := make(map[string]int, len(t.index))
	for k, v := range t.index {
		index[k] = v
	}

	data := make([][]float64, len(t.data))
	for i, col := range t.data {
		data[i] = cloneFloats(col)
	}

	return &Table{columns: cols, index: index, data: data}
}

// Equal reports whether both tables have the same columns in the same order
// and identical values, with NaN equal to NaN.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.columns) != len(o.columns) || t.Len() != o.Len() {
		return false
	}
	for j, name := range t.columns {
		if o.columns[j] != name {
			return false
		}
		for i, v := range t.data[j] {
			w := o.data[j][i]
			if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
				return false
			}
		}
	}
	return true
}

func cloneFloats(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}
