// Package frame provides the numeric, window-indexed tables exchanged
// between the feature, labeling and training jobs.
package frame

import (
	"math"

	"github.com/pkg/errors"
)

// Well-known column names.
const (
	WindowColumn = "time_bin"
	LabelColumn  = "label"
)

// ErrColumnNotFound is returned when a requested column is absent.
var ErrColumnNotFound = errors.New("column not found")

// Frame is a table of float64 cells with named columns.
type Frame struct {
	Columns []string
	Rows    [][]float64
}

// New creates an empty frame with the given columns.
func New(columns ...string) *Frame {
	return &Frame{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Append adds a row. The row length must match the column count.
func (f *Frame) Append(row []float64) error {
	if len(row) != len(f.Columns) {
		return errors.Errorf("row has %d cells, frame has %d columns", len(row), len(f.Columns))
	}
	f.Rows = append(f.Rows, row)
	return nil
}

// Index returns the position of a column or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of one column.
func (f *Frame) Column(name string) ([]float64, error) {
	idx := f.Index(name)
	if idx < 0 {
		return nil, errors.Wrap(ErrColumnNotFound, name)
	}
	out := make([]float64, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Matrix extracts the named columns, in the given order, as a row-major matrix.
func (f *Frame) Matrix(columns []string) ([][]float64, error) {
	idx := make([]int, len(columns))
	for i, name := range columns {
		idx[i] = f.Index(name)
		if idx[i] < 0 {
			return nil, errors.Wrap(ErrColumnNotFound, name)
		}
	}
	out := make([][]float64, len(f.Rows))
	for r, row := range f.Rows {
		sample := make([]float64, len(idx))
		for i, c := range idx {
			sample[i] = row[c]
		}
		out[r] = sample
	}
	return out, nil
}

// Without returns every column name except the given ones.
func (f *Frame) Without(names ...string) []string {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	var cols []string
	for _, c := range f.Columns {
		if !skip[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// Head returns a frame sharing the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n < 0 || n > len(f.Rows) {
		n = len(f.Rows)
	}
	return &Frame{Columns: f.Columns, Rows: f.Rows[:n]}
}

// FillNaN replaces NaN and infinite cells with v.
func (f *Frame) FillNaN(v float64) {
	for _, row := range f.Rows {
		for i, x := range row {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				row[i] = v
			}
		}
	}
}

// InnerJoin merges two frames on key. Rows whose key appears in only one
// side are dropped. Output follows left order; the key column appears once.
func InnerJoin(left, right *Frame, key string) (*Frame, error) {
	lk, rk := left.Index(key), right.Index(key)
	if lk < 0 {
		return nil, errors.Wrapf(ErrColumnNotFound, "left: %s", key)
	}
	if rk < 0 {
		return nil, errors.Wrapf(ErrColumnNotFound, "right: %s", key)
	}

	rightRows := make(map[float64][]int, len(right.Rows))
	for i, row := range right.Rows {
		rightRows[row[rk]] = append(rightRows[row[rk]], i)
	}

	out := New(left.Columns...)
	var rightCols []int
	for i, c := range right.Columns {
		if i == rk {
			continue
		}
		name := c
		if left.Index(c) >= 0 {
			name = c + "_y"
		}
		out.Columns = append(out.Columns, name)
		rightCols = append(rightCols, i)
	}

	for _, lrow := range left.Rows {
		for _, ri := range rightRows[lrow[lk]] {
			row := make([]float64, 0, len(out.Columns))
			row = append(row, lrow...)
			for _, c := range rightCols {
				row = append(row, right.Rows[ri][c])
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}
