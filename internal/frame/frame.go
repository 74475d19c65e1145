// Package frame is the in-memory table the catalog records are assembled
// into. Cells are model.Value, so a column may hold mixed kinds and missing
// values; operations return new frames and leave the receiver untouched.
package frame

import (
	"errors"
	"fmt"
	"strings"

	"time-value-analyser/quake-ingester/internal/model"
)

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrRowLength      = errors.New("row length does not match columns")
	ErrDuplicateName  = errors.New("duplicate column name")
)

type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]model.Value
}

// New returns an empty frame with the given columns.
func New(columns []string) (*Frame, error) {
	f := &Frame{columns: append([]string(nil), columns...)}
	if err := f.reindex(); err != nil {
		return nil, err
	}
	return f, nil
}

// FromRecords lays records out as a uniform table: the core columns first,
// then every property column in first-seen order. Cells a record lacks are
// missing.
func FromRecords(recs []model.Record) *Frame {
	cols := append([]string(nil), model.CoreColumns...)
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		seen[c] = struct{}{}
	}
	for _, r := range recs {
		for _, c := range r.PropOrder {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	f := &Frame{columns: cols}
	_ = f.reindex() // names are unique by construction
	nCore := len(model.CoreColumns)
	for _, r := range recs {
		row := make([]model.Value, len(cols))
		copy(row, r.Core())
		for j := nCore; j < len(cols); j++ {
			row[j] = r.Props[cols[j]] // zero Value is missing
		}
		f.rows = append(f.rows, row)
	}
	return f
}

func (f *Frame) reindex() error {
	f.index = make(map[string]int, len(f.columns))
	for i, c := range f.columns {
		if _, dup := f.index[c]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateName, c)
		}
		f.index[c] = i
	}
	return nil
}

func (f *Frame) col(name string) (int, error) {
	i, ok := f.index[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return i, nil
}

func (f *Frame) derive(columns []string, rows [][]model.Value) *Frame {
	out := &Frame{columns: columns, rows: rows}
	_ = out.reindex()
	return out
}

// AddRow appends a row; the frame grows in place.
func (f *Frame) AddRow(row []model.Value) error {
	if len(row) != len(f.columns) {
		return fmt.Errorf("%w: got %d, want %d", ErrRowLength, len(row), len(f.columns))
	}
	f.rows = append(f.rows, append([]model.Value(nil), row...))
	return nil
}

// Shape returns (rows, columns).
func (f *Frame) Shape() (int, int) {
	return len(f.rows), len(f.columns)
}

func (f *Frame) Len() int { return len(f.rows) }

func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

func (f *Frame) Head(n int) *Frame {
	if n > len(f.rows) {
		n = len(f.rows)
	}
	if n < 0 {
		n = 0
	}
	return f.derive(f.Columns(), f.rows[:n:n])
}

// Value returns the cell at row i of the named column.
func (f *Frame) Value(i int, col string) (model.Value, error) {
	j, err := f.col(col)
	if err != nil {
		return model.Value{}, err
	}
	if i < 0 || i >= len(f.rows) {
		return model.Value{}, fmt.Errorf("row %d out of range [0,%d)", i, len(f.rows))
	}
	return f.rows[i][j], nil
}

// Row is a read-only view of one row.
type Row struct {
	f *Frame
	i int
}

func (f *Frame) Row(i int) Row { return Row{f: f, i: i} }

func (r Row) Index() int { return r.i }

// Get returns the named cell, or missing when the column does not exist.
func (r Row) Get(col string) model.Value {
	j, ok := r.f.index[col]
	if !ok {
		return model.MissingValue()
	}
	return r.f.rows[r.i][j]
}

// Values returns a copy of the row's cells in column order.
func (r Row) Values() []model.Value {
	return append([]model.Value(nil), r.f.rows[r.i]...)
}

// Map returns the non-missing cells keyed by column, unwrapped to Go values.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.f.columns))
	for j, c := range r.f.columns {
		if v := r.f.rows[r.i][j]; !v.IsMissing() {
			m[c] = v.Interface()
		}
	}
	return m
}

// Column copies a column out as a Series.
func (f *Frame) Column(name string) (*Series, error) {
	j, err := f.col(name)
	if err != nil {
		return nil, err
	}
	data := make([]model.Value, len(f.rows))
	for i, row := range f.rows {
		data[i] = row[j]
	}
	return NewSeries(name, data), nil
}

// Kind infers a column's storage kind: Int when every present cell is an
// integer, Float for any numeric mix, Time when every present cell is an
// instant, String otherwise (including all-missing columns).
func (f *Frame) Kind(name string) (model.Kind, error) {
	j, err := f.col(name)
	if err != nil {
		return model.Missing, err
	}
	return inferKind(f.rows, j), nil
}

func inferKind(rows [][]model.Value, j int) model.Kind {
	var ints, floats, times, others int
	for _, row := range rows {
		switch row[j].Kind() {
		case model.Int:
			ints++
		case model.Float:
			floats++
		case model.Time:
			times++
		case model.String:
			others++
		}
	}
	switch {
	case others > 0:
		return model.String
	case times > 0 && ints+floats == 0:
		return model.Time
	case times > 0:
		return model.String
	case floats > 0:
		return model.Float
	case ints > 0:
		return model.Int
	}
	return model.String
}

// Equal reports whether both frames have the same columns and cells.
func (f *Frame) Equal(o *Frame) bool {
	if len(f.columns) != len(o.columns) || len(f.rows) != len(o.rows) {
		return false
	}
	for i, c := range f.columns {
		if o.columns[i] != c {
			return false
		}
	}
	for i := range f.rows {
		for j := range f.rows[i] {
			if !f.rows[i][j].Equal(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

func (f *Frame) String() string {
	var b strings.Builder
	for _, c := range f.columns {
		fmt.Fprintf(&b, "%-15s", c)
	}
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("-", len(f.columns)*15))
	b.WriteByte('\n')
	for _, row := range f.rows {
		for _, v := range row {
			fmt.Fprintf(&b, "%-15v", v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
