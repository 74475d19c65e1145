package frame

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"time-value-analyser/quake-ingester/internal/model"
)

// Select keeps the named columns, in the given order.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, err := f.col(c)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	rows := make([][]model.Value, len(f.rows))
	for i, row := range f.rows {
		nr := make([]model.Value, len(idx))
		for k, j := range idx {
			nr[k] = row[j]
		}
		rows[i] = nr
	}
	out := &Frame{columns: append([]string(nil), columns...), rows: rows}
	if err := out.reindex(); err != nil {
		return nil, err
	}
	return out, nil
}

// Drop removes the named columns.
func (f *Frame) Drop(columns ...string) (*Frame, error) {
	gone := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, err := f.col(c); err != nil {
			return nil, err
		}
		gone[c] = struct{}{}
	}
	keep := make([]string, 0, len(f.columns))
	for _, c := range f.columns {
		if _, ok := gone[c]; !ok {
			keep = append(keep, c)
		}
	}
	return f.Select(keep...)
}

// Rename maps old column names to new ones; unknown old names are an error.
func (f *Frame) Rename(names map[string]string) (*Frame, error) {
	cols := f.Columns()
	for old, nu := range names {
		j, err := f.col(old)
		if err != nil {
			return nil, err
		}
		cols[j] = nu
	}
	out := &Frame{columns: cols, rows: f.rows}
	if err := out.reindex(); err != nil {
		return nil, err
	}
	return out, nil
}

// TrimColumnPrefix strips prefix from every column name that carries it,
// e.g. "shakemap-" turns "shakemap-maxmmi" into "maxmmi".
func (f *Frame) TrimColumnPrefix(prefix string) (*Frame, error) {
	names := make(map[string]string)
	for _, c := range f.columns {
		if strings.HasPrefix(c, prefix) && len(c) > len(prefix) {
			names[c] = strings.TrimPrefix(c, prefix)
		}
	}
	return f.Rename(names)
}

// Filter keeps the rows where mask is true.
func (f *Frame) Filter(mask Mask) (*Frame, error) {
	if len(mask) != len(f.rows) {
		return nil, fmt.Errorf("%w: mask has %d entries for %d rows", ErrRowLength, len(mask), len(f.rows))
	}
	var rows [][]model.Value
	for i, keep := range mask {
		if keep {
			rows = append(rows, f.rows[i])
		}
	}
	return f.derive(f.Columns(), rows), nil
}

// DropNA removes rows with a missing cell in any of the named columns, or in
// any column when none are named.
func (f *Frame) DropNA(columns ...string) (*Frame, error) {
	idx, err := f.indices(columns)
	if err != nil {
		return nil, err
	}
	var rows [][]model.Value
	for _, row := range f.rows {
		ok := true
		for _, j := range idx {
			if row[j].IsMissing() {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return f.derive(f.Columns(), rows), nil
}

// FillNA replaces missing cells of col with v.
func (f *Frame) FillNA(col string, v model.Value) (*Frame, error) {
	return f.mapColumn(col, func(c model.Value) model.Value {
		if c.IsMissing() {
			return v
		}
		return c
	})
}

// Apply sets column dst (appending it when new) to fn of every row.
func (f *Frame) Apply(dst string, fn func(Row) model.Value) *Frame {
	cols := f.Columns()
	j, exists := f.index[dst]
	if !exists {
		cols = append(cols, dst)
		j = len(cols) - 1
	}
	rows := make([][]model.Value, len(f.rows))
	for i, row := range f.rows {
		nr := make([]model.Value, len(cols))
		copy(nr, row)
		nr[j] = fn(f.Row(i))
		rows[i] = nr
	}
	return f.derive(cols, rows)
}

// MapStrings rewrites the string cells of col; other kinds pass through.
func (f *Frame) MapStrings(col string, fn func(string) string) (*Frame, error) {
	return f.mapColumn(col, func(v model.Value) model.Value {
		if s, ok := v.Str(); ok {
			return model.StringValue(fn(s))
		}
		return v
	})
}

// NormalizeStrings applies Unicode NFC, trims, and collapses inner runs of
// whitespace to one space.
func (f *Frame) NormalizeStrings(col string) (*Frame, error) {
	return f.MapStrings(col, NormalizeString)
}

func NormalizeString(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// StripPrefix removes prefix from the string cells of col.
func (f *Frame) StripPrefix(col, prefix string) (*Frame, error) {
	return f.MapStrings(col, func(s string) string { return strings.TrimPrefix(s, prefix) })
}

// Sort orders rows by col, stably. Missing cells sort last either way.
func (f *Frame) Sort(col string, ascending bool) (*Frame, error) {
	j, err := f.col(col)
	if err != nil {
		return nil, err
	}
	rows := append([][]model.Value(nil), f.rows...)
	sort.SliceStable(rows, func(a, b int) bool {
		va, vb := rows[a][j], rows[b][j]
		if va.IsMissing() || vb.IsMissing() {
			return !va.IsMissing() && vb.IsMissing()
		}
		c := Compare(va, vb)
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return f.derive(f.Columns(), rows), nil
}

// Group is the rows sharing one key.
type Group struct {
	Key   model.Value
	Frame *Frame
}

// GroupBy partitions rows by the value of col, in first-seen key order.
func (f *Frame) GroupBy(col string) ([]Group, error) {
	j, err := f.col(col)
	if err != nil {
		return nil, err
	}
	var groups []Group
	pos := make(map[string]int)
	for _, row := range f.rows {
		k := row[j].Kind().String() + ":" + row[j].Text()
		g, ok := pos[k]
		if !ok {
			g = len(groups)
			pos[k] = g
			groups = append(groups, Group{Key: row[j], Frame: f.derive(f.Columns(), nil)})
		}
		groups[g].Frame.rows = append(groups[g].Frame.rows, row)
	}
	return groups, nil
}

// Compare orders two present values: numbers numerically, instants by
// time, anything else by its text.
func Compare(a, b model.Value) int {
	if fa, ok := a.Float(); ok {
		if fb, ok := b.Float(); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := a.Time(); ok {
		if tb, ok := b.Time(); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(a.Text(), b.Text())
}

func (f *Frame) indices(columns []string) ([]int, error) {
	if len(columns) == 0 {
		idx := make([]int, len(f.columns))
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, err := f.col(c)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	return idx, nil
}

func (f *Frame) mapColumn(col string, fn func(model.Value) model.Value) (*Frame, error) {
	j, err := f.col(col)
	if err != nil {
		return nil, err
	}
	rows := make([][]model.Value, len(f.rows))
	for i, row := range f.rows {
		nr := append([]model.Value(nil), row...)
		nr[j] = fn(row[j])
		rows[i] = nr
	}
	return f.derive(f.Columns(), rows), nil
}
