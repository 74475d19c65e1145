package frame

import (
	"time-value-analyser/quake-ingester/internal/model"
)

// Mask is a per-row boolean selector.
type Mask []bool

// Where evaluates pred over col. Missing cells are passed to pred as-is.
func (f *Frame) Where(col string, pred func(model.Value) bool) (Mask, error) {
	j, err := f.col(col)
	if err != nil {
		return nil, err
	}
	m := make(Mask, len(f.rows))
	for i, row := range f.rows {
		m[i] = pred(row[j])
	}
	return m, nil
}

// IsIn marks rows whose col equals any of vals. Numbers match across Int
// and Float, so IsIn("depth", IntValue(10)) matches 10.0.
func (f *Frame) IsIn(col string, vals ...model.Value) (Mask, error) {
	return f.Where(col, func(v model.Value) bool {
		if v.IsMissing() {
			return false
		}
		for _, w := range vals {
			if w.IsMissing() {
				continue
			}
			if v.Equal(w) || (isNumber(v) && isNumber(w) && Compare(v, w) == 0) {
				return true
			}
		}
		return false
	})
}

// RowMask evaluates pred over whole rows.
func (f *Frame) RowMask(pred func(Row) bool) Mask {
	m := make(Mask, len(f.rows))
	for i := range f.rows {
		m[i] = pred(f.Row(i))
	}
	return m
}

func (m Mask) And(o Mask) Mask { return m.combine(o, func(a, b bool) bool { return a && b }) }
func (m Mask) Or(o Mask) Mask { return m.combine(o, func(a, b bool) bool { return a || b }) }

func (m Mask) Not() Mask {
	out := make(Mask, len(m))
	for i, v := range m {
		out[i] = !v
	}
	return out
}

// Count is the number of selected rows.
func (m Mask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// combine panics on length mismatch, like indexing out of range would.
func (m Mask) combine(o Mask, op func(a, b bool) bool) Mask {
	if len(m) != len(o) {
		panic("frame: mask length mismatch")
	}
	out := make(Mask, len(m))
	for i := range m {
		out[i] = op(m[i], o[i])
	}
	return out
}

func isNumber(v model.Value) bool {
	_, ok := v.Float()
	return ok
}
