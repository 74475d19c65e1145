package frame

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"time-value-analyser/quake-ingester/internal/model"
)

// ErrNoNumeric is returned by statistics over a series with no numbers.
var ErrNoNumeric = errors.New("no numeric values")

type Series struct {
	name string
	data []model.Value
}

func NewSeries(name string, data []model.Value) *Series {
	return &Series{name: name, data: data}
}

func (s *Series) Name() string { return s.name }
func (s *Series) Len() int { return len(s.data) }
func (s *Series) At(i int) model.Value { return s.data[i] }
func (s *Series) Values() []model.Value { return append([]model.Value(nil), s.data...) }

// Count is the number of non-missing cells.
func (s *Series) Count() int {
	n := 0
	for _, v := range s.data {
		if !v.IsMissing() {
			n++
		}
	}
	return n
}

// Floats returns the numeric cells; strings, instants and missing cells are
// skipped, as are NaNs.
func (s *Series) Floats() []float64 {
	out := make([]float64, 0, len(s.data))
	for _, v := range s.data {
		if f, ok := v.Float(); ok && !math.IsNaN(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s *Series) Sum() (float64, error) {
	x := s.Floats()
	if len(x) == 0 {
		return 0, ErrNoNumeric
	}
	return floats.Sum(x), nil
}

func (s *Series) Mean() (float64, error) {
	x := s.Floats()
	if len(x) == 0 {
		return 0, ErrNoNumeric
	}
	return stat.Mean(x, nil), nil
}

// Std is the sample standard deviation (n-1 denominator); NaN below two values.
func (s *Series) Std() (float64, error) {
	x := s.Floats()
	if len(x) == 0 {
		return 0, ErrNoNumeric
	}
	if len(x) < 2 {
		return math.NaN(), nil
	}
	return stat.StdDev(x, nil), nil
}

func (s *Series) Min() (float64, error) {
	x := s.Floats()
	if len(x) == 0 {
		return 0, ErrNoNumeric
	}
	return floats.Min(x), nil
}

func (s *Series) Max() (float64, error) {
	x := s.Floats()
	if len(x) == 0 {
		return 0, ErrNoNumeric
	}
	return floats.Max(x), nil
}

// Quantile interpolates linearly between closest ranks, the same
// definition spreadsheet PERCENTILE and most dataframe libraries use.
func (s *Series) Quantile(p float64) (float64, error) {
	x := s.Floats()
	if len(x) == 0 {
		return 0, ErrNoNumeric
	}
	if p < 0 || p > 1 {
		return 0, errors.New("quantile outside [0,1]")
	}
	sort.Float64s(x)
	pos := p * float64(len(x)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return x[lo] + (x[hi]-x[lo])*(pos-float64(lo)), nil
}
