package frame

import (
	"math"

	"time-value-analyser/quake-ingester/internal/model"
)

// StatColumn heads the label column of a Describe result.
const StatColumn = "stat"

var describeStats = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// Describe summarises every numeric column (Int or Float by Kind): one row
// per statistic, one column per summarised input column.
func (f *Frame) Describe() *Frame {
	cols := []string{StatColumn}
	var series []*Series
	for j, c := range f.columns {
		k := inferKind(f.rows, j)
		if k != model.Int && k != model.Float {
			continue
		}
		s, _ := f.Column(c)
		if s.Count() == 0 {
			continue
		}
		cols = append(cols, c)
		series = append(series, s)
	}
	out := f.derive(cols, nil)
	for _, stat := range describeStats {
		row := make([]model.Value, len(cols))
		row[0] = model.StringValue(stat)
		for i, s := range series {
			row[i+1] = describeOne(s, stat)
		}
		out.rows = append(out.rows, row)
	}
	return out
}

func describeOne(s *Series, stat string) model.Value {
	var (
		v   float64
		err error
	)
	switch stat {
	case "count":
		return model.FloatValue(float64(len(s.Floats())))
	case "mean":
		v, err = s.Mean()
	case "std":
		v, err = s.Std()
	case "min":
		v, err = s.Min()
	case "25%":
		v, err = s.Quantile(0.25)
	case "50%":
		v, err = s.Quantile(0.5)
	case "75%":
		v, err = s.Quantile(0.75)
	case "max":
		v, err = s.Max()
	}
	if err != nil || math.IsNaN(v) {
		return model.MissingValue()
	}
	return model.FloatValue(v)
}
