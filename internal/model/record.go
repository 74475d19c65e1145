package model

import (
	"math"
	"time"
)

// Core column names, in table order.
const (
	ColID        = "id"
	ColTime      = "time"
	ColPlace     = "place"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
	ColDepth     = "depth"
	ColMagnitude = "magnitude"
)

var CoreColumns = []string{ColID, ColTime, ColPlace, ColLatitude, ColLongitude, ColDepth, ColMagnitude}

// Record is one flattened catalog event. It is built once by the flattener
// and not mutated afterwards.
type Record struct {
	ID        string
	Time      time.Time
	Place     string
	Latitude  float64
	Longitude float64
	Depth     float64
	Magnitude float64 // NaN when the catalog reports null

	Props     map[string]Value // keyed by PropertyColumn
	PropOrder []string         // insertion order of Props
}

// PropertyColumn names the column holding prop of the given product type.
func PropertyColumn(product, prop string) string {
	return product + "-" + prop
}

// FromEpochMillis converts a catalog millisecond timestamp to a UTC instant.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// SetProp records a property value, keeping first-insertion order.
func (r *Record) SetProp(col string, v Value) {
	if r.Props == nil {
		r.Props = make(map[string]Value)
	}
	if _, ok := r.Props[col]; !ok {
		r.PropOrder = append(r.PropOrder, col)
	}
	r.Props[col] = v
}

// Core returns the fixed fields as cells, aligned with CoreColumns.
func (r Record) Core() []Value {
	return []Value{
		StringValue(r.ID),
		TimeValue(r.Time),
		StringValue(r.Place),
		floatCell(r.Latitude),
		floatCell(r.Longitude),
		floatCell(r.Depth),
		floatCell(r.Magnitude),
	}
}

// Get looks a column up across core fields and properties.
func (r Record) Get(col string) (Value, bool) {
	for i, c := range CoreColumns {
		if c == col {
			return r.Core()[i], true
		}
	}
	v, ok := r.Props[col]
	return v, ok
}

func floatCell(f float64) Value {
	if math.IsNaN(f) {
		return MissingValue()
	}
	return FloatValue(f)
}
