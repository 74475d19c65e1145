package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	Missing Kind = iota
	Int
	Float
	String
	Time
)

func (k Kind) String() string {
	switch k {
	case Missing:
		return "missing"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Time:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// NoneLiteral is the catalog's spelling of an absent property value.
const NoneLiteral = "None"

// Value is a single table cell: integer, float, string, instant or missing.
// The zero Value is Missing.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
}

func MissingValue() Value { return Value{} }
func IntValue(v int64) Value { return Value{kind: Int, i: v} }
func FloatValue(v float64) Value { return Value{kind: Float, f: v} }
func StringValue(v string) Value { return Value{kind: String, s: v} }
func TimeValue(v time.Time) Value { return Value{kind: Time, t: v.UTC()} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsMissing() bool { return v.kind == Missing }
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == Time }

// Int returns the integer payload; ok is false for any other kind.
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == Int
}

// Float widens Int values, so numeric columns can be read uniformly.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case Int:
		return float64(v.i), true
	case Float:
		return v.f, true
	}
	return 0, false
}

// Str returns the string payload; ok is false for any other kind.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == String
}

// Interface unwraps the payload: int64, float64, string, time.Time or nil.
func (v Value) Interface() any {
	switch v.kind {
	case Int:
		return v.i
	case Float:
		return v.f
	case String:
		return v.s
	case Time:
		return v.t
	}
	return nil
}

// Text is the cell encoding shared by the CSV and spreadsheet writers.
// Floats always carry a decimal point or exponent so they read back as floats.
func (v Value) Text() string {
	switch v.kind {
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if math.IsInf(v.f, 0) || math.IsNaN(v.f) {
			return s
		}
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case String:
		return v.s
	case Time:
		return v.t.Format(time.RFC3339Nano)
	}
	return ""
}

func (v Value) String() string {
	if v.kind == Missing {
		return "NaN"
	}
	return v.Text()
}

// Equal compares kind and payload. NaN floats compare equal to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Missing:
		return true
	case Int:
		return v.i == o.i
	case Float:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case String:
		return v.s == o.s
	case Time:
		return v.t.Equal(o.t)
	}
	return false
}

// Coerce applies the catalog property policy: "None" is missing, then an
// integer parse, then a float parse, else the raw string unchanged.
func Coerce(raw string) Value {
	if raw == NoneLiteral {
		return MissingValue()
	}
	s := strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i)
	}
	if !isHexFloat(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return FloatValue(f)
		}
	}
	return StringValue(raw)
}

// CoerceAny handles scalars decoded from JSON, where numbers may arrive
// unquoted.
func CoerceAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return MissingValue()
	case string:
		return Coerce(x)
	case json.Number:
		return Coerce(x.String())
	case float64:
		return Coerce(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		return StringValue(strconv.FormatBool(x))
	default:
		return StringValue(fmt.Sprint(x))
	}
}

func isHexFloat(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
