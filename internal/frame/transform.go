package frame

import (
	"math"
	"strconv"
	"strings"
	"time"

	"time-value-analyser/quake-ingester/internal/model"
)

// DateParts names the columns holding the fragments of a date-time.
// Year, Month and Day are required; empty Hour, Minute or Second mean zero.
type DateParts struct {
	Year, Month, Day     string
	Hour, Minute, Second string
}

// AssembleTime builds a UTC instant column dst from fragment columns. A row
// whose fragments are missing, unparseable or out of range gets a missing
// cell. Months may be numbers or English names ("Jan", "January").
func (f *Frame) AssembleTime(dst string, p DateParts) (*Frame, error) {
	for _, c := range []string{p.Year, p.Month, p.Day, p.Hour, p.Minute, p.Second} {
		if c == "" {
			continue
		}
		if _, err := f.col(c); err != nil {
			return nil, err
		}
	}
	return f.Apply(dst, func(r Row) model.Value {
		t, ok := assemble(r, p)
		if !ok {
			return model.MissingValue()
		}
		return model.TimeValue(t)
	}), nil
}

func assemble(r Row, p DateParts) (time.Time, bool) {
	year, ok := partInt(r.Get(p.Year))
	if !ok {
		return time.Time{}, false
	}
	month, ok := partMonth(r.Get(p.Month))
	if !ok {
		return time.Time{}, false
	}
	day, ok := partInt(r.Get(p.Day))
	if !ok {
		return time.Time{}, false
	}
	hour, minute, sec := 0, 0, 0.0
	if p.Hour != "" {
		if hour, ok = partInt(r.Get(p.Hour)); !ok || hour < 0 || hour > 23 {
			return time.Time{}, false
		}
	}
	if p.Minute != "" {
		if minute, ok = partInt(r.Get(p.Minute)); !ok || minute < 0 || minute > 59 {
			return time.Time{}, false
		}
	}
	if p.Second != "" {
		if sec, ok = partFloat(r.Get(p.Second)); !ok || sec < 0 || sec >= 60 {
			return time.Time{}, false
		}
	}
	if month < 1 || month > 12 || day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, false
	}
	whole := math.Floor(sec)
	nsec := int(math.Round((sec - whole) * 1e9))
	return time.Date(year, time.Month(month), day, hour, minute, int(whole), nsec, time.UTC), true
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func partInt(v model.Value) (int, bool) {
	switch v.Kind() {
	case model.Int:
		i, _ := v.Int()
		return int(i), true
	case model.Float:
		f, _ := v.Float()
		if f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	case model.String:
		s, _ := v.Str()
		i, err := strconv.Atoi(strings.TrimSpace(s))
		return i, err == nil
	}
	return 0, false
}

func partFloat(v model.Value) (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, true
	}
	if s, ok := v.Str(); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func partMonth(v model.Value) (int, bool) {
	if m, ok := partInt(v); ok {
		return m, true
	}
	s, ok := v.Str()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	for _, layout := range []string{"Jan", "January"} {
		if t, err := time.Parse(layout, s); err == nil {
			return int(t.Month()), true
		}
	}
	return 0, false
}

// Rate sets dst to distance / (end - start), with elapsed time measured in
// units of per (time.Hour gives distance per hour). Rows with a missing
// input, or with end not after start, get a missing cell.
func (f *Frame) Rate(dst, distance, start, end string, per time.Duration) (*Frame, error) {
	for _, c := range []string{distance, start, end} {
		if _, err := f.col(c); err != nil {
			return nil, err
		}
	}
	if per <= 0 {
		per = time.Hour
	}
	return f.Apply(dst, func(r Row) model.Value {
		d, ok := r.Get(distance).Float()
		if !ok {
			return model.MissingValue()
		}
		t0, ok0 := r.Get(start).Time()
		t1, ok1 := r.Get(end).Time()
		if !ok0 || !ok1 {
			return model.MissingValue()
		}
		elapsed := t1.Sub(t0)
		if elapsed <= 0 {
			return model.MissingValue()
		}
		return model.FloatValue(d / (float64(elapsed) / float64(per)))
	}), nil
}
