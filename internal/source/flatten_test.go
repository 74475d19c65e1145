package source

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time-value-analyser/quake-ingester/internal/model"
)

func TestParseTypes(t *testing.T) {
	assert.Equal(t, []string{"origin", "shakemap", "dyfi"}, ParseTypes(",origin, shakemap,,dyfi,"))
	assert.Empty(t, ParseTypes(""))
	assert.Empty(t, ParseTypes(",,"))
}

func TestMatchProducts(t *testing.T) {
	tests := []struct {
		name      string
		wanted    []string
		available []string
		want      []string
	}{
		{"empty intersection", []string{"shakemap"}, []string{"dyfi"}, nil},
		{"partial", []string{"shakemap", "losspager"}, []string{"dyfi", "shakemap"}, []string{"shakemap"}},
		{"wanted order", []string{"losspager", "shakemap"}, []string{"shakemap", "losspager"}, []string{"losspager", "shakemap"}},
		{"duplicates", []string{"shakemap", "shakemap"}, []string{"shakemap"}, []string{"shakemap"}},
		{"no tags", []string{"shakemap"}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchProducts(tt.wanted, tt.available))
		})
	}
}

func TestFlattenMissingPropertyAndGeometry(t *testing.T) {
	var d Detail
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "ci1",
		"properties": {
			"time": 1577836800000,
			"place": "somewhere",
			"mag": null,
			"products": {"shakemap": [{"properties": {"maxmmi": 6.0, "nested": {"a": 1}}}, {"properties": {"ignored": "1"}}]}
		},
		"geometry": {"coordinates": [10, 20]}
	}`), &d))

	rec := Flatten(d, []string{"shakemap", "dyfi"})
	assert.Equal(t, "ci1", rec.ID)
	assert.True(t, math.IsNaN(rec.Magnitude))
	assert.True(t, math.IsNaN(rec.Depth))
	assert.Equal(t, 20.0, rec.Latitude)
	assert.Equal(t, 10.0, rec.Longitude)

	assert.Equal(t, []string{"shakemap-maxmmi", "shakemap-nested"}, rec.PropOrder)
	// unquoted 6.0 prints as "6.0" in the document and is therefore not an integer
	assert.Equal(t, model.Float, rec.Props["shakemap-maxmmi"].Kind())
	assert.Equal(t, model.String, rec.Props["shakemap-nested"].Kind())
	_, ok := rec.Props["shakemap-ignored"]
	assert.False(t, ok)
}

func TestFlattenNoProducts(t *testing.T) {
	var d Detail
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","properties":{"time":0}}`), &d))
	rec := Flatten(d, []string{"shakemap"})
	assert.Empty(t, rec.PropOrder)
	assert.True(t, rec.Time.Equal(model.FromEpochMillis(0)))
}

func TestPropertyMapRejectsNonObject(t *testing.T) {
	var p propertyMap
	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &p))
	require.NoError(t, json.Unmarshal([]byte(`null`), &p))
	assert.Empty(t, p.keys)
}
