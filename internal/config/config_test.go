package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
query:
  start: "2020-01-01"
  end: "2020-01-08"
  products: [shakemap, " ", dyfi]
`

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "usgs", c.Source.Type)
	assert.Equal(t, DefaultBaseURL, c.Source.USGS.BaseURL)
	assert.Equal(t, 15*time.Second, c.Source.USGS.HTTP.Timeout)
	assert.Equal(t, DefaultPageSize, c.Source.USGS.PageSize)
	assert.Equal(t, DefaultMaxPages, c.Source.USGS.MaxPages)
	assert.Equal(t, 0.0, *c.Query.MinMagnitude)
	assert.Equal(t, 10.0, *c.Query.MaxMagnitude)
	assert.Equal(t, []string{"shakemap", "dyfi"}, c.Query.WantedProducts())
	assert.Equal(t, "info", c.Log.Level)

	start, end, err := c.Query.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2020, 1, 8, 0, 0, 0, 0, time.UTC), end)
}

func TestParseExplicitZeroMagnitude(t *testing.T) {
	c, err := Parse([]byte(minimal + "  min_magnitude: 0\n  max_magnitude: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, *c.Query.MaxMagnitude)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"no products": `
query: {start: "2020-01-01", end: "2020-01-02", products: []}`,
		"reversed window": `
query: {start: "2020-01-02", end: "2020-01-01", products: [shakemap]}`,
		"bad time": `
query: {start: "yesterday", end: "2020-01-01", products: [shakemap]}`,
		"magnitude range": `
query: {start: "2020-01-01", end: "2020-01-02", products: [shakemap], min_magnitude: 6, max_magnitude: 5}`,
		"sql sink without table": `
query: {start: "2020-01-01", end: "2020-01-02", products: [shakemap]}
sinks: {sqlite: {dsn: "file:q.db"}}`,
		"s3 without key": `
query: {start: "2020-01-01", end: "2020-01-02", products: [shakemap]}
sinks: {s3: {bucket: quakes}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(minimal+"table:\n  rates:\n    - {into: speed, distance: d, start: a, end: b}\n"), 0o644))
	c, err := Load(p)
	require.NoError(t, err)
	require.Len(t, c.Table.Rates, 1)
	assert.Equal(t, time.Hour, c.Table.Rates[0].Per)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2020-01-01T00:00:00Z", "2020-01-01T00:00:00", "2020-01-01 00:00:00", "2020-01-01"} {
		got, err := ParseTime(s)
		require.NoError(t, err, s)
		assert.True(t, got.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), s)
	}
}
