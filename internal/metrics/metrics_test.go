package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.Features.WithLabelValues("kept").Add(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(a.Features.WithLabelValues("kept")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Features.WithLabelValues("kept")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RowsWritten.WithLabelValues("csv").Add(2)
	m.TableRows.Set(2)

	p := filepath.Join(t.TempDir(), "quake.prom")
	require.NoError(t, m.WriteTextfile(p))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	out := string(b)
	assert.True(t, strings.Contains(out, `quake_rows_written_total{sink="csv"} 2`), out)
	assert.True(t, strings.Contains(out, "quake_table_rows 2"), out)
}
