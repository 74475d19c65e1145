package frame

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time-value-analyser/quake-ingester/internal/model"
)

func TestCSVRoundTrip(t *testing.T) {
	f := FromRecords(sampleRecords())
	path := filepath.Join(t.TempDir(), "quakes.csv")
	require.NoError(t, f.ToCSV(path))

	back, err := ReadCSV(path, WithTimeColumns(model.ColTime))
	require.NoError(t, err)
	assert.Equal(t, f.Columns(), back.Columns())
	assert.Equal(t, f.Len(), back.Len())
	assert.True(t, f.Equal(back), "want\n%s\ngot\n%s", f, back)
}

func TestCSVRoundTripKeepsFloatsWithIntegralValue(t *testing.T) {
	f := mustFrame(t, []string{"m", "n"},
		[]model.Value{model.FloatValue(6), model.IntValue(6)},
		[]model.Value{model.FloatValue(1e21), model.MissingValue()},
	)
	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf))
	assert.Equal(t, "m,n\n6.0,6\n1e+21,\n", buf.String())

	back, err := ParseCSV(&buf)
	require.NoError(t, err)
	assert.True(t, f.Equal(back))
}

func TestParseCSVOptions(t *testing.T) {
	in := "1;a;2020-01-02\n2.5;;2020-01-03 04:05:06\n3\n"
	f, err := ParseCSV(strings.NewReader(in), WithHeader(false), WithDelimiter(';'), WithTimeColumns("col_2"))
	require.Error(t, err, "ragged records are rejected by the reader")
	assert.Nil(t, f)

	in = "1;a;2020-01-02\n2.5;;2020-01-03 04:05:06\n"
	f, err = ParseCSV(strings.NewReader(in), WithHeader(false), WithDelimiter(';'), WithTimeColumns("col_2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"col_0", "col_1", "col_2"}, f.Columns())

	k, _ := f.Kind("col_0")
	assert.Equal(t, model.Float, k)
	v, _ := f.Value(1, "col_1")
	assert.True(t, v.IsMissing())
	k, _ = f.Kind("col_2")
	assert.Equal(t, model.Time, k)

	_, err = ParseCSV(strings.NewReader(""))
	require.Error(t, err)
	_, err = ParseCSV(strings.NewReader("a,b\n"), WithTimeColumns("c"))
	require.ErrorIs(t, err, ErrColumnNotFound)
}

func TestExcelRoundTrip(t *testing.T) {
	f := FromRecords(sampleRecords())
	path := filepath.Join(t.TempDir(), "quakes.xlsx")
	require.NoError(t, f.ToExcel(path, "quakes"))

	back, err := ReadExcel(path, "quakes", WithTimeColumns(model.ColTime))
	require.NoError(t, err)
	assert.Equal(t, f.Columns(), back.Columns())
	require.Equal(t, 2, back.Len())

	v, _ := back.Value(0, model.ColTime)
	ts, ok := v.Time()
	require.True(t, ok)
	assert.True(t, ts.Equal(t0))

	v, _ = back.Value(1, model.ColLatitude)
	assert.True(t, v.Equal(model.FloatValue(-15)), v.String())
	v, _ = back.Value(0, "shakemap-maxmmi")
	assert.True(t, v.Equal(model.FloatValue(5)), "int cells in a float column read back as floats")
	v, _ = back.Value(1, model.ColMagnitude)
	assert.True(t, v.IsMissing())
	v, _ = back.Value(1, "losspager-alertlevel")
	assert.True(t, v.Equal(model.StringValue("yellow")))

	_, err = ReadExcel(path, "nope")
	require.Error(t, err)
}

func TestParquetWrite(t *testing.T) {
	f := FromRecords(sampleRecords())
	path := filepath.Join(t.TempDir(), "quakes.parquet")
	require.NoError(t, f.ToParquet(path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	tbl, err := pqarrow.ReadTable(context.Background(), file, parquet.NewReaderProperties(memory.DefaultAllocator),
		pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	defer tbl.Release()

	assert.EqualValues(t, 2, tbl.NumRows())
	assert.EqualValues(t, 10, tbl.NumCols())

	schema := tbl.Schema()
	assert.Equal(t, model.ColID, schema.Field(0).Name)
	assert.Equal(t, arrow.STRING, schema.Field(0).Type.ID())
	assert.Equal(t, arrow.TIMESTAMP, schema.Field(1).Type.ID())
	assert.Equal(t, arrow.FLOAT64, schema.Field(6).Type.ID())
	assert.Equal(t, arrow.FLOAT64, schema.Field(7).Type.ID(), "int and float cells widen to float")
}

func TestArrowRecordNulls(t *testing.T) {
	f := mustFrame(t, []string{"n", "m"},
		[]model.Value{model.IntValue(1), model.FloatValue(math.NaN())},
		[]model.Value{model.MissingValue(), model.FloatValue(2.5)},
	)
	rec := f.ArrowRecord(memory.DefaultAllocator)
	defer rec.Release()

	assert.EqualValues(t, 2, rec.NumRows())
	assert.Equal(t, arrow.INT64, rec.Column(0).DataType().ID())
	assert.Equal(t, 1, rec.Column(0).NullN())
	assert.Equal(t, 0, rec.Column(1).NullN(), "NaN is a value, not a null")
}
