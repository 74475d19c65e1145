package frame

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"time-value-analyser/quake-ingester/internal/model"
)

// ArrowSchema maps each column's Kind to an arrow type; every field is
// nullable so missing cells survive.
func (f *Frame) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(f.columns))
	for j, c := range f.columns {
		fields[j] = arrow.Field{Name: c, Type: arrowType(inferKind(f.rows, j)), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(k model.Kind) arrow.DataType {
	switch k {
	case model.Int:
		return arrow.PrimitiveTypes.Int64
	case model.Float:
		return arrow.PrimitiveTypes.Float64
	case model.Time:
		return arrow.FixedWidthTypes.Timestamp_ms
	}
	return arrow.BinaryTypes.String
}

// ArrowRecord builds one arrow record batch holding the whole frame. The
// caller releases it.
func (f *Frame) ArrowRecord(mem memory.Allocator) arrow.Record {
	schema := f.ArrowSchema()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for j := range f.columns {
		fb := b.Field(j)
		for _, row := range f.rows {
			v := row[j]
			if v.IsMissing() {
				fb.AppendNull()
				continue
			}
			switch fb := fb.(type) {
			case *array.Int64Builder:
				i, _ := v.Int()
				fb.Append(i)
			case *array.Float64Builder:
				x, _ := v.Float()
				fb.Append(x)
			case *array.TimestampBuilder:
				t, _ := v.Time()
				fb.Append(arrow.Timestamp(t.UnixMilli()))
			case *array.StringBuilder:
				fb.Append(v.Text())
			}
		}
	}
	return b.NewRecord()
}

// ToParquet writes the frame as a single row group, snappy-compressed.
func (f *Frame) ToParquet(filename string) error {
	out, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close() // the parquet writer closes it first on success

	rec := f.ArrowRecord(memory.DefaultAllocator)
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	w, err := pqarrow.NewFileWriter(rec.Schema(), out, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("parquet write: %w", err)
	}
	return w.Close()
}
