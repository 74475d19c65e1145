package sink

import (
	"context"
	"os"
	"path/filepath"

	"time-value-analyser/quake-ingester/internal/frame"
)

type fileSink struct {
	name  string
	path  string
	write func(f *frame.Frame, path string) error
}

func (s *fileSink) Name() string { return s.name }

func (s *fileSink) Write(_ context.Context, f *frame.Frame) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return s.write(f, s.path)
}

// NewCSV writes the table as comma-separated text with a header row.
func NewCSV(path string) Sink {
	return &fileSink{name: "csv", path: path, write: func(f *frame.Frame, p string) error {
		return f.ToCSV(p)
	}}
}

func NewExcel(path, sheet string) Sink {
	return &fileSink{name: "excel", path: path, write: func(f *frame.Frame, p string) error {
		return f.ToExcel(p, sheet)
	}}
}

func NewParquet(path string) Sink {
	return &fileSink{name: "parquet", path: path, write: func(f *frame.Frame, p string) error {
		return f.ToParquet(p)
	}}
}
