package sink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/frame"
	"time-value-analyser/quake-ingester/internal/metrics"
)

// Sink is the minimal interface all exporters implement.
type Sink interface {
	Name() string
	Write(ctx context.Context, f *frame.Frame) error
}

type Option func(*options)

type options struct {
	log     *logrus.Entry
	metrics *metrics.Metrics
	runID   string
	client  *http.Client
}

func WithLogger(l *logrus.Entry) Option { return func(o *options) { o.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithRunID tags pushed streams and samples with the run identifier.
func WithRunID(id string) Option { return func(o *options) { o.runID = id } }

// WithHTTPClient replaces the client of the HTTP push sinks.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.client = c } }

func buildOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = logrus.NewEntry(l)
	}
	return o
}

// NewFromConfig builds every sink that has a destination configured, in a
// fixed order: files, databases, pushes, object storage. Database sinks
// connect here, so a bad DSN fails before any sink has written.
func NewFromConfig(ctx context.Context, c config.SinksConfig, opts ...Option) ([]Sink, error) {
	o := buildOptions(opts)
	var sinks []Sink

	if c.CSV.Path != "" {
		sinks = append(sinks, NewCSV(c.CSV.Path))
	}
	if c.Excel.Path != "" {
		sinks = append(sinks, NewExcel(c.Excel.Path, c.Excel.Sheet))
	}
	if c.Parquet.Path != "" {
		sinks = append(sinks, NewParquet(c.Parquet.Path))
	}
	if c.SQLite.DSN != "" {
		s, err := OpenSQLite(c.SQLite)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if c.Postgres.DSN != "" {
		s, err := OpenPostgres(ctx, c.Postgres)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if c.ClickHouse.DSN != "" {
		s, err := OpenClickHouse(c.ClickHouse)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if strings.TrimSpace(c.Loki.URL) != "" {
		sinks = append(sinks, NewLoki(c.Loki, o))
	}
	if strings.TrimSpace(c.Victoria.URL) != "" {
		sinks = append(sinks, NewVictoria(c.Victoria, o))
	}
	if c.S3.Bucket != "" {
		s, err := NewS3(ctx, c.S3)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// WriteAll runs the sinks one after another. The first failure stops the
// export and is returned wrapped with the sink's name.
func WriteAll(ctx context.Context, sinks []Sink, f *frame.Frame, opts ...Option) error {
	o := buildOptions(opts)
	for _, s := range sinks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Write(ctx, f); err != nil {
			return fmt.Errorf("sink %s: %w", s.Name(), err)
		}
		if o.metrics != nil {
			o.metrics.RowsWritten.WithLabelValues(s.Name()).Add(float64(f.Len()))
		}
		o.log.WithFields(logrus.Fields{"sink": s.Name(), "rows": f.Len()}).Info("table exported")
	}
	return nil
}

// Close releases sinks that hold connections.
func Close(sinks []Sink) {
	for _, s := range sinks {
		if c, ok := s.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
