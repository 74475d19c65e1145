// Package pipeline runs one catalog query end to end: fetch, flatten into a
// table, reshape, label and filter, summarise, plot and export.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/frame"
	"time-value-analyser/quake-ingester/internal/metrics"
	"time-value-analyser/quake-ingester/internal/plot"
	"time-value-analyser/quake-ingester/internal/postprocess"
	"time-value-analyser/quake-ingester/internal/sink"
	"time-value-analyser/quake-ingester/internal/source"
)

// Result is what a successful run produced.
type Result struct {
	RunID    string
	Fetched  int          // records returned by the source
	Table    *frame.Frame // after every table step and filter
	Summary  *frame.Frame // Describe of Table
	Plots    []string
	Sinks    []string
	Duration time.Duration
}

type Option func(*options)

type options struct {
	log     *logrus.Entry
	metrics *metrics.Metrics
	client  *http.Client
	sinks   []sink.Sink
	runID   string
}

func WithLogger(l *logrus.Entry) Option { return func(o *options) { o.log = l } }

// WithMetrics shares a registry with the caller; by default each run gets
// its own.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithHTTPClient is used for the catalog requests.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.client = c } }

// WithSinks replaces the sinks that cfg.Sinks would build.
func WithSinks(s ...sink.Sink) Option { return func(o *options) { o.sinks = s } }

func WithRunID(id string) Option { return func(o *options) { o.runID = id } }

// Run executes cfg once. Any failure aborts the run; nothing is retried.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) (*Result, error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = logrus.NewEntry(l)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	log := o.log.WithField("run_id", o.runID)
	start := time.Now()
	res := &Result{RunID: o.runID}

	// 1) Fetch
	q, err := source.QueryFromConfig(cfg.Query)
	if err != nil {
		return nil, err
	}
	srcOpts := []source.Option{source.WithLogger(log), source.WithMetrics(o.metrics)}
	if o.client != nil {
		srcOpts = append(srcOpts, source.WithHTTPClient(o.client))
	}
	src, err := source.NewFromConfig(cfg.Source, srcOpts...)
	if err != nil {
		return nil, fmt.Errorf("build source: %w", err)
	}
	log.WithFields(logrus.Fields{
		"source":   src.Name(),
		"start":    q.Start.Format(time.RFC3339),
		"end":      q.End.Format(time.RFC3339),
		"products": q.Products,
	}).Info("querying catalog")
	recs, err := src.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.Name(), err)
	}
	res.Fetched = len(recs)

	// 2) Table
	tbl, err := Reshape(frame.FromRecords(recs), cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}

	// 3) Labels and filters
	eng, err := postprocess.New(cfg.Post)
	if err != nil {
		return nil, fmt.Errorf("postprocess: %w", err)
	}
	if tbl, err = eng.Apply(tbl); err != nil {
		return nil, fmt.Errorf("postprocess: %w", err)
	}
	res.Table = tbl
	o.metrics.TableRows.Set(float64(tbl.Len()))

	// 4) Summary
	res.Summary = tbl.Describe()
	rows, cols := tbl.Shape()
	log.WithFields(logrus.Fields{"rows": rows, "columns": cols}).Info("table ready")
	log.Debugf("summary:\n%s", res.Summary)

	// 5) Plots
	if res.Plots, err = drawPlots(tbl, cfg.Plots); err != nil {
		return nil, err
	}

	// 6) Export
	sinks := o.sinks
	if sinks == nil {
		sinks, err = sink.NewFromConfig(ctx, cfg.Sinks,
			sink.WithLogger(log), sink.WithMetrics(o.metrics), sink.WithRunID(o.runID))
		if err != nil {
			return nil, fmt.Errorf("build sinks: %w", err)
		}
		defer sink.Close(sinks)
	}
	if err := sink.WriteAll(ctx, sinks, tbl, sink.WithLogger(log), sink.WithMetrics(o.metrics)); err != nil {
		return nil, err
	}
	for _, s := range sinks {
		res.Sinks = append(res.Sinks, s.Name())
	}

	// 7) Metrics snapshot
	o.metrics.LastSuccess.SetToCurrentTime()
	if cfg.Metrics.Enable && cfg.Metrics.Textfile != "" {
		if err := o.metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return nil, fmt.Errorf("write metrics: %w", err)
		}
	}

	res.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"fetched":  res.Fetched,
		"rows":     rows,
		"sinks":    len(sinks),
		"duration": res.Duration.Truncate(time.Millisecond).String(),
	}).Info("run finished")
	return res, nil
}

// Reshape applies the table steps of tc in their fixed order: select,
// drop_na, trim_column_prefix, rename, normalize, date_parts, rates, sort.
func Reshape(f *frame.Frame, tc config.TableConfig) (*frame.Frame, error) {
	var err error
	if len(tc.Select) > 0 {
		if f, err = f.Select(tc.Select...); err != nil {
			return nil, fmt.Errorf("select: %w", err)
		}
	}
	if tc.DropNAAll {
		if f, err = f.DropNA(); err != nil {
			return nil, err
		}
	} else if len(tc.DropNA) > 0 {
		if f, err = f.DropNA(tc.DropNA...); err != nil {
			return nil, fmt.Errorf("drop_na: %w", err)
		}
	}
	if tc.TrimColumnPrefix != "" {
		if f, err = f.TrimColumnPrefix(tc.TrimColumnPrefix); err != nil {
			return nil, fmt.Errorf("trim_column_prefix: %w", err)
		}
	}
	if len(tc.Rename) > 0 {
		if f, err = f.Rename(tc.Rename); err != nil {
			return nil, fmt.Errorf("rename: %w", err)
		}
	}
	for _, c := range tc.Normalize {
		if f, err = f.NormalizeStrings(c); err != nil {
			return nil, fmt.Errorf("normalize: %w", err)
		}
	}
	for _, dp := range tc.DateParts {
		parts := frame.DateParts{
			Year: dp.Year, Month: dp.Month, Day: dp.Day,
			Hour: dp.Hour, Minute: dp.Minute, Second: dp.Second,
		}
		if f, err = f.AssembleTime(dp.Into, parts); err != nil {
			return nil, fmt.Errorf("date_parts %s: %w", dp.Into, err)
		}
	}
	for _, rc := range tc.Rates {
		if f, err = f.Rate(rc.Into, rc.Distance, rc.Start, rc.End, rc.Per); err != nil {
			return nil, fmt.Errorf("rate %s: %w", rc.Into, err)
		}
	}
	if tc.SortBy != "" {
		if f, err = f.Sort(tc.SortBy, !tc.Descending); err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
	}
	return f, nil
}

func drawPlots(f *frame.Frame, pc config.PlotConfig) ([]string, error) {
	var out []string
	if h := pc.Histogram; h.Path != "" {
		if err := plot.Histogram(f, h.Column, h.Bins, h.Path); err != nil {
			return nil, fmt.Errorf("histogram: %w", err)
		}
		out = append(out, h.Path)
	}
	if s := pc.Scatter; s.Path != "" {
		if err := plot.Scatter(f, s.X, s.Y, s.Path); err != nil {
			return nil, fmt.Errorf("scatter: %w", err)
		}
		out = append(out, s.Path)
	}
	return out, nil
}
