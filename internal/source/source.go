package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/metrics"
	"time-value-analyser/quake-ingester/internal/model"
)

// ErrInvalidQuery is returned by Fetch before any request is made.
var ErrInvalidQuery = errors.New("invalid catalog query")

// Query selects catalog events: time in [Start, End), magnitude in
// [MinMagnitude, MaxMagnitude], and at least one wanted product type.
type Query struct {
	Start        time.Time
	End          time.Time
	Products     []string
	MinMagnitude float64
	MaxMagnitude float64
}

func (q Query) Validate() error {
	if len(wanted(q.Products)) == 0 {
		return fmt.Errorf("%w: no product types", ErrInvalidQuery)
	}
	if !q.Start.Before(q.End) {
		return fmt.Errorf("%w: start %s not before end %s", ErrInvalidQuery, q.Start.Format(time.RFC3339), q.End.Format(time.RFC3339))
	}
	if q.MinMagnitude > q.MaxMagnitude {
		return fmt.Errorf("%w: min magnitude %g above max %g", ErrInvalidQuery, q.MinMagnitude, q.MaxMagnitude)
	}
	return nil
}

// QueryFromConfig converts the textual query; cfg must already be validated.
func QueryFromConfig(qc config.QueryConfig) (Query, error) {
	start, end, err := qc.Window()
	if err != nil {
		return Query{}, err
	}
	q := Query{Start: start, End: end, Products: qc.WantedProducts()}
	if qc.MinMagnitude != nil {
		q.MinMagnitude = *qc.MinMagnitude
	}
	if qc.MaxMagnitude != nil {
		q.MaxMagnitude = *qc.MaxMagnitude
	}
	return q, nil
}

type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]model.Record, error)
}

type Option func(*options)

type options struct {
	log     *logrus.Entry
	metrics *metrics.Metrics
	client  *http.Client
}

func WithLogger(l *logrus.Entry) Option { return func(o *options) { o.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.client = c } }

func NewFromConfig(c config.SourceConfig, opts ...Option) (Source, error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = logrus.NewEntry(l)
	}
	switch c.Type {
	case "usgs", "":
		return newUSGSSource(c.USGS, o), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.Type)
	}
}

func wanted(products []string) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
