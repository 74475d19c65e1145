package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one run. They live on a private registry
// so repeated runs in one process do not collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Features        *prometheus.CounterVec
	RowsWritten     *prometheus.CounterVec
	TableRows       prometheus.Gauge
	LastSuccess     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}
	m.Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quake",
		Name:      "requests_total",
		Help:      "Catalog HTTP requests by endpoint and status",
	}, []string{"endpoint", "status"})
	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quake",
		Name:      "request_duration_seconds",
		Help:      "Catalog HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
	m.Features = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quake",
		Name:      "features_total",
		Help:      "Search features by outcome (kept, skipped, duplicate)",
	}, []string{"outcome"})
	m.RowsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quake",
		Name:      "rows_written_total",
		Help:      "Table rows exported per sink",
	}, []string{"sink"})
	m.TableRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quake",
		Name:      "table_rows",
		Help:      "Rows in the final table",
	})
	m.LastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quake",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful run",
	})
	m.Registry.MustRegister(
		m.Requests, m.RequestDuration, m.Features,
		m.RowsWritten, m.TableRows, m.LastSuccess,
	)
	return m
}

// WriteTextfile dumps the registry in the text exposition format,
// suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
