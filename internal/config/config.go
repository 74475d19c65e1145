package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration that parsed but cannot be used.
var ErrInvalid = errors.New("invalid config")

const (
	DefaultBaseURL  = "https://earthquake.usgs.gov/fdsnws/event/1"
	DefaultPageSize = 20000 // FDSN hard limit per request
	DefaultMaxPages = 10
)

type CommonHTTP struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type LokiConfig struct {
	URL       string        `yaml:"url"`       // http://loki:3100
	TenantID  string        `yaml:"tenant_id"` // optional multi-tenancy
	Job       string        `yaml:"job"`       // label value, default: quake-ingester
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type VictoriaConfig struct {
	URL       string        `yaml:"url"` // http://victoria-metrics:8428
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type USGSConfig struct {
	BaseURL  string     `yaml:"base_url"` // fdsnws event service root
	HTTP     CommonHTTP `yaml:"http"`
	PageSize int        `yaml:"page_size"`
	MaxPages int        `yaml:"max_pages"`
	// Pacing between requests; 0 leaves requests unpaced.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	// Drop features repeated across page boundaries.
	Dedup DedupConfig `yaml:"dedup"`
}

type SourceConfig struct {
	Type string     `yaml:"type"` // "usgs"
	USGS USGSConfig `yaml:"usgs"`
}

type DedupConfig struct {
	Enable  bool          `yaml:"enable"`
	TTL     time.Duration `yaml:"ttl"`
	MaxKeys int           `yaml:"max_keys"`
}

// QueryConfig is the catalog query in its textual form.
type QueryConfig struct {
	Start        string   `yaml:"start"` // RFC3339, "2006-01-02" or "2006-01-02 15:04:05"
	End          string   `yaml:"end"`
	Products     []string `yaml:"products"` // e.g. ["shakemap","losspager","dyfi"]
	MinMagnitude *float64 `yaml:"min_magnitude"`
	MaxMagnitude *float64 `yaml:"max_magnitude"`
}

type KeywordRule struct {
	When   []string          `yaml:"when"`   // substrings (case-insensitive) that must all appear in place
	Labels map[string]string `yaml:"labels"` // columns to set when matched
}

type RegexRule struct {
	Field  string            `yaml:"field"` // column to test
	Expr   string            `yaml:"expr"`
	Labels map[string]string `yaml:"labels"`
}

type MapRule struct {
	Field       string            `yaml:"field"`        // e.g. place
	SuffixAfter string            `yaml:"suffix_after"` // optional: use text after the last occurrence, e.g. ","
	Mapping     map[string]string `yaml:"mapping"`      // e.g. "CA":"California"
	OutKey      string            `yaml:"out_key"`      // column to write, e.g. region
}

type PostProcessConfig struct {
	Keywords []KeywordRule `yaml:"keywords"`
	Regex    []RegexRule   `yaml:"regex"`
	Maps     []MapRule     `yaml:"maps"`
	Filters  []string      `yaml:"filters"` // CEL over `row`, AND-combined
}

type DatePartsConfig struct {
	Into   string `yaml:"into"`
	Year   string `yaml:"year"`
	Month  string `yaml:"month"`
	Day    string `yaml:"day"`
	Hour   string `yaml:"hour"`
	Minute string `yaml:"minute"`
	Second string `yaml:"second"`
}

type RateConfig struct {
	Into     string        `yaml:"into"`
	Distance string        `yaml:"distance"`
	Start    string        `yaml:"start"`
	End      string        `yaml:"end"`
	Per      time.Duration `yaml:"per"` // default 1h
}

// TableConfig lists the table steps applied after the fetch, in order.
type TableConfig struct {
	Select           []string          `yaml:"select"`
	DropNA           []string          `yaml:"drop_na"`
	DropNAAll        bool              `yaml:"drop_na_all"`
	TrimColumnPrefix string            `yaml:"trim_column_prefix"`
	Rename           map[string]string `yaml:"rename"`
	Normalize        []string          `yaml:"normalize"`
	DateParts        []DatePartsConfig `yaml:"date_parts"`
	Rates            []RateConfig      `yaml:"rates"`
	SortBy           string            `yaml:"sort_by"`
	Descending       bool              `yaml:"descending"`
}

type PlotConfig struct {
	Histogram struct {
		Column string `yaml:"column"`
		Bins   int    `yaml:"bins"`
		Path   string `yaml:"path"`
	} `yaml:"histogram"`
	Scatter struct {
		X    string `yaml:"x"`
		Y    string `yaml:"y"`
		Path string `yaml:"path"`
	} `yaml:"scatter"`
}

type FileSinkConfig struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet"` // excel only
}

type SQLSinkConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Key      string `yaml:"key"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // optional, e.g. a MinIO URL
}

type SinksConfig struct {
	CSV        FileSinkConfig `yaml:"csv"`
	Excel      FileSinkConfig `yaml:"excel"`
	Parquet    FileSinkConfig `yaml:"parquet"`
	SQLite     SQLSinkConfig  `yaml:"sqlite"`
	Postgres   SQLSinkConfig  `yaml:"postgres"`
	ClickHouse SQLSinkConfig  `yaml:"clickhouse"`
	Loki       LokiConfig     `yaml:"loki"`
	Victoria   VictoriaConfig `yaml:"victoria"`
	S3         S3Config       `yaml:"s3"`
}

type MetricsConfig struct {
	Enable   bool   `yaml:"enable"`
	Textfile string `yaml:"textfile"` // prometheus text exposition written at the end of the run
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

type Config struct {
	Source  SourceConfig      `yaml:"source"`
	Query   QueryConfig       `yaml:"query"`
	Table   TableConfig       `yaml:"table"`
	Post    PostProcessConfig `yaml:"postprocess"`
	Plots   PlotConfig        `yaml:"plots"`
	Sinks   SinksConfig       `yaml:"sinks"`
	Metrics MetricsConfig     `yaml:"metrics"`
	Log     LogConfig         `yaml:"log"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates the query.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Source.Type == "" {
		c.Source.Type = "usgs"
	}
	u := &c.Source.USGS
	if strings.TrimSpace(u.BaseURL) == "" {
		u.BaseURL = DefaultBaseURL
	}
	if u.HTTP.Timeout == 0 {
		u.HTTP.Timeout = 15 * time.Second
	}
	if u.HTTP.UserAgent == "" {
		u.HTTP.UserAgent = "quake-ingester"
	}
	if u.PageSize <= 0 || u.PageSize > DefaultPageSize {
		u.PageSize = DefaultPageSize
	}
	if u.MaxPages <= 0 {
		u.MaxPages = DefaultMaxPages
	}
	if u.Burst <= 0 {
		u.Burst = 1
	}
	if c.Query.MinMagnitude == nil {
		v := 0.0
		c.Query.MinMagnitude = &v
	}
	if c.Query.MaxMagnitude == nil {
		v := 10.0
		c.Query.MaxMagnitude = &v
	}
	for i := range c.Table.Rates {
		if c.Table.Rates[i].Per <= 0 {
			c.Table.Rates[i].Per = time.Hour
		}
	}
	if c.Plots.Histogram.Path != "" && c.Plots.Histogram.Bins <= 0 {
		c.Plots.Histogram.Bins = 20
	}
	if c.Sinks.Excel.Path != "" && c.Sinks.Excel.Sheet == "" {
		c.Sinks.Excel.Sheet = "quakes"
	}
	if c.Sinks.Loki.Job == "" {
		c.Sinks.Loki.Job = "quake-ingester"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if _, _, err := c.Query.Window(); err != nil {
		return err
	}
	if len(c.Query.WantedProducts()) == 0 {
		return fmt.Errorf("%w: query.products must name at least one product type", ErrInvalid)
	}
	if *c.Query.MinMagnitude > *c.Query.MaxMagnitude {
		return fmt.Errorf("%w: query.min_magnitude %g exceeds max_magnitude %g", ErrInvalid, *c.Query.MinMagnitude, *c.Query.MaxMagnitude)
	}
	for _, dp := range c.Table.DateParts {
		if dp.Into == "" || dp.Year == "" || dp.Month == "" || dp.Day == "" {
			return fmt.Errorf("%w: date_parts needs into, year, month and day", ErrInvalid)
		}
	}
	for _, r := range c.Table.Rates {
		if r.Into == "" || r.Distance == "" || r.Start == "" || r.End == "" {
			return fmt.Errorf("%w: rates needs into, distance, start and end", ErrInvalid)
		}
	}
	for _, sc := range []SQLSinkConfig{c.Sinks.SQLite, c.Sinks.Postgres, c.Sinks.ClickHouse} {
		if sc.DSN != "" && sc.Table == "" {
			return fmt.Errorf("%w: sql sink %q has no table", ErrInvalid, sc.DSN)
		}
	}
	if (c.Sinks.S3.Bucket == "") != (c.Sinks.S3.Key == "") {
		return fmt.Errorf("%w: s3 sink needs both bucket and key", ErrInvalid)
	}
	return nil
}

// Window parses the query start and end instants.
func (q QueryConfig) Window() (time.Time, time.Time, error) {
	if strings.TrimSpace(q.Start) == "" || strings.TrimSpace(q.End) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: query.start and query.end are required", ErrInvalid)
	}
	start, err := ParseTime(q.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: query.start: %v", ErrInvalid, err)
	}
	end, err := ParseTime(q.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: query.end: %v", ErrInvalid, err)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: query.start must be before query.end", ErrInvalid)
	}
	return start, end, nil
}

// WantedProducts returns the trimmed, non-empty product types.
func (q QueryConfig) WantedProducts() []string {
	out := make([]string, 0, len(q.Products))
	for _, p := range q.Products {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseTime accepts RFC3339 and a few date layouts; naive times are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %s", s)
}
