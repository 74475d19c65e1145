package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/metrics"
	"time-value-analyser/quake-ingester/internal/model"
	"time-value-analyser/quake-ingester/internal/store"
	"time-value-analyser/quake-ingester/internal/util"
)

// Feature is one event summary from a search response.
type Feature struct {
	ID         string `json:"id"`
	Properties struct {
		Types  string `json:"types"`
		Detail string `json:"detail"`
	} `json:"properties"`
}

type searchResponse struct {
	Features []Feature `json:"features"`
}

type usgsSource struct {
	cfg     config.USGSConfig
	base    string
	client  *http.Client
	limiter *rate.Limiter
	dedup   *store.Dedup
	log     *logrus.Entry
	metrics *metrics.Metrics
}

func newUSGSSource(cfg config.USGSConfig, o options) *usgsSource {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = config.DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = config.DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = config.DefaultMaxPages
	}
	s := &usgsSource{
		cfg:     cfg,
		base:    base,
		client:  o.client,
		log:     o.log.WithField("source", "usgs"),
		metrics: o.metrics,
	}
	if s.client == nil {
		to := cfg.HTTP.Timeout
		if to == 0 {
			to = 15 * time.Second
		}
		s.client = util.NewHTTPClient(to, cfg.HTTP.UserAgent)
	}
	if cfg.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(1, cfg.Burst))
	}
	if cfg.Dedup.Enable {
		s.dedup = store.NewDedup(cfg.Dedup.MaxKeys, cfg.Dedup.TTL)
	}
	return s
}

func (s *usgsSource) Name() string { return "usgs" }

// Fetch runs the search, then fetches and flattens one detail document per
// feature whose product tags intersect q.Products. Any request failure
// aborts the call and no records are returned.
func (s *usgsSource) Fetch(ctx context.Context, q Query) ([]model.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	want := wanted(q.Products)

	features, err := s.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	var out []model.Record
	skipped := 0
	for _, f := range features {
		matched := MatchProducts(want, ParseTypes(f.Properties.Types))
		if len(matched) == 0 {
			skipped++
			s.count("skipped")
			continue
		}
		d, err := s.Detail(ctx, s.detailURL(f))
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", f.ID, err)
		}
		if d.ID == "" {
			d.ID = f.ID
		}
		out = append(out, Flatten(*d, matched))
		s.count("kept")
	}
	s.log.WithFields(logrus.Fields{
		"features": len(features),
		"kept":     len(out),
		"skipped":  skipped,
	}).Info("catalog fetch complete")
	return out, nil
}

// Search pages through the catalog in ascending time order.
func (s *usgsSource) Search(ctx context.Context, q Query) ([]Feature, error) {
	var all []Feature
	for page := 0; page < s.cfg.MaxPages; page++ {
		u, err := url.Parse(s.base + "/query")
		if err != nil {
			return nil, fmt.Errorf("usgs base url: %w", err)
		}
		v := u.Query()
		v.Set("format", "geojson")
		v.Set("starttime", formatFDSN(q.Start))
		v.Set("endtime", formatFDSN(q.End))
		v.Set("minmagnitude", strconv.FormatFloat(q.MinMagnitude, 'f', -1, 64))
		v.Set("maxmagnitude", strconv.FormatFloat(q.MaxMagnitude, 'f', -1, 64))
		v.Set("orderby", "time-asc")
		v.Set("limit", strconv.Itoa(s.cfg.PageSize))
		v.Set("offset", strconv.Itoa(1+page*s.cfg.PageSize)) // FDSN offsets are 1-based
		u.RawQuery = v.Encode()

		var resp searchResponse
		if err := s.getJSON(ctx, "search", u.String(), &resp); err != nil {
			return nil, err
		}
		for _, f := range resp.Features {
			if s.dedup != nil && s.dedup.Observe(f.ID) {
				s.count("duplicate")
				continue
			}
			all = append(all, f)
		}
		s.log.WithFields(logrus.Fields{"page": page + 1, "features": len(resp.Features)}).Debug("search page")
		if len(resp.Features) < s.cfg.PageSize {
			return all, nil
		}
	}
	s.log.WithField("max_pages", s.cfg.MaxPages).Warn("search stopped at max_pages; later events are not included")
	return all, nil
}

// Detail fetches one event detail document.
func (s *usgsSource) Detail(ctx context.Context, detailURL string) (*Detail, error) {
	var d Detail
	if err := s.getJSON(ctx, "detail", detailURL, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *usgsSource) detailURL(f Feature) string {
	if f.Properties.Detail != "" {
		return f.Properties.Detail
	}
	v := url.Values{}
	v.Set("eventid", f.ID)
	v.Set("format", "geojson")
	return s.base + "/query?" + v.Encode()
}

func (s *usgsSource) getJSON(ctx context.Context, endpoint, u string, into any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	s.log.WithField("url", u).Debug("GET")

	start := time.Now()
	resp, err := s.client.Do(req)
	s.observe(endpoint, start, resp, err)
	if err != nil {
		return fmt.Errorf("usgs %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("usgs %s: http %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("usgs %s: decode: %w", endpoint, err)
	}
	return nil
}

func (s *usgsSource) observe(endpoint string, start time.Time, resp *http.Response, err error) {
	if s.metrics == nil {
		return
	}
	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	s.metrics.Requests.WithLabelValues(endpoint, status).Inc()
	s.metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (s *usgsSource) count(outcome string) {
	if s.metrics != nil {
		s.metrics.Features.WithLabelValues(outcome).Inc()
	}
}
