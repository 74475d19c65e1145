package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/metrics"
	"time-value-analyser/quake-ingester/internal/model"
)

// fakeCatalog serves search pages and detail documents.
type fakeCatalog struct {
	t       *testing.T
	srv     *httptest.Server
	mu      sync.Mutex
	pages   [][]fakeFeature
	details map[string]string
	searchQ []url.Values
	fetched []string
	failOn  string
}

type fakeFeature struct {
	id    string
	types string
}

func newFakeCatalog(t *testing.T) *fakeCatalog {
	f := &fakeCatalog{t: t, details: map[string]string{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCatalog) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.URL.Path == "/query":
		q := r.URL.Query()
		f.searchQ = append(f.searchQ, q)
		if f.failOn == "search" {
			http.Error(w, "catalog down", http.StatusServiceUnavailable)
			return
		}
		idx := len(f.searchQ) - 1
		var feats []map[string]any
		if idx < len(f.pages) {
			for _, ff := range f.pages[idx] {
				feats = append(feats, map[string]any{
					"id": ff.id,
					"properties": map[string]any{
						"types":  ff.types,
						"mag":    4.2,
						"detail": f.srv.URL + "/detail/" + ff.id,
					},
				})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "FeatureCollection", "features": feats})
	case strings.HasPrefix(r.URL.Path, "/detail/"):
		id := strings.TrimPrefix(r.URL.Path, "/detail/")
		f.fetched = append(f.fetched, id)
		if f.failOn == id {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		doc, ok := f.details[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(doc))
	default:
		http.NotFound(w, r)
	}
}

func detailDoc(id string, ms int64, products string) string {
	return fmt.Sprintf(`{
  "type": "Feature",
  "id": %q,
  "properties": {"time": %d, "place": "10km SSW of Idyllwild, CA", "mag": 5.1, "products": %s},
  "geometry": {"type": "Point", "coordinates": [-116.7, 33.6, 12.5]}
}`, id, ms, products)
}

const shakemapAndDyfi = `{
  "shakemap": [{"source": "us", "properties": {"maxmmi": "5", "maxpga": "5.5", "event-type": "green", "gmice": "None"}}],
  "dyfi": [{"properties": {"numResp": "120"}}]
}`

func newTestSource(t *testing.T, f *fakeCatalog, mut func(*config.USGSConfig)) (*usgsSource, *metrics.Metrics) {
	cfg := config.USGSConfig{BaseURL: f.srv.URL, PageSize: 100, MaxPages: 3}
	if mut != nil {
		mut(&cfg)
	}
	m := metrics.New()
	src, err := NewFromConfig(config.SourceConfig{Type: "usgs", USGS: cfg}, WithMetrics(m))
	require.NoError(t, err)
	return src.(*usgsSource), m
}

func testQuery(products ...string) Query {
	return Query{
		Start:        time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2020, 1, 8, 0, 0, 0, 0, time.UTC),
		Products:     products,
		MinMagnitude: 4.5,
		MaxMagnitude: 9,
	}
}

func TestFetchSkipsFeaturesWithoutWantedProducts(t *testing.T) {
	f := newFakeCatalog(t)
	f.pages = [][]fakeFeature{{
		{id: "us1", types: ",dyfi,origin,"},
		{id: "us2", types: ",shakemap,dyfi,"},
	}}
	f.details["us1"] = detailDoc("us1", 1577836800000, `{"dyfi": [{"properties": {"numResp": "3"}}]}`)
	f.details["us2"] = detailDoc("us2", 1577836800000, shakemapAndDyfi)
	src, m := newTestSource(t, f, nil)

	recs, err := src.Fetch(context.Background(), testQuery("shakemap"))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "us2", rec.ID)
	assert.Equal(t, []string{"us2"}, f.fetched, "skipped features must not cost a detail fetch")
	for _, col := range rec.PropOrder {
		assert.True(t, strings.HasPrefix(col, "shakemap-"), col)
	}
	assert.Equal(t, []string{"shakemap-maxmmi", "shakemap-maxpga", "shakemap-event-type", "shakemap-gmice"}, rec.PropOrder)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Features.WithLabelValues("kept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Features.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("detail", "200")))
}

func TestFetchFlattensAndCoerces(t *testing.T) {
	f := newFakeCatalog(t)
	f.pages = [][]fakeFeature{{{id: "us2", types: ",shakemap,dyfi,"}}}
	f.details["us2"] = detailDoc("us2", 1577836800000, shakemapAndDyfi)
	src, _ := newTestSource(t, f, nil)

	recs, err := src.Fetch(context.Background(), testQuery("dyfi", "shakemap", "losspager"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]

	assert.True(t, rec.Time.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "10km SSW of Idyllwild, CA", rec.Place)
	assert.Equal(t, 33.6, rec.Latitude)
	assert.Equal(t, -116.7, rec.Longitude)
	assert.Equal(t, 12.5, rec.Depth)
	assert.Equal(t, 5.1, rec.Magnitude)

	// wanted order drives column order; losspager is absent and adds nothing
	assert.Equal(t, []string{"dyfi-numResp", "shakemap-maxmmi", "shakemap-maxpga", "shakemap-event-type", "shakemap-gmice"}, rec.PropOrder)

	want := map[string]model.Value{
		"dyfi-numResp":        model.IntValue(120),
		"shakemap-maxmmi":     model.IntValue(5),
		"shakemap-maxpga":     model.FloatValue(5.5),
		"shakemap-event-type": model.StringValue("green"),
		"shakemap-gmice":      model.MissingValue(),
	}
	for col, v := range want {
		got, ok := rec.Props[col]
		require.True(t, ok, col)
		assert.True(t, v.Equal(got), "%s = %v (%s)", col, got, got.Kind())
	}
}

func TestSearchQueryParameters(t *testing.T) {
	f := newFakeCatalog(t)
	src, _ := newTestSource(t, f, nil)

	_, err := src.Fetch(context.Background(), testQuery("shakemap"))
	require.NoError(t, err)
	require.Len(t, f.searchQ, 1)
	q := f.searchQ[0]
	assert.Equal(t, "geojson", q.Get("format"))
	assert.Equal(t, "2020-01-01T00:00:00", q.Get("starttime"))
	assert.Equal(t, "2020-01-08T00:00:00", q.Get("endtime"))
	assert.Equal(t, "4.5", q.Get("minmagnitude"))
	assert.Equal(t, "9", q.Get("maxmagnitude"))
	assert.Equal(t, "time-asc", q.Get("orderby"))
	assert.Equal(t, "100", q.Get("limit"))
	assert.Equal(t, "1", q.Get("offset"))
}

func TestSearchPaginates(t *testing.T) {
	f := newFakeCatalog(t)
	f.pages = [][]fakeFeature{
		{{id: "a", types: "shakemap"}, {id: "b", types: "shakemap"}},
		{{id: "b", types: "shakemap"}, {id: "c", types: "shakemap"}},
		{{id: "d", types: "shakemap"}},
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		f.details[id] = detailDoc(id, 1577836800000, shakemapAndDyfi)
	}
	src, m := newTestSource(t, f, func(c *config.USGSConfig) {
		c.PageSize = 2
		c.MaxPages = 5
		c.Dedup.Enable = true
	})

	recs, err := src.Fetch(context.Background(), testQuery("shakemap"))
	require.NoError(t, err)
	require.Len(t, f.searchQ, 3)
	assert.Equal(t, "1", f.searchQ[0].Get("offset"))
	assert.Equal(t, "3", f.searchQ[1].Get("offset"))
	assert.Equal(t, "5", f.searchQ[2].Get("offset"))

	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Features.WithLabelValues("duplicate")))
}

func TestSearchStopsAtMaxPages(t *testing.T) {
	f := newFakeCatalog(t)
	f.pages = [][]fakeFeature{
		{{id: "a", types: "x"}},
		{{id: "b", types: "x"}},
	}
	src, _ := newTestSource(t, f, func(c *config.USGSConfig) {
		c.PageSize = 1
		c.MaxPages = 1
	})
	feats, err := src.Search(context.Background(), testQuery("shakemap"))
	require.NoError(t, err)
	assert.Len(t, feats, 1)
	assert.Len(t, f.searchQ, 1)
}

func TestFetchFailsWholeCallOnDetailError(t *testing.T) {
	f := newFakeCatalog(t)
	f.pages = [][]fakeFeature{{
		{id: "ok", types: "shakemap"},
		{id: "bad", types: "shakemap"},
	}}
	f.details["ok"] = detailDoc("ok", 1577836800000, shakemapAndDyfi)
	f.failOn = "bad"
	src, _ := newTestSource(t, f, nil)

	recs, err := src.Fetch(context.Background(), testQuery("shakemap"))
	require.Error(t, err)
	assert.Nil(t, recs)
	assert.Contains(t, err.Error(), "http 500")
}

func TestFetchFailsOnSearchError(t *testing.T) {
	f := newFakeCatalog(t)
	f.failOn = "search"
	src, m := newTestSource(t, f, nil)

	_, err := src.Fetch(context.Background(), testQuery("shakemap"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog down")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("search", "503")))
}

func TestFetchUnreachableService(t *testing.T) {
	f := newFakeCatalog(t)
	src, m := newTestSource(t, f, nil)
	f.srv.Close()

	_, err := src.Fetch(context.Background(), testQuery("shakemap"))
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("search", "error")))
}

func TestFetchRejectsInvalidQuery(t *testing.T) {
	f := newFakeCatalog(t)
	src, _ := newTestSource(t, f, nil)

	q := testQuery(" ")
	_, err := src.Fetch(context.Background(), q)
	require.ErrorIs(t, err, ErrInvalidQuery)

	q = testQuery("shakemap")
	q.MinMagnitude, q.MaxMagnitude = 7, 6
	_, err = src.Fetch(context.Background(), q)
	require.ErrorIs(t, err, ErrInvalidQuery)

	q = testQuery("shakemap")
	q.End = q.Start
	_, err = src.Fetch(context.Background(), q)
	require.ErrorIs(t, err, ErrInvalidQuery)

	assert.Empty(t, f.searchQ)
}

func TestNewFromConfigUnknownType(t *testing.T) {
	_, err := NewFromConfig(config.SourceConfig{Type: "emsc"})
	require.Error(t, err)
}

func TestQueryFromConfig(t *testing.T) {
	lo, hi := 2.5, 6.0
	q, err := QueryFromConfig(config.QueryConfig{
		Start: "2020-01-01", End: "2020-01-02", Products: []string{"shakemap"},
		MinMagnitude: &lo, MaxMagnitude: &hi,
	})
	require.NoError(t, err)
	assert.Equal(t, 2.5, q.MinMagnitude)
	assert.Equal(t, 6.0, q.MaxMagnitude)
	assert.NoError(t, q.Validate())
}
