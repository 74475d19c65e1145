package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/frame"
	"time-value-analyser/quake-ingester/internal/model"
	"time-value-analyser/quake-ingester/internal/util"
)

type lokiSink struct {
	cfg    config.LokiConfig
	runID  string
	client *http.Client
	now    func() time.Time
}

// NewLoki pushes one log line per quake, timestamped with the event time.
func NewLoki(cfg config.LokiConfig, o options) Sink {
	client := o.client
	if client == nil {
		to := cfg.Timeout
		if to == 0 {
			to = 10 * time.Second
		}
		client = util.NewHTTPClient(to, cfg.UserAgent)
	}
	return &lokiSink{cfg: cfg, runID: o.runID, client: client, now: time.Now}
}

func (l *lokiSink) Name() string { return "loki" }

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

func (l *lokiSink) Write(ctx context.Context, f *frame.Frame) error {
	if f.Len() == 0 {
		return nil
	}

	type entry struct {
		ts   int64
		line string
	}
	entries := make([]entry, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		r := f.Row(i)
		line, err := json.Marshal(lineFields(r))
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		ts := l.now().UnixNano()
		if t, ok := r.Get(model.ColTime).Time(); ok {
			ts = t.UnixNano()
		}
		entries = append(entries, entry{ts: ts, line: string(line)})
	}
	// Loki rejects out-of-order entries within a stream.
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].ts < entries[b].ts })

	st := lokiStream{Stream: map[string]string{"job": l.cfg.Job, "source": "usgs"}}
	if l.runID != "" {
		st.Stream["run_id"] = l.runID
	}
	for _, e := range entries {
		// Loki expects ns timestamp as a decimal string
		st.Values = append(st.Values, [2]string{strconv.FormatInt(e.ts, 10), e.line})
	}
	body, err := json.Marshal(struct {
		Streams []lokiStream `json:"streams"`
	}{Streams: []lokiStream{st}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.URL+"/loki/api/v1/push", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if l.cfg.TenantID != "" {
		req.Header.Set("X-Scope-OrgID", l.cfg.TenantID)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("loki push failed http %d", resp.StatusCode)
	}
	return nil
}

// lineFields is the row as JSON-safe values: NaN and infinities, which
// encoding/json refuses, are dropped like missing cells.
func lineFields(r frame.Row) map[string]any {
	m := r.Map()
	for k, v := range m {
		if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
			delete(m, k)
		}
	}
	return m
}
