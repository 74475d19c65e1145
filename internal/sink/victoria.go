package sink

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/frame"
	"time-value-analyser/quake-ingester/internal/model"
	"time-value-analyser/quake-ingester/internal/util"
)

const magnitudeMetric = "quake_magnitude"

type victoriaSink struct {
	cfg    config.VictoriaConfig
	runID  string
	client *http.Client
	now    func() time.Time
}

// NewVictoria imports one quake_magnitude sample per quake, in the
// Prometheus text format, at the event time.
func NewVictoria(cfg config.VictoriaConfig, o options) Sink {
	client := o.client
	if client == nil {
		to := cfg.Timeout
		if to == 0 {
			to = 10 * time.Second
		}
		client = util.NewHTTPClient(to, cfg.UserAgent)
	}
	return &victoriaSink{cfg: cfg, runID: o.runID, client: client, now: time.Now}
}

func (v *victoriaSink) Name() string { return "victoria" }

func (v *victoriaSink) Write(ctx context.Context, f *frame.Frame) error {
	var buf bytes.Buffer
	for i := 0; i < f.Len(); i++ {
		r := f.Row(i)
		mag, ok := r.Get(model.ColMagnitude).Float()
		if !ok || math.IsNaN(mag) {
			continue
		}
		ts := v.now().UnixMilli()
		if t, ok := r.Get(model.ColTime).Time(); ok {
			ts = t.UnixMilli()
		}
		lbls := fmt.Sprintf(`id="%s"`, escape(r.Get(model.ColID).Text()))
		if v.runID != "" {
			lbls += fmt.Sprintf(`,run_id="%s"`, escape(v.runID))
		}
		fmt.Fprintf(&buf, "%s{%s} %s %d\n", magnitudeMetric, lbls, strconv.FormatFloat(mag, 'g', -1, 64), ts)
	}
	if buf.Len() == 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.URL+"/api/v1/import/prometheus", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("victoria push failed: %s", resp.Status)
	}
	return nil
}

// escape quotes a label value for the text exposition format.
func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}
