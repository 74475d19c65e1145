// Package plot renders quick-look charts of a quake table. The output format
// follows the file extension (.png, .svg, .pdf, ...).
package plot

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"time-value-analyser/quake-ingester/internal/frame"
)

// ErrNoData is returned when a column has no numeric cells to draw.
var ErrNoData = errors.New("no numeric data to plot")

const (
	width  = 8 * vg.Inch
	height = 5 * vg.Inch
)

// Histogram bins the numeric cells of col and saves the chart to path.
func Histogram(f *frame.Frame, col string, bins int, path string) error {
	s, err := f.Column(col)
	if err != nil {
		return err
	}
	vals := s.Floats()
	if len(vals) == 0 {
		return fmt.Errorf("%s: %w", col, ErrNoData)
	}
	if bins <= 0 {
		bins = 20
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (n=%d)", col, len(vals))
	p.X.Label.Text = col
	p.Y.Label.Text = "count"

	h, err := plotter.NewHist(plotter.Values(vals), bins)
	if err != nil {
		return fmt.Errorf("histogram %s: %w", col, err)
	}
	p.Add(h)
	return save(p, path)
}

// Scatter draws y against x for the rows where both cells are numeric.
func Scatter(f *frame.Frame, x, y, path string) error {
	xs, err := f.Column(x)
	if err != nil {
		return err
	}
	ys, err := f.Column(y)
	if err != nil {
		return err
	}

	var pts plotter.XYs
	for i := 0; i < xs.Len(); i++ {
		xv, okx := xs.At(i).Float()
		yv, oky := ys.At(i).Float()
		if !okx || !oky || math.IsNaN(xv) || math.IsNaN(yv) {
			continue
		}
		pts = append(pts, plotter.XY{X: xv, Y: yv})
	}
	if len(pts) == 0 {
		return fmt.Errorf("%s vs %s: %w", y, x, ErrNoData)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", y, x)
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Add(plotter.NewGrid())

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("scatter %s/%s: %w", x, y, err)
	}
	p.Add(sc)
	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
