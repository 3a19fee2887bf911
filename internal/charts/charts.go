// Package charts holds the figure data the dashboard plots and renders it to
// SVG with go-chart.
package charts

import (
	"fmt"
	"html"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	DefaultWidth  = 640
	DefaultHeight = 420
)

var palette = []drawing.Color{
	drawing.ColorFromHex("1f77b4"),
	drawing.ColorFromHex("ff7f0e"),
	drawing.ColorFromHex("2ca02c"),
	drawing.ColorFromHex("d62728"),
}

// LineSeries is one plotted line. A NaN value marks an undefined point.
type LineSeries struct {
	Name   string
	Dates  []time.Time
	Values []float64
}

// Defined returns only the points that have a value
func (s LineSeries) Defined() ([]time.Time, []float64) {
	dates := make([]time.Time, 0, len(s.Dates))
	values := make([]float64, 0, len(s.Values))
	for i, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		dates = append(dates, s.Dates[i])
		values = append(values, v)
	}
	return dates, values
}

// LineFigure is a date-vs-value line chart
type LineFigure struct {
	Title  string
	XTitle string
	YTitle string
	Series []LineSeries
	Width  int
	Height int
}

// Render writes the figure as SVG. A figure with nothing to plot renders an
// empty placeholder with its title.
func (f *LineFigure) Render(w io.Writer) error {
	width, height := size(f.Width, f.Height)

	var series []chart.Series
	var xs []time.Time
	var ys []float64
	for i, s := range f.Series {
		dates, values := s.Defined()
		if len(dates) == 0 {
			continue
		}
		xs = append(xs, dates...)
		ys = append(ys, values...)
		col := palette[i%len(palette)]
		series = append(series, chart.TimeSeries{
			Name:    s.Name,
			XValues: dates,
			YValues: values,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    2,
			},
		})
	}
	if len(series) == 0 {
		return placeholder(w, f.Title, width, height)
	}

	xAxis := chart.XAxis{Name: f.XTitle, ValueFormatter: chart.TimeDateValueFormatter}
	yAxis := chart.YAxis{Name: f.YTitle}

	// go-chart refuses a zero-width range, so widen degenerate axes
	xMin, xMax := timeBounds(xs)
	if xMin.Equal(xMax) {
		xAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(xMin.Add(-12 * time.Hour)),
			Max: chart.TimeToFloat64(xMax.Add(12 * time.Hour)),
		}
	}
	yMin, yMax := floatBounds(ys)
	if yMin == yMax {
		pad := math.Max(math.Abs(yMin)*0.1, 1)
		yAxis.Range = &chart.ContinuousRange{Min: yMin - pad, Max: yMax + pad}
	}

	ch := chart.Chart{
		Title:      f.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("rendering %q: %w", f.Title, err)
	}
	return nil
}

// PieSlice is one labelled share of a pie
type PieSlice struct {
	Label string
	Value float64
}

// PieFigure is a donut chart of labelled values
type PieFigure struct {
	Title  string
	Slices []PieSlice
	Width  int
	Height int
}

// Render writes the figure as an SVG donut chart
func (f *PieFigure) Render(w io.Writer) error {
	width, height := size(f.Width, f.Height)

	var total float64
	values := make([]chart.Value, 0, len(f.Slices))
	for _, s := range f.Slices {
		if s.Value <= 0 {
			continue
		}
		total += s.Value
		values = append(values, chart.Value{Label: s.Label, Value: s.Value})
	}
	if total == 0 {
		return placeholder(w, f.Title, width, height)
	}

	ch := chart.DonutChart{
		Title:  f.Title,
		Width:  width,
		Height: height,
		Values: values,
	}
	if err := ch.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("rendering %q: %w", f.Title, err)
	}
	return nil
}

// placeholder draws an empty titled frame, the equivalent of a chart with no data
func placeholder(w io.Writer, title string, width, height int) error {
	_, err := fmt.Fprintf(w,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" class="empty-chart">`+
			`<rect width="100%%" height="100%%" fill="#ffffff"/>`+
			`<text x="50%%" y="32" text-anchor="middle" font-family="sans-serif" font-size="16">%s</text>`+
			`<text x="50%%" y="50%%" text-anchor="middle" font-family="sans-serif" font-size="12" fill="#888888">No data</text>`+
			`</svg>`,
		width, height, html.EscapeString(title))
	return err
}

func size(width, height int) (int, int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return width, height
}

func timeBounds(ts []time.Time) (min, max time.Time) {
	for i, t := range ts {
		if i == 0 || t.Before(min) {
			min = t
		}
		if i == 0 || t.After(max) {
			max = t
		}
	}
	return min, max
}

func floatBounds(vs []float64) (min, max float64) {
	for i, v := range vs {
		if i == 0 || v < min {
			min = v
		}
		if i == 0 || v > max {
			max = v
		}
	}
	return min, max
}
