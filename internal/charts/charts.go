// Package charts renders the Explore page comparison charts as inline SVG.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/kartoza/airscope/internal/explore"
)

// ErrNoData is returned when there is nothing to draw
var ErrNoData = errors.New("no chart data")

const (
	width  = 480
	height = 300
)

var (
	axisColor  = drawing.ColorWhite
	gridColor  = drawing.Color{R: 255, G: 255, B: 255, A: 26}
	background = chart.Style{FillColor: drawing.ColorTransparent}
)

// BarSVG renders one bar per point in the point's colour
func BarSVG(points []explore.ChartPoint) (template.HTML, error) {
	if len(points) == 0 {
		return "", ErrNoData
	}

	bars := make([]chart.Value, 0, len(points))
	lo, hi := 0.0, 0.0
	for _, p := range points {
		color := drawing.ColorFromHex(p.Color)
		bars = append(bars, chart.Value{
			Label: p.Name,
			Value: p.Value,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	if hi == lo {
		hi = lo + 1
	}

	bc := chart.BarChart{
		Width:      width,
		Height:     height,
		BarWidth:   80,
		Background: chart.Style{FillColor: drawing.ColorTransparent, Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16}},
		Canvas:     background,
		XAxis:      chart.Style{FontColor: axisColor, StrokeColor: axisColor},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: axisColor, StrokeColor: axisColor},
			Range: &chart.ContinuousRange{Min: lo, Max: niceCeil(hi)},
			GridMajorStyle: chart.Style{
				StrokeColor:     gridColor,
				StrokeWidth:     1,
				StrokeDashArray: []float64{3, 3},
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("failed to render bar chart: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// PieSVG renders one slice per positive point, labelled with its value
func PieSVG(points []explore.ChartPoint) (template.HTML, error) {
	values := make([]chart.Value, 0, len(points))
	palette := slicePalette{ColorPalette: chart.DefaultColorPalette}
	for _, p := range points {
		if p.Value <= 0 {
			continue
		}
		palette.colors = append(palette.colors, drawing.ColorFromHex(p.Color))
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %.2f", p.Name, p.Value),
			Value: p.Value,
		})
	}
	if len(values) == 0 {
		return "", ErrNoData
	}

	pc := chart.PieChart{
		Width:        width,
		Height:       height,
		ColorPalette: palette,
		Background:   background,
		Canvas:       background,
		Values:       values,
	}

	var buf bytes.Buffer
	if err := pc.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("failed to render pie chart: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// slicePalette colours pie slices by position, including the single-slice
// case where go-chart ignores per-value styles
type slicePalette struct {
	chart.ColorPalette
	colors []drawing.Color
}

func (p slicePalette) GetSeriesColor(index int) drawing.Color {
	if index < len(p.colors) {
		return p.colors[index]
	}
	return p.ColorPalette.GetSeriesColor(index)
}

func (p slicePalette) TextColor() drawing.Color {
	return drawing.ColorBlack
}

// niceCeil rounds v up to a round axis maximum
func niceCeil(v float64) float64 {
	if v <= 0 {
		return v
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(v)))
	for _, step := range []float64{1, 2, 2.5, 5, 10} {
		if c := step * magnitude; c >= v {
			return c
		}
	}
	return 10 * magnitude
}
