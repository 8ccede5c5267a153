package render

import (
	"bytes"
	"math"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
)

// PNGRenderer draws chart states as static images.
type PNGRenderer struct {
	style Style
}

// NewPNGRenderer returns a renderer using style.
func NewPNGRenderer(style Style) *PNGRenderer {
	return &PNGRenderer{style: style.WithDefaults()}
}

func pointStyle(col drawing.Color, radius int) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    math.Max(2, float64(radius)/1.5),
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color, width int) chart.Style {
	return chart.Style{
		StrokeWidth: float64(width),
		StrokeColor: col,
		DotWidth:    0,
	}
}

// toDrawingColor parses a descriptor color, falling back to gray.
func toDrawingColor(s string) drawing.Color {
	c, err := chartsync.ParseColor(s)
	if err != nil {
		return drawing.Color{R: 128, G: 128, B: 128, A: 255}
	}
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: 255}
}

// Render draws state as PNG bytes. An empty state draws the axes only.
func (r *PNGRenderer) Render(state chartsync.ChartState) ([]byte, error) {
	var series []chart.Series
	xr := newBounds()
	yr := newBounds()

	for _, d := range state.Datasets {
		var xs, ys []float64
		var st chart.Style
		switch d.Kind {
		case chartsync.KindLine:
			pts := append([]chartsync.CurvePoint(nil), d.Curve...)
			sort.Slice(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
			for _, p := range pts {
				xs = append(xs, p.X)
				ys = append(ys, p.Y)
			}
			st = lineStyle(toDrawingColor(d.BorderColor), d.BorderWidth)
			if d.Fill {
				st.FillColor = toDrawingColor(d.BackgroundColor).WithAlpha(uint8(chartsync.OverlayFillAlpha * 255))
			}
		default:
			for _, p := range d.Points {
				xs = append(xs, p.X)
				ys = append(ys, p.Y)
			}
			st = pointStyle(toDrawingColor(d.BorderColor), d.PointRadius)
		}
		if len(xs) == 0 {
			continue
		}
		if len(xs) == 1 {
			xs = append(xs, xs[0])
			ys = append(ys, ys[0])
		}
		xr.add(xs...)
		yr.add(ys...)
		series = append(series, chart.ContinuousSeries{Name: d.Label, XValues: xs, YValues: ys, Style: st})
	}

	title := r.style.Title
	empty := len(series) == 0
	if empty {
		title = r.style.EmptyTitle
		xr = bounds{min: 0, max: 30}
		yr = bounds{min: 0, max: 10}
		series = []chart.Series{chart.ContinuousSeries{
			XValues: []float64{xr.min, xr.max},
			YValues: []float64{yr.min, yr.max},
			Style:   chart.Style{StrokeColor: drawing.ColorTransparent, DotWidth: 0},
		}}
	}
	xmin, xmax := xr.padded()
	ymin, ymax := yr.padded()

	ch := chart.Chart{
		Title:      title,
		Width:      r.style.Width,
		Height:     r.style.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: r.style.XAxisTitle, Range: &chart.ContinuousRange{Min: xmin, Max: xmax}},
		YAxis:      chart.YAxis{Name: r.style.YAxisTitle, Range: &chart.ContinuousRange{Min: ymin, Max: ymax}},
		Series:     series,
	}
	if !empty {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, apperr.New(apperr.CodeRender, "render png", err)
	}
	return buf.Bytes(), nil
}

type bounds struct {
	min, max float64
	set      bool
}

func newBounds() bounds { return bounds{} }

func (b *bounds) add(vs ...float64) {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if !b.set {
			b.min, b.max, b.set = v, v, true
			continue
		}
		b.min = math.Min(b.min, v)
		b.max = math.Max(b.max, v)
	}
}

// padded widens the range by 5% on each side, and by one unit when flat.
func (b bounds) padded() (float64, float64) {
	lo, hi := b.min, b.max
	if hi-lo < 1e-9 {
		return lo - 1, hi + 1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}
