package render

import (
	"strconv"

	"github.com/dgnsrekt/yieldview/internal/chartsync"
)

// ChartConfig is a Chart.js scatter chart configuration.
type ChartConfig struct {
	Type     string       `json:"type"`
	Revision uint64       `json:"revision"`
	Data     ChartData    `json:"data"`
	Options  ChartOptions `json:"options"`
}

type ChartData struct {
	Datasets []ChartDataset `json:"datasets"`
}

type ChartDataset struct {
	Type             string       `json:"type,omitempty"`
	Label            string       `json:"label"`
	ScatterID        string       `json:"scatterId"`
	Data             []ChartPoint `json:"data"`
	BackgroundColor  string       `json:"backgroundColor"`
	BorderColor      string       `json:"borderColor"`
	BorderWidth      int          `json:"borderWidth"`
	PointRadius      int          `json:"pointRadius"`
	PointHoverRadius int          `json:"pointHoverRadius"`
	ShowLine         bool         `json:"showLine,omitempty"`
	Fill             bool         `json:"fill"`
}

// ChartPoint carries the point plus the tooltip text Chart.js callbacks show.
type ChartPoint struct {
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
	ISIN         string   `json:"isin,omitempty"`
	Coupon       *float64 `json:"coupon,omitempty"`
	MaturityDate string   `json:"maturityDate,omitempty"`
	Description  string   `json:"description,omitempty"`
	Tooltip      Tooltip  `json:"tooltip"`
}

type Tooltip struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

type ChartOptions struct {
	Responsive          bool         `json:"responsive"`
	MaintainAspectRatio bool         `json:"maintainAspectRatio"`
	Animation           bool         `json:"animation"`
	Scales              ChartScales  `json:"scales"`
	Plugins             ChartPlugins `json:"plugins"`
}

type ChartScales struct {
	X ChartAxis `json:"x"`
	Y ChartAxis `json:"y"`
}

type ChartAxis struct {
	Title       ChartTitle `json:"title"`
	BeginAtZero bool       `json:"beginAtZero"`
}

type ChartTitle struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

type ChartLegend struct {
	Display  bool   `json:"display"`
	Position string `json:"position,omitempty"`
}

type ChartPlugins struct {
	Title  ChartTitle  `json:"title"`
	Legend ChartLegend `json:"legend"`
}

// ChartJSConfig builds the Chart.js configuration of a chart state. An empty
// state gets the short title and no legend.
func ChartJSConfig(state chartsync.ChartState, style Style) ChartConfig {
	style = style.WithDefaults()
	cfg := ChartConfig{
		Type:     "scatter",
		Revision: state.Revision,
		Data:     ChartData{Datasets: make([]ChartDataset, 0, len(state.Datasets))},
		Options: ChartOptions{
			Responsive: true,
			Scales: ChartScales{
				X: ChartAxis{Title: ChartTitle{Display: true, Text: style.XAxisTitle}},
				Y: ChartAxis{Title: ChartTitle{Display: true, Text: style.YAxisTitle}},
			},
			Plugins: ChartPlugins{
				Title:  ChartTitle{Display: true, Text: style.Title},
				Legend: ChartLegend{Display: true, Position: "top"},
			},
		},
	}
	if state.Empty() {
		cfg.Options.Plugins.Title.Text = style.EmptyTitle
		cfg.Options.Plugins.Legend = ChartLegend{Display: false}
		return cfg
	}

	for _, d := range state.Datasets {
		ds := ChartDataset{
			Label:            d.Label,
			ScatterID:        d.DatasetID,
			BackgroundColor:  d.BackgroundColor,
			BorderColor:      d.BorderColor,
			BorderWidth:      d.BorderWidth,
			PointRadius:      d.PointRadius,
			PointHoverRadius: d.PointHoverRadius,
			ShowLine:         d.ShowLine,
			Fill:             d.Fill,
		}
		switch d.Kind {
		case chartsync.KindLine:
			ds.Type = "line"
			ds.Data = make([]ChartPoint, 0, len(d.Curve))
			for _, p := range d.Curve {
				ds.Data = append(ds.Data, ChartPoint{X: p.X, Y: p.Y, Tooltip: curveTooltip(d.Label, p)})
			}
		default:
			ds.Data = make([]ChartPoint, 0, len(d.Points))
			for _, p := range d.Points {
				coupon := p.Coupon
				ds.Data = append(ds.Data, ChartPoint{
					X:            p.X,
					Y:            p.Y,
					ISIN:         p.ISIN,
					Coupon:       &coupon,
					MaturityDate: p.MaturityDate,
					Description:  p.Description,
					Tooltip:      BondTooltip(d.Label, p, style.DescriptionLimit),
				})
			}
		}
		cfg.Data.Datasets = append(cfg.Data.Datasets, ds)
	}
	return cfg
}

// BondTooltip renders the hover text of one bond. The description is cut to
// limit characters and always followed by "...".
func BondTooltip(label string, p chartsync.BondPoint, limit int) Tooltip {
	desc := []rune(p.Description)
	if limit > 0 && len(desc) > limit {
		desc = desc[:limit]
	}
	return Tooltip{
		Title: "ISIN: " + p.ISIN,
		Lines: []string{
			"Dataset: " + label,
			"TTM: " + formatNumber(p.X) + " years",
			"Yield: " + formatNumber(p.Y) + "%",
			"Coupon: " + formatNumber(p.Coupon) + "%",
			"Maturity: " + p.MaturityDate,
			"Description: " + string(desc) + "...",
		},
	}
}

func curveTooltip(label string, p chartsync.CurvePoint) Tooltip {
	return Tooltip{
		Title: label,
		Lines: []string{
			"TTM: " + formatNumber(p.X) + " years",
			"Zero Rate: " + formatNumber(p.Y) + "%",
		},
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
