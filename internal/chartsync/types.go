package chartsync

// BondPoint is one bond observation of a scatter dataset.
type BondPoint struct {
	X            float64 `json:"x"` // time to maturity, years
	Y            float64 `json:"y"` // yield, percent
	ISIN         string  `json:"isin"`
	Coupon       float64 `json:"coupon"`
	MaturityDate string  `json:"maturity_date"`
	Description  string  `json:"description"`
}

// CurvePoint is one point of a derived curve.
type CurvePoint struct {
	X float64 `json:"x"` // time to maturity, years
	Y float64 `json:"y"` // zero rate, percent
}

// Dataset is one selectable scatter series.
type Dataset struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Points      []BondPoint `json:"points"`
	Visible     bool        `json:"visible"`
}

// Overlay is the derived zero-rate curve of one dataset.
type Overlay struct {
	DatasetID   string       `json:"dataset_id"`
	DisplayName string       `json:"display_name,omitempty"`
	Points      []CurvePoint `json:"points"`
}

// OverlayState is the lifecycle position of a dataset's overlay.
type OverlayState string

const (
	OverlayAbsent   OverlayState = "absent"
	OverlayLoading  OverlayState = "loading"
	OverlayEnabled  OverlayState = "enabled"
	OverlayDisabled OverlayState = "disabled"
)

// DescriptorKind distinguishes scatter series from overlay lines.
type DescriptorKind string

const (
	KindScatter DescriptorKind = "scatter"
	KindLine    DescriptorKind = "line"
)

// Descriptor is one render-ready series of the chart.
type Descriptor struct {
	Kind             DescriptorKind `json:"kind"`
	DatasetID        string         `json:"dataset_id"`
	Label            string         `json:"label"`
	ColorIndex       int            `json:"color_index"`
	BackgroundColor  string         `json:"background_color"`
	BorderColor      string         `json:"border_color"`
	BorderWidth      int            `json:"border_width"`
	PointRadius      int            `json:"point_radius"`
	PointHoverRadius int            `json:"point_hover_radius"`
	ShowLine         bool           `json:"show_line"`
	Fill             bool           `json:"fill"`
	Points           []BondPoint    `json:"points,omitempty"`
	Curve            []CurvePoint   `json:"curve,omitempty"`
}

// ChartState is the full, derived chart description pushed to sinks.
type ChartState struct {
	Revision uint64       `json:"revision"`
	Datasets []Descriptor `json:"datasets"`
}

// Empty reports whether the chart has nothing to draw.
func (s ChartState) Empty() bool { return len(s.Datasets) == 0 }

// Scatters returns only the scatter descriptors.
func (s ChartState) Scatters() []Descriptor {
	out := make([]Descriptor, 0, len(s.Datasets))
	for _, d := range s.Datasets {
		if d.Kind == KindScatter {
			out = append(out, d)
		}
	}
	return out
}
