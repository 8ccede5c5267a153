package render

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
	"github.com/dgnsrekt/yieldview/internal/relay"
)

func sampleState() chartsync.ChartState {
	c := chartsync.DefaultPalette[0]
	return chartsync.ChartState{
		Revision: 7,
		Datasets: []chartsync.Descriptor{
			{
				Kind:            chartsync.KindScatter,
				DatasetID:       "11",
				Label:           "US 2024-01-02",
				BackgroundColor: c.RGBA(chartsync.ScatterAlpha),
				BorderColor:     c.RGBA(1),
				BorderWidth:     1,
				PointRadius:     6,
				Points: []chartsync.BondPoint{
					{X: 2.5, Y: 4.1, ISIN: "US0001", Coupon: 3.25, MaturityDate: "2026-07-01", Description: "Treasury note"},
					{X: 10, Y: 4.4, ISIN: "US0002", Coupon: 4, MaturityDate: "2034-01-01", Description: strings.Repeat("x", 80)},
				},
			},
			{
				Kind:            chartsync.KindLine,
				DatasetID:       "11",
				Label:           "US 2024-01-02 Zero Curve",
				BackgroundColor: c.RGBA(chartsync.OverlayFillAlpha),
				BorderColor:     c.RGBA(1),
				BorderWidth:     2,
				ShowLine:        true,
				Fill:            true,
				Curve:           []chartsync.CurvePoint{{X: 10, Y: 4.3}, {X: 1, Y: 4.0}},
			},
		},
	}
}

func TestChartJSConfigEmptyState(t *testing.T) {
	cfg := ChartJSConfig(chartsync.ChartState{Revision: 3}, Style{})
	if cfg.Options.Plugins.Title.Text != "Bond Yield vs Time to Maturity" {
		t.Fatalf("title = %q", cfg.Options.Plugins.Title.Text)
	}
	if cfg.Options.Plugins.Legend.Display {
		t.Fatal("legend displayed on empty chart")
	}
	if cfg.Revision != 3 || len(cfg.Data.Datasets) != 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(raw), `"datasets":[]`) {
		t.Fatalf("datasets not encoded as empty array: %s", raw)
	}
}

func TestChartJSConfigDatasets(t *testing.T) {
	cfg := ChartJSConfig(sampleState(), DefaultStyle())
	if cfg.Options.Plugins.Title.Text != DefaultStyle().Title {
		t.Fatalf("title = %q", cfg.Options.Plugins.Title.Text)
	}
	if !cfg.Options.Plugins.Legend.Display || cfg.Options.Plugins.Legend.Position != "top" {
		t.Fatalf("legend = %+v", cfg.Options.Plugins.Legend)
	}
	if cfg.Options.Scales.X.Title.Text != "Time to Maturity (Years)" || cfg.Options.Scales.Y.Title.Text != "Yield (%)" {
		t.Fatalf("axes = %+v", cfg.Options.Scales)
	}
	if len(cfg.Data.Datasets) != 2 {
		t.Fatalf("datasets = %d; want 2", len(cfg.Data.Datasets))
	}
	scatter, line := cfg.Data.Datasets[0], cfg.Data.Datasets[1]
	if scatter.Type != "" || scatter.ScatterID != "11" || len(scatter.Data) != 2 {
		t.Fatalf("scatter = %+v", scatter)
	}
	if line.Type != "line" || !line.ShowLine || len(line.Data) != 2 {
		t.Fatalf("line = %+v", line)
	}
	if !line.Fill || scatter.Fill {
		t.Fatalf("fill line = %v scatter = %v; want true/false", line.Fill, scatter.Fill)
	}
	if got := line.Data[0].Tooltip.Lines[1]; got != "Zero Rate: 4.3%" {
		t.Fatalf("curve tooltip = %q", got)
	}
	if scatter.Data[0].Coupon == nil || *scatter.Data[0].Coupon != 3.25 {
		t.Fatalf("coupon = %v", scatter.Data[0].Coupon)
	}
}

func TestBondTooltip(t *testing.T) {
	p := chartsync.BondPoint{X: 2.5, Y: 4.1, ISIN: "US0001", Coupon: 3.25, MaturityDate: "2026-07-01", Description: "Treasury note"}
	tip := BondTooltip("US 2024-01-02", p, 50)
	if tip.Title != "ISIN: US0001" {
		t.Fatalf("Title = %q", tip.Title)
	}
	want := []string{
		"Dataset: US 2024-01-02",
		"TTM: 2.5 years",
		"Yield: 4.1%",
		"Coupon: 3.25%",
		"Maturity: 2026-07-01",
		"Description: Treasury note...",
	}
	if len(tip.Lines) != len(want) {
		t.Fatalf("Lines = %q", tip.Lines)
	}
	for i := range want {
		if tip.Lines[i] != want[i] {
			t.Fatalf("Lines[%d] = %q; want %q", i, tip.Lines[i], want[i])
		}
	}

	p.Description = strings.Repeat("é", 60)
	tip = BondTooltip("x", p, 50)
	if got := tip.Lines[5]; got != "Description: "+strings.Repeat("é", 50)+"..." {
		t.Fatalf("truncated description = %q", got)
	}
}

func TestFeedSinkPublishesChart(t *testing.T) {
	b := relay.NewBroker()
	sink := NewFeedSink(b, Style{})
	if _, ok := sink.Last(); ok {
		t.Fatal("Last() reported a state before any render")
	}
	if err := sink.Render(context.Background(), sampleState()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	evt, ok := b.Last(relay.FeedChart)
	if !ok {
		t.Fatal("no chart event published")
	}
	var cfg ChartConfig
	if err := json.Unmarshal([]byte(evt.Payload), &cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.Revision != 7 || len(cfg.Data.Datasets) != 2 {
		t.Fatalf("published cfg = %+v", cfg)
	}
	last, ok := sink.Last()
	if !ok || last.Revision != 7 {
		t.Fatalf("Last() = %+v, %v", last, ok)
	}
}

func TestApplyScriptCallsPageHook(t *testing.T) {
	script, err := applyScript(ChartJSConfig(sampleState(), Style{}))
	if err != nil {
		t.Fatalf("applyScript() error = %v", err)
	}
	for _, want := range []string{"window.yieldview.apply(cfg)", `"scatterId":"11"`, `return "ok"`} {
		if !strings.Contains(script, want) {
			t.Fatalf("script missing %q", want)
		}
	}
}

func TestBrowserWithoutCDPURL(t *testing.T) {
	b := NewBrowser("", "analysis", time.Second, Style{})
	if err := b.Connect(context.Background()); !apperr.Is(err, apperr.CodeCDPUnavailable) {
		t.Fatalf("Connect() error = %v; want CDP_UNAVAILABLE", err)
	}
	err := b.Render(context.Background(), sampleState())
	if !apperr.Is(err, apperr.CodeCDPUnavailable) {
		t.Fatalf("Render() error = %v; want CDP_UNAVAILABLE", err)
	}
	if _, err := b.Screenshot(context.Background()); !apperr.Is(err, apperr.CodeCDPUnavailable) {
		t.Fatalf("Screenshot() error = %v; want CDP_UNAVAILABLE", err)
	}
}

func TestPNGRendererProducesImage(t *testing.T) {
	r := NewPNGRenderer(Style{Width: 400, Height: 300})
	for name, state := range map[string]chartsync.ChartState{
		"empty":  {},
		"sample": sampleState(),
		"single": {Datasets: []chartsync.Descriptor{{
			Kind: chartsync.KindScatter, DatasetID: "1", Label: "one", BorderColor: "#ff0000",
			Points: []chartsync.BondPoint{{X: 5, Y: 3}},
		}}},
	} {
		img, err := r.Render(state)
		if err != nil {
			t.Fatalf("%s: Render() error = %v", name, err)
		}
		if !bytes.HasPrefix(img, []byte("\x89PNG")) {
			t.Fatalf("%s: output is not a PNG", name)
		}
	}
}

func TestStyleChartPalette(t *testing.T) {
	p, err := Style{}.ChartPalette()
	if err != nil || len(p) != len(chartsync.DefaultPalette) {
		t.Fatalf("ChartPalette() = %v, %v; want default palette", p, err)
	}
	p, err = Style{Palette: []string{"#000000", "rgb(1, 2, 3)"}}.ChartPalette()
	if err != nil {
		t.Fatalf("ChartPalette() error = %v", err)
	}
	if p[1] != (chartsync.Color{R: 1, G: 2, B: 3}) {
		t.Fatalf("p[1] = %+v", p[1])
	}
	if _, err := (Style{Palette: []string{"teal"}}).ChartPalette(); err == nil {
		t.Fatal("ChartPalette() accepted an unsupported color")
	}
}
