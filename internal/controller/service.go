package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/yieldview/internal/apiclient"
	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
	"github.com/dgnsrekt/yieldview/internal/export"
	"github.com/dgnsrekt/yieldview/internal/journal"
	"github.com/dgnsrekt/yieldview/internal/modal"
	"github.com/dgnsrekt/yieldview/internal/page"
	"github.com/dgnsrekt/yieldview/internal/relay"
	"github.com/dgnsrekt/yieldview/internal/render"
	"github.com/dgnsrekt/yieldview/internal/scatter"
	"github.com/dgnsrekt/yieldview/internal/snapshot"
	"github.com/dgnsrekt/yieldview/internal/ui"
)

// Options wires a Service.
type Options struct {
	Client     *apiclient.Client
	AnalysisID int
	Style      render.Style
	Broker     *relay.Broker
	Snapshots  *snapshot.Store
	// Browser is optional; when set every chart state is also applied to
	// the live analysis tab.
	Browser *render.Browser
	// Alerter is optional and receives alerts in addition to the log and
	// the relay feed.
	Alerter ui.Alerter
	// Journal is optional and records every chart revision and alert.
	Journal *journal.Writer
}

// Service runs the chart console for one analysis.
type Service struct {
	client   *apiclient.Client
	broker   *relay.Broker
	style    render.Style
	registry *chartsync.Registry
	scatters *scatter.Controller
	detail   *page.DetailPage
	list     *page.ListPage
	feed     *render.FeedSink
	png      *render.PNGRenderer
	browser  *render.Browser
	snaps    *snapshot.Store
	alerts   *ui.FeedAlerter
}

// NewService wires the registry, controllers and sinks. Without an analysis
// id only the list page is available.
func NewService(opts Options) (*Service, error) {
	if opts.Client == nil || opts.Broker == nil || opts.Snapshots == nil {
		return nil, errors.New("controller: client, broker and snapshot store are required")
	}
	style := opts.Style.WithDefaults()
	palette, err := style.ChartPalette()
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}

	s := &Service{
		client:  opts.Client,
		broker:  opts.Broker,
		style:   style,
		feed:    render.NewFeedSink(opts.Broker, style),
		png:     render.NewPNGRenderer(style),
		browser: opts.Browser,
		snaps:   opts.Snapshots,
		alerts:  ui.NewFeedAlerter(opts.Broker, 50),
	}
	alerts := ui.MultiAlerter{ui.LogAlerter{}, s.alerts}
	if opts.Alerter != nil {
		alerts = append(alerts, opts.Alerter)
	}
	if opts.Journal != nil {
		alerts = append(alerts, opts.Journal)
	}
	factory := modal.FeedFactory(opts.Broker)

	var fetcher chartsync.OverlayFetcher
	var analysis *apiclient.Analysis
	if opts.AnalysisID > 0 {
		analysis = opts.Client.Analysis(opts.AnalysisID)
		fetcher = analysis
	}
	s.registry = chartsync.NewRegistry(fetcher, palette)
	s.registry.AddSink(s.feed)
	if s.browser != nil {
		s.registry.AddSink(s.browser)
	}
	if opts.Journal != nil {
		s.registry.AddSink(opts.Journal)
	}

	if analysis != nil {
		s.scatters = scatter.NewController(s.registry, analysis, alerts, nil)
		s.detail = page.NewDetailPage(opts.AnalysisID, analysis, s.registry, s.scatters, alerts, factory)
		s.registry.AddSink(chartsync.SinkFunc(s.publishView))
	}
	s.list = page.NewListPage(opts.Client, alerts, factory)
	return s, nil
}

// Start loads the configured pages. A list page failure is logged only.
func (s *Service) Start(ctx context.Context) error {
	if err := s.list.Init(ctx); err != nil {
		slog.Warn("analysis list page unavailable", "error", err)
	}
	if s.detail == nil {
		slog.Info("no analysis configured; detail page disabled")
		return nil
	}
	if err := s.detail.Init(ctx); err != nil {
		return err
	}
	s.publishPage()
	return nil
}

// Close detaches the browser sink.
func (s *Service) Close() error {
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}

func (s *Service) requireDetail() error {
	if s.detail == nil {
		return apperr.New(apperr.CodeNotFound, "no analysis configured", nil)
	}
	return nil
}

func requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(fieldName + " is required")
	}
	return nil
}

// publishView mirrors each chart state into the chips feed.
func (s *Service) publishView(_ context.Context, _ chartsync.ChartState) error {
	return s.broker.PublishJSON(relay.FeedChips, s.scatters.Chips())
}

func (s *Service) publishPage() {
	if s.detail == nil {
		return
	}
	if err := s.broker.PublishJSON(relay.FeedPage, s.detail.View()); err != nil {
		slog.Debug("page publish failed", "error", err)
	}
}

func (s *Service) ChartState(_ context.Context) chartsync.ChartState {
	return s.registry.Resynchronize()
}

func (s *Service) ChartConfig(ctx context.Context) render.ChartConfig {
	return render.ChartJSConfig(s.ChartState(ctx), s.style)
}

func (s *Service) ChartPNG(ctx context.Context) ([]byte, error) {
	return s.png.Render(s.ChartState(ctx))
}

func (s *Service) ChartXLSX(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, s.ChartState(ctx)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) ListChips(_ context.Context) ([]scatter.Chip, error) {
	if err := s.requireDetail(); err != nil {
		return nil, err
	}
	return s.scatters.Chips(), nil
}

func (s *Service) GetChip(_ context.Context, id string) (scatter.Chip, error) {
	if err := s.requireDetail(); err != nil {
		return scatter.Chip{}, err
	}
	chip, ok := s.scatters.Chip(strings.TrimSpace(id))
	if !ok {
		return scatter.Chip{}, scatterNotFound(id)
	}
	return chip, nil
}

func scatterNotFound(id string) error {
	return apperr.New(apperr.CodeNotFound, "scatter not found: "+id, nil)
}

func (s *Service) ToggleVisibility(_ context.Context, id string) (scatter.Chip, error) {
	if err := s.requireDetail(); err != nil {
		return scatter.Chip{}, err
	}
	chip, ok := s.scatters.ToggleVisibility(strings.TrimSpace(id))
	if !ok {
		return scatter.Chip{}, scatterNotFound(id)
	}
	return chip, nil
}

func (s *Service) ToggleZeroCurve(ctx context.Context, id string) (scatter.Chip, error) {
	if err := s.requireDetail(); err != nil {
		return scatter.Chip{}, err
	}
	id = strings.TrimSpace(id)
	if _, ok := s.scatters.Chip(id); !ok {
		return scatter.Chip{}, scatterNotFound(id)
	}
	return s.scatters.ToggleOverlay(ctx, id)
}

func (s *Service) RefreshZeroCurve(ctx context.Context, id string) (scatter.Chip, error) {
	if err := s.requireDetail(); err != nil {
		return scatter.Chip{}, err
	}
	id = strings.TrimSpace(id)
	if _, ok := s.scatters.Chip(id); !ok {
		return scatter.Chip{}, scatterNotFound(id)
	}
	return s.scatters.RefreshOverlay(ctx, id)
}

func (s *Service) DeleteScatter(ctx context.Context, id string) error {
	if err := s.requireDetail(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if _, ok := s.scatters.Chip(id); !ok {
		return scatterNotFound(id)
	}
	if err := s.scatters.Delete(ctx, id); err != nil {
		return err
	}
	s.publishPage()
	return nil
}

func (s *Service) AddScatter(ctx context.Context, country, date string) (page.DetailView, error) {
	if err := s.requireDetail(); err != nil {
		return page.DetailView{}, err
	}
	err := s.detail.HandleAddScatter(ctx, strings.TrimSpace(country), strings.TrimSpace(date))
	s.publishPage()
	if err != nil {
		return page.DetailView{}, err
	}
	return s.detail.View(), nil
}

func (s *Service) DetailView(_ context.Context) (page.DetailView, error) {
	if err := s.requireDetail(); err != nil {
		return page.DetailView{}, err
	}
	return s.detail.View(), nil
}

func (s *Service) ReloadPage(ctx context.Context) (page.DetailView, error) {
	if err := s.requireDetail(); err != nil {
		return page.DetailView{}, err
	}
	if err := s.detail.Reload(ctx); err != nil {
		return page.DetailView{}, err
	}
	s.publishPage()
	return s.detail.View(), nil
}

func (s *Service) ListView(_ context.Context) page.ListView {
	return s.list.View()
}

// SetModal opens or closes a named dialog and returns its new state.
func (s *Service) SetModal(_ context.Context, name string, open bool) (modal.State, error) {
	switch strings.TrimSpace(name) {
	case page.AddScatterModal:
		if err := s.requireDetail(); err != nil {
			return modal.State{}, err
		}
		if open {
			s.detail.OpenAddScatter()
		} else {
			s.detail.CloseAddScatter()
		}
		s.publishPage()
		return modal.State{Modal: page.AddScatterModal, Open: s.detail.View().AddScatterOpen}, nil
	case page.AddAnalysisModal:
		if open {
			s.list.OpenAddAnalysis()
		} else {
			s.list.CloseAddAnalysis()
		}
		return modal.State{Modal: page.AddAnalysisModal, Open: s.list.View().AddAnalysisOpen}, nil
	default:
		return modal.State{}, apperr.New(apperr.CodeNotFound, "unknown modal: "+name, nil)
	}
}

// CreateAnalysis creates an analysis and returns its redirect URL.
func (s *Service) CreateAnalysis(ctx context.Context, name string) (string, error) {
	return s.list.HandleAddAnalysis(ctx, name)
}

func (s *Service) RecentAlerts(_ context.Context) []ui.Alert {
	return s.alerts.Recent()
}

// TakeSnapshot stores the current chart as PNG. source "browser" captures
// the live tab canvas instead of rendering locally.
func (s *Service) TakeSnapshot(ctx context.Context, source, notes string) (snapshot.Meta, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = snapshot.SourcePNG
	}
	state := s.ChartState(ctx)

	var img []byte
	var err error
	switch source {
	case snapshot.SourcePNG:
		img, err = s.png.Render(state)
	case snapshot.SourceBrowser:
		if s.browser == nil {
			return snapshot.Meta{}, apperr.New(apperr.CodeCDPUnavailable, "browser sink is disabled", nil)
		}
		img, err = s.browser.Screenshot(ctx)
	default:
		return snapshot.Meta{}, apperr.Validation(`source must be "png" or "browser"`)
	}
	if err != nil {
		return snapshot.Meta{}, err
	}

	labels := make([]string, 0, len(state.Datasets))
	for _, d := range state.Datasets {
		labels = append(labels, d.Label)
	}
	analysisID := ""
	if s.detail != nil {
		analysisID = fmt.Sprint(s.detail.AnalysisID())
	}
	meta, err := s.snaps.Create(snapshot.Meta{
		AnalysisID: analysisID,
		Revision:   state.Revision,
		Labels:     labels,
		Source:     source,
		Format:     "png",
		Notes:      strings.TrimSpace(notes),
	}, img)
	if err != nil {
		return snapshot.Meta{}, apperr.New(apperr.CodeRender, "save snapshot", err)
	}
	return meta, nil
}

func (s *Service) ListSnapshots(_ context.Context, analysisID string) ([]snapshot.Meta, error) {
	return s.snaps.List(strings.TrimSpace(analysisID))
}

func (s *Service) GetSnapshot(_ context.Context, id string) (snapshot.Meta, error) {
	if err := requireNonEmpty(id, "snapshot_id"); err != nil {
		return snapshot.Meta{}, err
	}
	return s.snaps.Get(strings.TrimSpace(id))
}

func (s *Service) ReadSnapshotImage(_ context.Context, id string) ([]byte, string, error) {
	if err := requireNonEmpty(id, "snapshot_id"); err != nil {
		return nil, "", err
	}
	return s.snaps.ReadImage(strings.TrimSpace(id))
}

func (s *Service) DeleteSnapshot(_ context.Context, id string) error {
	if err := requireNonEmpty(id, "snapshot_id"); err != nil {
		return err
	}
	return s.snaps.Delete(strings.TrimSpace(id))
}
