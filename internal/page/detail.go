// Package page wires the registry, scatter controller and dialogs into the
// lifecycle of the analysis pages.
package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/yieldview/internal/apiclient"
	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
	"github.com/dgnsrekt/yieldview/internal/modal"
	"github.com/dgnsrekt/yieldview/internal/scatter"
	"github.com/dgnsrekt/yieldview/internal/ui"
)

// Dialog ids.
const (
	AddScatterModal  = "addScatterModal"
	AddAnalysisModal = "addAnalysisModal"
)

// User-facing messages.
const (
	MsgSelectCountryAndDate = "Please select both country and date"
	MsgDateRangeWarning     = "Warning: Could not load available date range. Please ensure you select a date with available bond data."
)

const dateLayout = "2006-01-02"

// DetailBackend is what the detail page needs from the backend.
type DetailBackend interface {
	Page(ctx context.Context) ([]byte, error)
	SetToken(token string)
	ScatterData(ctx context.Context, ids []string) ([]apiclient.ScatterData, error)
	BondDateRange(ctx context.Context) (apiclient.DateRange, error)
}

// DateInput is the state of the scatter date picker.
type DateInput struct {
	Min   string `json:"min,omitempty"`
	Max   string `json:"max,omitempty"`
	Value string `json:"value"`
}

// DetailView is what a client renders for the detail page.
type DetailView struct {
	AnalysisID     int            `json:"analysis_id"`
	DateInput      DateInput      `json:"date_input"`
	Countries      []string       `json:"countries"`
	HasScatters    bool           `json:"has_scatters"`
	AddScatterOpen bool           `json:"add_scatter_open"`
	SaveButton     ui.ButtonState `json:"save_button"`
	Chips          []scatter.Chip `json:"chips"`
	LoadedAt       time.Time      `json:"loaded_at"`
}

// DetailPage drives one analysis detail page.
type DetailPage struct {
	analysisID int
	backend    DetailBackend
	registry   *chartsync.Registry
	scatters   *scatter.Controller
	alerts     ui.Alerter
	addModal   *modal.Manager
	saveButton *ui.Button
	now        func() time.Time

	mu       sync.Mutex
	date     DateInput
	page     ui.Page
	loadedAt time.Time
}

// NewDetailPage wires a detail page and registers itself as the scatter
// controller's reloader.
func NewDetailPage(analysisID int, backend DetailBackend, registry *chartsync.Registry, scatters *scatter.Controller, alerts ui.Alerter, factory modal.Factory) *DetailPage {
	if alerts == nil {
		alerts = ui.LogAlerter{}
	}
	p := &DetailPage{
		analysisID: analysisID,
		backend:    backend,
		registry:   registry,
		scatters:   scatters,
		alerts:     alerts,
		addModal:   modal.NewManager(AddScatterModal, factory),
		saveButton: ui.NewButton("Add Scatter"),
		now:        time.Now,
	}
	scatters.SetReloader(p)
	return p
}

// Init loads the page: an empty chart first, then the page HTML, then the
// date range and scatter data concurrently.
func (p *DetailPage) Init(ctx context.Context) error {
	p.registry.Push(ctx)

	html, err := p.backend.Page(ctx)
	if err != nil {
		return fmt.Errorf("load analysis %d page: %w", p.analysisID, err)
	}
	parsed, err := ui.ParsePage(bytes.NewReader(html))
	if err != nil {
		return err
	}
	p.backend.SetToken(parsed.CSRFToken)

	p.mu.Lock()
	p.page = parsed
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.setupDateInput(gctx)
		return nil
	})
	g.Go(func() error {
		if !parsed.HasScatters {
			return nil
		}
		p.loadScatters(gctx, parsed)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	p.mu.Lock()
	p.loadedAt = p.now().UTC()
	p.mu.Unlock()
	slog.Info("analysis page loaded", "analysis_id", p.analysisID, "scatters", len(parsed.Chips))
	return nil
}

// Reload drops all registry state and runs Init again.
func (p *DetailPage) Reload(ctx context.Context) error {
	slog.Debug("analysis page reload", "analysis_id", p.analysisID)
	p.registry.Reset()
	return p.Init(ctx)
}

func (p *DetailPage) setupDateInput(ctx context.Context) {
	rng, err := p.backend.BondDateRange(ctx)
	if err != nil || rng.DefaultDate == "" {
		if err == nil {
			err = errors.New("empty default date")
		}
		slog.Warn("bond date range unavailable", "analysis_id", p.analysisID, "error", err)
		p.mu.Lock()
		p.date = DateInput{Value: p.now().Format(dateLayout)}
		p.mu.Unlock()
		p.alerts.Alert(ctx, ui.LevelWarning, MsgDateRangeWarning)
		return
	}
	p.mu.Lock()
	p.date = DateInput{Min: rng.MinDate, Max: rng.MaxDate, Value: rng.DefaultDate}
	p.mu.Unlock()
}

// loadScatters fetches every chip's data and registers it with the chip's
// visibility. Chips marked with a zero curve get it fetched afterwards.
func (p *DetailPage) loadScatters(ctx context.Context, parsed ui.Page) {
	chips := parsed.Chips
	start := time.Now()
	data, err := p.backend.ScatterData(ctx, parsed.ChipIDs())
	if err != nil {
		slog.Error("Error loading chart data", "analysis_id", p.analysisID, "error", err)
		return
	}

	byID := make(map[string]apiclient.ScatterData, len(data))
	for _, d := range data {
		byID[string(d.Scatter.ID)] = d
	}
	for _, c := range chips {
		d, ok := byID[c.ID]
		if !ok {
			slog.Debug("chip without scatter data", "scatter_id", c.ID)
			continue
		}
		ds := d.Dataset(c.Visible)
		if ds.DisplayName == "" {
			ds.DisplayName = c.Name
		}
		p.registry.Add(ds)
		delete(byID, c.ID)
	}
	for _, d := range data {
		if _, extra := byID[string(d.Scatter.ID)]; extra {
			p.registry.Add(d.Dataset(false))
		}
	}
	slog.Debug("scatter data loaded", "analysis_id", p.analysisID, "scatters", len(data), "duration_ms", time.Since(start).Milliseconds())

	for _, c := range chips {
		if !c.ZeroCurve {
			continue
		}
		if _, err := p.registry.FetchOverlay(ctx, c.ID); err != nil && !apperr.Is(err, apperr.CodeStale) {
			slog.Warn("initial zero curve load failed", "scatter_id", c.ID, "error", err)
		}
	}
}

// OpenAddScatter shows the add-scatter dialog.
func (p *DetailPage) OpenAddScatter() { p.addModal.Show() }

// CloseAddScatter hides the add-scatter dialog.
func (p *DetailPage) CloseAddScatter() { p.addModal.Hide() }

// HandleAddScatter validates the form, then asks the scatter controller to
// add the dataset. The dialog closes on success.
func (p *DetailPage) HandleAddScatter(ctx context.Context, country, date string) error {
	country = strings.TrimSpace(country)
	date = strings.TrimSpace(date)
	if country == "" || date == "" {
		p.alerts.Alert(ctx, ui.LevelError, MsgSelectCountryAndDate)
		return apperr.Validation(MsgSelectCountryAndDate)
	}

	p.saveButton.SetLoading(true, "Adding...")
	defer p.saveButton.SetLoading(false, "")

	if err := p.scatters.AddDataset(ctx, country, date); err != nil {
		return err
	}
	p.addModal.Hide()
	return nil
}

// View returns the rendered page state.
func (p *DetailPage) View() DetailView {
	p.mu.Lock()
	date := p.date
	parsed := p.page
	loadedAt := p.loadedAt
	p.mu.Unlock()

	return DetailView{
		AnalysisID:     p.analysisID,
		DateInput:      date,
		Countries:      append([]string(nil), parsed.Countries...),
		HasScatters:    len(p.registry.Datasets()) > 0,
		AddScatterOpen: p.addModal.Open(),
		SaveButton:     p.saveButton.State(),
		Chips:          p.scatters.Chips(),
		LoadedAt:       loadedAt,
	}
}

// AnalysisID returns the page's analysis id.
func (p *DetailPage) AnalysisID() int { return p.analysisID }
