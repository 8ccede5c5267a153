// Package scatter turns chip gestures into backend calls and registry updates.
package scatter

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/yieldview/internal/apiclient"
	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
	"github.com/dgnsrekt/yieldview/internal/ui"
)

// User-facing messages.
const (
	MsgDeleteFailed    = "Error deleting scatter. Please try again."
	MsgZeroCurveFailed = "Error building zero curve. Please try again."
	MsgAddFailed       = "Error adding scatter. Please try again."
)

// Zero-curve toggle labels.
const (
	LabelShowZeroCurve    = "Show Zero Curve"
	LabelHideZeroCurve    = "Hide Zero Curve"
	LabelLoadingZeroCurve = "Loading Zero Curve..."
)

// Backend is the subset of analysis endpoints the controller mutates.
type Backend interface {
	DeleteScatter(ctx context.Context, scatterID string) error
	AddScatter(ctx context.Context, country, date string) (apiclient.MutationResponse, error)
}

// Reloader performs a full page reload.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func(ctx context.Context) error

func (f ReloaderFunc) Reload(ctx context.Context) error { return f(ctx) }

// Chip is the rendered state of one scatter chip, derived from the registry.
type Chip struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Visible        bool                   `json:"visible"`
	Color          string                 `json:"color"`
	Points         int                    `json:"points"`
	ZeroCurve      chartsync.OverlayState `json:"zero_curve"`
	ZeroCurveLabel string                 `json:"zero_curve_label"`
}

// Controller handles chip gestures for one analysis.
type Controller struct {
	registry *chartsync.Registry
	backend  Backend
	alerts   ui.Alerter
	reloader Reloader
}

// NewController wires a controller. reloader may be set later with SetReloader.
func NewController(registry *chartsync.Registry, backend Backend, alerts ui.Alerter, reloader Reloader) *Controller {
	if alerts == nil {
		alerts = ui.LogAlerter{}
	}
	return &Controller{registry: registry, backend: backend, alerts: alerts, reloader: reloader}
}

// SetReloader replaces the page reloader.
func (c *Controller) SetReloader(r Reloader) { c.reloader = r }

// ToggleVisibility flips a dataset's visibility. Unknown ids are ignored and
// reported with ok=false.
func (c *Controller) ToggleVisibility(id string) (Chip, bool) {
	id = strings.TrimSpace(id)
	ds, ok := c.registry.Dataset(id)
	if !ok {
		slog.Debug("toggle visibility ignored: unknown scatter", "scatter_id", id)
		return Chip{}, false
	}
	c.registry.SetVisible(id, !ds.Visible)
	return c.Chip(id)
}

// Delete removes a scatter on the backend, then from the registry. On failure
// the registry is untouched. Unknown ids are ignored without a request.
func (c *Controller) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperr.Validation("scatter id is required")
	}
	if _, ok := c.registry.Dataset(id); !ok {
		slog.Debug("delete scatter ignored: unknown scatter", "scatter_id", id)
		return nil
	}
	if err := c.backend.DeleteScatter(ctx, id); err != nil {
		slog.Warn("delete scatter failed", "scatter_id", id, "error", err)
		c.alerts.Alert(ctx, ui.LevelError, MsgDeleteFailed)
		return err
	}
	c.registry.Remove(id)
	slog.Info("scatter deleted", "scatter_id", id)
	return nil
}

// ToggleOverlay hides an enabled or loading zero curve, otherwise fetches and
// shows it. A superseded fetch is dropped silently.
func (c *Controller) ToggleOverlay(ctx context.Context, id string) (Chip, error) {
	id = strings.TrimSpace(id)
	if _, ok := c.registry.Dataset(id); !ok {
		slog.Debug("toggle zero curve ignored: unknown scatter", "scatter_id", id)
		return Chip{}, nil
	}
	switch c.registry.OverlayStatus(id) {
	case chartsync.OverlayEnabled, chartsync.OverlayLoading:
		c.registry.DisableOverlay(id)
		chip, _ := c.Chip(id)
		return chip, nil
	}
	return c.loadOverlay(ctx, id, false)
}

// RefreshOverlay refetches a zero curve, keeping the cached one on failure.
func (c *Controller) RefreshOverlay(ctx context.Context, id string) (Chip, error) {
	id = strings.TrimSpace(id)
	if _, ok := c.registry.Dataset(id); !ok {
		slog.Debug("refresh zero curve ignored: unknown scatter", "scatter_id", id)
		return Chip{}, nil
	}
	return c.loadOverlay(ctx, id, true)
}

func (c *Controller) loadOverlay(ctx context.Context, id string, force bool) (Chip, error) {
	var err error
	if force {
		_, err = c.registry.RefreshOverlay(ctx, id)
	} else {
		_, err = c.registry.FetchOverlay(ctx, id)
	}
	chip, _ := c.Chip(id)
	switch {
	case err == nil:
		return chip, nil
	case apperr.Is(err, apperr.CodeStale):
		slog.Debug("zero curve response superseded", "scatter_id", id)
		return chip, nil
	default:
		slog.Error("Error building zero curve", "scatter_id", id, "error", err)
		c.alerts.Alert(ctx, ui.LevelError, MsgZeroCurveFailed)
		return chip, err
	}
}

// AddDataset asks the backend for a new scatter and reloads the page on
// success.
func (c *Controller) AddDataset(ctx context.Context, country, date string) error {
	resp, err := c.backend.AddScatter(ctx, country, date)
	if err != nil {
		slog.Warn("add scatter failed", "country", country, "date", date, "error", err)
		c.alerts.Alert(ctx, ui.LevelError, MsgAddFailed)
		return err
	}
	if !resp.Success {
		c.alerts.Alert(ctx, ui.LevelError, "Error: "+resp.Error)
		return apperr.New(apperr.CodeBackend, resp.Error, nil)
	}
	slog.Info("scatter added", "country", country, "date", date)
	if c.reloader == nil {
		return errors.New("scatter: no page reloader configured")
	}
	return c.reloader.Reload(ctx)
}

// Chip returns the derived chip state of id.
func (c *Controller) Chip(id string) (Chip, bool) {
	ds, ok := c.registry.Dataset(id)
	if !ok {
		return Chip{}, false
	}
	return c.chipFor(ds), true
}

// Chips returns every chip in registry order.
func (c *Controller) Chips() []Chip {
	datasets := c.registry.Datasets()
	out := make([]Chip, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, c.chipFor(ds))
	}
	return out
}

func (c *Controller) chipFor(ds chartsync.Dataset) Chip {
	state := c.registry.OverlayStatus(ds.ID)
	return Chip{
		ID:             ds.ID,
		Name:           ds.DisplayName,
		Visible:        ds.Visible,
		Color:          c.registry.Palette().ColorFor(ds.ID).Hex(),
		Points:         len(ds.Points),
		ZeroCurve:      state,
		ZeroCurveLabel: overlayLabel(state),
	}
}

func overlayLabel(state chartsync.OverlayState) string {
	switch state {
	case chartsync.OverlayEnabled:
		return LabelHideZeroCurve
	case chartsync.OverlayLoading:
		return LabelLoadingZeroCurve
	default:
		return LabelShowZeroCurve
	}
}
