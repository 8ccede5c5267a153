package chartsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/yieldview/internal/apperr"
)

const (
	scatterBorderWidth      = 1
	scatterPointRadius      = 6
	scatterPointHoverRadius = 8
	overlayBorderWidth      = 2
	defaultPushTimeout      = 10 * time.Second
)

// OverlayFetcher loads the derived curve of one dataset from the backend.
type OverlayFetcher interface {
	FetchOverlay(ctx context.Context, datasetID string) (Overlay, error)
}

// Sink receives every recomputed chart state. Sinks are write-only; the
// registry never reads state back from them.
type Sink interface {
	Render(ctx context.Context, state ChartState) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, state ChartState) error

func (f SinkFunc) Render(ctx context.Context, state ChartState) error { return f(ctx, state) }

type overlayEntry struct {
	cached  *Overlay
	enabled bool
	// pending is the sequence number of the in-flight fetch, 0 when idle.
	pending uint64
}

// Registry owns datasets and overlays for one page view and pushes the full
// chart state to its sinks after every change.
type Registry struct {
	fetcher     OverlayFetcher
	palette     Palette
	pushTimeout time.Duration

	mu       sync.Mutex
	order    []string
	datasets map[string]*Dataset
	overlays map[string]*overlayEntry
	seq      uint64
	revision uint64
	sinks    []Sink

	// pushMu serializes resync+push so sinks observe states in mutation order.
	pushMu sync.Mutex
}

// NewRegistry creates an empty registry. A nil palette selects DefaultPalette.
func NewRegistry(fetcher OverlayFetcher, palette Palette) *Registry {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	return &Registry{
		fetcher:     fetcher,
		palette:     palette,
		pushTimeout: defaultPushTimeout,
		datasets:    make(map[string]*Dataset),
		overlays:    make(map[string]*overlayEntry),
	}
}

// AddSink registers a sink for subsequent pushes.
func (r *Registry) AddSink(s Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

// Palette returns the registry's color palette.
func (r *Registry) Palette() Palette { return r.palette }

// Add registers a dataset. Re-adding a known id replaces its contents in place
// and drops its overlay, since the curve was derived from the old data.
func (r *Registry) Add(ds Dataset) {
	if ds.ID == "" {
		slog.Debug("chartsync add ignored: empty dataset id")
		return
	}
	stored := ds
	stored.Points = append([]BondPoint(nil), ds.Points...)

	r.mu.Lock()
	if _, ok := r.datasets[ds.ID]; !ok {
		r.order = append(r.order, ds.ID)
	}
	r.datasets[ds.ID] = &stored
	delete(r.overlays, ds.ID)
	r.revision++
	r.mu.Unlock()

	slog.Debug("chartsync dataset added", "scatter_id", ds.ID, "points", len(ds.Points), "visible", ds.Visible)
	r.push()
}

// SetVisible shows or hides a dataset. Unknown ids are ignored.
func (r *Registry) SetVisible(id string, visible bool) {
	r.mu.Lock()
	ds, ok := r.datasets[id]
	if !ok {
		r.mu.Unlock()
		slog.Debug("chartsync set visible ignored: unknown dataset", "scatter_id", id)
		return
	}
	ds.Visible = visible
	r.revision++
	r.mu.Unlock()

	r.push()
}

// Remove deletes a dataset and its overlay. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	if _, ok := r.datasets[id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.datasets, id)
	delete(r.overlays, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.revision++
	r.mu.Unlock()

	slog.Debug("chartsync dataset removed", "scatter_id", id)
	r.push()
}

// Reset drops every dataset and overlay and invalidates in-flight fetches.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.order = nil
	r.datasets = make(map[string]*Dataset)
	r.overlays = make(map[string]*overlayEntry)
	r.revision++
	r.mu.Unlock()

	r.push()
}

// FetchOverlay enables the overlay of a dataset, fetching it only on a cache
// miss. A failed fetch leaves prior state untouched. A response superseded by
// DisableOverlay, Remove, Add or Reset is discarded with a STALE error.
func (r *Registry) FetchOverlay(ctx context.Context, id string) (Overlay, error) {
	return r.loadOverlay(ctx, id, false)
}

// RefreshOverlay refetches an overlay even when one is cached. On failure the
// cached overlay is kept as it was.
func (r *Registry) RefreshOverlay(ctx context.Context, id string) (Overlay, error) {
	return r.loadOverlay(ctx, id, true)
}

func (r *Registry) loadOverlay(ctx context.Context, id string, force bool) (Overlay, error) {
	if r.fetcher == nil {
		return Overlay{}, apperr.New(apperr.CodeNotFound, "no zero curve source configured", nil)
	}
	r.mu.Lock()
	if _, ok := r.datasets[id]; !ok {
		r.mu.Unlock()
		slog.Debug("chartsync overlay fetch ignored: unknown dataset", "scatter_id", id)
		return Overlay{}, nil
	}
	entry := r.overlays[id]
	if entry == nil {
		entry = &overlayEntry{}
		r.overlays[id] = entry
	}
	if entry.cached != nil && !force {
		changed := !entry.enabled
		entry.enabled = true
		out := *entry.cached
		if changed {
			r.revision++
		}
		r.mu.Unlock()
		slog.Debug("chartsync overlay cache hit", "scatter_id", id)
		if changed {
			r.push()
		}
		return out, nil
	}
	r.seq++
	seq := r.seq
	entry.pending = seq
	r.mu.Unlock()

	start := time.Now()
	ov, err := r.fetcher.FetchOverlay(ctx, id)

	r.mu.Lock()
	current := r.overlays[id]
	if current == nil || current.pending != seq {
		r.mu.Unlock()
		slog.Debug("chartsync overlay response discarded", "scatter_id", id, "seq", seq, "duration_ms", time.Since(start).Milliseconds())
		return Overlay{}, apperr.New(apperr.CodeStale, "zero curve response superseded for scatter "+id, nil)
	}
	current.pending = 0
	if err != nil {
		r.mu.Unlock()
		slog.Warn("chartsync overlay fetch failed", "scatter_id", id, "error", err)
		return Overlay{}, err
	}
	ov.DatasetID = id
	ov.Points = append([]CurvePoint(nil), ov.Points...)
	current.cached = &ov
	current.enabled = true
	r.revision++
	r.mu.Unlock()

	slog.Debug("chartsync overlay enabled", "scatter_id", id, "points", len(ov.Points), "duration_ms", time.Since(start).Milliseconds())
	r.push()
	return ov, nil
}

// DisableOverlay hides an overlay but keeps it cached so re-enabling does not
// refetch. A fetch still in flight for id is invalidated.
func (r *Registry) DisableOverlay(id string) {
	r.mu.Lock()
	entry, ok := r.overlays[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	changed := entry.enabled
	entry.enabled = false
	entry.pending = 0
	if entry.cached == nil {
		delete(r.overlays, id)
	}
	if changed {
		r.revision++
	}
	r.mu.Unlock()

	if changed {
		r.push()
	}
}

// OverlayStatus reports the overlay lifecycle state of a dataset.
func (r *Registry) OverlayStatus(id string) OverlayState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlayStateLocked(id)
}

func (r *Registry) overlayStateLocked(id string) OverlayState {
	entry, ok := r.overlays[id]
	switch {
	case !ok:
		return OverlayAbsent
	case entry.pending != 0:
		return OverlayLoading
	case entry.cached == nil:
		return OverlayAbsent
	case entry.enabled:
		return OverlayEnabled
	default:
		return OverlayDisabled
	}
}

// Overlay returns a copy of the cached overlay of id, if any.
func (r *Registry) Overlay(id string) (Overlay, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.overlays[id]
	if !ok || entry.cached == nil {
		return Overlay{}, false
	}
	return *entry.cached, true
}

// Dataset returns a copy of one dataset.
func (r *Registry) Dataset(id string) (Dataset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ds, ok := r.datasets[id]
	if !ok {
		return Dataset{}, false
	}
	return *ds, true
}

// Datasets returns copies of all datasets in insertion order.
func (r *Registry) Datasets() []Dataset {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Dataset, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.datasets[id])
	}
	return out
}

// Resynchronize recomputes the chart state from registry state alone.
func (r *Registry) Resynchronize() ChartState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := ChartState{Revision: r.revision, Datasets: make([]Descriptor, 0, len(r.order))}
	for _, id := range r.order {
		ds := r.datasets[id]
		if !ds.Visible {
			continue
		}
		idx := r.palette.Index(id)
		color := r.palette[idx]
		state.Datasets = append(state.Datasets, Descriptor{
			Kind:             KindScatter,
			DatasetID:        id,
			Label:            ds.DisplayName,
			ColorIndex:       idx,
			BackgroundColor:  color.RGBA(ScatterAlpha),
			BorderColor:      color.RGBA(1),
			BorderWidth:      scatterBorderWidth,
			PointRadius:      scatterPointRadius,
			PointHoverRadius: scatterPointHoverRadius,
			Points:           ds.Points,
		})

		entry, ok := r.overlays[id]
		if !ok || entry.cached == nil || !entry.enabled {
			continue
		}
		state.Datasets = append(state.Datasets, Descriptor{
			Kind:            KindLine,
			DatasetID:       id,
			Label:           ds.DisplayName + " Zero Curve",
			ColorIndex:      idx,
			BackgroundColor: color.RGBA(OverlayFillAlpha),
			BorderColor:     color.RGBA(1),
			BorderWidth:     overlayBorderWidth,
			ShowLine:        true,
			Fill:            true,
			Curve:           entry.cached.Points,
		})
	}
	return state
}

// Push recomputes the chart state and sends it to every sink.
func (r *Registry) Push(ctx context.Context) {
	r.pushMu.Lock()
	defer r.pushMu.Unlock()

	state := r.Resynchronize()
	r.mu.Lock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.Unlock()

	for _, s := range sinks {
		if err := s.Render(ctx, state); err != nil {
			slog.Warn("chartsync sink render failed", "revision", state.Revision, "error", err)
		}
	}
}

func (r *Registry) push() {
	ctx, cancel := context.WithTimeout(context.Background(), r.pushTimeout)
	defer cancel()
	r.Push(ctx)
}
