// Package modal wraps named dialogs behind a lazily built widget.
package modal

import (
	"log/slog"
	"sync"

	"github.com/dgnsrekt/yieldview/internal/relay"
)

// Widget is a dialog implementation.
type Widget interface {
	Show()
	Hide()
	Open() bool
}

// Factory builds the widget of a named dialog.
type Factory func(id string) Widget

// Manager controls one named dialog. The widget is built on first Show.
type Manager struct {
	id      string
	factory Factory

	mu     sync.Mutex
	widget Widget
}

// NewManager returns a manager for dialog id.
func NewManager(id string, factory Factory) *Manager {
	return &Manager{id: id, factory: factory}
}

// Show builds the widget if needed and shows it.
func (m *Manager) Show() {
	m.mu.Lock()
	if m.widget == nil {
		m.widget = m.factory(m.id)
	}
	w := m.widget
	m.mu.Unlock()
	w.Show()
}

// Hide hides the dialog. A dialog never shown is left alone.
func (m *Manager) Hide() {
	m.mu.Lock()
	w := m.widget
	m.mu.Unlock()
	if w == nil {
		slog.Debug("modal hide ignored: never shown", "modal", m.id)
		return
	}
	w.Hide()
}

// Instance returns the widget, or nil before the first Show.
func (m *Manager) Instance() Widget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.widget
}

// Open reports whether the dialog is currently shown.
func (m *Manager) Open() bool {
	w := m.Instance()
	return w != nil && w.Open()
}

// State is the published form of a dialog's visibility.
type State struct {
	Modal string `json:"modal"`
	Open  bool   `json:"open"`
}

// FeedWidget publishes its state on the relay modal feed.
type FeedWidget struct {
	id     string
	broker *relay.Broker

	mu   sync.Mutex
	open bool
}

// FeedFactory returns a Factory producing FeedWidgets bound to broker.
func FeedFactory(broker *relay.Broker) Factory {
	return func(id string) Widget {
		return &FeedWidget{id: id, broker: broker}
	}
}

func (w *FeedWidget) Show() { w.set(true) }

func (w *FeedWidget) Hide() { w.set(false) }

func (w *FeedWidget) Open() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

func (w *FeedWidget) set(open bool) {
	w.mu.Lock()
	w.open = open
	w.mu.Unlock()
	if err := w.broker.PublishJSON(relay.FeedModal, State{Modal: w.id, Open: open}); err != nil {
		slog.Debug("modal publish failed", "modal", w.id, "error", err)
	}
}
