package ui

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgnsrekt/yieldview/internal/notify"
	"github.com/dgnsrekt/yieldview/internal/relay"
)

// Alert levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Alert is one user-facing message.
type Alert struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Alerter surfaces a message to the user. An empty level means error.
type Alerter interface {
	Alert(ctx context.Context, level, message string)
}

// LogAlerter writes alerts to slog.
type LogAlerter struct{}

func (LogAlerter) Alert(_ context.Context, level, message string) {
	switch normalizeLevel(level) {
	case LevelWarning:
		slog.Warn("alert", "message", message)
	case LevelInfo:
		slog.Info("alert", "message", message)
	default:
		slog.Error("alert", "message", message)
	}
}

// FeedAlerter publishes alerts on the relay alert feed and remembers recent
// ones for clients that poll.
type FeedAlerter struct {
	broker *relay.Broker
	keep   int

	mu     sync.Mutex
	recent []Alert
}

// NewFeedAlerter publishes to broker and keeps the last keep alerts.
func NewFeedAlerter(broker *relay.Broker, keep int) *FeedAlerter {
	if keep <= 0 {
		keep = 20
	}
	return &FeedAlerter{broker: broker, keep: keep}
}

func (a *FeedAlerter) Alert(_ context.Context, level, message string) {
	alert := Alert{Level: normalizeLevel(level), Message: message, At: time.Now().UTC()}
	a.mu.Lock()
	a.recent = append(a.recent, alert)
	if len(a.recent) > a.keep {
		a.recent = a.recent[len(a.recent)-a.keep:]
	}
	a.mu.Unlock()

	if err := a.broker.PublishJSON(relay.FeedAlert, alert); err != nil {
		slog.Debug("alert publish failed", "error", err)
	}
}

// Recent returns the remembered alerts, oldest first.
func (a *FeedAlerter) Recent() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Alert(nil), a.recent...)
}

// NotifyAlerter forwards error and warning alerts to an ntfy topic.
type NotifyAlerter struct {
	Client   *http.Client
	Endpoint string
	Timeout  time.Duration
}

func (a NotifyAlerter) Alert(ctx context.Context, level, message string) {
	level = normalizeLevel(level)
	if level == LevelInfo {
		return
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	priority := "default"
	if level == LevelError {
		priority = "high"
	}
	if err := notify.Send(ctx, a.Client, a.Endpoint, "yieldview "+level, priority, message); err != nil {
		slog.Warn("alert forward failed", "endpoint", a.Endpoint, "error", err)
	}
}

// MultiAlerter fans one alert out to several alerters in order.
type MultiAlerter []Alerter

func (m MultiAlerter) Alert(ctx context.Context, level, message string) {
	for _, a := range m {
		a.Alert(ctx, level, message)
	}
}

func normalizeLevel(level string) string {
	switch level {
	case LevelWarning, LevelInfo:
		return level
	default:
		return LevelError
	}
}
