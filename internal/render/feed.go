package render

import (
	"context"
	"sync"

	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
	"github.com/dgnsrekt/yieldview/internal/relay"
)

// FeedSink publishes every chart state as a Chart.js config on the relay
// chart feed and keeps the last state it saw.
type FeedSink struct {
	broker *relay.Broker
	style  Style

	mu   sync.RWMutex
	last chartsync.ChartState
	seen bool
}

// NewFeedSink returns a sink publishing to broker.
func NewFeedSink(broker *relay.Broker, style Style) *FeedSink {
	return &FeedSink{broker: broker, style: style.WithDefaults()}
}

func (s *FeedSink) Render(_ context.Context, state chartsync.ChartState) error {
	s.mu.Lock()
	s.last = state
	s.seen = true
	s.mu.Unlock()

	if err := s.broker.PublishJSON(relay.FeedChart, ChartJSConfig(state, s.style)); err != nil {
		return apperr.New(apperr.CodeRender, "publish chart", err)
	}
	return nil
}

// Last returns the most recent state, and whether one was rendered yet.
func (s *FeedSink) Last() (chartsync.ChartState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.seen
}
