package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Feed names published by the console.
const (
	FeedChart = "chart"
	FeedChips = "chips"
	FeedAlert = "alert"
	FeedModal = "modal"
	FeedPage  = "page"
)

// Event represents a single event delivered to SSE and WebSocket clients.
type Event struct {
	Feed    string
	Payload string
}

// Broker fans out events to all subscribed clients and remembers the last
// event of every feed so late subscribers start from current state.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	last        map[string]Event
	feedOrder   []string
	nextID      atomic.Int64
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
		last:        make(map[string]Event),
	}
}

// Subscribe registers a new client. Returns the subscriber ID and a channel
// to receive events on, pre-loaded with the last event of each feed. The
// channel is buffered; slow consumers will have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	for _, feed := range b.feedOrder {
		ch <- b.last[feed]
	}
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers. Non-blocking: slow clients
// have events dropped.
func (b *Broker) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, seen := b.last[evt.Feed]; !seen {
		b.feedOrder = append(b.feedOrder, evt.Feed)
	}
	b.last[evt.Feed] = evt
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// PublishJSON marshals v and publishes it on feed.
func (b *Broker) PublishJSON(feed string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("relay: marshal %s event: %w", feed, err)
	}
	b.Publish(Event{Feed: feed, Payload: string(data)})
	return nil
}

// Last returns the most recent event of a feed.
func (b *Broker) Last(feed string) (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	evt, ok := b.last[feed]
	return evt, ok
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
