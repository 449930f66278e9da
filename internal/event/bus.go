// Package event provides the pub/sub notification bus for the server using
// watermill.
package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType represents the type of event.
type EventType string

const (
	ThreadCreated  EventType = "thread.created"
	ThreadArchived EventType = "thread.archived"

	TurnStarted   EventType = "turn.started"
	TurnCompleted EventType = "turn.completed"
	TurnFailed    EventType = "turn.failed"

	ItemStarted   EventType = "item.started"
	ItemUpdated   EventType = "item.updated"
	ItemCompleted EventType = "item.completed"

	ApprovalRequested EventType = "approval.requested"
	ApprovalResolved  EventType = "approval.resolved"
)

// StreamTopic is the watermill topic carrying the serialized event stream.
const StreamTopic = "events"

// subscriberBuffer bounds how far a slow subscriber may lag before it
// backpressures publishers.
const subscriberBuffer = 256

// Event is one notification published on the bus.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

// delivery is one queued event, with an optional acknowledgement for
// synchronous publishes.
type delivery struct {
	event Event
	wg    *sync.WaitGroup
}

// subscriberEntry delivers events to one subscriber through a dedicated
// queue, so each subscriber observes events in publish order without a
// slow subscriber blocking the others.
type subscriberEntry struct {
	id uint64
	ch chan delivery
}

func newEntry(id uint64, fn Subscriber) subscriberEntry {
	entry := subscriberEntry{id: id, ch: make(chan delivery, subscriberBuffer)}
	go func() {
		for d := range entry.ch {
			fn(d.event)
			if d.wg != nil {
				d.wg.Done()
			}
		}
	}()
	return entry
}

// Bus manages pub/sub. Typed subscribers get events in publish order
// through per-subscriber queues; the watermill gochannel carries the same
// events serialized, for stream consumers like the SSE endpoint.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry

	nextID uint64
	closed bool
}

var globalBus = NewBus()

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100},
			watermill.NopLogger{},
		),
		subscribers: make(map[EventType][]subscriberEntry),
	}
}

// Subscribe registers a subscriber for a specific event type on the global
// bus. It returns an unsubscribe function.
func Subscribe(eventType EventType, fn Subscriber) func() {
	return globalBus.Subscribe(eventType, fn)
}

func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.subscribers[eventType] = append(b.subscribers[eventType], newEntry(id, fn))
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[eventType]
		for i, entry := range subs {
			if entry.id == id {
				close(entry.ch)
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a subscriber for every event on the global bus.
// It returns an unsubscribe function.
func SubscribeAll(fn Subscriber) func() {
	return globalBus.SubscribeAll(fn)
}

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.global = append(b.global, newEntry(id, fn))
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, entry := range b.global {
			if entry.id == id {
				close(entry.ch)
				b.global = append(b.global[:i], b.global[i+1:]...)
				return
			}
		}
	}
}

// Stream subscribes to the serialized event stream. Each message payload
// is one JSON-encoded Event. The subscription ends when ctx is cancelled.
func Stream(ctx context.Context) (<-chan *message.Message, error) {
	return globalBus.Stream(ctx)
}

func (b *Bus) Stream(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, StreamTopic)
}

// Publish sends an event to all subscribers. Each subscriber receives
// events in publish order; delivery happens on the subscriber's own
// goroutine so a slow subscriber does not block the publisher.
func Publish(event Event) {
	globalBus.Publish(event)
}

func (b *Bus) Publish(event Event) {
	b.publish(event, nil)
}

// PublishSync delivers an event and returns only after every typed
// subscriber has processed it.
func PublishSync(event Event) {
	globalBus.PublishSync(event)
}

func (b *Bus) PublishSync(event Event) {
	var wg sync.WaitGroup
	b.publish(event, &wg)
	wg.Wait()
}

func (b *Bus) publish(event Event, wg *sync.WaitGroup) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	entries := make([]subscriberEntry, 0, len(b.subscribers[event.Type])+len(b.global))
	entries = append(entries, b.subscribers[event.Type]...)
	entries = append(entries, b.global...)
	b.mu.RUnlock()

	if wg != nil {
		wg.Add(len(entries))
	}
	for _, entry := range entries {
		entry.ch <- delivery{event: event, wg: wg}
	}

	if payload, err := json.Marshal(event); err == nil {
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set("type", string(event.Type))
		_ = b.pubsub.Publish(StreamTopic, msg)
	}
}

// Close shuts the bus down and drops all subscribers.
func Close() error {
	return globalBus.Close()
}

func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, entry := range subs {
			close(entry.ch)
		}
	}
	for _, entry := range b.global {
		close(entry.ch)
	}
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()
	return b.pubsub.Close()
}

// Reset replaces the global bus, dropping all subscribers (for tests).
func Reset() {
	old := globalBus
	globalBus = NewBus()
	_ = old.Close()
	// Let in-flight deliveries drain.
	time.Sleep(10 * time.Millisecond)
}
