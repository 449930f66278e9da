package event

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestPublishSyncDeliversToTypeSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []Event
	bus.Subscribe(TurnStarted, func(e Event) { got = append(got, e) })
	bus.Subscribe(TurnCompleted, func(e Event) { t.Error("wrong type delivered") })

	bus.PublishSync(Event{Type: TurnStarted, Data: "x"})
	if len(got) != 1 || got[0].Type != TurnStarted {
		t.Fatalf("expected one turn.started event, got %+v", got)
	}
}

func TestSubscribeAllAndUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	unsub := bus.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.PublishSync(Event{Type: ItemStarted})
	bus.PublishSync(Event{Type: ItemCompleted})
	unsub()
	bus.PublishSync(Event{Type: ItemCompleted})

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("expected 2 deliveries, got %d", count)
	}
}

func TestAsyncPublishDoesNotBlock(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	release := make(chan struct{})
	done := make(chan struct{})
	bus.Subscribe(ItemUpdated, func(e Event) {
		<-release
		close(done)
	})

	start := time.Now()
	bus.Publish(Event{Type: ItemUpdated})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Publish blocked for %v", elapsed)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber never ran")
	}
}

func TestSubscriberSeesPublishOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var got []EventType
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	})

	types := []EventType{ItemStarted, ItemUpdated, ItemUpdated, ItemCompleted}
	for _, typ := range types[:len(types)-1] {
		bus.Publish(Event{Type: typ})
	}
	bus.PublishSync(Event{Type: types[len(types)-1]})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(types) {
		t.Fatalf("expected %d events, got %d", len(types), len(got))
	}
	for i, typ := range types {
		if got[i] != typ {
			t.Errorf("event %d: expected %s, got %s", i, typ, got[i])
		}
	}
}

func TestStreamCarriesSerializedEvents(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Stream(ctx)
	if err != nil {
		t.Fatal(err)
	}

	bus.Publish(Event{Type: TurnStarted, Data: map[string]string{"id": "t1"}})

	select {
	case msg := <-msgs:
		msg.Ack()
		if msg.Metadata.Get("type") != string(TurnStarted) {
			t.Errorf("unexpected type metadata %q", msg.Metadata.Get("type"))
		}
		var e Event
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			t.Fatalf("payload not an event: %v", err)
		}
		if e.Type != TurnStarted {
			t.Errorf("expected turn.started, got %s", e.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message on stream")
	}
}

func TestClosedBusDropsEvents(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TurnFailed, func(e Event) { t.Error("delivered after close") })
	bus.Close()
	bus.PublishSync(Event{Type: TurnFailed})
}
