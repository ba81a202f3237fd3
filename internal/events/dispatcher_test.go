package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcher_DeliversInOrder(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string
	d.Subscribe(EventTicketMessageAdded, func(_ context.Context, event Event) error {
		seen = append(seen, event.ID)
		return nil
	})

	for _, id := range []string{"e1", "e2", "e3"} {
		if err := d.Publish(context.Background(), Event{ID: id, Type: EventTicketMessageAdded}); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}
	if len(seen) != 3 || seen[0] != "e1" || seen[1] != "e2" || seen[2] != "e3" {
		t.Fatalf("unexpected delivery order %v", seen)
	}
}

func TestDispatcher_RoutesByType(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls int
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls++
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventTicketAssigned}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 0 {
		t.Fatal("handler for another type must not fire")
	}
	if err := d.Publish(context.Background(), Event{Type: EventTicketCreated}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestDispatcher_HandlerErrorDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	var secondRan bool
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error { return boom })
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		secondRan = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	if !errors.Is(err, boom) {
		t.Fatalf("expected first handler error, got %v", err)
	}
	if !secondRan {
		t.Fatal("failing handler must not block later handlers")
	}
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), Event{Type: EventTicketCreated}); err != nil {
		t.Fatalf("publish with no subscribers: %v", err)
	}
}
