package events

import (
	"testing"
	"time"

	"babylon/internal/logging"
)

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus(logging.Nop())
	var order []int
	bus.Subscribe(SubscriberFunc(func(Event) { order = append(order, 1) }))
	bus.Subscribe(SubscriberFunc(func(Event) { order = append(order, 2) }))
	bus.Subscribe(SubscriberFunc(func(Event) { order = append(order, 3) }))

	bus.Publish(NewWorkflowStart("t1", "desc", time.Now()))

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v want %v", order, want)
		}
	}
}

func TestPanickingSubscriberDoesNotBreakDelivery(t *testing.T) {
	bus := NewBus(logging.Nop())
	delivered := false
	bus.Subscribe(SubscriberFunc(func(Event) { panic("boom") }))
	bus.Subscribe(SubscriberFunc(func(Event) { delivered = true }))

	bus.Publish(NewWorkflowStart("t1", "desc", time.Now()))

	if !delivered {
		t.Fatal("second subscriber should still have received the event")
	}
}

func TestDetachStopsFurtherDelivery(t *testing.T) {
	bus := NewBus(logging.Nop())
	count := 0
	detach := bus.Subscribe(SubscriberFunc(func(Event) { count++ }))

	bus.Publish(NewWorkflowStart("t1", "d", time.Now()))
	detach()
	bus.Publish(NewWorkflowStart("t1", "d", time.Now()))

	if count != 1 {
		t.Fatalf("expected 1 delivery after detach, got %d", count)
	}
}

func TestPublishNilEventIsNoop(t *testing.T) {
	bus := NewBus(logging.Nop())
	called := false
	bus.Subscribe(SubscriberFunc(func(Event) { called = true }))
	bus.Publish(nil)
	if called {
		t.Fatal("nil event should not be delivered")
	}
}
