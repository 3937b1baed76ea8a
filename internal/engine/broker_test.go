package engine_test

import (
	"testing"

	"github.com/cascadehq/cascade/internal/engine"
)

func TestEventBrokerSingleSubscriber(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("e1")
	defer unsub()

	events := []engine.Event{
		{Type: engine.EventExecutionStarted, ExecutionID: "e1"},
		{Type: engine.EventRoundStarted, ExecutionID: "e1", Round: 1},
		{Type: engine.EventActionFinished, ExecutionID: "e1", Round: 1, ActionID: "a"},
	}
	for _, ev := range events {
		b.Publish("e1", ev)
	}
	b.Close("e1")

	var got []engine.Event
	for ev := range ch {
		got = append(got, ev)
	}

	if len(got) != len(events) {
		t.Fatalf("got %d events, want %d", len(got), len(events))
	}
	for i, ev := range got {
		if ev != events[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, ev, events[i])
		}
	}
}

func TestEventBrokerMultipleSubscribers(t *testing.T) {
	b := engine.NewEventBroker()
	ch1, unsub1 := b.Subscribe("e1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("e1")
	defer unsub2()

	b.Publish("e1", engine.Event{Type: engine.EventRoundStarted, ExecutionID: "e1", Round: 1})
	b.Close("e1")

	var got1, got2 []engine.Event
	for ev := range ch1 {
		got1 = append(got1, ev)
	}
	for ev := range ch2 {
		got2 = append(got2, ev)
	}

	if len(got1) != 1 || got1[0].Round != 1 {
		t.Errorf("subscriber 1 got %v, want one round_started event", got1)
	}
	if len(got2) != 1 || got2[0].Round != 1 {
		t.Errorf("subscriber 2 got %v, want one round_started event", got2)
	}
}

func TestEventBrokerTopicsAreIndependent(t *testing.T) {
	b := engine.NewEventBroker()
	ch1, unsub1 := b.Subscribe("e1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("e2")
	defer unsub2()

	b.Publish("e1", engine.Event{Type: engine.EventExecutionStarted, ExecutionID: "e1"})
	b.Close("e1")
	b.Close("e2")

	var got1, got2 []engine.Event
	for ev := range ch1 {
		got1 = append(got1, ev)
	}
	for ev := range ch2 {
		got2 = append(got2, ev)
	}

	if len(got1) != 1 {
		t.Errorf("subscriber on e1 got %d events, want 1", len(got1))
	}
	if len(got2) != 0 {
		t.Errorf("subscriber on e2 got %d events, want 0", len(got2))
	}
}

func TestEventBrokerCloseClosesChannels(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("e1")
	defer unsub()

	b.Close("e1")

	_, ok := <-ch
	if ok {
		t.Error("channel should be closed after Close()")
	}
}

func TestEventBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := engine.NewEventBroker()
	b.Publish("e1", engine.Event{Type: engine.EventExecutionStarted, ExecutionID: "e1"})
	b.Close("e1")

	ch, unsub := b.Subscribe("e1")
	defer unsub()

	_, ok := <-ch
	if ok {
		t.Error("late subscriber should receive a closed channel")
	}
}

func TestEventBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("e1")

	b.Publish("e1", engine.Event{Type: engine.EventRoundStarted, ExecutionID: "e1", Round: 1})
	unsub()
	b.Publish("e1", engine.Event{Type: engine.EventRoundStarted, ExecutionID: "e1", Round: 2})

	if got := len(ch); got != 1 {
		t.Errorf("buffered events = %d, want 1", got)
	}
}
