package events

import "testing"

func TestPublishOrder(t *testing.T) {
	ch := NewChannel()
	var got []int
	ch.Subscribe("topic", func(any) { got = append(got, 1) })
	ch.Subscribe("topic", func(any) { got = append(got, 2) })
	ch.Subscribe("topic", func(any) { got = append(got, 3) })

	ch.Publish("topic", nil)
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("handlers ran out of order: %v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	ch := NewChannel()
	calls := 0
	cancel := ch.Subscribe("topic", func(any) { calls++ })

	ch.Publish("topic", nil)
	cancel()
	cancel()
	ch.Publish("topic", nil)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestSubscribeOnce(t *testing.T) {
	ch := NewChannel()
	calls := 0
	ch.SubscribeOnce("topic", func(any) { calls++ })

	ch.Publish("topic", nil)
	ch.Publish("topic", nil)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	ch := NewChannel()
	reached := false
	ch.Subscribe("topic", func(any) { panic("boom") })
	ch.Subscribe("topic", func(any) { reached = true })

	ch.Publish("topic", nil)
	if !reached {
		t.Fatalf("second handler did not run after panic")
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	ch := NewChannel()
	calls := 0
	ch.Subscribe("a", func(any) { calls++ })

	ch.Publish("b", nil)
	if calls != 0 {
		t.Fatalf("handler invoked for wrong topic")
	}
}

func TestPayloadDelivered(t *testing.T) {
	ch := NewChannel()
	var got any
	ch.Subscribe("topic", func(p any) { got = p })

	ch.Publish("topic", 42)
	if got != 42 {
		t.Fatalf("unexpected payload: %v", got)
	}
}
