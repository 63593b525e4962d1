package eventbus

import "testing"

const topicScore Topic = "score"

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	bus := New()
	var got []string

	bus.Subscribe(topicScore, func(any) { got = append(got, "first") })
	bus.Subscribe(topicScore, func(any) { got = append(got, "second") })
	bus.Publish(topicScore, 10)

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("unexpected delivery order: %v", got)
	}
}

func TestBus_UnsubscribedHandlerIsSkipped(t *testing.T) {
	bus := New()
	calls := 0
	unsubscribe := bus.Subscribe(topicScore, func(any) { calls++ })

	bus.Publish(topicScore, nil)
	unsubscribe()
	unsubscribe()
	bus.Publish(topicScore, nil)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if n := bus.SubscriberCount(topicScore); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestBus_RemovalDuringPublish(t *testing.T) {
	bus := New()
	var secondCalls int
	var unsubscribeSecond func()

	bus.Subscribe(topicScore, func(any) { unsubscribeSecond() })
	unsubscribeSecond = bus.Subscribe(topicScore, func(any) { secondCalls++ })

	bus.Publish(topicScore, nil)
	if secondCalls != 0 {
		t.Fatalf("handler removed mid-publish must not be called")
	}
}

func TestBus_SubscribeDuringPublishSeesNextEventOnly(t *testing.T) {
	bus := New()
	lateCalls := 0
	registered := false

	bus.Subscribe(topicScore, func(any) {
		if registered {
			return
		}
		registered = true
		bus.Subscribe(topicScore, func(any) { lateCalls++ })
	})

	bus.Publish(topicScore, nil)
	if lateCalls != 0 {
		t.Fatalf("late handler must not see the in-flight event")
	}
	bus.Publish(topicScore, nil)
	if lateCalls != 1 {
		t.Fatalf("late handler must see later events, got %d", lateCalls)
	}
}

func TestBus_Clear(t *testing.T) {
	bus := New()
	calls := 0
	bus.Subscribe(topicScore, func(any) { calls++ })
	bus.Clear()
	bus.Publish(topicScore, nil)
	if calls != 0 {
		t.Fatalf("expected no calls after Clear, got %d", calls)
	}
}
