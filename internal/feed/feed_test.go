package feed

import "testing"

func TestTopic_SubscribeReplaysLast(t *testing.T) {
	topic := NewTopic[int]()
	topic.Publish(42)

	ch, cancel := topic.Subscribe()
	defer cancel()

	select {
	case v := <-ch:
		if v != 42 {
			t.Errorf("replayed value = %d, want 42", v)
		}
	default:
		t.Fatal("expected last value to be replayed on subscribe")
	}
}

func TestTopic_SubscribeBeforeFirstPublish(t *testing.T) {
	topic := NewTopic[int]()

	ch, cancel := topic.Subscribe()
	defer cancel()

	select {
	case v := <-ch:
		t.Fatalf("unexpected value %d before any publish", v)
	default:
	}
}

func TestTopic_LatestWins(t *testing.T) {
	topic := NewTopic[int]()
	ch, cancel := topic.Subscribe()
	defer cancel()

	// The subscriber never reads between publishes, so only the newest
	// value must remain pending.
	topic.Publish(1)
	topic.Publish(2)
	topic.Publish(3)

	if v := <-ch; v != 3 {
		t.Errorf("pending value = %d, want 3", v)
	}
	select {
	case v := <-ch:
		t.Fatalf("unexpected second pending value %d", v)
	default:
	}
}

func TestTopic_Last(t *testing.T) {
	topic := NewTopic[string]()

	if _, ok := topic.Last(); ok {
		t.Fatal("Last() reported a value before any publish")
	}

	topic.Publish("a")
	topic.Publish("b")

	v, ok := topic.Last()
	if !ok || v != "b" {
		t.Errorf("Last() = %q, %v; want \"b\", true", v, ok)
	}
}

func TestTopic_CancelClosesChannel(t *testing.T) {
	topic := NewTopic[int]()
	ch, cancel := topic.Subscribe()

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}

	// Cancel twice and publish after cancel must both be safe.
	cancel()
	topic.Publish(7)
}

func TestTopic_MultipleSubscribers(t *testing.T) {
	topic := NewTopic[int]()

	a, cancelA := topic.Subscribe()
	defer cancelA()
	b, cancelB := topic.Subscribe()
	defer cancelB()

	topic.Publish(5)

	if v := <-a; v != 5 {
		t.Errorf("subscriber a got %d, want 5", v)
	}
	if v := <-b; v != 5 {
		t.Errorf("subscriber b got %d, want 5", v)
	}
}
