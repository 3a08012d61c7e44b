package fanout

import (
	"testing"
	"time"
)

func TestPublishAndSubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("alice", 10)
	defer bus.Unsubscribe(sub)

	bus.Publish(Message{Resource: "chunks/1", Value: "hello", HasValue: true})

	select {
	case m := <-sub.C:
		if m.Resource != "chunks/1" {
			t.Errorf("expected chunks/1, got %s", m.Resource)
		}
		if m.Value != "hello" {
			t.Errorf("expected hello, got %s", m.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishRespectsUserWhitelist(t *testing.T) {
	bus := NewBus()
	alice := bus.Subscribe("alice", 10)
	bob := bus.Subscribe("bob", 10)
	defer bus.Unsubscribe(alice)
	defer bus.Unsubscribe(bob)

	bus.Publish(Message{Resource: "chunks/1", Users: []string{"alice"}})

	select {
	case <-alice.C:
	case <-time.After(time.Second):
		t.Fatal("expected alice to receive the message")
	}

	select {
	case <-bob.C:
		t.Fatal("expected bob not to receive the message")
	default:
	}
}

func TestPublishCloseForUsers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("alice", 10)
	defer bus.Unsubscribe(sub)

	bus.Publish(Message{Resource: "chunks/1", CloseForUsers: []string{"alice"}})

	select {
	case <-sub.CloseMe:
	case <-time.After(time.Second):
		t.Fatal("expected close signal")
	}

	select {
	case <-sub.C:
		t.Fatal("expected no regular message delivered alongside a close signal")
	default:
	}
}

func TestSlowSubscriberDropsMessages(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("alice", 1)
	defer bus.Unsubscribe(sub)

	bus.Publish(Message{Resource: "first"})
	bus.Publish(Message{Resource: "second"})

	m := <-sub.C
	if m.Resource != "first" {
		t.Errorf("expected first message, got %s", m.Resource)
	}

	select {
	case <-sub.C:
		t.Error("expected second message to have been dropped")
	default:
	}
}

func TestNextSeqMonotonic(t *testing.T) {
	bus := NewBus()
	a := bus.NextSeq()
	b := bus.NextSeq()
	if b != a+1 {
		t.Fatalf("expected sequential sequence numbers, got %d then %d", a, b)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("alice", 10)
	bus.Unsubscribe(sub)

	bus.Publish(Message{Resource: "chunks/1"})

	select {
	case <-sub.C:
		t.Fatal("expected no delivery after unsubscribe")
	default:
	}
}
