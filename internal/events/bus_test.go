package events

import "testing"

func TestPublishFansOut(t *testing.T) {
	b := NewBus()
	a, unsubA := b.Subscribe(EventSignal, 4)
	c, unsubC := b.Subscribe(EventSignal, 4)
	defer unsubA()
	defer unsubC()

	b.Publish(EventSignal, "payload")

	if got := <-a; got != "payload" {
		t.Errorf("subscriber a: got %v", got)
	}
	if got := <-c; got != "payload" {
		t.Errorf("subscriber c: got %v", got)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := NewBus()
	_, unsub := b.Subscribe(EventSignal, 1)
	defer unsub()

	// Second publish overflows the buffer; it must drop, not stall.
	b.Publish(EventSignal, 1)
	b.Publish(EventSignal, 2)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventSignal, 1)
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("channel must be closed after unsubscribe")
	}

	// Publishing after unsubscribe reaches nobody and must not panic.
	b.Publish(EventSignal, "late")
}

func TestPublishIgnoresOtherTopics(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventOrderFilled, 1)
	defer unsub()

	b.Publish(EventSignal, "wrong topic")

	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %v", v)
	default:
	}
}
