package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestBus() *PubSubBus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishReachesSubscriber(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	sub := b.Subscribe("ping.new")
	b.Publish("ping.new", 42)

	select {
	case msg := <-sub:
		if msg != 42 {
			t.Fatalf("got %v, want 42", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message never arrived")
	}
}

func TestSubscribeMultipleTopics(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	sub := b.Subscribe("a", "b")
	b.Publish("a", "first")
	b.Publish("b", "second")

	for _, want := range []string{"first", "second"} {
		select {
		case msg := <-sub:
			if msg != want {
				t.Fatalf("got %v, want %q", msg, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("%q never arrived", want)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	sub := b.Subscribe("a")
	b.Unsubscribe(sub, "a")
	b.Publish("a", 1)

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatal("message delivered after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
	}
}
