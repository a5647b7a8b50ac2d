package dynamicengine

import (
	"context"
	"testing"
	"time"

	"github.com/streamkit/streamkit/internal/channel"
	"github.com/streamkit/streamkit/internal/packet"
)

func TestInputSelectorReceivesFromEitherPin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := channel.New(4, channel.Reliable)
	b := channel.New(4, channel.Reliable)
	sel := newInputSelector(ctx, map[string]*channel.Channel{"a": a, "b": b})

	if err := b.Send(packet.NewText("hello")); err != nil {
		t.Fatal(err)
	}
	pin, rv, done := sel.recv()
	if done {
		t.Fatal("unexpected done")
	}
	if pin != "b" {
		t.Fatalf("expected pin b, got %s", pin)
	}
	if rv.err != nil {
		t.Fatalf("unexpected error: %v", rv.err)
	}
	if rv.packet.Text != "hello" {
		t.Fatalf("unexpected packet: %+v", rv.packet)
	}
}

func TestInputSelectorDropsPinOnEndOfStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := channel.New(4, channel.Reliable)
	b := channel.New(4, channel.Reliable)
	sel := newInputSelector(ctx, map[string]*channel.Channel{"a": a, "b": b})

	a.Close()
	deadline := time.After(time.Second)
	for {
		pin, rv, done := sel.recv()
		if done {
			t.Fatal("both pins should not be exhausted yet, b is still open")
		}
		if pin == "a" {
			if rv.err != channel.EndOfStream {
				t.Fatalf("expected EndOfStream on a, got %v", rv.err)
			}
			sel.dropPin("a")
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for end-of-stream on pin a")
		default:
		}
	}

	if err := b.Send(packet.NewText("still alive")); err != nil {
		t.Fatal(err)
	}
	pin, rv, done := sel.recv()
	if done || pin != "b" || rv.packet.Text != "still alive" {
		t.Fatalf("expected live packet on b, got pin=%s rv=%+v done=%v", pin, rv, done)
	}
}

func TestInputSelectorDoneWhenAllPinsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := channel.New(4, channel.Reliable)
	sel := newInputSelector(ctx, map[string]*channel.Channel{"a": a})
	sel.dropPin("a")

	_, _, done := sel.recv()
	if !done {
		t.Fatal("expected done once every pin has been dropped")
	}
}

func TestInputSelectorDoneOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := channel.New(4, channel.Reliable)
	sel := newInputSelector(ctx, map[string]*channel.Channel{"a": a})
	cancel()

	_, _, done := sel.recv()
	if !done {
		t.Fatal("expected done after context cancellation")
	}
}
