package events

import "testing"

func TestBusFanOut(t *testing.T) {
	b := NewBus[string](2)
	c1, cancel1 := b.Subscribe()
	c2, cancel2 := b.Subscribe()
	defer cancel2()

	if n := b.Publish("a"); n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	if got := <-c1; got != "a" {
		t.Fatalf("c1 got %q", got)
	}
	if got := <-c2; got != "a" {
		t.Fatalf("c2 got %q", got)
	}

	cancel1()
	if _, ok := <-c1; ok {
		t.Fatalf("expected c1 closed after cancel")
	}
	cancel1()
	if n := b.Publish("b"); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
}

func TestBusPublishDoesNotBlock(t *testing.T) {
	b := NewBus[int](1)
	ch, cancel := b.Subscribe()
	defer cancel()

	if n := b.Publish(1); n != 1 {
		t.Fatalf("first publish delivered %d", n)
	}
	if n := b.Publish(2); n != 0 {
		t.Fatalf("full buffer should drop, delivered %d", n)
	}
	if got := <-ch; got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestBusClose(t *testing.T) {
	b := NewBus[int](1)
	ch, cancel := b.Subscribe()
	b.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	cancel()
	late, _ := b.Subscribe()
	if _, ok := <-late; ok {
		t.Fatalf("subscription on closed bus should be closed")
	}
	if n := b.Publish(1); n != 0 {
		t.Fatalf("publish after close delivered %d", n)
	}
}
