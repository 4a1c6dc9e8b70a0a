package authcore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDeliversAsynchronously(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(sink, 8, false)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Op: OpIssuePair, Success: true})
	}
	d.Close()

	if got := sink.count.Load(); got != 5 {
		t.Fatalf("delivered %d events, want 5", got)
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	gate := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(gate, 4, false)

	// Fill the buffer while delivery is blocked, then release and close.
	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{Op: OpRevoke})
	}
	close(gate.gate)
	d.Close()
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	gate := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(gate, 1, true)

	// One event occupies the delivery goroutine, one fills the buffer;
	// the rest must be dropped without blocking.
	deadline := time.Now().Add(time.Second)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Op: OpRefresh})
	}
	if time.Now().After(deadline) {
		t.Fatal("Emit blocked in drop-if-full mode")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events to be counted")
	}

	close(gate.gate)
	d.Close()
}

func TestDispatcherEmitAfterCloseIsNoOp(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(sink, 1, false)
	d.Close()

	d.Emit(context.Background(), Event{Op: OpRevokeAll})

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("delivered %d events after close, want 0", got)
	}
}
