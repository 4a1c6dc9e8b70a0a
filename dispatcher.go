package authcore

import (
	"context"
	"sync"
	"sync/atomic"
)

// Dispatcher decouples event emission from event consumption: it is a Sink
// that forwards to a wrapped Sink on a dedicated goroutine, so a slow
// consumer never blocks the authority's request path. Install it via
// [WithSink] around any other sink.
type Dispatcher struct {
	sink       Sink
	ch         chan Event
	done       chan struct{}
	wg         sync.WaitGroup
	dropIfFull bool
	dropped    atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once
}

// NewDispatcher wraps sink with an asynchronous buffer. When dropIfFull is
// set, Emit discards events instead of waiting once the buffer is full;
// discards are counted and visible through Dropped.
func NewDispatcher(sink Sink, buffer int, dropIfFull bool) *Dispatcher {
	if sink == nil {
		sink = NoOpSink{}
	}
	if buffer <= 0 {
		buffer = 1
	}

	d := &Dispatcher{
		sink:       sink,
		ch:         make(chan Event, buffer),
		done:       make(chan struct{}),
		dropIfFull: dropIfFull,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain whatever was buffered before shutdown.
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit enqueues the event for asynchronous delivery. After Close it is a
// no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops the delivery goroutine after draining buffered events. Safe
// to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many events were discarded because the buffer was
// full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
