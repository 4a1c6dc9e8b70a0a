package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Op names an Authority operation on an emitted [Event].
type Op string

const (
	OpIssuePair    Op = "issue_pair"
	OpVerifyAccess Op = "verify_access"
	OpRefresh      Op = "refresh"
	OpRevoke       Op = "revoke"
	OpRevokeAll    Op = "revoke_all"
)

// Event is a structured record of one Authority operation. Events carry the
// internal failure kind that the public error surface deliberately hides.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Op        Op        `json:"op"`
	Subject   string    `json:"subject,omitempty"`
	TokenID   string    `json:"token_id,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Sink receives Authority events. Emit must not block longer than the
// passed context allows; the Authority never waits on a slow sink beyond
// that.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards all events. It is the default sink.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink buffers events on a channel for asynchronous consumption.
// When the buffer is full, Emit drops the event once the context is done
// rather than blocking the calling request.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line to the wrapped writer,
// serialized by a mutex so concurrent emits never interleave.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(append(data, '\n'))
}
