package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// MemorySink buffers exported events for test assertions.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Export appends the event to the in-memory buffer.
func (s *MemorySink) Export(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything exported so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Logs returns exported log events only.
func (s *MemorySink) Logs() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, event := range s.events {
		if event.Kind == EventKindLog {
			out = append(out, event)
		}
	}
	return out
}

// WriterSink exports events as JSON lines, one event per line.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps a writer (typically stderr) as a sink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Export writes the event as one JSON line.
func (s *WriterSink) Export(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(payload); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n"))
	return err
}
