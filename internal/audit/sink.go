package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/meridian-care/platform/internal/shared/errors"
	"github.com/meridian-care/platform/internal/shared/metrics"
)

// Sink receives audit events. Implementations must serialize their own
// writes; callers treat LogEvent as fire-and-forget append.
type Sink interface {
	LogEvent(ctx context.Context, event Event) error
}

// MemorySink keeps events in memory, for tests and local runs.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// LogEvent appends the event.
func (s *MemorySink) LogEvent(_ context.Context, event Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	metrics.RecordAuditEvent(event.Action)
	return nil
}

// Events returns a copy of all logged events in append order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsFor returns logged events matching an action.
func (s *MemorySink) EventsFor(action string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// FileSink appends events as JSON lines to a log file.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates a file sink, creating the parent directory if
// needed.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create audit log directory")
		}
	}
	return &FileSink{path: path}, nil
}

// LogEvent appends one JSON line per event.
func (s *FileSink) LogEvent(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to open audit log")
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "failed to append audit event")
	}
	metrics.RecordAuditEvent(event.Action)
	return nil
}

// ReadAll reads back every event in the log file, in append order.
func (s *FileSink) ReadAll() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read audit log")
	}

	var events []Event
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1
			if len(line) == 0 {
				continue
			}
			var e Event
			if err := json.Unmarshal(line, &e); err != nil {
				return nil, errors.Wrap(err, "corrupt audit log line")
			}
			events = append(events, e)
		}
	}
	return events, nil
}
