// Package diagnostics keeps a bounded, in-memory log of the events the
// monitor reports: API failures, start/stop notices and the like.
package diagnostics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"buildwatch/src/broker"
	"buildwatch/src/contracts"
	"buildwatch/src/logger"
	"buildwatch/src/store"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 500

// persistTimeout bounds a single write to the recorder or publisher.
const persistTimeout = 5 * time.Second

// Level is the severity of an entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ParseLevel maps a severity string to a Level. Anything unrecognised maps to LevelError.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelInfo:
		return LevelInfo
	case LevelWarning, "warn":
		return LevelWarning
	}
	return LevelError
}

// Entry is one diagnostic event.
type Entry struct {
	ID        string
	Timestamp time.Time
	Code      string
	Message   string
	Detail    string
	Level     Level
}

// Event converts the entry to its wire form.
func (e Entry) Event() contracts.DiagnosticEvent {
	return contracts.DiagnosticEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Code:      e.Code,
		Message:   e.Message,
		Detail:    e.Detail,
		Level:     string(e.Level),
	}
}

// FromEvent converts a stored event back into an Entry.
func FromEvent(ev contracts.DiagnosticEvent) Entry {
	return Entry{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		Code:      ev.Code,
		Message:   ev.Message,
		Detail:    ev.Detail,
		Level:     ParseLevel(ev.Level),
	}
}

// Log is a bounded ring of entries, safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	ring     []Entry
	start    int
	size     int
	capacity int

	log       logger.Logger
	recorder  store.DiagnosticRecorder
	publisher broker.Broker
	now       func() time.Time
}

// New creates a log holding at most capacity entries. A non-positive
// capacity uses DefaultCapacity.
func New(capacity int, log logger.Logger) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Log{
		ring:     make([]Entry, capacity),
		capacity: capacity,
		log:      log,
		now:      time.Now,
	}
}

// WithRecorder persists every new entry to r.
func (l *Log) WithRecorder(r store.DiagnosticRecorder) *Log {
	l.recorder = r
	return l
}

// WithPublisher publishes every new entry to the diagnostics topic of b.
func (l *Log) WithPublisher(b broker.Broker) *Log {
	l.publisher = b
	return l
}

// WithClock overrides the timestamp source.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Log appends an entry and returns it.
func (l *Log) Log(code, message, detail string, level Level) Entry {
	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Code:      code,
		Message:   message,
		Detail:    detail,
		Level:     level,
	}

	l.mu.Lock()
	idx := (l.start + l.size) % l.capacity
	l.ring[idx] = entry
	if l.size < l.capacity {
		l.size++
	} else {
		l.start = (l.start + 1) % l.capacity
	}
	l.mu.Unlock()

	l.mirror(entry)
	l.persist(entry)
	return entry
}

// Info, Warning and Error are shorthands for Log at that level.
func (l *Log) Info(code, message, detail string) Entry {
	return l.Log(code, message, detail, LevelInfo)
}

func (l *Log) Warning(code, message, detail string) Entry {
	return l.Log(code, message, detail, LevelWarning)
}

func (l *Log) Error(code, message, detail string) Entry {
	return l.Log(code, message, detail, LevelError)
}

func (l *Log) mirror(e Entry) {
	line := "[%s] %s"
	args := []interface{}{e.Code, e.Message}
	if e.Detail != "" {
		line += " (%s)"
		args = append(args, e.Detail)
	}
	switch e.Level {
	case LevelInfo:
		l.log.Info(line, args...)
	case LevelWarning:
		l.log.Warn(line, args...)
	default:
		l.log.Error(line, args...)
	}
}

// persist writes to the recorder and publisher. Failures are logged and
// never returned to the caller.
func (l *Log) persist(e Entry) {
	if l.recorder == nil && l.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if l.recorder != nil {
		if err := l.recorder.RecordDiagnostic(ctx, e.Event()); err != nil {
			l.log.Warn("[Diagnostics] failed to persist %s: %v", e.Code, err)
		}
	}
	if l.publisher != nil {
		data, err := json.Marshal(e.Event())
		if err != nil {
			l.log.Warn("[Diagnostics] failed to marshal %s: %v", e.Code, err)
			return
		}
		if err := l.publisher.Publish(ctx, contracts.TopicDiagnostics, e.Code, data); err != nil {
			l.log.Warn("[Diagnostics] failed to publish %s: %v", e.Code, err)
		}
	}
}

// Entries returns a copy of all entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.ring[(l.start+i)%l.capacity]
	}
	return out
}

// Recent returns up to n entries, newest first. n <= 0 returns everything.
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]Entry, 0, n)
	for i := l.size - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.ring[(l.start+i)%l.capacity])
	}
	return out
}

// Filter returns the entries at level, oldest first.
func (l *Log) Filter(level Level) []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the newest entry.
func (l *Log) Latest() (Entry, bool) {
	recent := l.Recent(1)
	if len(recent) == 0 {
		return Entry{}, false
	}
	return recent[0], true
}

// Clear drops all entries. Persisted copies are kept.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring = make([]Entry, l.capacity)
	l.start = 0
	l.size = 0
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Capacity returns the maximum number of entries held.
func (l *Log) Capacity() int {
	return l.capacity
}
