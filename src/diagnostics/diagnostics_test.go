package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"buildwatch/src/broker"
	"buildwatch/src/contracts"
	"buildwatch/src/logger"
	"buildwatch/src/store"
)

func TestLog_EvictsOldestFirst(t *testing.T) {
	l := New(3, nil)
	for i := 0; i < 5; i++ {
		l.Info("MON-START", fmt.Sprintf("event %d", i), "")
	}

	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	entries := l.Entries()
	for i, want := range []string{"event 2", "event 3", "event 4"} {
		if entries[i].Message != want {
			t.Errorf("Entries()[%d] = %q, want %q", i, entries[i].Message, want)
		}
	}

	recent := l.Recent(2)
	if len(recent) != 2 || recent[0].Message != "event 4" || recent[1].Message != "event 3" {
		t.Errorf("Recent(2) = %+v", recent)
	}
	if len(l.Recent(0)) != 3 {
		t.Error("Recent(0) should return everything")
	}
}

func TestLog_EntryFields(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := New(0, nil).WithClock(func() time.Time { return fixed })

	e := l.Log("NET-001", "Network error talking to Buildkite.", "dial tcp: refused", LevelWarning)
	if e.ID == "" {
		t.Error("entry should have an ID")
	}
	if !e.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", e.Timestamp, fixed)
	}
	if e.Detail != "dial tcp: refused" || e.Level != LevelWarning {
		t.Errorf("entry = %+v", e)
	}
	if l.Capacity() != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", l.Capacity(), DefaultCapacity)
	}

	other := l.Info("MON-STOP", "stopped", "")
	if other.ID == e.ID {
		t.Error("entry IDs should be unique")
	}
	latest, ok := l.Latest()
	if !ok || latest.ID != other.ID {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}
}

func TestLog_FilterAndClear(t *testing.T) {
	l := New(10, nil)
	l.Info("MON-START", "started", "")
	l.Warning("RATE-429", "rate limited", "")
	l.Error("AUTH-401", "bad token", "")
	l.Warning("NET-001", "offline", "")

	warnings := l.Filter(LevelWarning)
	if len(warnings) != 2 || warnings[0].Code != "RATE-429" {
		t.Errorf("Filter(warning) = %+v", warnings)
	}

	l.Clear()
	if l.Len() != 0 || len(l.Entries()) != 0 {
		t.Error("Clear() should empty the log")
	}
	if _, ok := l.Latest(); ok {
		t.Error("Latest() on empty log should report false")
	}

	l.Info("MON-START", "again", "")
	if l.Len() != 1 {
		t.Errorf("Len() after Clear and append = %d", l.Len())
	}
}

func TestLog_MirrorsToLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(5, logger.NewWriterLogger(&buf))

	l.Error("AUTH-401", "Authentication failed.", "HTTP 401")
	l.Warning("NET-001", "Network error", "")

	out := buf.String()
	if !strings.Contains(out, "[ERROR] [AUTH-401] Authentication failed. (HTTP 401)") {
		t.Errorf("missing error line in %q", out)
	}
	if !strings.Contains(out, "[WARN] [NET-001] Network error") {
		t.Errorf("missing warning line in %q", out)
	}
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) RecordDiagnostic(ctx context.Context, event contracts.DiagnosticEvent) error {
	f.calls++
	return errors.New("disk full")
}

func TestLog_PersistsToRecorder(t *testing.T) {
	st := store.NewMemoryStore()
	l := New(5, nil).WithRecorder(st)

	e := l.Error("DECODE-001", "Could not read the Buildkite response.", "unexpected EOF")

	stored, err := st.RecentDiagnostics(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentDiagnostics() error = %v", err)
	}
	if len(stored) != 1 || stored[0].ID != e.ID || stored[0].Level != "error" {
		t.Fatalf("stored = %+v", stored)
	}
	if FromEvent(stored[0]) != e {
		t.Errorf("FromEvent() = %+v, want %+v", FromEvent(stored[0]), e)
	}
}

func TestLog_RecorderFailureIsNotFatal(t *testing.T) {
	var buf bytes.Buffer
	rec := &failingRecorder{}
	l := New(5, logger.NewWriterLogger(&buf)).WithRecorder(rec)

	l.Info("MON-START", "started", "")
	if rec.calls != 1 || l.Len() != 1 {
		t.Errorf("calls = %d, len = %d", rec.calls, l.Len())
	}
	if !strings.Contains(buf.String(), "failed to persist MON-START") {
		t.Errorf("expected persistence warning, got %q", buf.String())
	}
}

func TestLog_PublishesToBroker(t *testing.T) {
	b := broker.NewInMemoryBroker()
	defer b.Close()

	ch, err := b.Subscribe(context.Background(), contracts.TopicDiagnostics, "test")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	l := New(5, nil).WithPublisher(b)
	e := l.Warning("RATE-429", "rate limited", "")

	select {
	case msg := <-ch:
		var ev contracts.DiagnosticEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Key != "RATE-429" || ev.ID != e.ID || ev.Level != "warning" {
			t.Errorf("published %s = %+v", msg.Key, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for published diagnostic")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"info":    LevelInfo,
		"warning": LevelWarning,
		"warn":    LevelWarning,
		"error":   LevelError,
		"bogus":   LevelError,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
