package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"buildwatch/src/broker"
	"buildwatch/src/contracts"
	"buildwatch/src/logger"
	"buildwatch/src/provider"
	"buildwatch/src/store"
)

func testBuild() provider.Build {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(4*time.Minute + 12*time.Second)
	return provider.Build{
		ID:               "b-42",
		Number:           42,
		PipelineSlug:     "deploy",
		PipelineName:     "Deploy",
		OrganizationSlug: "acme",
		Branch:           "main",
		WebURL:           "https://buildkite.com/acme/deploy/builds/42",
		CreatedAt:        started,
		StartedAt:        &started,
		FinishedAt:       &finished,
	}
}

func TestForTransition_Templates(t *testing.T) {
	tests := []struct {
		to   provider.BuildState
		want string
	}{
		{provider.StateScheduled, "Build #42 is scheduled"},
		{provider.StateRunning, "Build #42 started running"},
		{provider.StatePassed, "Build #42 passed in 4m12s"},
		{provider.StateFailed, "Build #42 failed in 4m12s"},
		{provider.StateBlocked, "Build #42 is blocked and waiting for input"},
		{provider.StateCanceled, "Build #42 was canceled"},
		{provider.StateSkipped, "Build #42 was skipped"},
		{provider.StateNotRun, "Build #42 did not run"},
		{provider.StateWaitingFailed, "Build #42 failed while waiting on a dependency"},
		{provider.StateCanceling, "Build #42 is now Canceling"},
		{provider.UnknownState("limbo"), "Build #42 is now Unknown (limbo)"},
	}

	for _, tt := range tests {
		t.Run(tt.to.String(), func(t *testing.T) {
			n := ForTransition(testBuild(), provider.StateRunning, tt.to)
			if n.Body != tt.want {
				t.Errorf("Body = %q, want %q", n.Body, tt.want)
			}
			if n.Title != "Deploy" || n.Subtitle != "main" {
				t.Errorf("Title/Subtitle = %q/%q", n.Title, n.Subtitle)
			}
			if n.From != provider.StateRunning || n.To != tt.to {
				t.Errorf("From/To = %v/%v", n.From, n.To)
			}
		})
	}
}

func TestForTransition_FallsBackToSlug(t *testing.T) {
	b := testBuild()
	b.PipelineName = ""
	b.FinishedAt = nil

	n := ForTransition(b, provider.StateRunning, provider.StatePassed)
	if n.Title != "deploy" {
		t.Errorf("Title = %q, want slug", n.Title)
	}
	if n.Body != "Build #42 passed" {
		t.Errorf("Body = %q, want no duration", n.Body)
	}
}

func TestNotification_Event(t *testing.T) {
	n := ForTransition(testBuild(), provider.StateRunning, provider.StateFailed)
	ev := n.Event()
	if ev.BuildID != "b-42" || ev.Organization != "acme" || ev.Pipeline != "deploy" {
		t.Errorf("identity = %+v", ev)
	}
	if ev.FromState != "running" || ev.ToState != "failed" {
		t.Errorf("states = %s -> %s", ev.FromState, ev.ToState)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(logger.NewWriterLogger(&buf))

	if err := sink.Notify(context.Background(), ForTransition(testBuild(), provider.StateRunning, provider.StatePassed)); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Deploy (main): Build #42 passed in 4m12s [running -> passed]") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestBrokerSink(t *testing.T) {
	b := broker.NewInMemoryBroker()
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), contracts.TopicTransitions, "test")
	sink := NewBrokerSink(b)

	if err := sink.Notify(context.Background(), ForTransition(testBuild(), provider.StateRunning, provider.StatePassed)); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Key != "b-42" {
			t.Errorf("Key = %q, want build id", msg.Key)
		}
		var ev contracts.TransitionEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.ToState != "passed" || ev.Body != "Build #42 passed in 4m12s" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for transition event")
	}

	b.Close()
	if err := sink.Notify(context.Background(), ForTransition(testBuild(), provider.StateRunning, provider.StatePassed)); err == nil {
		t.Error("expected error publishing to closed broker")
	}
}

func TestRecorderSink(t *testing.T) {
	st := store.NewMemoryStore()
	sink := NewRecorderSink(st)

	sink.Notify(context.Background(), ForTransition(testBuild(), provider.StateRunning, provider.StateFailed))

	got, _ := st.RecentTransitions(context.Background(), 10)
	if len(got) != 1 || got[0].ToState != "failed" {
		t.Errorf("stored transitions = %+v", got)
	}
}

type recordingSink struct {
	mu  sync.Mutex
	got []Notification
	err error
}

func (r *recordingSink) Notify(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func TestMultiSink_TriesAllAndReturnsFirstError(t *testing.T) {
	first := &recordingSink{err: errors.New("first")}
	second := &recordingSink{err: errors.New("second")}
	third := &recordingSink{}

	err := MultiSink{first, second, third}.Notify(context.Background(), ForTransition(testBuild(), provider.StateRunning, provider.StatePassed))
	if err == nil || err.Error() != "first" {
		t.Errorf("error = %v, want first", err)
	}
	for i, s := range []*recordingSink{first, second, third} {
		if len(s.got) != 1 {
			t.Errorf("sink %d received %d notifications, want 1", i, len(s.got))
		}
	}
}

func TestFilterSink(t *testing.T) {
	tests := []struct {
		name   string
		states []string
		to     provider.BuildState
		want   bool
	}{
		{"default passes completed", nil, provider.StatePassed, true},
		{"default passes blocked", nil, provider.StateBlocked, true},
		{"default passes scheduled", nil, provider.StateScheduled, true},
		{"default passes running", nil, provider.StateRunning, true},
		{"default passes unknown", nil, provider.UnknownState("limbo"), true},
		{"explicit list", []string{"failed", " running "}, provider.StateRunning, true},
		{"explicit list excludes others", []string{"failed"}, provider.StatePassed, false},
		{"aliases are normalised", []string{"cancelled"}, provider.StateCanceled, true},
		{"blank entries use default", []string{"", " "}, provider.StateRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingSink{}
			f := NewFilterSink(next, tt.states)
			f.Notify(context.Background(), ForTransition(testBuild(), provider.StateScheduled, tt.to))
			if got := len(next.got) == 1; got != tt.want {
				t.Errorf("forwarded = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSinkFunc(t *testing.T) {
	called := false
	var s Sink = SinkFunc(func(ctx context.Context, n Notification) error {
		called = true
		return nil
	})
	s.Notify(context.Background(), Notification{})
	if !called {
		t.Error("SinkFunc was not invoked")
	}
}
