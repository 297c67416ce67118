package provider

import (
	"testing"
	"time"
)

func TestParseBuildState(t *testing.T) {
	tests := []struct {
		raw       string
		want      BuildState
		completed bool
	}{
		{"scheduled", StateScheduled, false},
		{"running", StateRunning, false},
		{"blocked", StateBlocked, false},
		{"canceling", StateCanceling, false},
		{"cancelling", StateCanceling, false},
		{"waiting", StateWaiting, false},
		{"passed", StatePassed, true},
		{"failed", StateFailed, true},
		{"canceled", StateCanceled, true},
		{"cancelled", StateCanceled, true},
		{"skipped", StateSkipped, true},
		{"not_run", StateNotRun, true},
		{"waiting_failed", StateWaitingFailed, true},
		{"PASSED", StatePassed, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseBuildState(tt.raw)
			if got != tt.want {
				t.Errorf("ParseBuildState(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			if got.IsCompleted() != tt.completed {
				t.Errorf("IsCompleted() = %v, want %v", got.IsCompleted(), tt.completed)
			}
		})
	}
}

func TestUnknownStatePreservesRaw(t *testing.T) {
	s := ParseBuildState("failing")
	if s.IsKnown() {
		t.Fatal("failing should not be a known state")
	}
	if s.Raw() != "failing" {
		t.Errorf("Raw() = %q, want failing", s.Raw())
	}
	if !s.IsActive() || s.IsCompleted() {
		t.Error("unknown states are classified active")
	}
	if s != UnknownState("failing") {
		t.Error("unknown states with equal raw values should compare equal")
	}
	if s == UnknownState("creating") {
		t.Error("unknown states with different raw values should differ")
	}
}

func TestStateClassificationIsExclusive(t *testing.T) {
	states := append([]BuildState{UnknownState("x"), UnknownState("")}, KnownStates...)
	for _, s := range states {
		if s.IsActive() == s.IsCompleted() {
			t.Errorf("%v: IsActive() = %v, IsCompleted() = %v", s, s.IsActive(), s.IsCompleted())
		}
	}
}

func TestSortOrderGroupsActiveBeforeCompleted(t *testing.T) {
	maxActive, minCompleted := -1, 1<<30
	for _, s := range append(KnownStates, UnknownState("x")) {
		if s.IsActive() && s.SortOrder() > maxActive {
			maxActive = s.SortOrder()
		}
		if s.IsCompleted() && s.SortOrder() < minCompleted {
			minCompleted = s.SortOrder()
		}
	}
	if maxActive >= minCompleted {
		t.Errorf("active ranks (max %d) must precede completed ranks (min %d)", maxActive, minCompleted)
	}

	for i := 1; i < len(KnownStates); i++ {
		if KnownStates[i-1].SortOrder() >= KnownStates[i].SortOrder() {
			t.Errorf("KnownStates not in display order at %v", KnownStates[i])
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := StateNotRun.DisplayName(); got != "Not Run" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := StatePassed.DisplayName(); got != "Passed" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := UnknownState("failing").DisplayName(); got != "Unknown (failing)" {
		t.Errorf("DisplayName() = %q", got)
	}
}

func TestBuild_SortTimeAndDuration(t *testing.T) {
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(time.Minute)
	finished := started.Add(5 * time.Minute)

	b := Build{CreatedAt: created}
	if !b.SortTime().Equal(created) {
		t.Errorf("SortTime() = %v, want createdAt", b.SortTime())
	}
	if b.Duration(finished) != 0 {
		t.Error("unstarted build should have zero duration")
	}

	b.StartedAt = &started
	if !b.SortTime().Equal(started) {
		t.Errorf("SortTime() = %v, want startedAt", b.SortTime())
	}
	if got := b.Duration(started.Add(2 * time.Minute)); got != 2*time.Minute {
		t.Errorf("Duration() = %v, want 2m", got)
	}

	b.FinishedAt = &finished
	if got := b.Duration(finished.Add(time.Hour)); got != 5*time.Minute {
		t.Errorf("Duration() = %v, want 5m", got)
	}
}
