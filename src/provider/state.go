package provider

import "strings"

// BuildState is the lifecycle state of a build. Known states are the
// constants below; anything else the API reports is preserved verbatim
// through UnknownState so newer Buildkite states round-trip untouched.
type BuildState struct {
	raw   string
	known bool
}

var (
	StateScheduled     = BuildState{raw: "scheduled", known: true}
	StateRunning       = BuildState{raw: "running", known: true}
	StateBlocked       = BuildState{raw: "blocked", known: true}
	StateCanceling     = BuildState{raw: "canceling", known: true}
	StateWaiting       = BuildState{raw: "waiting", known: true}
	StatePassed        = BuildState{raw: "passed", known: true}
	StateFailed        = BuildState{raw: "failed", known: true}
	StateCanceled      = BuildState{raw: "canceled", known: true}
	StateSkipped       = BuildState{raw: "skipped", known: true}
	StateNotRun        = BuildState{raw: "not_run", known: true}
	StateWaitingFailed = BuildState{raw: "waiting_failed", known: true}
)

// KnownStates lists every known state in display order.
var KnownStates = []BuildState{
	StateRunning,
	StateBlocked,
	StateCanceling,
	StateScheduled,
	StateWaiting,
	StateFailed,
	StateWaitingFailed,
	StateCanceled,
	StatePassed,
	StateSkipped,
	StateNotRun,
}

// unknownSortOrder places unrecognised states after the active ones and
// before every completed state.
const unknownSortOrder = 5

var sortOrders = map[string]int{
	"running":        0,
	"blocked":        1,
	"canceling":      2,
	"scheduled":      3,
	"waiting":        4,
	"failed":         6,
	"waiting_failed": 7,
	"canceled":       8,
	"passed":         9,
	"skipped":        10,
	"not_run":        11,
}

// ParseBuildState maps an API state string to a BuildState.
// "cancelled" and "notrun" spellings are accepted.
func ParseBuildState(raw string) BuildState {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "cancelled":
		normalized = "canceled"
	case "cancelling":
		normalized = "canceling"
	case "notrun", "not-run":
		normalized = "not_run"
	}
	if _, ok := sortOrders[normalized]; ok {
		return BuildState{raw: normalized, known: true}
	}
	return UnknownState(raw)
}

// UnknownState wraps a state string the client does not recognise.
func UnknownState(raw string) BuildState {
	return BuildState{raw: raw}
}

// Raw returns the provider's state string.
func (s BuildState) Raw() string { return s.raw }

// String implements fmt.Stringer.
func (s BuildState) String() string {
	if s.raw == "" {
		return "unknown"
	}
	return s.raw
}

// IsKnown reports whether the state is one of the KnownStates.
func (s BuildState) IsKnown() bool { return s.known }

// IsCompleted reports whether the build has reached a terminal state.
func (s BuildState) IsCompleted() bool {
	if !s.known {
		return false
	}
	switch s.raw {
	case "passed", "failed", "canceled", "skipped", "not_run", "waiting_failed":
		return true
	}
	return false
}

// IsActive reports whether the build is still in flight. Unknown states
// count as active so the completed cap never hides them.
func (s BuildState) IsActive() bool { return !s.IsCompleted() }

// SortOrder is the display rank of the state; lower sorts first.
func (s BuildState) SortOrder() int {
	if !s.known {
		return unknownSortOrder
	}
	return sortOrders[s.raw]
}

// DisplayName is a human label for the state.
func (s BuildState) DisplayName() string {
	switch s.raw {
	case "not_run":
		return "Not Run"
	case "waiting_failed":
		return "Waiting Failed"
	case "":
		return "Unknown"
	}
	if !s.known {
		return "Unknown (" + s.raw + ")"
	}
	return strings.ToUpper(s.raw[:1]) + s.raw[1:]
}

// Symbol is a one-rune glyph for compact listings.
func (s BuildState) Symbol() string {
	switch s.raw {
	case "running":
		return "●"
	case "scheduled", "waiting":
		return "○"
	case "blocked":
		return "◆"
	case "canceling", "canceled":
		return "⊘"
	case "passed":
		return "✓"
	case "failed", "waiting_failed":
		return "✗"
	case "skipped", "not_run":
		return "–"
	}
	return "?"
}
