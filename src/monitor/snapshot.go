package monitor

import (
	"fmt"
	"time"

	"buildwatch/src/provider"
)

// ErrorState is the current error shown to the user as a banner. It is
// cleared by the next successful cycle.
type ErrorState struct {
	Kind      provider.ErrorKind
	Code      string
	Message   string
	Detail    string
	Transient bool
	At        time.Time
}

func newErrorState(err *provider.Error, org string, at time.Time) *ErrorState {
	return &ErrorState{
		Kind:      err.Kind,
		Code:      err.Code(),
		Message:   err.UserMessage(org),
		Detail:    err.Detail(),
		Transient: err.IsTransient(),
		At:        at,
	}
}

// Banner renders the error with its short code.
func (s ErrorState) Banner() string {
	return fmt.Sprintf("%s [%s]", s.Message, s.Code)
}

// Snapshot is a consistent copy of the engine's published state.
type Snapshot struct {
	Builds    []provider.Build
	Active    []provider.Build
	Completed []provider.Build

	ManualRefs   []provider.BuildRef
	IsMonitoring bool
	// HasFetched distinguishes "still loading" from "confirmed empty".
	HasFetched   bool
	LastUpdated  time.Time
	Error        *ErrorState
	User         *provider.User
	Org          string
	PollInterval time.Duration
}

// Snapshot returns a copy of the published state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	builds := append([]provider.Build(nil), e.published...)
	active, completed := PartitionBuilds(builds)

	s := Snapshot{
		Builds:       builds,
		Active:       active,
		Completed:    completed,
		ManualRefs:   append([]provider.BuildRef(nil), e.manualRefs...),
		IsMonitoring: e.running,
		HasFetched:   e.hasFetched,
		LastUpdated:  e.lastUpdated,
		Org:          e.org,
		PollInterval: e.interval,
	}
	if e.errState != nil {
		errState := *e.errState
		s.Error = &errState
	}
	if e.user != nil {
		user := *e.user
		s.User = &user
	}
	return s
}

// Builds returns the published tracked set in display order.
func (e *Engine) Builds() []provider.Build {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]provider.Build(nil), e.published...)
}

// Build returns the tracked build with id.
func (e *Engine) Build(id string) (provider.Build, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.tracked[id]
	return b, ok
}

// ErrorState returns the current error, or nil.
func (e *Engine) ErrorState() *ErrorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.errState == nil {
		return nil
	}
	s := *e.errState
	return &s
}

// Subscribe returns a channel that receives the latest snapshot after every
// change. Slow readers only ever see the newest snapshot; the engine never
// blocks on them. Call the returned function to unsubscribe.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subsMu.Unlock()

	cancel := func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// publish pushes a fresh snapshot to subscribers. Taking the snapshot under
// subsMu keeps concurrent publishers from delivering an older one last.
func (e *Engine) publish() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	if len(e.subs) == 0 {
		return
	}

	snap := e.Snapshot()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
