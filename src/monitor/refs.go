package monitor

import (
	"context"
	"errors"
	"fmt"

	"buildwatch/src/provider"
)

// AddBuild starts tracking the build at url. The build is fetched right
// away, marked AddedManually and re-fetched individually on every cycle.
// A previous dismissal of the same build is lifted.
//
// Errors: provider.ErrInvalidURL for unparseable URLs,
// provider.ErrDuplicateBuild when the reference is already tracked, and
// classified fetch errors, which are also reported like cycle failures.
func (e *Engine) AddBuild(ctx context.Context, url string) (provider.Build, error) {
	ref, err := provider.ParseURL(url)
	if err != nil {
		return provider.Build{}, err
	}

	e.mu.Lock()
	client, gen := e.client, e.generation
	duplicate := e.hasRefLocked(ref)
	e.mu.Unlock()

	if client == nil {
		return provider.Build{}, ErrNotConfigured
	}
	if duplicate {
		return provider.Build{}, fmt.Errorf("%w: %s", provider.ErrDuplicateBuild, ref)
	}

	fetched, err := client.GetBuild(ctx, ref.Org, ref.Pipeline, ref.Number)
	if err != nil {
		perr := e.fail(gen, err)
		if errors.Is(perr, ErrCycleDiscarded) {
			return provider.Build{}, provider.Classify(err)
		}
		return provider.Build{}, perr
	}
	build := *fetched
	build.AddedManually = true

	e.mu.Lock()
	// Another caller may have added the same reference while we fetched.
	if e.hasRefLocked(ref) {
		e.mu.Unlock()
		return provider.Build{}, fmt.Errorf("%w: %s", provider.ErrDuplicateBuild, ref)
	}
	delete(e.dismissed, build.ID)
	e.manualRefs = append(e.manualRefs, ref)
	e.refIDs[ref] = build.ID

	var transitions []transition
	if old, ok := e.tracked[build.ID]; ok && old.State != build.State {
		transitions = append(transitions, transition{build: build, from: old.State, to: build.State})
	}
	e.tracked[build.ID] = build
	e.republishLocked()
	e.mu.Unlock()

	e.dispatch(transitions)
	e.publish()
	return build, nil
}

// RemoveBuild dismisses the build: it leaves the tracked set now and is
// ignored by later cycles until re-added by URL. A manually added build also
// loses its reference so it is no longer fetched. Reports whether the build
// was tracked.
func (e *Engine) RemoveBuild(id string) bool {
	e.mu.Lock()
	e.dismissed[id] = struct{}{}
	build, ok := e.tracked[id]
	if ok {
		delete(e.tracked, id)
		e.dropRefsLocked(build)
		e.republishLocked()
	}
	e.mu.Unlock()

	if ok {
		e.publish()
	}
	return ok
}

// ClearCompleted dismisses every completed build and returns how many were removed.
func (e *Engine) ClearCompleted() int {
	e.mu.Lock()
	removed := 0
	for id, b := range e.tracked {
		if !b.State.IsCompleted() {
			continue
		}
		e.dismissed[id] = struct{}{}
		delete(e.tracked, id)
		e.dropRefsLocked(b)
		removed++
	}
	if removed > 0 {
		e.republishLocked()
	}
	e.mu.Unlock()

	if removed > 0 {
		e.publish()
	}
	return removed
}

// ManualRefs returns the references added by URL, in the order they were added.
func (e *Engine) ManualRefs() []provider.BuildRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]provider.BuildRef(nil), e.manualRefs...)
}

// IsDismissed reports whether id is suppressed from the tracked set.
func (e *Engine) IsDismissed(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.dismissed[id]
	return ok
}

func (e *Engine) hasRefLocked(ref provider.BuildRef) bool {
	for _, r := range e.manualRefs {
		if r == ref {
			return true
		}
	}
	return false
}

// dropRefsLocked removes every manual reference that resolves to b.
func (e *Engine) dropRefsLocked(b provider.Build) {
	kept := e.manualRefs[:0]
	for _, ref := range e.manualRefs {
		if e.refIDs[ref] == b.ID || ref == b.Ref() {
			delete(e.refIDs, ref)
			continue
		}
		kept = append(kept, ref)
	}
	e.manualRefs = kept
}
