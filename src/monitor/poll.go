package monitor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"buildwatch/src/diagnostics"
	"buildwatch/src/metrics"
	"buildwatch/src/notify"
	"buildwatch/src/provider"
)

// transition is a tracked build observed in a new state.
type transition struct {
	build provider.Build
	from  provider.BuildState
	to    provider.BuildState
}

// manualFailure is a manual reference that could not be fetched this cycle.
type manualFailure struct {
	ref provider.BuildRef
	err *provider.Error
}

// Poll runs one cycle: fetch the user's feed and every manual reference,
// merge them into the tracked set and publish the result. Only one cycle
// runs at a time; a concurrent call returns ErrCycleInProgress.
//
// A feed failure leaves the tracked set untouched. Unauthorized and
// organization-not-found failures also stop monitoring.
func (e *Engine) Poll(ctx context.Context) error {
	if !e.cycling.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	defer e.cycling.Store(false)

	e.mu.Lock()
	client, org, user, gen := e.client, e.org, e.user, e.generation
	refs := append([]provider.BuildRef(nil), e.manualRefs...)
	e.mu.Unlock()

	if client == nil {
		return ErrNotConfigured
	}

	start := e.now()

	if user == nil {
		u, err := client.GetCurrentUser(ctx)
		if err != nil {
			e.metrics.ObservePoll(metrics.ResultError, e.now().Sub(start))
			return e.fail(gen, err)
		}
		user = u
		e.mu.Lock()
		if gen == e.generation {
			e.user = u
		}
		e.mu.Unlock()
	}

	feed, err := client.ListUserBuilds(ctx, org, user.ID, e.pageSize)
	if err != nil {
		e.metrics.ObservePoll(metrics.ResultError, e.now().Sub(start))
		return e.fail(gen, err)
	}

	manual, resolved, failures := e.fetchManual(ctx, client, refs)
	merged := MergeFetched(feed, manual)

	return e.apply(gen, merged, resolved, failures, start)
}

// fetchManual fetches every reference with bounded parallelism. All fetches
// complete before it returns. resolved maps each fetched reference to the
// build ID it returned.
func (e *Engine) fetchManual(ctx context.Context, client provider.Client, refs []provider.BuildRef) (fetched []provider.Build, resolved map[provider.BuildRef]string, failures []manualFailure) {
	if len(refs) == 0 {
		return nil, nil, nil
	}

	builds := make([]*provider.Build, len(refs))
	errs := make([]error, len(refs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			builds[i], errs[i] = client.GetBuild(ctx, ref.Org, ref.Pipeline, ref.Number)
			return nil
		})
	}
	_ = g.Wait()

	resolved = make(map[provider.BuildRef]string, len(refs))
	for i, ref := range refs {
		if errs[i] != nil {
			failures = append(failures, manualFailure{ref: ref, err: provider.Classify(errs[i])})
			continue
		}
		b := *builds[i]
		b.AddedManually = true
		fetched = append(fetched, b)
		resolved[ref] = b.ID
	}
	return fetched, resolved, failures
}

// apply merges a successful cycle into the tracked set, unless the
// generation moved on while it was fetching.
func (e *Engine) apply(gen uint64, fetched []provider.Build, resolved map[provider.BuildRef]string, failures []manualFailure, start time.Time) error {
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		e.metrics.ObservePoll(metrics.ResultDiscarded, e.now().Sub(start))
		return ErrCycleDiscarded
	}

	for ref, id := range resolved {
		if e.hasRefLocked(ref) {
			e.refIDs[ref] = id
		}
	}
	transitions := e.reconcileLocked(fetched)
	e.hasFetched = true
	e.lastUpdated = e.now()
	e.errState = nil
	org := e.org
	e.mu.Unlock()

	for _, f := range failures {
		e.report(f.err, org, fmt.Sprintf("manual reference %s: %s", f.ref, f.err.Detail()))
	}
	e.metrics.ObservePoll(metrics.ResultSuccess, e.now().Sub(start))
	e.dispatch(transitions)
	e.publish()
	return nil
}

// reconcileLocked merges fetched builds into the tracked set and returns the
// transitions observed. Dismissed builds are skipped; first observations are
// never transitions.
func (e *Engine) reconcileLocked(fetched []provider.Build) []transition {
	var transitions []transition
	for _, b := range fetched {
		if _, dismissed := e.dismissed[b.ID]; dismissed {
			continue
		}
		if old, ok := e.tracked[b.ID]; ok {
			if old.AddedManually {
				b.AddedManually = true
			}
			if old.State != b.State {
				transitions = append(transitions, transition{build: b, from: old.State, to: b.State})
			}
		}
		e.tracked[b.ID] = b
	}
	e.republishLocked()
	return transitions
}

// republishLocked rebuilds the published list: sorted, with completed feed
// builds capped. Builds evicted by the cap leave the tracked set; manual
// builds are never evicted, so their references stay.
func (e *Engine) republishLocked() {
	all := make([]provider.Build, 0, len(e.tracked))
	for _, b := range e.tracked {
		all = append(all, b)
	}
	SortBuilds(all)

	active, completed := PartitionBuilds(all)
	kept, evicted := CapCompleted(completed, MaxCompletedBuilds)
	for _, b := range evicted {
		delete(e.tracked, b.ID)
	}

	e.published = append(active, kept...)
	e.metrics.SetTracked(len(active), len(kept))
}

// fail classifies err, records it as the error state and reports it.
// Non-transient failures stop monitoring. Failures from a stale generation
// are dropped.
func (e *Engine) fail(gen uint64, err error) error {
	perr := provider.Classify(err)

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return ErrCycleDiscarded
	}
	e.errState = newErrorState(perr, e.org, e.now())
	stop := e.running && !perr.IsTransient()
	org := e.org
	e.mu.Unlock()

	e.report(perr, org, perr.Detail())
	if stop {
		e.StopMonitoring()
	} else {
		e.publish()
	}
	return perr
}

// report appends a classified error to the diagnostic log.
func (e *Engine) report(perr *provider.Error, org, detail string) {
	e.metrics.IncAPIError(perr.Code())
	e.diag.Log(perr.Code(), perr.UserMessage(org), detail, diagnostics.ParseLevel(perr.Severity()))
}

// dispatch delivers notifications without blocking the caller. Sink
// failures are logged only.
func (e *Engine) dispatch(transitions []transition) {
	for _, t := range transitions {
		e.metrics.IncTransition(t.from.String(), t.to.String())
		n := notify.ForTransition(t.build, t.from, t.to)
		n.ObservedAt = e.now()

		e.notifyWG.Add(1)
		go func() {
			defer e.notifyWG.Done()
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := e.notifier.Notify(ctx, n); err != nil {
				e.log.Warn("[Monitor] notification for build %s failed: %v", n.Build.ID, err)
			}
		}()
	}
}
