// Package monitor owns the set of tracked builds. It polls the provider on
// a timer, merges what it fetches with builds the user added by URL,
// detects state transitions and publishes an ordered snapshot for
// presentation layers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"buildwatch/src/config"
	"buildwatch/src/diagnostics"
	"buildwatch/src/logger"
	"buildwatch/src/metrics"
	"buildwatch/src/notify"
	"buildwatch/src/provider"
)

// Diagnostic codes for monitor lifecycle events.
const (
	CodeMonitorStart = "MON-START"
	CodeMonitorStop  = "MON-STOP"
)

// DefaultManualFetchConcurrency bounds parallel fetches of manual references.
const DefaultManualFetchConcurrency = 4

// notifyTimeout bounds delivery of one notification.
const notifyTimeout = 10 * time.Second

var (
	ErrNotConfigured   = errors.New("monitor is not configured: call Configure first")
	ErrCycleInProgress = errors.New("poll cycle already in progress")
	ErrCycleDiscarded  = errors.New("poll cycle discarded: monitoring stopped or restarted")
)

// Options carries the engine's collaborators. Zero values get defaults.
type Options struct {
	// ClientFactory builds the API client from a token. Required.
	ClientFactory provider.ClientFactory

	Diagnostics *diagnostics.Log
	Notifier    notify.Sink
	Logger      logger.Logger
	Metrics     metrics.Recorder

	PollInterval           time.Duration
	PageSize               int
	ManualFetchConcurrency int

	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time
}

// Engine is the single writer of the tracked set. Every mutation runs under
// mu; network calls never do.
type Engine struct {
	factory     provider.ClientFactory
	diag        *diagnostics.Log
	notifier    notify.Sink
	log         logger.Logger
	metrics     metrics.Recorder
	pageSize    int
	concurrency int
	now         func() time.Time

	mu          sync.Mutex
	client      provider.Client
	org         string
	user        *provider.User
	tracked     map[string]provider.Build
	published   []provider.Build
	manualRefs  []provider.BuildRef
	refIDs      map[provider.BuildRef]string
	dismissed   map[string]struct{}
	running     bool
	hasFetched  bool
	lastUpdated time.Time
	errState    *ErrorState
	interval    time.Duration
	generation  uint64
	stopLoop    context.CancelFunc
	resetLoop   chan time.Duration

	cycling  atomic.Bool
	notifyWG sync.WaitGroup

	subsMu  sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// New creates an unconfigured engine.
func New(opts Options) *Engine {
	e := &Engine{
		factory:     opts.ClientFactory,
		diag:        opts.Diagnostics,
		notifier:    opts.Notifier,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		pageSize:    opts.PageSize,
		concurrency: opts.ManualFetchConcurrency,
		now:         opts.Clock,
		interval:    opts.PollInterval,
		tracked:     make(map[string]provider.Build),
		refIDs:      make(map[provider.BuildRef]string),
		dismissed:   make(map[string]struct{}),
		subs:        make(map[int]chan Snapshot),
	}

	if e.log == nil {
		e.log = logger.NewSilentLogger()
	}
	if e.diag == nil {
		e.diag = diagnostics.New(diagnostics.DefaultCapacity, e.log)
	}
	if e.notifier == nil {
		e.notifier = notify.NewLogSink(e.log)
	}
	if e.metrics == nil {
		e.metrics = metrics.NopRecorder{}
	}
	if e.pageSize <= 0 {
		e.pageSize = config.DefaultPageSize
	}
	if e.concurrency <= 0 {
		e.concurrency = DefaultManualFetchConcurrency
	}
	if e.now == nil {
		e.now = time.Now
	}
	if config.ValidatePollInterval(e.interval) != nil {
		e.interval = config.DefaultPollInterval
	}
	return e
}

// Diagnostics returns the log the engine reports to.
func (e *Engine) Diagnostics() *diagnostics.Log {
	return e.diag
}

// Configure sets the credentials and organization used by later cycles.
// Switching organization drops everything tracked for the previous one.
// Reconfiguring while monitoring stops monitoring first.
func (e *Engine) Configure(token, org string) error {
	if token == "" {
		return errors.New("API token is required")
	}
	if org == "" {
		return errors.New("organization is required")
	}
	if e.factory == nil {
		return errors.New("no client factory configured")
	}

	if e.IsMonitoring() {
		e.StopMonitoring()
	}

	client := e.factory(token)

	e.mu.Lock()
	if org != e.org {
		e.tracked = make(map[string]provider.Build)
		e.published = nil
		e.manualRefs = nil
		e.refIDs = make(map[provider.BuildRef]string)
		e.dismissed = make(map[string]struct{})
		e.hasFetched = false
		e.lastUpdated = time.Time{}
	}
	e.client = client
	e.org = org
	e.user = nil
	e.errState = nil
	e.generation++
	e.mu.Unlock()

	e.publish()
	return nil
}

// SetPollInterval changes the polling period. It must be one of
// config.AllowedPollIntervals. A running ticker is re-armed immediately.
func (e *Engine) SetPollInterval(d time.Duration) error {
	if err := config.ValidatePollInterval(d); err != nil {
		return err
	}

	e.mu.Lock()
	e.interval = d
	reset := e.resetLoop
	e.mu.Unlock()

	if reset != nil {
		// Drop a pending reset so the latest interval wins.
		select {
		case <-reset:
		default:
		}
		select {
		case reset <- d:
		default:
		}
	}
	e.publish()
	return nil
}

// PollInterval returns the configured polling period.
func (e *Engine) PollInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

// StartMonitoring resolves the current user, runs one cycle immediately and
// then polls on the configured interval. It is a no-op when already running.
// Failing to resolve the user is classified, reported and returned, as is
// a non-transient failure of the first cycle, which leaves monitoring stopped.
func (e *Engine) StartMonitoring(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	client, org, gen := e.client, e.org, e.generation
	e.mu.Unlock()

	if client == nil {
		return ErrNotConfigured
	}

	user, err := client.GetCurrentUser(ctx)
	if err != nil {
		return e.fail(gen, err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	if gen != e.generation {
		e.mu.Unlock()
		return ErrCycleDiscarded
	}
	e.user = user
	e.running = true
	e.generation++
	gen = e.generation
	interval := e.interval
	e.mu.Unlock()

	e.diag.Info(CodeMonitorStart,
		fmt.Sprintf("Monitoring %s as %s every %s", org, displayUser(user), interval), "")
	e.publish()

	// Transient failures leave the timer to retry; credential and
	// organization failures have already stopped monitoring and are returned.
	if err := e.Poll(ctx); err != nil {
		var perr *provider.Error
		if errors.As(err, &perr) && !perr.IsTransient() {
			return err
		}
		e.log.Debug("[Monitor] initial poll: %v", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || gen != e.generation {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	e.stopLoop = cancel
	e.resetLoop = make(chan time.Duration, 1)
	go e.loop(loopCtx, e.interval, e.resetLoop)
	return nil
}

// StopMonitoring cancels the timer. In-flight cycles finish but their
// results are discarded. It is a no-op when not running.
func (e *Engine) StopMonitoring() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.generation++
	cancel := e.stopLoop
	e.stopLoop = nil
	e.resetLoop = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.diag.Info(CodeMonitorStop, "Monitoring stopped", "")
	e.publish()
}

// IsMonitoring reports whether the timer is armed.
func (e *Engine) IsMonitoring() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// loop polls on every tick until ctx is cancelled.
func (e *Engine) loop(ctx context.Context, interval time.Duration, reset <-chan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-reset:
			ticker.Reset(d)
			e.log.Debug("[Monitor] poll interval changed to %s", d)
		case <-ticker.C:
			if err := e.Poll(ctx); err != nil {
				e.log.Debug("[Monitor] poll: %v", err)
			}
		}
	}
}

// Flush blocks until every dispatched notification has been delivered.
func (e *Engine) Flush() {
	e.notifyWG.Wait()
}

func displayUser(u *provider.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
