package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"buildwatch/src/broker"
	"buildwatch/src/config"
	"buildwatch/src/diagnostics"
	"buildwatch/src/logger"
	"buildwatch/src/metrics"
	"buildwatch/src/monitor"
	"buildwatch/src/notify"
	"buildwatch/src/provider"
	"buildwatch/src/store"
)

// shutdownTimeout bounds metrics server shutdown.
const shutdownTimeout = 5 * time.Second

// app holds the wired components for one process.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   store.Store
	broker  broker.Broker
	diag    *diagnostics.Log
	engine  *monitor.Engine
	metrics *http.Server

	closers []func() error
}

// openLogger picks a file logger when configured, otherwise fallback.
func openLogger(cfg *config.Config, fallback logger.Logger) (logger.Logger, func() error, error) {
	if cfg.LogFile == "" {
		return fallback, func() error { return nil }, nil
	}
	fl, err := logger.NewFileLogger(cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return fl, fl.Close, nil
}

// newApp builds the store, broker, diagnostics, metrics and engine from cfg
// and configures the engine with the token and organization.
func newApp(cfg *config.Config, fallback logger.Logger) (*app, error) {
	log, closeLog, err := openLogger(cfg, fallback)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, closers: []func() error{closeLog}}

	a.store, err = store.Open(cfg.StoreDSN)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	a.broker, err = broker.New(cfg.Brokers, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	a.closers = append(a.closers, a.broker.Close)

	a.diag = diagnostics.New(diagnostics.DefaultCapacity, log).
		WithRecorder(a.store).
		WithPublisher(a.broker)

	var recorder metrics.Recorder = metrics.NopRecorder{}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		a.metrics = newMetricsServer(cfg.MetricsAddr, reg)
	}

	factory, err := provider.LookupClient("buildkite")
	if err != nil {
		a.close()
		return nil, err
	}

	a.engine = monitor.New(monitor.Options{
		ClientFactory: factory,
		Diagnostics:   a.diag,
		Notifier:      buildNotifier(cfg, log, a.broker, a.store),
		Logger:        log,
		Metrics:       recorder,
		PollInterval:  cfg.PollInterval,
		PageSize:      cfg.PageSize,
	})
	if err := a.engine.Configure(cfg.BuildkiteAPIToken, cfg.Organization); err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// buildNotifier sends every transition to the history store and, for the
// configured states, to the log and the transitions topic.
func buildNotifier(cfg *config.Config, log logger.Logger, b broker.Broker, history store.TransitionRecorder) notify.Sink {
	announce := notify.NewFilterSink(notify.MultiSink{
		notify.NewLogSink(log),
		notify.NewBrokerSink(b),
	}, cfg.NotifyStates)

	return notify.MultiSink{announce, notify.NewRecorderSink(history)}
}

func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// start serves metrics (if configured), adds the watched URLs and starts
// monitoring. Failures to add a URL are logged, not fatal.
func (a *app) start(ctx context.Context, urls []string) error {
	if a.metrics != nil {
		go func() {
			a.log.Info("[Metrics] serving on %s/metrics", a.metrics.Addr)
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("[Metrics] server stopped: %v", err)
			}
		}()
	}

	if err := a.store.Prune(ctx, store.DefaultRetention); err != nil {
		a.log.Warn("[Store] prune failed: %v", err)
	}

	a.addWatched(ctx, urls)
	return a.engine.StartMonitoring(ctx)
}

// addWatched tracks the configured and command-line URLs.
func (a *app) addWatched(ctx context.Context, urls []string) {
	all := append(append([]string(nil), a.cfg.Watch...), urls...)
	for _, url := range all {
		build, err := a.engine.AddBuild(ctx, url)
		if err != nil {
			if errors.Is(err, provider.ErrDuplicateBuild) {
				continue
			}
			a.log.Error("[Watch] %s: %v", url, provider.WrapError(err))
			continue
		}
		a.log.Info("[Watch] tracking %s (%s)", build.Ref(), build.State.DisplayName())
	}
}

// close stops monitoring, waits for notifications and releases everything
// in reverse order of creation.
func (a *app) close() {
	if a.engine != nil {
		a.engine.StopMonitoring()
		a.engine.Flush()
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = a.metrics.Shutdown(ctx)
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("shutdown: %v", err)
		}
	}
}
