// Demo program to showcase the buildwatch dashboard with a realistic,
// slowly evolving build feed. No Buildkite token is needed.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"buildwatch/src/broker"
	"buildwatch/src/contracts"
	"buildwatch/src/diagnostics"
	"buildwatch/src/logger"
	"buildwatch/src/monitor"
	"buildwatch/src/notify"
	"buildwatch/src/provider"
	"buildwatch/src/tui"
)

func main() {
	fmt.Println("Generating sample builds...")
	feed := newDemoFeed(time.Now())
	fmt.Printf("Loaded %d builds across %d pipelines.\n", len(feed.builds), countPipelines(feed.builds))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.NewSilentLogger()
	brk := broker.NewInMemoryBroker()
	defer brk.Close()

	engine := monitor.New(monitor.Options{
		ClientFactory: func(string) provider.Client { return feed },
		Diagnostics:   diagnostics.New(diagnostics.DefaultCapacity, log),
		Notifier:      notify.NewFilterSink(notify.NewBrokerSink(brk), nil),
		Logger:        log,
		PollInterval:  15 * time.Second,
	})
	if err := engine.Configure("demo-token", "acme"); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring monitor: %v\n", err)
		os.Exit(1)
	}

	toasts, err := brk.Subscribe(ctx, contracts.TopicTransitions, "demo")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error subscribing: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Launching TUI...")
	go func() {
		if err := engine.StartMonitoring(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting monitor: %v\n", err)
		}
	}()

	p := tea.NewProgram(tui.NewModel(ctx, engine, toasts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	engine.StopMonitoring()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

func countPipelines(builds []provider.Build) int {
	seen := make(map[string]bool)
	for _, b := range builds {
		seen[b.PipelineSlug] = true
	}
	return len(seen)
}

// demoFeed is a provider.Client serving fixture builds. Every poll moves
// one active build a step further so transitions show up as toasts.
type demoFeed struct {
	mu     sync.Mutex
	builds []provider.Build
	polls  int
}

func (f *demoFeed) GetCurrentUser(ctx context.Context) (*provider.User, error) {
	return &provider.User{ID: "user-demo", Name: "Demo User", Email: "demo@example.com"}, nil
}

func (f *demoFeed) ListUserBuilds(ctx context.Context, org, userID string, perPage int) ([]provider.Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.advance(time.Now())
	f.polls++

	n := min(perPage, len(f.builds))
	return append([]provider.Build(nil), f.builds[:n]...), nil
}

func (f *demoFeed) GetBuild(ctx context.Context, org, pipeline string, number int) (*provider.Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.builds {
		if b.PipelineSlug == pipeline && b.Number == number {
			return &b, nil
		}
	}
	return nil, provider.NewStatusError(provider.KindBuildNotFound, 404, nil)
}

// advance moves the first still-active build one state along.
func (f *demoFeed) advance(now time.Time) {
	if f.polls == 0 {
		return
	}
	for i := range f.builds {
		b := &f.builds[i]
		switch b.State {
		case provider.StateScheduled:
			b.State = provider.StateRunning
			b.StartedAt = &now
			return
		case provider.StateRunning:
			b.FinishedAt = &now
			if f.polls%2 == 0 {
				b.State = provider.StateFailed
				exit := 1
				b.Steps = append(b.Steps, provider.BuildStep{ID: "j-fail", Name: ":boom: smoke test", State: "failed", ExitStatus: &exit, Order: len(b.Steps)})
			} else {
				b.State = provider.StatePassed
			}
			return
		}
	}
}

func newDemoFeed(now time.Time) *demoFeed {
	at := func(ago time.Duration) *time.Time {
		t := now.Add(-ago)
		return &t
	}
	exit := func(code int) *int { return &code }

	build := func(id string, number int, pipeline, name, branch, message string, state provider.BuildState, started, finished *time.Time, steps ...provider.BuildStep) provider.Build {
		created := now.Add(-time.Hour)
		if started != nil {
			created = started.Add(-20 * time.Second)
		}
		for i := range steps {
			steps[i].Order = i
		}
		return provider.Build{
			ID:               id,
			Number:           number,
			PipelineSlug:     pipeline,
			PipelineName:     name,
			OrganizationSlug: "acme",
			Branch:           branch,
			CommitMessage:    message,
			CommitSHA:        fmt.Sprintf("%040x", number*7919),
			State:            state,
			WebURL:           fmt.Sprintf("https://buildkite.com/acme/%s/builds/%d", pipeline, number),
			CreatedAt:        created,
			StartedAt:        started,
			FinishedAt:       finished,
			Steps:            steps,
		}
	}

	return &demoFeed{builds: []provider.Build{
		build("demo-1", 4091, "backend", "Backend", "main", "Bump connection pool size for batch jobs", provider.StateRunning, at(3*time.Minute), nil,
			provider.BuildStep{ID: "j-1", Name: ":go: unit tests", State: "passed", ExitStatus: exit(0)},
			provider.BuildStep{ID: "j-2", Name: ":docker: integration tests", State: "running"},
		),
		build("demo-2", 812, "web-frontend", "Web Frontend", "feature/checkout-v2", "Checkout: validate postcode before submit", provider.StateScheduled, nil, nil),
		build("demo-3", 1530, "mobile-ios", "Mobile iOS", "release/5.2", "Release 5.2.0 candidate", provider.StateBlocked, at(25*time.Minute), nil,
			provider.BuildStep{ID: "j-3", Name: ":xcode: build", State: "passed", ExitStatus: exit(0)},
			provider.BuildStep{ID: "j-4", Name: ":rocket: deploy to TestFlight", State: "blocked"},
		),
		build("demo-4", 4090, "backend", "Backend", "fix/flaky-e2e", "Retry e2e database setup on connection refused\n\nThe CI Postgres sometimes starts slowly.", provider.StateFailed, at(40*time.Minute), at(31*time.Minute),
			provider.BuildStep{ID: "j-5", Name: ":go: unit tests", State: "passed", ExitStatus: exit(0)},
			provider.BuildStep{ID: "j-6", Name: ":postgres: e2e tests", State: "failed", ExitStatus: exit(2)},
		),
		build("demo-5", 377, "infra", "Infrastructure", "main", "Terraform: rotate staging certificates", provider.StatePassed, at(2*time.Hour), at(110*time.Minute),
			provider.BuildStep{ID: "j-7", Name: ":terraform: plan", State: "passed", ExitStatus: exit(0)},
			provider.BuildStep{ID: "j-8", Name: ":terraform: apply", State: "passed", ExitStatus: exit(0)},
		),
		build("demo-6", 811, "web-frontend", "Web Frontend", "main", "Upgrade bundler", provider.StateCanceled, at(5*time.Hour), at(5*time.Hour-2*time.Minute)),
		build("demo-7", 4088, "backend", "Backend", "main", "Add tracing to the ingest worker", provider.StatePassed, at(26*time.Hour), at(26*time.Hour-9*time.Minute)),
	}}
}
