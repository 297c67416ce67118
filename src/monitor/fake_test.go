package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"buildwatch/src/notify"
	"buildwatch/src/provider"
)

var baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// build returns a build in org acme, pipeline deploy, started minutes after baseTime.
func build(id string, number int, state provider.BuildState, minutes int) provider.Build {
	started := baseTime.Add(time.Duration(minutes) * time.Minute)
	return provider.Build{
		ID:               id,
		Number:           number,
		PipelineSlug:     "deploy",
		PipelineName:     "Deploy",
		OrganizationSlug: "acme",
		Branch:           "main",
		State:            state,
		WebURL:           fmt.Sprintf("https://buildkite.com/acme/deploy/builds/%d", number),
		CreatedAt:        started,
		StartedAt:        &started,
	}
}

// fakeClient is a scriptable provider.Client.
type fakeClient struct {
	mu sync.Mutex

	user    *provider.User
	userErr error

	feed    []provider.Build
	feedErr error
	// feedGate, when set, blocks ListUserBuilds until it is closed.
	feedGate chan struct{}
	// feedEntered is signalled when ListUserBuilds starts.
	feedEntered chan struct{}

	builds    map[provider.BuildRef]provider.Build
	buildErrs map[provider.BuildRef]error
	// buildDelay slows GetBuild to expose concurrency.
	buildDelay time.Duration

	userCalls  int
	feedCalls  int
	buildCalls []provider.BuildRef
	inFlight   int
	maxFlight  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		user:      &provider.User{ID: "user-1", Name: "Ada"},
		builds:    make(map[provider.BuildRef]provider.Build),
		buildErrs: make(map[provider.BuildRef]error),
	}
}

func (f *fakeClient) factory(token string) provider.Client { return f }

func (f *fakeClient) setFeed(builds ...provider.Build) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feed = builds
	f.feedErr = nil
}

func (f *fakeClient) failFeed(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedErr = err
}

func (f *fakeClient) setBuild(ref provider.BuildRef, b provider.Build) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds[ref] = b
	delete(f.buildErrs, ref)
}

func (f *fakeClient) failBuild(ref provider.BuildRef, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buildErrs[ref] = err
}

func (f *fakeClient) buildCallsFor(ref provider.BuildRef) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.buildCalls {
		if r == ref {
			n++
		}
	}
	return n
}

func (f *fakeClient) GetCurrentUser(ctx context.Context) (*provider.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	if f.userErr != nil {
		return nil, f.userErr
	}
	u := *f.user
	return &u, nil
}

func (f *fakeClient) ListUserBuilds(ctx context.Context, org, userID string, perPage int) ([]provider.Build, error) {
	f.mu.Lock()
	f.feedCalls++
	gate, entered := f.feedGate, f.feedEntered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.feedErr != nil {
		return nil, f.feedErr
	}
	return append([]provider.Build(nil), f.feed...), nil
}

func (f *fakeClient) GetBuild(ctx context.Context, org, pipeline string, number int) (*provider.Build, error) {
	ref := provider.BuildRef{Org: org, Pipeline: pipeline, Number: number}

	f.mu.Lock()
	f.buildCalls = append(f.buildCalls, ref)
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	delay := f.buildDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if err, ok := f.buildErrs[ref]; ok {
		return nil, err
	}
	b, ok := f.builds[ref]
	if !ok {
		return nil, provider.NewStatusError(provider.KindBuildNotFound, 404, nil)
	}
	return &b, nil
}

// recordingSink captures delivered notifications.
type recordingSink struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingSink) Notify(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingSink) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.got...)
}
