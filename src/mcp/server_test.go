package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"buildwatch/src/contracts"
	"buildwatch/src/diagnostics"
	"buildwatch/src/monitor"
	"buildwatch/src/notify"
	"buildwatch/src/provider"
	"buildwatch/src/store"
)

var baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testBuild(id string, number int, state provider.BuildState) provider.Build {
	started := baseTime.Add(time.Duration(number) * time.Minute)
	return provider.Build{
		ID:               id,
		Number:           number,
		PipelineSlug:     "deploy",
		PipelineName:     "Deploy",
		OrganizationSlug: "acme",
		Branch:           "main",
		CommitMessage:    "Ship it\n\nlong body",
		State:            state,
		WebURL:           fmt.Sprintf("https://buildkite.com/acme/deploy/builds/%d", number),
		CreatedAt:        started,
		StartedAt:        &started,
	}
}

// stubClient serves a fixed feed and single builds.
type stubClient struct {
	mu     sync.Mutex
	feed   []provider.Build
	builds map[int]provider.Build
}

func (c *stubClient) GetCurrentUser(ctx context.Context) (*provider.User, error) {
	return &provider.User{ID: "user-1", Name: "Ada"}, nil
}

func (c *stubClient) ListUserBuilds(ctx context.Context, org, userID string, perPage int) ([]provider.Build, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]provider.Build(nil), c.feed...), nil
}

func (c *stubClient) GetBuild(ctx context.Context, org, pipeline string, number int) (*provider.Build, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.builds[number]
	if !ok {
		return nil, provider.NewStatusError(provider.KindBuildNotFound, 404, nil)
	}
	return &b, nil
}

func newTestServer(t *testing.T, history store.Store) (*Server, *monitor.Engine, *stubClient) {
	t.Helper()
	client := &stubClient{
		feed: []provider.Build{
			testBuild("b-1", 1, provider.StateRunning),
			testBuild("b-2", 2, provider.StateFailed),
			testBuild("b-3", 3, provider.StatePassed),
			testBuild("b-4", 4, provider.StatePassed),
		},
		builds: map[int]provider.Build{
			9: testBuild("b-9", 9, provider.StateBlocked),
		},
	}
	engine := monitor.New(monitor.Options{
		ClientFactory: func(string) provider.Client { return client },
		Notifier:      notify.SinkFunc(func(context.Context, notify.Notification) error { return nil }),
	})
	if err := engine.Configure("token", "acme"); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	srv := NewServer(engine, history)
	srv.now = func() time.Time { return baseTime.Add(time.Hour) }
	return srv, engine, client
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", result.Content[0])
	}
	return text.Text
}

func TestServer_ListBuilds_Tiers(t *testing.T) {
	srv, engine, _ := newTestServer(t, nil)
	if err := engine.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	result, err := srv.handleListBuilds(context.Background(), call(map[string]any{"limit": 1}))
	if err != nil {
		t.Fatalf("handleListBuilds() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	var tiers TieredBuilds
	if err := json.Unmarshal([]byte(resultText(t, result)), &tiers); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(tiers.NeedsAttention) != 1 || tiers.NeedsAttention[0].ID != "b-2" {
		t.Errorf("NeedsAttention = %+v, want b-2", tiers.NeedsAttention)
	}
	if len(tiers.InProgress) != 1 || tiers.InProgress[0].ID != "b-1" {
		t.Errorf("InProgress = %+v, want b-1", tiers.InProgress)
	}
	if len(tiers.Finished) != 1 || tiers.FinishedOmitted != 1 {
		t.Errorf("Finished = %d omitted %d, want 1 and 1", len(tiers.Finished), tiers.FinishedOmitted)
	}
	if tiers.Finished[0].ID != "b-4" {
		t.Errorf("newest passed build first, got %s", tiers.Finished[0].ID)
	}
	if tiers.InProgress[0].Commit != "Ship it" {
		t.Errorf("Commit = %q, want first line only", tiers.InProgress[0].Commit)
	}
	if !tiers.Status.HasFetched || tiers.Status.Organization != "acme" {
		t.Errorf("Status = %+v", tiers.Status)
	}
}

func TestServer_ListBuilds_StateFilter(t *testing.T) {
	srv, engine, _ := newTestServer(t, nil)
	if err := engine.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	tests := []struct {
		state string
		want  int
	}{
		{"", 4},
		{"passed", 2},
		{"active", 1},
		{"completed", 3},
		{"attention", 1},
		{"canceled", 0},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			result, _ := srv.handleListBuilds(context.Background(), call(map[string]any{"state": tt.state, "limit": 10}))
			var tiers TieredBuilds
			if err := json.Unmarshal([]byte(resultText(t, result)), &tiers); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			got := len(tiers.NeedsAttention) + len(tiers.InProgress) + len(tiers.Finished)
			if got != tt.want {
				t.Errorf("got %d builds, want %d", got, tt.want)
			}
		})
	}
}

func TestServer_AddAndRemoveBuild(t *testing.T) {
	srv, engine, _ := newTestServer(t, nil)

	result, _ := srv.handleAddBuild(context.Background(), call(map[string]any{
		"url": "https://buildkite.com/acme/deploy/builds/9",
	}))
	if result.IsError {
		t.Fatalf("add_build error: %s", resultText(t, result))
	}
	var info BuildInfo
	if err := json.Unmarshal([]byte(resultText(t, result)), &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info.ID != "b-9" || !info.AddedManually || info.State != "blocked" {
		t.Errorf("added build = %+v", info)
	}

	dup, _ := srv.handleAddBuild(context.Background(), call(map[string]any{
		"url": "https://buildkite.com/acme/deploy/builds/9",
	}))
	if !dup.IsError || !strings.Contains(resultText(t, dup), "already being watched") {
		t.Errorf("duplicate add = %q", resultText(t, dup))
	}

	removed, _ := srv.handleRemoveBuild(context.Background(), call(map[string]any{"id": "b-9"}))
	if !strings.Contains(resultText(t, removed), "removed build b-9") {
		t.Errorf("remove_build = %q", resultText(t, removed))
	}
	if _, ok := engine.Build("b-9"); ok {
		t.Error("b-9 still tracked after remove_build")
	}
}

func TestServer_ArgumentErrors(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
		want    string
	}{
		{"add without url", srv.handleAddBuild, nil, "url parameter is required"},
		{"add bad url", srv.handleAddBuild, map[string]any{"url": "https://example.com/x"}, "Invalid build URL"},
		{"add missing build", srv.handleAddBuild, map[string]any{"url": "https://buildkite.com/acme/deploy/builds/404"}, "Build not found"},
		{"remove without id", srv.handleRemoveBuild, nil, "id parameter is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.handler(context.Background(), call(tt.args))
			if err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if !result.IsError {
				t.Fatal("expected tool error")
			}
			if got := resultText(t, result); !strings.Contains(got, tt.want) {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServer_ClearCompletedAndPoll(t *testing.T) {
	srv, engine, _ := newTestServer(t, nil)

	polled, _ := srv.handlePollNow(context.Background(), call(nil))
	var status StatusInfo
	if err := json.Unmarshal([]byte(resultText(t, polled)), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.Active != 1 || status.Completed != 3 || status.User != "Ada" {
		t.Errorf("status after poll = %+v", status)
	}

	cleared, _ := srv.handleClearCompleted(context.Background(), call(nil))
	if got := resultText(t, cleared); got != "cleared 3 completed builds" {
		t.Errorf("clear_completed = %q", got)
	}
	if n := len(engine.Snapshot().Completed); n != 0 {
		t.Errorf("%d completed builds left", n)
	}
}

func TestServer_Status_ReportsError(t *testing.T) {
	engine := monitor.New(monitor.Options{
		ClientFactory: func(string) provider.Client { return &stubClient{} },
	})
	srv := NewServer(engine, nil)

	result, _ := srv.handlePollNow(context.Background(), call(nil))
	if !result.IsError || !strings.Contains(resultText(t, result), "not configured") {
		t.Errorf("poll_now unconfigured = %q", resultText(t, result))
	}

	status, _ := srv.handleStatus(context.Background(), call(nil))
	var info StatusInfo
	if err := json.Unmarshal([]byte(resultText(t, status)), &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info.Monitoring || info.HasFetched {
		t.Errorf("status = %+v", info)
	}
}

func TestServer_Diagnostics(t *testing.T) {
	srv, engine, _ := newTestServer(t, nil)
	diag := engine.Diagnostics()
	diag.Info("MON-START", "started", "")
	diag.Error("RESP-001", "bad response", "HTTP 502: <html>\n  upstream   /a/b/c/d/gateway  deadbeefdeadbeef\n</html>")
	diag.Warning("NET-001", "network", "")

	result, _ := srv.handleDiagnostics(context.Background(), call(map[string]any{"limit": 2}))
	var entries []DiagnosticInfo
	if err := json.Unmarshal([]byte(resultText(t, result)), &entries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(entries) != 2 || entries[0].Code != "NET-001" || entries[1].Code != "RESP-001" {
		t.Fatalf("entries = %+v", entries)
	}
	if want := "HTTP 502: <html> upstream .../gateway <HASH> </html>"; entries[1].Detail != want {
		t.Errorf("Detail = %q, want %q", entries[1].Detail, want)
	}

	result, _ = srv.handleDiagnostics(context.Background(), call(map[string]any{"level": "error"}))
	entries = nil
	if err := json.Unmarshal([]byte(resultText(t, result)), &entries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(entries) != 1 || entries[0].Level != string(diagnostics.LevelError) {
		t.Errorf("error entries = %+v", entries)
	}
}

func TestServer_DiagnosticsLimitBounds(t *testing.T) {
	srv, engine, _ := newTestServer(t, nil)
	diag := engine.Diagnostics()
	diag.Warning("NET-001", "first", "")
	diag.Warning("RATE-429", "second", "")
	diag.Warning("NET-001", "third", "")

	tests := []struct {
		name  string
		args  map[string]any
		want  int
		first string
	}{
		{"zero limit with level returns all", map[string]any{"level": "warning", "limit": 0}, 3, "third"},
		{"negative limit with level returns all", map[string]any{"level": "warning", "limit": -1}, 3, "third"},
		{"limit with level", map[string]any{"level": "warning", "limit": 1}, 1, "third"},
		{"limit above count with level", map[string]any{"level": "warning", "limit": 50}, 3, "third"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _ := srv.handleDiagnostics(context.Background(), call(tt.args))
			var entries []DiagnosticInfo
			if err := json.Unmarshal([]byte(resultText(t, result)), &entries); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if len(entries) != tt.want || entries[0].Message != tt.first {
				t.Errorf("entries = %+v, want %d newest first", entries, tt.want)
			}
		})
	}

	// Without a level, a zero limit also means everything.
	result, _ := srv.handleDiagnostics(context.Background(), call(map[string]any{"limit": 0}))
	var all []DiagnosticInfo
	if err := json.Unmarshal([]byte(resultText(t, result)), &all); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(all) < 3 {
		t.Errorf("limit 0 without level returned %d entries", len(all))
	}
}

func TestServer_RecentTransitions(t *testing.T) {
	history := store.NewMemoryStore()
	ctx := context.Background()
	for i, to := range []string{"running", "passed"} {
		err := history.RecordTransition(ctx, contracts.TransitionEvent{
			BuildID:      "b-1",
			PipelineName: "Deploy",
			Number:       1,
			FromState:    "scheduled",
			ToState:      to,
			ObservedAt:   baseTime.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordTransition() error = %v", err)
		}
	}

	srv, _, _ := newTestServer(t, history)
	result, _ := srv.handleRecentTransitions(ctx, call(map[string]any{"limit": 1}))
	var out []TransitionInfo
	if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(out) != 1 || out[0].To != "passed" || out[0].Build != "Deploy #1" {
		t.Errorf("transitions = %+v", out)
	}
}
