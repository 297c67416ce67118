package buildkite

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"buildwatch/src/provider"
)

func TestProvider_Name(t *testing.T) {
	p := NewProvider("test-token")
	if p.Name() != "buildkite" {
		t.Errorf("Name() = %q, want %q", p.Name(), "buildkite")
	}
}

func TestProvider_Registered(t *testing.T) {
	factory, err := provider.LookupClient("buildkite")
	if err != nil {
		t.Fatalf("LookupClient(buildkite) error = %v", err)
	}
	if _, ok := factory("token").(*Provider); !ok {
		t.Error("factory should build a *Provider")
	}
}

func TestProvider_ListUserBuilds_Converts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"id": "b-1",
			"number": 42,
			"state": "running",
			"web_url": "https://buildkite.com/acme/deploy/builds/42",
			"branch": "main",
			"message": "Ship it",
			"commit": "abc123",
			"created_at": "2024-05-01T10:00:00Z",
			"started_at": "2024-05-01T10:01:00Z",
			"finished_at": null,
			"pipeline": {"id": "p-1", "slug": "deploy", "name": "Deploy"},
			"jobs": [
				{"id": "j-1", "type": "script", "name": ":go: test", "state": "passed", "exit_status": 0},
				{"id": "j-2", "type": "waiter", "state": "passed"},
				{"id": "j-3", "type": "script", "label": ":rocket: release", "state": "running", "exit_status": null}
			]
		}]`))
	}))
	defer server.Close()

	p := NewProviderWithClient(NewClient("test-token").WithBaseURL(server.URL))
	builds, err := p.ListUserBuilds(context.Background(), "acme", "user-1", 20)
	if err != nil {
		t.Fatalf("ListUserBuilds() error = %v", err)
	}
	if len(builds) != 1 {
		t.Fatalf("got %d builds, want 1", len(builds))
	}

	b := builds[0]
	if b.ID != "b-1" || b.Number != 42 {
		t.Errorf("identity = %s #%d", b.ID, b.Number)
	}
	if b.State != provider.StateRunning {
		t.Errorf("State = %v, want running", b.State)
	}
	if b.PipelineSlug != "deploy" || b.PipelineName != "Deploy" || b.OrganizationSlug != "acme" {
		t.Errorf("pipeline = %s/%s (%s)", b.OrganizationSlug, b.PipelineSlug, b.PipelineName)
	}
	if b.StartedAt == nil || b.FinishedAt != nil {
		t.Errorf("timestamps: started=%v finished=%v", b.StartedAt, b.FinishedAt)
	}
	if b.AddedManually {
		t.Error("feed builds are never manual")
	}
	if len(b.Steps) != 2 {
		t.Fatalf("got %d steps, want 2 (waiters skipped)", len(b.Steps))
	}
	if b.Steps[1].Name != ":rocket: release" || b.Steps[1].Order != 1 {
		t.Errorf("second step = %+v", b.Steps[1])
	}
	if b.Steps[0].ExitStatus == nil || *b.Steps[0].ExitStatus != 0 {
		t.Errorf("first step exit status = %v", b.Steps[0].ExitStatus)
	}
	if b.Steps[1].ExitStatus != nil {
		t.Error("running step has no exit status")
	}
}

func TestProvider_GetBuild_FillsPipelineFromCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "b-9", "number": 9, "state": "some_new_state", "created_at": "2024-05-01T10:00:00Z"}`))
	}))
	defer server.Close()

	p := NewProviderWithClient(NewClient("test-token").WithBaseURL(server.URL))
	b, err := p.GetBuild(context.Background(), "acme", "deploy", 9)
	if err != nil {
		t.Fatalf("GetBuild() error = %v", err)
	}
	if b.PipelineSlug != "deploy" || b.PipelineName != "deploy" || b.OrganizationSlug != "acme" {
		t.Errorf("coordinates not filled: %+v", b)
	}
	if b.State.IsKnown() || b.State.Raw() != "some_new_state" {
		t.Errorf("State = %v, want unknown(some_new_state)", b.State)
	}
}
