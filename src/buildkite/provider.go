package buildkite

import (
	"context"

	"buildwatch/src/provider"
)

func init() {
	// Register the Buildkite client factory
	provider.RegisterClient("buildkite", func(token string) provider.Client {
		return NewProvider(token)
	})
}

// Provider implements provider.Client for Buildkite
type Provider struct {
	client *Client
}

// NewProvider creates a Buildkite provider with API token
func NewProvider(token string) *Provider {
	return &Provider{client: NewClient(token)}
}

// NewProviderWithClient wraps an existing client.
func NewProviderWithClient(client *Client) *Provider {
	return &Provider{client: client}
}

// Name returns "buildkite"
func (p *Provider) Name() string {
	return "buildkite"
}

// GetCurrentUser resolves the token's user.
func (p *Provider) GetCurrentUser(ctx context.Context) (*provider.User, error) {
	u, err := p.client.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return &provider.User{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

// ListUserBuilds returns the user's recent builds in org.
func (p *Provider) ListUserBuilds(ctx context.Context, org, userID string, perPage int) ([]provider.Build, error) {
	bkBuilds, err := p.client.ListUserBuilds(ctx, org, userID, perPage)
	if err != nil {
		return nil, err
	}

	builds := make([]provider.Build, 0, len(bkBuilds))
	for i := range bkBuilds {
		builds = append(builds, convertBuild(org, &bkBuilds[i]))
	}
	return builds, nil
}

// GetBuild retrieves a single build.
func (p *Provider) GetBuild(ctx context.Context, org, pipeline string, number int) (*provider.Build, error) {
	bkBuild, err := p.client.GetBuild(ctx, org, pipeline, number)
	if err != nil {
		return nil, err
	}

	build := convertBuild(org, bkBuild)
	if build.PipelineSlug == "" {
		build.PipelineSlug = pipeline
	}
	if build.PipelineName == "" {
		build.PipelineName = pipeline
	}
	return &build, nil
}

func convertBuild(org string, bk *Build) provider.Build {
	build := provider.Build{
		ID:               bk.ID,
		Number:           bk.Number,
		OrganizationSlug: org,
		Branch:           bk.Branch,
		CommitMessage:    bk.Message,
		CommitSHA:        bk.Commit,
		State:            provider.ParseBuildState(bk.State),
		WebURL:           bk.WebURL,
		CreatedAt:        bk.CreatedAt,
		StartedAt:        bk.StartedAt,
		FinishedAt:       bk.FinishedAt,
	}

	if bk.Pipeline != nil {
		build.PipelineSlug = bk.Pipeline.Slug
		build.PipelineName = bk.Pipeline.Name
		if build.PipelineName == "" {
			build.PipelineName = bk.Pipeline.Slug
		}
	}

	// Builds listed across an org carry their own org in the web URL.
	if bk.WebURL != "" {
		if ref, err := provider.ParseURL(bk.WebURL); err == nil {
			build.OrganizationSlug = ref.Org
			if build.PipelineSlug == "" {
				build.PipelineSlug = ref.Pipeline
			}
		}
	}

	for _, job := range bk.Jobs {
		if job.Type == "waiter" {
			continue
		}
		name := job.Name
		if name == "" {
			name = job.Label
		}
		build.Steps = append(build.Steps, provider.BuildStep{
			ID:         job.ID,
			Name:       name,
			State:      job.State,
			ExitStatus: job.ExitStatus,
			Order:      len(build.Steps),
		})
	}

	return build
}
