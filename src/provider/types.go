package provider

import (
	"fmt"
	"time"
)

// BuildRef identifies a build by its coordinates in Buildkite.
// It is comparable and safe to use as a map key.
type BuildRef struct {
	Org      string
	Pipeline string
	Number   int
}

// String renders the reference as org/pipeline#number.
func (r BuildRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Org, r.Pipeline, r.Number)
}

// URL returns the canonical Buildkite web URL for the reference.
func (r BuildRef) URL() string {
	return fmt.Sprintf("https://buildkite.com/%s/%s/builds/%d", r.Org, r.Pipeline, r.Number)
}

// User is the identity behind the configured API token.
type User struct {
	ID    string
	Name  string
	Email string
}

// Build is an immutable snapshot of a CI build as observed in one fetch.
type Build struct {
	ID               string
	Number           int
	PipelineSlug     string
	PipelineName     string
	OrganizationSlug string
	Branch           string
	CommitMessage    string
	CommitSHA        string
	State            BuildState
	WebURL           string
	CreatedAt        time.Time
	StartedAt        *time.Time
	FinishedAt       *time.Time

	// AddedManually is set when the user tracked this build by URL rather than
	// it arriving through their build feed.
	AddedManually bool

	Steps []BuildStep
}

// Ref returns the coordinates of the build.
func (b Build) Ref() BuildRef {
	return BuildRef{Org: b.OrganizationSlug, Pipeline: b.PipelineSlug, Number: b.Number}
}

// SortTime is the timestamp used for display ordering: StartedAt when the
// build has started, CreatedAt otherwise.
func (b Build) SortTime() time.Time {
	if b.StartedAt != nil {
		return *b.StartedAt
	}
	return b.CreatedAt
}

// Duration returns how long the build ran, or has been running as of now.
// Zero when the build has not started.
func (b Build) Duration(now time.Time) time.Duration {
	if b.StartedAt == nil {
		return 0
	}
	end := now
	if b.FinishedAt != nil {
		end = *b.FinishedAt
	}
	if end.Before(*b.StartedAt) {
		return 0
	}
	return end.Sub(*b.StartedAt)
}

// BuildStep is a single job within a build.
type BuildStep struct {
	ID string
	// Name is the raw step label; it may carry an emoji shortcode prefix.
	Name       string
	State      string
	ExitStatus *int
	Order      int
}
