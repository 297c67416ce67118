// Package notify turns build state transitions into user-facing
// notifications and delivers them to one or more sinks.
package notify

import (
	"context"
	"fmt"
	"time"

	"buildwatch/src/contracts"
	"buildwatch/src/provider"
)

// Notification is a request to tell the user a tracked build changed state.
type Notification struct {
	Title    string
	Subtitle string
	Body     string

	Build      provider.Build
	From       provider.BuildState
	To         provider.BuildState
	ObservedAt time.Time
}

// Sink accepts notification requests. Implementations must be safe for
// concurrent use; the monitor delivers each notification on its own goroutine.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// ForTransition renders the notification for build moving from one state to
// another. The title is the pipeline name and the subtitle the branch.
func ForTransition(build provider.Build, from, to provider.BuildState) Notification {
	title := build.PipelineName
	if title == "" {
		title = build.PipelineSlug
	}
	return Notification{
		Title:      title,
		Subtitle:   build.Branch,
		Body:       body(build, to),
		Build:      build,
		From:       from,
		To:         to,
		ObservedAt: time.Now(),
	}
}

func body(b provider.Build, to provider.BuildState) string {
	n := b.Number
	switch to {
	case provider.StateScheduled:
		return fmt.Sprintf("Build #%d is scheduled", n)
	case provider.StateRunning:
		return fmt.Sprintf("Build #%d started running", n)
	case provider.StatePassed:
		return fmt.Sprintf("Build #%d passed%s", n, took(b))
	case provider.StateFailed:
		return fmt.Sprintf("Build #%d failed%s", n, took(b))
	case provider.StateBlocked:
		return fmt.Sprintf("Build #%d is blocked and waiting for input", n)
	case provider.StateCanceled:
		return fmt.Sprintf("Build #%d was canceled", n)
	case provider.StateSkipped:
		return fmt.Sprintf("Build #%d was skipped", n)
	case provider.StateNotRun:
		return fmt.Sprintf("Build #%d did not run", n)
	case provider.StateWaitingFailed:
		return fmt.Sprintf("Build #%d failed while waiting on a dependency", n)
	}
	return fmt.Sprintf("Build #%d is now %s", n, to.DisplayName())
}

// took renders " in 4m12s" for builds with both start and finish times.
func took(b provider.Build) string {
	if b.StartedAt == nil || b.FinishedAt == nil {
		return ""
	}
	d := b.Duration(*b.FinishedAt)
	if d <= 0 {
		return ""
	}
	return " in " + d.Round(time.Second).String()
}

// Event converts the notification to the message published and stored for it.
func (n Notification) Event() contracts.TransitionEvent {
	return contracts.TransitionEvent{
		BuildID:      n.Build.ID,
		Organization: n.Build.OrganizationSlug,
		Pipeline:     n.Build.PipelineSlug,
		PipelineName: n.Build.PipelineName,
		Number:       n.Build.Number,
		Branch:       n.Build.Branch,
		WebURL:       n.Build.WebURL,
		FromState:    n.From.String(),
		ToState:      n.To.String(),
		Title:        n.Title,
		Subtitle:     n.Subtitle,
		Body:         n.Body,
		ObservedAt:   n.ObservedAt,
	}
}
