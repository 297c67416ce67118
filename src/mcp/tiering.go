package mcp

import (
	"strings"
	"time"

	"buildwatch/src/monitor"
	"buildwatch/src/provider"
	"buildwatch/src/sanitize"
)

// Default build limits per tier.
// Builds needing attention are always listed in full; finished builds are
// the lowest signal and get trimmed.
const (
	DefaultActiveLimit   = 20
	DefaultFinishedLimit = 5
)

// maxMessageLength bounds commit messages in tool output.
const maxMessageLength = 100

// needsAttention reports whether a build is waiting on a human: it failed,
// or it is blocked on an input step.
func needsAttention(state provider.BuildState) bool {
	switch state {
	case provider.StateFailed, provider.StateWaitingFailed, provider.StateBlocked:
		return true
	}
	return false
}

// TierBuilds splits a snapshot into attention, in-progress and finished
// tiers. Builds keep their display order within a tier.
func TierBuilds(snap monitor.Snapshot, now time.Time, finishedLimit int) TieredBuilds {
	if finishedLimit <= 0 {
		finishedLimit = DefaultFinishedLimit
	}

	out := TieredBuilds{
		Status:         statusInfo(snap),
		NeedsAttention: []BuildInfo{},
		InProgress:     []BuildInfo{},
		Finished:       []BuildInfo{},
	}

	for _, b := range snap.Builds {
		info := convertBuild(b, now)
		switch {
		case needsAttention(b.State):
			out.NeedsAttention = append(out.NeedsAttention, info)
		case b.State.IsActive():
			if len(out.InProgress) < DefaultActiveLimit {
				out.InProgress = append(out.InProgress, info)
			}
		default:
			if len(out.Finished) < finishedLimit {
				out.Finished = append(out.Finished, info)
			} else {
				out.FinishedOmitted++
			}
		}
	}
	return out
}

// filterBuilds keeps builds whose state matches filter. The filter accepts
// a state name, "active", "completed" or "attention"; empty keeps all.
func filterBuilds(builds []provider.Build, filter string) []provider.Build {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" || filter == "all" {
		return builds
	}

	want := provider.ParseBuildState(filter)
	var out []provider.Build
	for _, b := range builds {
		var keep bool
		switch filter {
		case "active":
			keep = b.State.IsActive()
		case "completed":
			keep = b.State.IsCompleted()
		case "attention":
			keep = needsAttention(b.State)
		default:
			keep = b.State == want
		}
		if keep {
			out = append(out, b)
		}
	}
	return out
}

// convertBuild renders a build for clients. Text coming from the provider
// is cleaned before it leaves the process.
func convertBuild(b provider.Build, now time.Time) BuildInfo {
	info := BuildInfo{
		ID:            b.ID,
		Ref:           b.Ref().String(),
		URL:           b.WebURL,
		Pipeline:      sanitize.FirstLine(b.PipelineName),
		Branch:        sanitize.FirstLine(b.Branch),
		Commit:        sanitize.Summary(b.CommitMessage, maxMessageLength),
		State:         b.State.String(),
		AddedManually: b.AddedManually,
	}
	if info.URL == "" {
		info.URL = b.Ref().URL()
	}
	if info.Pipeline == "" {
		info.Pipeline = b.PipelineSlug
	}
	if d := b.Duration(now); d > 0 {
		info.Duration = d.Round(time.Second).String()
	}
	for _, step := range b.Steps {
		if step.State == "failed" || (step.ExitStatus != nil && *step.ExitStatus != 0) {
			info.FailedSteps = append(info.FailedSteps, sanitize.StepLabel(step.Name))
		}
	}
	return info
}

func statusInfo(snap monitor.Snapshot) StatusInfo {
	info := StatusInfo{
		Monitoring:   snap.IsMonitoring,
		Organization: snap.Org,
		PollInterval: snap.PollInterval.String(),
		HasFetched:   snap.HasFetched,
		Active:       len(snap.Active),
		Completed:    len(snap.Completed),
	}
	if snap.User != nil {
		info.User = snap.User.Name
		if info.User == "" {
			info.User = snap.User.Email
		}
	}
	if !snap.LastUpdated.IsZero() {
		info.LastUpdated = snap.LastUpdated.UTC().Format(time.RFC3339)
	}
	if snap.Error != nil {
		info.Error = snap.Error.Banner()
	}
	for _, ref := range snap.ManualRefs {
		info.ManualRefs = append(info.ManualRefs, ref.String())
	}
	return info
}
