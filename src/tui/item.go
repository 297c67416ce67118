package tui

import (
	"fmt"
	"strings"

	"buildwatch/src/provider"
	"buildwatch/src/sanitize"
)

// Item represents a build displayed in the dashboard list.
// It wraps provider.Build and implements bubbles/list.Item.
type Item struct {
	Build provider.Build
}

// FilterValue is the value used for searching.
func (i Item) FilterValue() string {
	return strings.Join([]string{i.Pipeline(), i.Branch(), i.Message(), i.Build.State.String()}, " ")
}

// Title returns the primary text for the item (required by list.Item).
func (i Item) Title() string { return fmt.Sprintf("%s #%d", i.Pipeline(), i.Build.Number) }

// Description returns the secondary text for the item (required by list.Item).
func (i Item) Description() string { return i.Message() }

// Pipeline is the display name, falling back to the slug.
func (i Item) Pipeline() string {
	if name := sanitize.FirstLine(i.Build.PipelineName); name != "" {
		return name
	}
	return i.Build.PipelineSlug
}

// Branch is the cleaned branch name.
func (i Item) Branch() string {
	return sanitize.FirstLine(i.Build.Branch)
}

// Message is the first line of the commit message.
func (i Item) Message() string {
	return sanitize.FirstLine(i.Build.CommitMessage)
}

// URL is where the build can be opened.
func (i Item) URL() string {
	if i.Build.WebURL != "" {
		return i.Build.WebURL
	}
	return i.Build.Ref().URL()
}
