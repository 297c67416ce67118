package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"buildwatch/src/monitor"
)

// Header represents the top status bar component.
type Header struct {
	snap        monitor.Snapshot
	searchQuery string
	searchMode  bool
	styles      *StyleConfig
	now         func() time.Time
}

// NewHeader creates a new header with default styles
func NewHeader() Header {
	return NewHeaderWithStyles(DefaultStyles())
}

// NewHeaderWithStyles creates a new header with custom styles
func NewHeaderWithStyles(styles *StyleConfig) Header {
	return Header{styles: styles, now: time.Now}
}

// SetSnapshot updates the monitor state shown in the header.
func (h *Header) SetSnapshot(snap monitor.Snapshot) {
	h.snap = snap
}

// SetSearch updates the search state
func (h *Header) SetSearch(query string, mode bool) {
	h.searchQuery = query
	h.searchMode = mode
}

// monitoringLabel describes whether polling is running.
func (h Header) monitoringLabel() string {
	if h.snap.IsMonitoring {
		return fmt.Sprintf("● every %s", h.snap.PollInterval)
	}
	return "○ paused"
}

// identity is "user @ org" as far as it is known.
func (h Header) identity() string {
	org := h.snap.Org
	if org == "" {
		org = "(no org)"
	}
	if h.snap.User == nil {
		return org
	}
	name := h.snap.User.Name
	if name == "" {
		name = h.snap.User.Email
	}
	return fmt.Sprintf("%s @ %s", name, org)
}

// Render renders the header
func (h Header) Render(width int) string {
	sectionStyle := lipgloss.NewStyle().
		Foreground(h.styles.PrimaryBlue).
		Bold(true).
		Padding(0, 2)

	identity := sectionStyle.Render(h.identity())

	stateStyle := sectionStyle
	if !h.snap.IsMonitoring {
		stateStyle = stateStyle.Foreground(h.styles.TextSecondary)
	}
	monitoring := stateStyle.Render(h.monitoringLabel())

	updatedText := "never updated"
	if !h.snap.LastUpdated.IsZero() {
		updatedText = "updated " + relativeTime(h.now(), h.snap.LastUpdated)
	}
	updated := lipgloss.NewStyle().
		Foreground(h.styles.TextSecondary).
		Padding(0, 2).
		Render(updatedText)

	// Search section
	var searchText string
	if h.searchMode {
		searchText = fmt.Sprintf("Search: %s█", h.searchQuery)
	} else if h.searchQuery != "" {
		searchText = fmt.Sprintf("Search: %s", h.searchQuery)
	} else {
		searchText = "[/] to search"
	}

	searchStyle := lipgloss.NewStyle().
		Foreground(h.styles.TextSecondary).
		Padding(0, 2)
	if h.searchMode {
		searchStyle = searchStyle.Foreground(h.styles.PrimaryBlue)
	}
	search := searchStyle.Render(searchText)

	// Combine sections
	leftSection := lipgloss.JoinHorizontal(lipgloss.Left, identity, monitoring, updated, search)
	leftSection = FitLine(leftSection, width)

	// Space out left and right sections
	spacer := lipgloss.NewStyle().Width(max(width-lipgloss.Width(leftSection), 0)).Render("")
	content := lipgloss.JoinHorizontal(lipgloss.Left, leftSection, spacer)

	if h.snap.Error != nil {
		banner := h.styles.ErrorStyle().Render("! " + h.snap.Error.Banner())
		content = lipgloss.JoinVertical(lipgloss.Left, content, FitLine(banner, width))
	}

	headerStyle := lipgloss.NewStyle().
		Background(h.styles.DarkBackground).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		Width(width)

	return headerStyle.Render(content)
}
