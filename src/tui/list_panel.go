package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// renderListPanel renders the left panel with the build list
func (m MainModel) renderListPanel(width, height int) string {
	var body string
	switch {
	case !m.snap.HasFetched:
		body = m.renderPlaceholder(width, height, "Loading...")
	case len(m.listView.Items()) == 0 && m.searchQuery != "":
		body = m.renderPlaceholder(width, height, "No builds match "+m.searchQuery)
	case len(m.listView.Items()) == 0:
		body = m.renderPlaceholder(width, height, "No builds")
	default:
		// Note: list size is set in resizeComponents(), not here during render
		body = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(m.styles.BorderColor).
			Width(width - 2).
			Height(height).
			Render(m.listView.Render())
	}

	// Add column headers
	delegate := m.listView.GetDelegate()
	headerText := fmt.Sprintf("  %s │ %s │ Message",
		TruncateAndPad("Build", delegate.PipelineWidth, false),
		TruncateAndPad("Branch", branchWidth, false))
	headerRow := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Width(width-2).
		Padding(0, 1).
		Render(Truncate(headerText, width-4, true))

	return lipgloss.JoinVertical(lipgloss.Left, headerRow, body)
}

func (m MainModel) renderPlaceholder(width, height int, text string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.BorderColor).
		Width(width-2).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(m.styles.TextSecondary).
		Faint(true).
		Render(text)
}
