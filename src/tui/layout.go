package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// panelDimensions holds calculated layout dimensions
type panelDimensions struct {
	availableHeight int
	leftPanelWidth  int
	rightPanelWidth int
}

// calculateDimensions computes panel sizes based on terminal dimensions.
// This centralizes the layout math to ensure consistency across render and resize.
func (m MainModel) calculateDimensions() panelDimensions {
	headerHeight := lipgloss.Height(m.header.Render(m.width))
	// Account for: header + footer (2) + panel column header row (1) + panel borders (2)
	availableHeight := max(m.height-headerHeight-2-1-2, 1)

	// Two-panel layout: Build List (60%) | Build Detail (40%)
	leftPanelWidth := int(float64(m.width) * 0.6)
	rightPanelWidth := m.width - leftPanelWidth

	return panelDimensions{
		availableHeight: availableHeight,
		leftPanelWidth:  leftPanelWidth,
		rightPanelWidth: rightPanelWidth,
	}
}

// View renders the complete TUI layout
func (m MainModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	// Render header
	header := m.header.Render(m.width)

	// Show the logo and spinner until the first fetch, unless there is
	// something (a manual build, an error) worth showing already.
	if !m.snap.HasFetched && len(m.snap.Builds) == 0 && m.snap.Error == nil {
		centeredProgress := lipgloss.NewStyle().
			Width(m.width).
			Align(lipgloss.Center).
			PaddingTop(2).
			Render(m.progress.View())
		return lipgloss.JoinVertical(lipgloss.Left, header, centeredProgress, m.renderFooter())
	}

	// Calculate panel dimensions
	dims := m.calculateDimensions()

	// Render panels
	leftPanel := m.renderListPanel(dims.leftPanelWidth, dims.availableHeight)
	rightPanel := m.renderDetailPanel(dims.rightPanelWidth, dims.availableHeight)

	// Combine panels horizontally
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)

	return lipgloss.JoinVertical(lipgloss.Left, header, mainContent, m.renderFooter())
}

// renderFooter renders the message line (input, toast or status) above the help text.
func (m MainModel) renderFooter() string {
	var line string
	switch {
	case m.mode == inputAddURL:
		line = m.styles.TitleStyle().Render("Add build:") + " " + m.input.View()
	case m.mode == inputSearch:
		line = m.styles.TitleStyle().Render("Search:") + " " + m.input.View()
	case m.isError && m.status != "":
		line = m.styles.ErrorStyle().Render(m.status)
	case m.toast != "":
		line = lipgloss.NewStyle().Foreground(m.styles.Running).Bold(true).Padding(0, 2).Render("» " + m.toast)
	case m.status != "":
		line = m.styles.HelpStyle().Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left, FitLine(line, m.width), FitLine(m.renderHelpText(), m.width))
}

// renderHelpText renders context-aware help text at the bottom
func (m MainModel) renderHelpText() string {
	keyStyle := lipgloss.NewStyle().Foreground(m.styles.PrimaryBlue).Bold(true)
	sepStyle := lipgloss.NewStyle().Foreground(m.styles.TextSecondary)

	var helpText string
	switch {
	case m.mode != inputNone:
		helpText = fmt.Sprintf("%s: Confirm %s %s: Cancel",
			keyStyle.Render("Enter"), sepStyle.Render("•"),
			keyStyle.Render("Esc"))
	case m.detailFocused:
		helpText = fmt.Sprintf("%s: Scroll %s %s: Back %s %s: Quit",
			keyStyle.Render("j/k"), sepStyle.Render("•"),
			keyStyle.Render("Esc"), sepStyle.Render("•"),
			keyStyle.Render("q"))
	default:
		toggle := "Start"
		if m.snap.IsMonitoring {
			toggle = "Stop"
		}
		helpText = fmt.Sprintf("%s: Nav %s %s: Add %s %s: Remove %s %s: Clear done %s %s: Refresh %s %s: %s %s %s: URL %s %s %s",
			keyStyle.Render("j/k"), sepStyle.Render("•"),
			keyStyle.Render("a"), sepStyle.Render("•"),
			keyStyle.Render("d"), sepStyle.Render("•"),
			keyStyle.Render("c"), sepStyle.Render("•"),
			keyStyle.Render("r"), sepStyle.Render("•"),
			keyStyle.Render("s"), toggle, sepStyle.Render("•"),
			keyStyle.Render("o"), sepStyle.Render("•"),
			keyStyle.Render("/"), keyStyle.Render("q"))
	}

	return m.styles.HelpStyle().Render(helpText)
}

// resizeComponents handles window resize events
func (m *MainModel) resizeComponents() {
	dims := m.calculateDimensions()

	// Resize list view (accounting for panel borders)
	m.listView.SetSize(dims.leftPanelWidth-2, dims.availableHeight)
	m.listView.GetDelegate().now = m.now
	m.header.now = m.now

	// Resize viewport for detail panel (accounting for borders and title row)
	m.detailViewport.Width = dims.rightPanelWidth - 4
	m.detailViewport.Height = dims.availableHeight - 1
	m.input.Width = max(m.width-20, 10)

	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selectedItem)
	}
}
