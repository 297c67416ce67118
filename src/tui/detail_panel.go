package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"buildwatch/src/sanitize"
)

const timeLayout = "Jan 2 15:04:05"

// renderDetail renders the detail content for a build
func (m MainModel) renderDetail(item Item, maxWidth int) string {
	b := item.Build
	content := strings.Builder{}
	labelStyle := lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Bold(true)

	// Detail Header
	header := m.styles.StateStyle(b.State).
		Bold(true).
		Render(fmt.Sprintf("%s %s", b.State.Symbol(), b.State.DisplayName()))
	fmt.Fprintf(&content, "%s\n\n", header)

	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&content, "%s %s\n", labelStyle.Render(label+":"), Truncate(value, maxWidth-len(label)-2, true))
	}

	field("Branch", item.Branch())
	if sha := b.CommitSHA; sha != "" {
		field("Commit", sha[:min(len(sha), 12)])
	}
	if b.AddedManually {
		field("Tracked", "added by URL")
	}
	field("Created", formatTime(b.CreatedAt))
	if b.StartedAt != nil {
		field("Started", formatTime(*b.StartedAt))
	}
	if b.FinishedAt != nil {
		field("Finished", formatTime(*b.FinishedAt))
	}
	if d := b.Duration(m.now()); d > 0 {
		field("Duration", formatDuration(d))
	}
	field("URL", item.URL())
	fmt.Fprintln(&content)

	// Commit message, wrapped before styling
	if msg := strings.TrimSpace(sanitize.StripANSI(b.CommitMessage)); msg != "" {
		fmt.Fprintln(&content, labelStyle.Render("Message:"))
		for _, line := range SplitLines(msg) {
			if strings.TrimSpace(line) == "" {
				continue
			}
			fmt.Fprintln(&content, Wrap(line, maxWidth))
		}
		fmt.Fprintln(&content)
	}

	// Steps
	if len(b.Steps) > 0 {
		fmt.Fprintln(&content, labelStyle.Render("Steps:"))
		for _, step := range b.Steps {
			failed := step.State == "failed" || (step.ExitStatus != nil && *step.ExitStatus != 0)
			style := lipgloss.NewStyle().Foreground(m.styles.TextSecondary)
			if failed {
				style = lipgloss.NewStyle().Foreground(m.styles.Failure).Bold(true)
			}
			line := fmt.Sprintf("%-10s %s", step.State, sanitize.StepLabel(step.Name))
			if step.ExitStatus != nil && *step.ExitStatus != 0 {
				line += fmt.Sprintf(" (exit %d)", *step.ExitStatus)
			}
			fmt.Fprintln(&content, style.Render(Truncate(line, maxWidth, true)))
		}
	}

	return content.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

// updateDetailContent updates the viewport with content from the selected item
func (m *MainModel) updateDetailContent(item Item) {
	// The viewport's width is the max width for the content.
	// Subtract a small amount for internal padding.
	maxWidth := m.detailViewport.Width - 2 // 1 char padding on each side
	content := m.renderDetail(item, maxWidth)
	m.detailViewport.SetContent(content)
}

// renderDetailPanel renders the right panel with detail viewport
func (m MainModel) renderDetailPanel(width, height int) string {
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		// Add header row with the build title
		headerRow := lipgloss.NewStyle().
			Foreground(m.styles.PrimaryBlue).
			Bold(true).
			Padding(0, 1).
			Render(Truncate(selectedItem.Title(), width-2, true))

		// Show viewport content
		borderStyle := m.styles.BorderColor
		if m.detailFocused {
			borderStyle = m.styles.AccentBlue
		}

		return lipgloss.JoinVertical(lipgloss.Left, headerRow,
			lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(borderStyle).
				Width(width - 2).
				Height(height).
				Render(m.detailViewport.View()))
	}

	// No selection - show empty state
	placeholderRow := lipgloss.NewStyle().
		Foreground(m.styles.TextSecondary).
		Padding(0, 1).
		Render(" ")

	emptyStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.BorderColor).
		Width(width - 2).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(m.styles.TextSecondary).
		Faint(true)

	return lipgloss.JoinVertical(lipgloss.Left, placeholderRow, emptyStyle.Render("Select a build to view details"))
}
