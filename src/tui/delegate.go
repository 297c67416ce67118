package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// listRenderingOverhead accounts for padding added by bubbles/list and panel borders.
	// Breakdown: panel border (2) + list internal padding/margins (8) = 10 chars total.
	listRenderingOverhead = 10

	// Fixed column widths.
	glyphWidth  = 1
	ageWidth    = 8
	markerWidth = 1
	branchWidth = 16
	// columnSeparators is the space after the glyph plus " │ " between
	// the remaining five columns.
	columnSeparators = 1 + 4*3
)

// manualMarker flags builds that were added by URL.
const manualMarker = "+"

// Delegate renders builds as table rows.
type Delegate struct {
	// PipelineWidth fits "pipeline #number" for the longest visible build.
	PipelineWidth int
	styles        *StyleConfig
	now           func() time.Time
}

// NewDelegate creates a new build table delegate with default styles
func NewDelegate() Delegate {
	return NewDelegateWithStyles(DefaultStyles())
}

// NewDelegateWithStyles creates a new delegate with custom styles
func NewDelegateWithStyles(styles *StyleConfig) Delegate {
	return Delegate{
		PipelineWidth: 12,
		styles:        styles,
		now:           time.Now,
	}
}

// SetColumnWidths sizes the pipeline column to the widest title, within bounds.
func (d *Delegate) SetColumnWidths(maxTitle int) {
	d.PipelineWidth = min(max(maxTitle, 12), 32)
}

// Height returns the height of a list item
func (d Delegate) Height() int {
	return 1
}

// Spacing returns spacing between items
func (d Delegate) Spacing() int {
	return 0
}

// Update handles item updates
func (d Delegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

// Render renders a list item
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(Item)
	if !ok {
		return
	}

	isSelected := index == m.Index()

	glyph := d.styles.StateStyle(entry.Build.State).Render(entry.Build.State.Symbol())
	titleCol := TruncateAndPad(entry.Title(), d.PipelineWidth, true)
	branchCol := TruncateAndPad(entry.Branch(), branchWidth, true)
	ageCol := TruncateAndPad(relativeTime(d.now(), entry.Build.SortTime()), ageWidth, false)
	markerCol := " "
	if entry.Build.AddedManually {
		markerCol = manualMarker
	}

	fixedWidth := glyphWidth + d.PipelineWidth + branchWidth + ageWidth + markerWidth + columnSeparators
	availableWidth := m.Width() - fixedWidth - listRenderingOverhead

	var message string
	if availableWidth > 0 {
		message = TruncateAndPad(entry.Message(), availableWidth, true)
	}

	line := fmt.Sprintf("%s │ %s │ %s │ %s │ %s",
		titleCol, branchCol, message, ageCol, markerCol)

	style := lipgloss.NewStyle().Foreground(d.styles.TextSecondary)
	if isSelected {
		style = style.Bold(true).Foreground(d.styles.PrimaryBlue).Background(d.styles.SelectedColor)
	}

	fmt.Fprint(w, glyph+" "+style.Render(line))
}
