package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ASCII art logo lines for the loading screen
var buildwatchLogo = []string{
	"█▀▄ █ █ █ █   █▀▄   █ █ █ ▄▀▄ ▀█▀ ▄▀▀ █ █",
	"█▀▄ █ █ █ █   █ █   █▄█▄█ █▀█  █  █   █▀█",
	"▀▀  ▀▀▀ ▀ ▀▀▀ ▀▀    ▀   ▀ ▀ ▀  ▀   ▀▀ ▀ ▀",
}

// Gradient colors from light (top) to dark (bottom)
var logoGradientColors = []string{
	"#5DADE2",
	"#3498DB",
	"#2874A6",
}

// Spinner frames for the loading animation
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SpinnerTickMsg triggers spinner animation frame advance
type SpinnerTickMsg time.Time

// ProgressModel is the spinner shown until the first fetch completes.
type ProgressModel struct {
	stage        string
	done         bool
	spinnerFrame int
}

func NewProgressModel() ProgressModel {
	return ProgressModel{spinnerFrame: 0}
}

// SpinnerTick returns a command that sends SpinnerTickMsg after a delay
func SpinnerTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return SpinnerTickMsg(t)
	})
}

// SetStage changes the text next to the spinner.
func (m *ProgressModel) SetStage(stage string) {
	m.stage = stage
}

// Finish stops the spinner; later ticks are not re-armed.
func (m *ProgressModel) Finish() {
	m.done = true
}

func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	if _, ok := msg.(SpinnerTickMsg); ok {
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		if !m.done {
			return m, SpinnerTick()
		}
	}
	return m, nil
}

func (m ProgressModel) View() string {
	// Render logo with gradient colors (each line gets a different color)
	var logoLines []string
	for i, line := range buildwatchLogo {
		color := logoGradientColors[i%len(logoGradientColors)]
		style := lipgloss.NewStyle().
			Foreground(lipgloss.Color(color)).
			Bold(true)
		logoLines = append(logoLines, style.Render(line))
	}
	logo := strings.Join(logoLines, "\n")

	spinner := spinnerFrames[m.spinnerFrame]
	spinnerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")) // Gold

	stage := m.stage
	if stage == "" {
		stage = "Loading..."
	}
	statusLine := spinnerStyle.Render(spinner) + " " + stage
	if m.done {
		statusLine = stage
	}

	return lipgloss.JoinVertical(lipgloss.Center, logo, "", statusLine)
}
