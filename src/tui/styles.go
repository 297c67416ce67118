package tui

import (
	"github.com/charmbracelet/lipgloss"

	"buildwatch/src/provider"
)

// StyleConfig holds all customizable style colors for the dashboard.
type StyleConfig struct {
	// Primary colors
	PrimaryBlue    lipgloss.Color
	AccentBlue     lipgloss.Color
	DarkBackground lipgloss.Color
	CardBackground lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SelectedColor  lipgloss.Color

	// State colors
	Success lipgloss.Color
	Failure lipgloss.Color
	Running lipgloss.Color
	Blocked lipgloss.Color
	Muted   lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:    lipgloss.Color("#8AB4F8"),
		AccentBlue:     lipgloss.Color("#4285F4"),
		DarkBackground: lipgloss.Color("#1E1E1E"),
		CardBackground: lipgloss.Color("#2D2D2D"),
		TextPrimary:    lipgloss.Color("#E8EAED"),
		TextSecondary:  lipgloss.Color("#9AA0A6"),
		BorderColor:    lipgloss.Color("#5F6368"),
		SelectedColor:  lipgloss.Color("#303134"),
		Success:        lipgloss.Color("#34A853"), // Green
		Failure:        lipgloss.Color("#EA4335"), // Red
		Running:        lipgloss.Color("#FBBC04"), // Yellow
		Blocked:        lipgloss.Color("#A142F4"), // Purple
		Muted:          lipgloss.Color("#5F6368"),
	}
}

// StateColor picks the accent for a build state.
func (s *StyleConfig) StateColor(state provider.BuildState) lipgloss.Color {
	switch state {
	case provider.StatePassed:
		return s.Success
	case provider.StateFailed, provider.StateWaitingFailed:
		return s.Failure
	case provider.StateRunning, provider.StateCanceling:
		return s.Running
	case provider.StateBlocked:
		return s.Blocked
	case provider.StateScheduled, provider.StateWaiting:
		return s.TextSecondary
	}
	return s.Muted
}

// StateStyle renders text in the state's accent.
func (s *StyleConfig) StateStyle(state provider.BuildState) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.StateColor(state))
}

// TitleStyle returns a title lipgloss style using this config
func (s *StyleConfig) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.PrimaryBlue).
		Bold(true).
		Padding(0, 1)
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 2)
}

// ErrorStyle is used for the error banner and failed actions.
func (s *StyleConfig) ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.Failure).
		Bold(true).
		Padding(0, 2)
}
