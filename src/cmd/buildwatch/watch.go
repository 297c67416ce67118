package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"buildwatch/src/contracts"
	"buildwatch/src/logger"
	"buildwatch/src/tui"
)

// tuiGroupID is the consumer group the dashboard reads transitions with.
const tuiGroupID = "buildwatch-tui"

var watchCmd = &cobra.Command{
	Use:   "watch [build-url...]",
	Short: "Open the build dashboard",
	Long: `Open the terminal dashboard and start monitoring.

Any build URLs given are tracked in addition to your own builds.
Logs go to --log-file when set; otherwise they are discarded so they do not
disturb the screen.`,
	Example: `  buildwatch watch
  buildwatch watch https://buildkite.com/acme/deploy/builds/4091`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	a, err := newApp(cfg, logger.NewSilentLogger())
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	toasts, err := a.broker.Subscribe(ctx, contracts.TopicTransitions, tuiGroupID)
	if err != nil {
		a.log.Warn("[Watch] transition toasts disabled: %v", err)
		toasts = nil
	}

	// Start in the background so the dashboard shows up immediately; the
	// engine publishes progress through its snapshots.
	go func() {
		if err := a.start(ctx, args); err != nil {
			a.log.Error("[Watch] failed to start monitoring: %v", err)
		}
	}()

	program := tea.NewProgram(
		tui.NewModel(ctx, a.engine, toasts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
