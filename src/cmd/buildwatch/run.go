package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"buildwatch/src/logger"
	"buildwatch/src/monitor"
	"buildwatch/src/provider"
)

var runCmd = &cobra.Command{
	Use:   "run [build-url...]",
	Short: "Monitor builds without a UI",
	Long: `Monitor builds headlessly, logging every notification and diagnostic.

Transitions are published to the configured brokers and recorded in the
history store. Stops on SIGINT or SIGTERM after in-flight notifications
are delivered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		a, err := newApp(cfg, logger.NewConsoleLogger())
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		go func() {
			select {
			case <-sigChan:
				a.log.Info("Shutdown signal received, stopping monitor...")
				cancel()
			case <-ctx.Done():
			}
		}()

		snapshots, unsubscribe := a.engine.Subscribe()
		defer unsubscribe()

		a.log.Info("Starting buildwatch for %s (every %s)", cfg.Organization, cfg.PollInterval)
		if err := a.start(ctx, args); err != nil {
			return fmt.Errorf("failed to start monitoring: %w", provider.WrapError(err))
		}

		if err := waitForShutdown(ctx, snapshots); err != nil {
			return err
		}
		a.log.Info("buildwatch stopped")
		return nil
	},
}

// waitForShutdown blocks until ctx is done or the engine stops itself on a
// non-transient error (revoked token, deleted organization), which is
// returned so the daemon exits non-zero instead of idling.
func waitForShutdown(ctx context.Context, snapshots <-chan monitor.Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if !snap.IsMonitoring && snap.Error != nil && !snap.Error.Transient {
				return fmt.Errorf("monitoring stopped: %s", snap.Error.Banner())
			}
		}
	}
}
