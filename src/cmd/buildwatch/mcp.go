package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"buildwatch/src/logger"
	"buildwatch/src/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [build-url...]",
	Short: "Serve the build monitor over MCP on stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout.

Monitoring starts in the background; clients can list, add and remove
builds, force a refresh and read diagnostics and transition history.
Logs go to --log-file only, since stdout carries the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		go func() {
			if err := a.start(ctx, args); err != nil {
				a.log.Error("[MCP] failed to start monitoring: %v", err)
			}
		}()

		// Run server over stdin/stdout (stdio transport)
		if err := mcp.NewServer(a.engine, a.store).Run(); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	},
}
