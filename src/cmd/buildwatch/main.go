// Package main provides the buildwatch CLI: a terminal dashboard, headless
// daemon and MCP server over the same build monitor.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "buildwatch/src/buildkite" // Import for provider registration
	"buildwatch/src/config"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath  string
	org         string
	interval    string
	storeDSN    string
	brokers     []string
	metricsAddr string
	logFile     string
}

var flags globalFlags

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "buildwatch",
	Short: "buildwatch - watch your Buildkite builds",
	Long: `buildwatch polls Buildkite for the builds you created, plus any build
you add by URL, and tells you when they change state.

Configuration is read from --config, ./buildwatch.yaml or
~/.buildwatch/config.yaml, then overridden by environment variables
(BUILDKITE_API_TOKEN, BUILDKITE_ORG, ...) and finally by flags.

Running without a subcommand opens the dashboard.`,
	SilenceUsage: true,
	Args:         cobra.ArbitraryArgs,
	RunE:         runWatch,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&flags.org, "org", "", "Buildkite organization slug")
	pf.StringVar(&flags.interval, "interval", "", "poll interval (15s, 30s, 60s or 120s)")
	pf.StringVar(&flags.storeDSN, "store", "", "history store: postgres://..., a SQLite file path, or memory:")
	pf.StringSliceVar(&flags.brokers, "brokers", nil, "Redpanda/Kafka seed brokers for transition events")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	pf.StringVar(&flags.logFile, "log-file", "", "append logs to this file")

	rootCmd.AddCommand(watchCmd, runCmd, checkCmd, mcpCmd, historyCmd)
}

// loadConfig resolves file, environment and flag settings, in that order.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, flags); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides cfg with every flag that was set.
func applyFlags(cfg *config.Config, f globalFlags) error {
	if f.org != "" {
		cfg.Organization = f.org
	}
	if f.interval != "" {
		d, err := config.ParsePollInterval(f.interval)
		if err != nil {
			return fmt.Errorf("--interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if f.storeDSN != "" {
		cfg.StoreDSN = f.storeDSN
	}
	if len(f.brokers) > 0 {
		cfg.Brokers = f.brokers
	}
	if f.metricsAddr != "" {
		cfg.MetricsAddr = f.metricsAddr
	}
	if f.logFile != "" {
		cfg.LogFile = f.logFile
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
