package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"buildwatch/src/provider"
	"buildwatch/src/sanitize"
)

// checkTimeout bounds the single API call made by check.
const checkTimeout = 30 * time.Second

// errBuildFailed makes check exit non-zero for failed builds with --exit-code.
var errBuildFailed = errors.New("build did not pass")

var checkExitCode bool

var checkCmd = &cobra.Command{
	Use:   "check <build-url>",
	Short: "Print the current state of one build",
	Long: `Fetch a single build once and print its state, duration and failed steps.

Only BUILDKITE_API_TOKEN is required; the organization comes from the URL.`,
	Example: `  buildwatch check https://buildkite.com/acme/deploy/builds/4091
  buildwatch check --exit-code https://buildkite.com/acme/deploy/builds/4091`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.BuildkiteAPIToken == "" {
			return errors.New("configuration error: BUILDKITE_API_TOKEN is required")
		}

		ref, err := provider.ParseURL(args[0])
		if err != nil {
			return provider.WrapError(err)
		}

		factory, err := provider.LookupClient("buildkite")
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()

		build, err := factory(cfg.BuildkiteAPIToken).GetBuild(ctx, ref.Org, ref.Pipeline, ref.Number)
		if err != nil {
			return provider.WrapError(err)
		}

		printBuild(cmd.OutOrStdout(), *build, time.Now())
		if checkExitCode && build.State.IsCompleted() && build.State != provider.StatePassed {
			return errBuildFailed
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkExitCode, "exit-code", false, "exit non-zero when the build finished without passing")
}

// printBuild writes a short human summary of a build.
func printBuild(w io.Writer, b provider.Build, now time.Time) {
	fmt.Fprintf(w, "%s %s #%d: %s\n", b.State.Symbol(), b.PipelineName, b.Number, b.State.DisplayName())
	if b.Branch != "" {
		fmt.Fprintf(w, "  branch:   %s\n", sanitize.FirstLine(b.Branch))
	}
	if msg := sanitize.Summary(b.CommitMessage, 72); msg != "" {
		fmt.Fprintf(w, "  message:  %s\n", msg)
	}
	if d := b.Duration(now); d > 0 {
		fmt.Fprintf(w, "  duration: %s\n", d.Round(time.Second))
	}
	fmt.Fprintf(w, "  url:      %s\n", b.Ref().URL())

	for _, step := range b.Steps {
		if step.State != "failed" && (step.ExitStatus == nil || *step.ExitStatus == 0) {
			continue
		}
		line := fmt.Sprintf("  failed:   %s", sanitize.StepLabel(step.Name))
		if step.ExitStatus != nil {
			line += fmt.Sprintf(" (exit %d)", *step.ExitStatus)
		}
		fmt.Fprintln(w, line)
	}
}
