package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"buildwatch/src/contracts"
	"buildwatch/src/store"
)

var (
	historyLimit       int
	historyDiagnostics bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded transitions and diagnostics",
	Long: `Print the most recent build transitions (and, with --diagnostics, the
diagnostic log) from the history store selected by --store.`,
	Example: `  buildwatch history --store ~/.buildwatch/history.db
  buildwatch history --store postgres://localhost/buildwatch --diagnostics --limit 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := store.Open(cfg.StoreDSN)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer s.Close()

		ctx := cmd.Context()
		transitions, err := s.RecentTransitions(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("reading transitions: %w", err)
		}
		out := cmd.OutOrStdout()
		printTransitions(out, transitions)

		if historyDiagnostics {
			diags, err := s.RecentDiagnostics(ctx, historyLimit)
			if err != nil {
				return fmt.Errorf("reading diagnostics: %w", err)
			}
			fmt.Fprintln(out)
			printDiagnostics(out, diags)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of rows to show")
	historyCmd.Flags().BoolVar(&historyDiagnostics, "diagnostics", false, "also show the diagnostic log")
}

const historyTimeLayout = "2006-01-02 15:04:05"

func printTransitions(w io.Writer, events []contracts.TransitionEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No transitions recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tBUILD\tBRANCH\tFROM\tTO")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s #%d\t%s\t%s\t%s\n",
			ev.ObservedAt.Local().Format(historyTimeLayout),
			ev.PipelineName, ev.Number, ev.Branch, ev.FromState, ev.ToState)
	}
	tw.Flush()
}

func printDiagnostics(w io.Writer, events []contracts.DiagnosticEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No diagnostics recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLEVEL\tCODE\tMESSAGE")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			ev.Timestamp.Local().Format(historyTimeLayout), ev.Level, ev.Code, ev.Message)
	}
	tw.Flush()
}
