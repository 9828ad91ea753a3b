package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/dedup"
)

var (
	dedupReset  bool
	dedupDryRun bool
	dedupFormat string
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Find likely duplicate leads and flag them",
	Long:  "Loads leads, compares every pair by fuzzy company name and address, groups transitive matches and saves one analysis row per match.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("dedup"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reset := cfg.Dedup.ResetBeforeRun
		if cmd.Flags().Changed("reset") {
			reset = dedupReset
		}

		summary, err := newAnalyzer(st).Run(ctx, dedup.RunOptions{Reset: reset, DryRun: dedupDryRun})
		if err != nil {
			return err
		}

		zap.L().Info("dedup complete",
			zap.Int("accounts", summary.Accounts),
			zap.Int("matches", summary.Matches),
			zap.Int("groups", summary.Groups),
			zap.Bool("dry_run", summary.DryRun),
			zap.Duration("duration", summary.Duration),
		)

		return writeOutput(cmd.OutOrStdout(), dedupFormat, summary, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Accounts analyzed:\t%d\n", summary.Accounts)
			fmt.Fprintf(tw, "Pairs compared:\t%d\n", summary.PairsCompared)
			fmt.Fprintf(tw, "Matches:\t%d\n", summary.Matches)
			fmt.Fprintf(tw, "Duplicate groups:\t%d\n", summary.Groups)
			fmt.Fprintf(tw, "Flagged accounts:\t%d\n", summary.FlaggedAccounts)
			if summary.DryRun {
				fmt.Fprintln(tw, "Dry run:\tnothing saved")
			} else {
				fmt.Fprintf(tw, "Saved:\t%d\n", summary.Saved)
			}
		})
	},
}

func init() {
	dedupCmd.Flags().BoolVar(&dedupReset, "reset", false, "clear prior analysis before running (default from config)")
	dedupCmd.Flags().BoolVar(&dedupDryRun, "dry-run", false, "analyze without saving results")
	dedupCmd.Flags().StringVar(&dedupFormat, "format", formatTable, "output format: table, json or yaml")
	rootCmd.AddCommand(dedupCmd)
}
