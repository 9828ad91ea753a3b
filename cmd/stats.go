package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show deduplication statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := newAnalyzer(st).Stats(ctx)
		if err != nil {
			return err
		}

		return writeOutput(cmd.OutOrStdout(), statsFormat, stats, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Total leads:\t%d\n", stats.TotalLeads)
			fmt.Fprintf(tw, "Possible duplicates:\t%d\n", stats.DuplicateLeads)
			fmt.Fprintf(tw, "Duplicate groups:\t%d\n", stats.DuplicateGroups)
			fmt.Fprintf(tw, "Deduplication rate:\t%s\n", stats.DeduplicationRate)
		})
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", formatTable, "output format: table, json or yaml")
	rootCmd.AddCommand(statsCmd)
}
