package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leads-cli/internal/dedup"
)

var (
	groupsGroupID string
	groupsFormat  string
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List duplicate groups, or the matches in one group",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		out := cmd.OutOrStdout()

		if groupsGroupID == "" {
			groups, err := st.ListDuplicateGroups(ctx)
			if err != nil {
				return err
			}
			return writeOutput(out, groupsFormat, groups, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "GROUP\tMATCHES")
				for _, g := range groups {
					fmt.Fprintf(tw, "%s\t%d\n", g.DuplicateGroupID, g.MatchCount)
				}
			})
		}

		rows, err := st.GetDuplicatesByGroup(ctx, groupsGroupID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return eris.Errorf("duplicate group not found: %s", groupsGroupID)
		}
		details, err := resolveMatches(ctx, st, rows)
		if err != nil {
			return err
		}
		return writeOutput(out, groupsFormat, details, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "COMPANY A\tCOMPANY B\tNAME %\tADDRESS %\tOVERALL %\tREASON")
			for _, d := range details {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					companyName(d.AccountA), companyName(d.AccountB),
					dedup.FormatScore(d.NameSimilarityScore),
					dedup.FormatScore(d.AddressSimilarityScore),
					dedup.FormatScore(d.OverallSimilarityScore),
					d.MatchReason)
			}
		})
	},
}

func init() {
	groupsCmd.Flags().StringVar(&groupsGroupID, "group", "", "show the matches of one duplicate group")
	groupsCmd.Flags().StringVar(&groupsFormat, "format", formatTable, "output format: table, json or yaml")
	rootCmd.AddCommand(groupsCmd)
}
