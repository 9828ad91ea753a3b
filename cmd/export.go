package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/dedup"
	"github.com/sells-group/leads-cli/internal/excel"
	"github.com/sells-group/leads-cli/internal/store"
)

var exportOutPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads and duplicate matches to an Excel workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := buildReport(ctx, st, newAnalyzer(st))
		if err != nil {
			return err
		}
		if err := excel.WriteReport(exportOutPath, report); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("out", exportOutPath),
			zap.Int("accounts", len(report.Accounts)),
			zap.Int("matches", len(report.Matches)),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d leads and %d duplicate matches to %s\n",
			len(report.Accounts), len(report.Matches), exportOutPath)
		return nil
	},
}

// buildReport gathers every account, every match row and the current stats.
func buildReport(ctx context.Context, st store.Store, analyzer *dedup.Analyzer) (*excel.Report, error) {
	accounts, err := st.LoadAllAccounts(ctx, 0)
	if err != nil {
		return nil, err
	}

	rows, err := st.ListDuplicateAnalysis(ctx)
	if err != nil {
		return nil, err
	}
	details, err := resolveMatches(ctx, st, rows)
	if err != nil {
		return nil, err
	}

	stats, err := analyzer.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &excel.Report{
		Accounts:    accounts,
		Matches:     reportMatches(details),
		Stats:       *stats,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "duplicates.xlsx", "output .xlsx path")
	rootCmd.AddCommand(exportCmd)
}
