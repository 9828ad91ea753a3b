package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/excel"
)

var (
	importXLSXPath string
	importSheet    string
	importSkipRows int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from an Excel workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importSkipRows < 0 {
			return eris.New("--skip-rows must be >= 0")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := excel.ParseAccounts(ctx, importXLSXPath, excel.Options{
			SheetName: importSheet,
			SkipRows:  importSkipRows,
		})
		if err != nil {
			return err
		}

		imported, err := st.InsertAccounts(ctx, res.Accounts)
		if err != nil {
			return eris.Wrap(err, "import accounts")
		}

		zap.L().Info("import complete",
			zap.String("xlsx", importXLSXPath),
			zap.Int("rows", res.Rows),
			zap.Int64("imported", imported),
			zap.Int("skipped", res.Skipped),
		)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res.Message(imported))
		for _, e := range res.Errors {
			fmt.Fprintln(out, "  "+e)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "path to .xlsx file (required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (default first sheet)")
	importCmd.Flags().IntVar(&importSkipRows, "skip-rows", 0, "rows above the header row to skip")
	_ = importCmd.MarkFlagRequired("xlsx")
	rootCmd.AddCommand(importCmd)
}
