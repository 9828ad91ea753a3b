package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
	sfpkg "github.com/sells-group/leads-cli/pkg/salesforce"
)

var (
	sfPullLimit    int
	sfPullIndustry string
	sfPushDryRun   bool
)

var salesforceCmd = &cobra.Command{
	Use:   "salesforce",
	Short: "Sync leads and duplicate flags with Salesforce",
}

var salesforcePullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import Salesforce Accounts as leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		sf, err := initSalesforce()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := sfpkg.ListAccounts(ctx, sf, sfpkg.ListOptions{Limit: sfPullLimit, Industry: sfPullIndustry})
		if err != nil {
			return err
		}

		accounts, skipped := accountsFromSalesforce(records)
		imported, err := st.InsertAccounts(ctx, accounts)
		if err != nil {
			return eris.Wrap(err, "import salesforce accounts")
		}

		zap.L().Info("salesforce pull complete",
			zap.Int("fetched", len(records)),
			zap.Int64("imported", imported),
			zap.Int("skipped", skipped),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully imported %d leads. Skipped %d rows.\n", imported, skipped)
		return nil
	},
}

var salesforcePushCmd = &cobra.Command{
	Use:   "push",
	Short: "Write duplicate flags back to Salesforce Accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		flagged, err := st.ListFlaggedAccounts(ctx)
		if err != nil {
			return err
		}
		updates := flagUpdates(flagged)

		out := cmd.OutOrStdout()
		if sfPushDryRun {
			fmt.Fprintf(out, "Would update %d Salesforce accounts.\n", len(updates))
			return nil
		}

		sf, err := initSalesforce()
		if err != nil {
			return err
		}

		results, err := sfpkg.BulkUpdateAccounts(ctx, sf, updates)
		if err != nil {
			return err
		}

		failed := sfpkg.FailedResults(results)
		for _, f := range failed {
			zap.L().Warn("salesforce update failed",
				zap.String("account_id", f.ID),
				zap.Strings("errors", f.Errors),
			)
		}

		fmt.Fprintf(out, "Updated %d Salesforce accounts. %d failed.\n", len(results)-len(failed), len(failed))
		return nil
	},
}

// accountsFromSalesforce converts Accounts to leads keyed by their Salesforce
// ID. Accounts without a name or billing street are skipped.
func accountsFromSalesforce(records []sfpkg.Account) ([]model.Account, int) {
	accounts := make([]model.Account, 0, len(records))
	skipped := 0
	for _, r := range records {
		name := strings.TrimSpace(r.Name)
		street := strings.TrimSpace(r.BillingStreet)
		if name == "" || street == "" {
			skipped++
			continue
		}
		accounts = append(accounts, model.Account{
			ExternalID:  r.ID,
			CompanyName: name,
			Address:     street,
			Phone:       strings.TrimSpace(r.Phone),
			Website:     strings.TrimSpace(r.Website),
			City:        strings.TrimSpace(r.BillingCity),
			ZipCode:     strings.TrimSpace(r.BillingPostalCode),
			Industry:    strings.TrimSpace(r.Industry),
			DataSource:  model.DataSourceSalesforce,
		})
	}
	return accounts, skipped
}

// flagUpdates selects the flagged leads that came from Salesforce.
func flagUpdates(flagged []model.Account) []sfpkg.AccountUpdate {
	var updates []sfpkg.AccountUpdate
	for _, a := range flagged {
		if a.DataSource != model.DataSourceSalesforce || a.ExternalID == "" || !a.PossibleDuplicate {
			continue
		}
		updates = append(updates, sfpkg.DuplicateFlagUpdate(a.ExternalID, a.DuplicateGroupID))
	}
	return updates
}

func init() {
	salesforcePullCmd.Flags().IntVar(&sfPullLimit, "limit", 0, "max accounts to pull (0 = all)")
	salesforcePullCmd.Flags().StringVar(&sfPullIndustry, "industry", "", "only pull accounts in this industry")
	salesforcePushCmd.Flags().BoolVar(&sfPushDryRun, "dry-run", false, "count updates without calling Salesforce")

	salesforceCmd.AddCommand(salesforcePullCmd, salesforcePushCmd)
	rootCmd.AddCommand(salesforceCmd)
}
