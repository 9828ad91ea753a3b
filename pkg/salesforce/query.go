package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account represents the Salesforce Account fields a lead is built from.
type Account struct {
	ID                string `json:"Id" salesforce:"Id"`
	Name              string `json:"Name" salesforce:"Name"`
	Website           string `json:"Website" salesforce:"Website"`
	Industry          string `json:"Industry" salesforce:"Industry"`
	Phone             string `json:"Phone" salesforce:"Phone"`
	BillingStreet     string `json:"BillingStreet" salesforce:"BillingStreet"`
	BillingCity       string `json:"BillingCity" salesforce:"BillingCity"`
	BillingState      string `json:"BillingState" salesforce:"BillingState"`
	BillingPostalCode string `json:"BillingPostalCode" salesforce:"BillingPostalCode"`
}

// accountFields are the SOQL fields selected for Account queries.
var accountFields = []string{
	"Id", "Name", "Website", "Industry", "Phone",
	"BillingStreet", "BillingCity", "BillingState", "BillingPostalCode",
}

// ListOptions narrows an Account listing.
type ListOptions struct {
	// Limit caps the number of accounts; 0 means no limit.
	Limit    int
	Industry string
}

// ListAccounts queries Accounts ordered by creation date.
func ListAccounts(ctx context.Context, c Client, opts ListOptions) ([]Account, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM Account", strings.Join(accountFields, ", "))
	if opts.Industry != "" {
		fmt.Fprintf(&b, " WHERE Industry = '%s'", escapeSoql(opts.Industry))
	}
	b.WriteString(" ORDER BY CreatedDate")
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}

	var accounts []Account
	if err := c.Query(ctx, b.String(), &accounts); err != nil {
		return nil, eris.Wrap(err, "sf: list accounts")
	}
	return accounts, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
