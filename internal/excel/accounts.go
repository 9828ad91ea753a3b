package excel

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
)

// Lead sheet column headers.
const (
	ColCompanyName = "Company Name"
	ColAddress     = "Address"
	ColCity        = "City"
	ColCounty      = "County"
	ColZipCode     = "Zip Code"
	ColZIPCode     = "ZIP Code"
	ColPhone       = "Phone"
	ColWebsite     = "Website"
	ColIndustry    = "Industry"
)

// MaxImportErrors caps the row errors kept on an ImportResult.
const MaxImportErrors = 10

// ImportResult is the outcome of parsing a lead sheet.
type ImportResult struct {
	Accounts []model.Account `json:"-"`
	Rows     int             `json:"rows"`
	Skipped  int             `json:"skipped"`
	Errors   []string        `json:"errors,omitempty"`
}

// Message summarizes the result for display once accounts are stored.
func (r *ImportResult) Message(imported int64) string {
	return fmt.Sprintf("Successfully imported %d leads. Skipped %d rows.", imported, r.Skipped)
}

func (r *ImportResult) skip(rowNum int, reason string) {
	r.Skipped++
	if len(r.Errors) < MaxImportErrors {
		r.Errors = append(r.Errors, fmt.Sprintf("Row %d: %s", rowNum, reason))
	}
}

// ParseAccounts reads leads from an XLSX sheet, the first one unless
// opts.SheetName is set. The first row after opts.SkipRows is the header.
// Rows missing a company name or address are skipped and reported by sheet
// row number.
func ParseAccounts(ctx context.Context, path string, opts Options) (*ImportResult, error) {
	source := filepath.Base(path)
	if opts.SheetName != "" {
		source += ":" + opts.SheetName
	}

	recCh, errCh := StreamRecords(ctx, path, opts)

	res := &ImportResult{}
	for rec := range recCh {
		res.Rows++
		if rec.Fields[ColCompanyName] == "" || rec.Fields[ColAddress] == "" {
			res.skip(rec.Row, "Missing required fields (Company Name or Address)")
			continue
		}
		a := recordToAccount(rec.Fields)
		a.ExternalID = model.ImportExternalID(source, rec.Row, a.CompanyName, a.Address)
		res.Accounts = append(res.Accounts, a)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "excel: parse accounts")
	}
	return res, nil
}

func recordToAccount(rec map[string]string) model.Account {
	zip := rec[ColZipCode]
	if zip == "" {
		zip = rec[ColZIPCode]
	}
	return model.Account{
		CompanyName: rec[ColCompanyName],
		Address:     rec[ColAddress],
		City:        rec[ColCity],
		County:      rec[ColCounty],
		ZipCode:     zip,
		Phone:       rec[ColPhone],
		Website:     rec[ColWebsite],
		Industry:    rec[ColIndustry],
		DataSource:  model.DataSourceExcelImport,
	}
}
