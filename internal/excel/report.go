package excel

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leads-cli/internal/dedup"
	"github.com/sells-group/leads-cli/internal/model"
)

// Report sheet names.
const (
	SheetAccounts   = "Accounts"
	SheetDuplicates = "Duplicates"
	SheetSummary    = "Summary"
)

const (
	headerFill    = "FF1F4788"
	duplicateFill = "FFFFF4CC"
	notAvailable  = "N/A"
)

var accountHeader = []string{
	ColCompanyName, ColAddress, ColCounty, ColCity, ColZipCode, ColPhone, ColWebsite, ColIndustry,
	"Possible Duplicate", "Duplicate Group ID",
}

var duplicateHeader = []string{
	"Duplicate Group ID", "Company A", "Address A", "Company B", "Address B",
	"Name Similarity %", "Address Similarity %", "Overall Similarity %", "Match Reason", "Matched Fields",
}

// ReportMatch is one duplicate analysis row with both accounts resolved.
// Either account may be nil if it no longer exists.
type ReportMatch struct {
	Analysis model.DuplicateAnalysis
	AccountA *model.Account
	AccountB *model.Account
}

// Report is the content of an exported deduplication workbook.
type Report struct {
	Accounts    []model.Account
	Matches     []ReportMatch
	Stats       model.DedupStats
	GeneratedAt time.Time
}

// WriteReport writes an Accounts sheet (re-importable), a Duplicates sheet
// with one row per match, and a Summary sheet.
func WriteReport(path string, r *Report) error {
	f := xlsx.NewFile()

	if err := writeAccountsSheet(f, r.Accounts); err != nil {
		return err
	}
	if err := writeDuplicatesSheet(f, r.Matches); err != nil {
		return err
	}
	if err := writeSummarySheet(f, r); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "excel: save report %s", path)
	}
	return nil
}

func writeAccountsSheet(f *xlsx.File, accounts []model.Account) error {
	sheet, err := f.AddSheet(SheetAccounts)
	if err != nil {
		return eris.Wrap(err, "excel: add accounts sheet")
	}
	addHeaderRow(sheet, accountHeader)

	for _, a := range accounts {
		dup := "No"
		if a.PossibleDuplicate {
			dup = "Yes"
		}
		row := addRow(sheet, []string{
			a.CompanyName, a.Address, a.County, a.City, a.ZipCode, a.Phone, a.Website, a.Industry,
			dup, a.DuplicateGroupID,
		})
		if a.PossibleDuplicate {
			fillRow(row, duplicateFill)
		}
	}
	return nil
}

func writeDuplicatesSheet(f *xlsx.File, matches []ReportMatch) error {
	sheet, err := f.AddSheet(SheetDuplicates)
	if err != nil {
		return eris.Wrap(err, "excel: add duplicates sheet")
	}
	addHeaderRow(sheet, duplicateHeader)

	for _, m := range matches {
		companyA, addressA := accountCells(m.AccountA)
		companyB, addressB := accountCells(m.AccountB)
		addRow(sheet, []string{
			m.Analysis.DuplicateGroupID,
			companyA, addressA, companyB, addressB,
			dedup.FormatScore(m.Analysis.NameSimilarityScore),
			dedup.FormatScore(m.Analysis.AddressSimilarityScore),
			dedup.FormatScore(m.Analysis.OverallSimilarityScore),
			m.Analysis.MatchReason,
			m.Analysis.MatchedFields,
		})
	}
	return nil
}

func writeSummarySheet(f *xlsx.File, r *Report) error {
	sheet, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "excel: add summary sheet")
	}
	addHeaderRow(sheet, []string{"Metric", "Value"})

	generated := r.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	for _, kv := range [][2]string{
		{"Generated", generated.Format(time.RFC3339)},
		{"Total Leads", fmt.Sprintf("%d", r.Stats.TotalLeads)},
		{"Possible Duplicates", fmt.Sprintf("%d", r.Stats.DuplicateLeads)},
		{"Duplicate Groups", fmt.Sprintf("%d", r.Stats.DuplicateGroups)},
		{"Duplicate Matches", fmt.Sprintf("%d", len(r.Matches))},
		{"Deduplication Rate", r.Stats.DeduplicationRate},
	} {
		addRow(sheet, kv[:])
	}
	return nil
}

func accountCells(a *model.Account) (string, string) {
	if a == nil {
		return notAvailable, notAvailable
	}
	company, address := a.CompanyName, a.Address
	if company == "" {
		company = notAvailable
	}
	if address == "" {
		address = notAvailable
	}
	return company, address
}

func addRow(sheet *xlsx.Sheet, values []string) *xlsx.Row {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
	return row
}

func addHeaderRow(sheet *xlsx.Sheet, values []string) {
	row := addRow(sheet, values)
	for _, cell := range row.Cells {
		style := cell.GetStyle()
		style.Font.Bold = true
		style.Font.Color = "FFFFFFFF"
		style.ApplyFont = true
	}
	fillRow(row, headerFill)
}

func fillRow(row *xlsx.Row, argb string) {
	for _, cell := range row.Cells {
		style := cell.GetStyle()
		style.Fill = *xlsx.NewFill("solid", argb, argb)
		style.ApplyFill = true
	}
}
