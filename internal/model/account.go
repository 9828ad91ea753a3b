// Package model defines the shared record types for leads and duplicate analysis.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is a business lead record.
type Account struct {
	ID          int64  `json:"id" db:"id"`
	ExternalID  string `json:"external_id" db:"external_id"`
	CompanyName string `json:"company_name" db:"company_name"`
	Address     string `json:"address,omitempty" db:"address"`
	Phone       string `json:"phone,omitempty" db:"phone"`
	Website     string `json:"website,omitempty" db:"website"`

	City       string `json:"city,omitempty" db:"city"`
	County     string `json:"county,omitempty" db:"county"`
	ZipCode    string `json:"zip_code,omitempty" db:"zip_code"`
	Industry   string `json:"industry,omitempty" db:"industry"`
	DataSource string `json:"data_source,omitempty" db:"data_source"`

	// Deduplication flags
	PossibleDuplicate bool   `json:"possible_duplicate" db:"possible_duplicate"`
	DuplicateGroupID  string `json:"duplicate_group_id,omitempty" db:"duplicate_group_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Data sources.
const (
	DataSourceExcelImport = "Excel Import"
	DataSourceManual      = "Manual"
	DataSourceSalesforce  = "Salesforce"
)

// accountNamespace scopes the name-based UUIDs minted for imported leads.
var accountNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("leads-cli/accounts"))

// ImportExternalID returns a stable UUID for one spreadsheet row so that
// re-importing the same workbook updates rows instead of inserting them again.
// The source (file and sheet) and row number keep distinct rows of one import
// apart even when they carry the same company and address. Case and
// surrounding whitespace in the name and address are ignored.
func ImportExternalID(source string, row int, companyName, address string) string {
	key := strings.Join([]string{
		source,
		strconv.Itoa(row),
		strings.ToLower(strings.TrimSpace(companyName)),
		strings.ToLower(strings.TrimSpace(address)),
	}, "\x00")
	return uuid.NewSHA1(accountNamespace, []byte(key)).String()
}

// DuplicateAnalysis is one persisted match row from a deduplication run.
type DuplicateAnalysis struct {
	ID                     int64     `json:"id" db:"id"`
	DuplicateGroupID       string    `json:"duplicate_group_id" db:"duplicate_group_id"`
	AccountIDA             int64     `json:"account_id_a" db:"account_id_a"`
	AccountIDB             int64     `json:"account_id_b" db:"account_id_b"`
	NameSimilarityScore    float64   `json:"name_similarity_score" db:"name_similarity_score"`
	AddressSimilarityScore float64   `json:"address_similarity_score" db:"address_similarity_score"`
	OverallSimilarityScore float64   `json:"overall_similarity_score" db:"overall_similarity_score"`
	MatchReason            string    `json:"match_reason,omitempty" db:"match_reason"`
	MatchedFields          string    `json:"matched_fields,omitempty" db:"matched_fields"` // comma-separated
	AlgorithmVersion       string    `json:"algorithm_version" db:"algorithm_version"`
	AnalyzedAt             time.Time `json:"analyzed_at" db:"analyzed_at"`
}

// Fields splits the comma-separated MatchedFields column.
func (d DuplicateAnalysis) Fields() []string {
	if d.MatchedFields == "" {
		return nil
	}
	return strings.Split(d.MatchedFields, ",")
}

// GroupSummary is a duplicate group with the number of match rows it holds.
type GroupSummary struct {
	DuplicateGroupID string `json:"duplicate_group_id" db:"duplicate_group_id"`
	MatchCount       int64  `json:"match_count" db:"match_count"`
}

// DedupStats summarizes the state of deduplication across all leads.
type DedupStats struct {
	TotalLeads        int64  `json:"total_leads"`
	DuplicateLeads    int64  `json:"duplicate_leads"`
	DuplicateGroups   int    `json:"duplicate_groups"`
	DeduplicationRate string `json:"deduplication_rate"`
}

// DeduplicationRate formats the share of duplicate leads as a percentage.
func DeduplicationRate(total, duplicates int64) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(duplicates)/float64(total)*100)
}
