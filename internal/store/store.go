// Package store persists leads and duplicate analysis rows.
package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/dedup"
	"github.com/sells-group/leads-cli/internal/model"
)

// Store defines the persistence interface for leads and duplicate analysis.
type Store interface {
	// Accounts
	InsertAccounts(ctx context.Context, accounts []model.Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	LoadAllAccounts(ctx context.Context, limit int) ([]model.Account, error)
	ListFlaggedAccounts(ctx context.Context) ([]model.Account, error)
	CountAccounts(ctx context.Context) (total int64, duplicates int64, err error)
	FlagAccountDuplicate(ctx context.Context, accountID int64, groupID string) error

	// Duplicate analysis
	WriteMatch(ctx context.Context, d *model.DuplicateAnalysis) error
	WriteMatches(ctx context.Context, records []*model.DuplicateAnalysis) error
	ClearDuplicateAnalysis(ctx context.Context) error
	ListDuplicateGroups(ctx context.Context) ([]model.GroupSummary, error)
	GetDuplicatesByGroup(ctx context.Context, groupID string) ([]model.DuplicateAnalysis, error)
	ListDuplicateAnalysis(ctx context.Context) ([]model.DuplicateAnalysis, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ dedup.Store       = Store(nil)
	_ dedup.BatchWriter = Store(nil)
)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Columns shared by every dialect, in scan order.
const (
	accountColumns = `id, external_id, company_name, address, phone, website, city, county, zip_code, industry,
	data_source, possible_duplicate, duplicate_group_id, created_at, updated_at`

	analysisColumns = `id, duplicate_group_id, account_id_a, account_id_b, name_similarity_score,
	address_similarity_score, overall_similarity_score, match_reason, matched_fields, algorithm_version, analyzed_at`
)

// accountWriteColumns are the columns written on import, in argument order.
var accountWriteColumns = []string{
	"external_id", "company_name", "address", "phone", "website", "city", "county",
	"zip_code", "industry", "data_source", "created_at", "updated_at",
}

// accountUpdateColumns are refreshed when an import hits an existing external_id.
// Duplicate flags and created_at survive re-imports.
var accountUpdateColumns = []string{
	"company_name", "address", "phone", "website", "city", "county",
	"zip_code", "industry", "data_source", "updated_at",
}

// analysisWriteColumns are the columns written per match row, in argument order.
var analysisWriteColumns = []string{
	"duplicate_group_id", "account_id_a", "account_id_b", "name_similarity_score",
	"address_similarity_score", "overall_similarity_score", "match_reason",
	"matched_fields", "algorithm_version", "analyzed_at",
}

// prepareAccount fills defaults an imported account needs before it is written.
// An account without an external id is always a new row.
func prepareAccount(a *model.Account) {
	if a.ExternalID == "" {
		a.ExternalID = uuid.NewString()
	}
	if a.DataSource == "" {
		a.DataSource = model.DataSourceExcelImport
	}
}

func accountArgs(a model.Account) []any {
	return []any{
		a.ExternalID, a.CompanyName, nullString(a.Address), nullString(a.Phone), nullString(a.Website),
		nullString(a.City), nullString(a.County), nullString(a.ZipCode), nullString(a.Industry),
		a.DataSource, a.CreatedAt, a.UpdatedAt,
	}
}

func analysisArgs(d *model.DuplicateAnalysis) []any {
	return []any{
		d.DuplicateGroupID, d.AccountIDA, d.AccountIDB, d.NameSimilarityScore,
		d.AddressSimilarityScore, d.OverallSimilarityScore, nullString(d.MatchReason),
		nullString(d.MatchedFields), d.AlgorithmVersion, d.AnalyzedAt,
	}
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanAccount(row scannable) (*model.Account, error) {
	var a model.Account
	var address, phone, website, city, county, zip, industry, groupID sql.NullString

	err := row.Scan(
		&a.ID, &a.ExternalID, &a.CompanyName, &address, &phone, &website, &city, &county, &zip, &industry,
		&a.DataSource, &a.PossibleDuplicate, &groupID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Address = address.String
	a.Phone = phone.String
	a.Website = website.String
	a.City = city.String
	a.County = county.String
	a.ZipCode = zip.String
	a.Industry = industry.String
	a.DuplicateGroupID = groupID.String
	return &a, nil
}

func scanAnalysis(row scannable) (*model.DuplicateAnalysis, error) {
	var d model.DuplicateAnalysis
	var reason, fields sql.NullString

	err := row.Scan(
		&d.ID, &d.DuplicateGroupID, &d.AccountIDA, &d.AccountIDB, &d.NameSimilarityScore,
		&d.AddressSimilarityScore, &d.OverallSimilarityScore, &reason, &fields, &d.AlgorithmVersion, &d.AnalyzedAt,
	)
	if err != nil {
		return nil, err
	}

	d.MatchReason = reason.String
	d.MatchedFields = fields.String
	return &d, nil
}

func checkRowsAffected(n int64, entity string, id any) error {
	if n == 0 {
		return eris.Errorf("%s not found: %v", entity, id)
	}
	return nil
}
