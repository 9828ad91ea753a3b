package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/dedup"
	"github.com/sells-group/leads-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedAccounts(t *testing.T, st Store) []model.Account {
	t.Helper()
	ctx := context.Background()
	n, err := st.InsertAccounts(ctx, []model.Account{
		{CompanyName: "Acme Widgets Inc", Address: "100 Main Street", Phone: "(404) 555-0100"},
		{CompanyName: "Acme Widgets LLC", Address: "200 Oak Avenue", City: "Atlanta"},
		{CompanyName: "Zeta Foods", Address: "300 Pine Road", Website: "zeta.com"},
		{CompanyName: "Unrelated Holdings", Address: "77 Sunset Boulevard", Industry: "Finance"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(4), n)

	accounts, err := st.LoadAllAccounts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 4)
	return accounts
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_InsertAndLoadAccounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	accounts := seedAccounts(t, st)

	for i := 1; i < len(accounts); i++ {
		assert.Less(t, accounts[i-1].ID, accounts[i].ID)
	}

	first := accounts[0]
	assert.Equal(t, "Acme Widgets Inc", first.CompanyName)
	assert.Equal(t, "100 Main Street", first.Address)
	assert.Equal(t, "(404) 555-0100", first.Phone)
	assert.Equal(t, model.DataSourceExcelImport, first.DataSource)
	assert.Len(t, first.ExternalID, 36)
	assert.False(t, first.PossibleDuplicate)
	assert.Empty(t, first.DuplicateGroupID)
	assert.Empty(t, first.Website)
	assert.False(t, first.CreatedAt.IsZero())

	assert.Equal(t, "Atlanta", accounts[1].City)
	assert.Equal(t, "zeta.com", accounts[2].Website)
	assert.Equal(t, "Finance", accounts[3].Industry)
}

func TestSQLite_LoadAllAccounts_Limit(t *testing.T) {
	st := newTestSQLiteStore(t)
	all := seedAccounts(t, st)

	got, err := st.LoadAllAccounts(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, all[0].ID, got[0].ID)
	assert.Equal(t, all[1].ID, got[1].ID)
}

func TestSQLite_InsertAccounts_ReimportUpdates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAccounts(t, st)

	key := model.ImportExternalID("leads.xlsx", 2, "Acme Widgets Inc", "100 Main Street")
	_, err := st.InsertAccounts(ctx, []model.Account{
		{ExternalID: key, CompanyName: "Acme Widgets Inc", Address: "100 Main Street", Phone: "404-555-0100"},
	})
	require.NoError(t, err)

	accounts, err := st.LoadAllAccounts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 5)
	imported := accounts[4]
	require.NoError(t, st.FlagAccountDuplicate(ctx, imported.ID, "group-1"))

	n, err := st.InsertAccounts(ctx, []model.Account{
		{ExternalID: key, CompanyName: "acme widgets inc", Address: "100 MAIN STREET", Phone: "404-555-0199"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	total, _, err := st.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	got, err := st.GetAccount(ctx, imported.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "404-555-0199", got.Phone)
	assert.Equal(t, "acme widgets inc", got.CompanyName)
	assert.True(t, got.PossibleDuplicate)
	assert.Equal(t, "group-1", got.DuplicateGroupID)
}

func TestSQLite_InsertAccounts_SameNameAndAddressStayDistinct(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rows := []model.Account{
		{CompanyName: "ABC Manufacturing Inc", Address: "123 Main St", Phone: "(404) 555-1234"},
		{CompanyName: "abc manufacturing inc ", Address: "123 MAIN ST", Phone: "(770) 555-9999"},
	}
	for i := range rows {
		rows[i].ExternalID = model.ImportExternalID("leads.xlsx", i+2, rows[i].CompanyName, rows[i].Address)
	}

	n, err := st.InsertAccounts(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	accounts, err := st.LoadAllAccounts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "(404) 555-1234", accounts[0].Phone)
	assert.Equal(t, "(770) 555-9999", accounts[1].Phone)

	res := dedup.NewEngine().FindAllDuplicates(accounts)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, []int64{accounts[0].ID, accounts[1].ID}, res.Groups[0].AccountIDs())
}

func TestSQLite_InsertAccounts_UnkeyedRowsAreNew(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := model.Account{CompanyName: "ABC Manufacturing Inc", Address: "123 Main St"}
	n, err := st.InsertAccounts(ctx, []model.Account{lead, lead})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	total, _, err := st.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestSQLite_InsertAccounts_RepeatedKeyCountsOnce(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.InsertAccounts(ctx, []model.Account{
		{ExternalID: "001A", CompanyName: "Acme Widgets", Address: "1 Main St", Phone: "404-555-0100"},
		{ExternalID: "001A", CompanyName: "Acme Widgets", Address: "1 Main St", Phone: "404-555-0199"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	accounts, err := st.LoadAllAccounts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "404-555-0199", accounts[0].Phone)
}

func TestSQLite_InsertAccounts_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.InsertAccounts(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSQLite_GetAccount_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	got, err := st.GetAccount(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_FlagAndCount(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	accounts := seedAccounts(t, st)

	require.NoError(t, st.FlagAccountDuplicate(ctx, accounts[0].ID, "group-1"))
	require.NoError(t, st.FlagAccountDuplicate(ctx, accounts[1].ID, "group-1"))

	total, duplicates, err := st.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, int64(2), duplicates)

	flagged, err := st.ListFlaggedAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	assert.Equal(t, accounts[0].ID, flagged[0].ID)
	assert.Equal(t, "group-1", flagged[1].DuplicateGroupID)
}

func TestSQLite_FlagAccountDuplicate_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.FlagAccountDuplicate(context.Background(), 42, "group-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
}

func TestSQLite_CountAccounts_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	total, duplicates, err := st.CountAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Equal(t, int64(0), duplicates)
}

func TestSQLite_DuplicateAnalysisRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	accounts := seedAccounts(t, st)
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	weak := &model.DuplicateAnalysis{
		DuplicateGroupID: "group-1", AccountIDA: accounts[0].ID, AccountIDB: accounts[1].ID,
		NameSimilarityScore: 88.5, AddressSimilarityScore: 10, OverallSimilarityScore: 57.1,
		MatchReason: "Company name 88.5% similar", MatchedFields: "companyName",
		AlgorithmVersion: "1.0", AnalyzedAt: at,
	}
	require.NoError(t, st.WriteMatch(ctx, weak))
	assert.NotZero(t, weak.ID)

	require.NoError(t, st.WriteMatches(ctx, []*model.DuplicateAnalysis{
		{
			DuplicateGroupID: "group-1", AccountIDA: accounts[1].ID, AccountIDB: accounts[2].ID,
			NameSimilarityScore: 95, AddressSimilarityScore: 90, OverallSimilarityScore: 93,
			MatchReason: "Company name 95.0% similar; Address 90.0% similar", MatchedFields: "companyName,address",
			AlgorithmVersion: "1.0", AnalyzedAt: at,
		},
		{
			DuplicateGroupID: "group-2", AccountIDA: accounts[2].ID, AccountIDB: accounts[3].ID,
			AddressSimilarityScore: 100, OverallSimilarityScore: 40,
			MatchReason: "Address 100.0% similar", MatchedFields: "address",
			AlgorithmVersion: "1.0", AnalyzedAt: at,
		},
	}))

	groups, err := st.ListDuplicateGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.GroupSummary{
		{DuplicateGroupID: "group-1", MatchCount: 2},
		{DuplicateGroupID: "group-2", MatchCount: 1},
	}, groups)

	byGroup, err := st.GetDuplicatesByGroup(ctx, "group-1")
	require.NoError(t, err)
	require.Len(t, byGroup, 2)
	assert.Equal(t, 93.0, byGroup[0].OverallSimilarityScore)
	assert.Equal(t, []string{"companyName", "address"}, byGroup[0].Fields())
	assert.Equal(t, weak.ID, byGroup[1].ID)
	assert.Equal(t, "Company name 88.5% similar", byGroup[1].MatchReason)
	assert.Equal(t, 88.5, byGroup[1].NameSimilarityScore)
	assert.True(t, at.Equal(byGroup[1].AnalyzedAt))

	all, err := st.ListDuplicateAnalysis(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 93.0, all[0].OverallSimilarityScore)
	assert.Equal(t, 40.0, all[2].OverallSimilarityScore)

	missing, err := st.GetDuplicatesByGroup(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSQLite_ClearDuplicateAnalysis(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	accounts := seedAccounts(t, st)

	require.NoError(t, st.WriteMatch(ctx, &model.DuplicateAnalysis{
		DuplicateGroupID: "group-1", AccountIDA: accounts[0].ID, AccountIDB: accounts[1].ID,
		AlgorithmVersion: "1.0", AnalyzedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.FlagAccountDuplicate(ctx, accounts[0].ID, "group-1"))
	require.NoError(t, st.FlagAccountDuplicate(ctx, accounts[1].ID, "group-1"))

	require.NoError(t, st.ClearDuplicateAnalysis(ctx))

	groups, err := st.ListDuplicateGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)

	_, duplicates, err := st.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), duplicates)

	got, err := st.GetAccount(ctx, accounts[0].ID)
	require.NoError(t, err)
	assert.False(t, got.PossibleDuplicate)
	assert.Empty(t, got.DuplicateGroupID)
}

func TestSQLite_AnalyzerEndToEnd(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedAccounts(t, st)

	a := dedup.NewAnalyzer(st, nil, 0)
	summary, err := a.Run(ctx, dedup.RunOptions{Reset: true})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Accounts)
	assert.Equal(t, 1, summary.Groups)
	assert.Equal(t, 1, summary.Saved)

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalLeads)
	assert.Equal(t, int64(2), stats.DuplicateLeads)
	assert.Equal(t, 1, stats.DuplicateGroups)
	assert.Equal(t, "50.00%", stats.DeduplicationRate)

	// A second reset run replaces rather than accumulates.
	_, err = a.Run(ctx, dedup.RunOptions{Reset: true})
	require.NoError(t, err)
	all, err := st.ListDuplicateAnalysis(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
