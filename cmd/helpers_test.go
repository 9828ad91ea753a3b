package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testLeads() []model.Account {
	return []model.Account{
		{CompanyName: "Acme Widgets Inc", Address: "100 Main Street", City: "Atlanta"},
		{CompanyName: "Acme Widgets LLC", Address: "200 Oak Avenue", City: "Marietta"},
		{CompanyName: "Zeta Foods", Address: "300 Pine Road"},
		{CompanyName: "Unrelated Holdings", Address: "77 Sunset Boulevard"},
	}
}

func seedStore(t *testing.T, st store.Store) {
	t.Helper()
	n, err := st.InsertAccounts(context.Background(), testLeads())
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
}
