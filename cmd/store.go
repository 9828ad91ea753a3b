package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/dedup"
	"github.com/sells-group/leads-cli/internal/store"
	sfpkg "github.com/sells-group/leads-cli/pkg/salesforce"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	poolCfg := &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	}

	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolCfg)
	case "mysql":
		st, err = store.NewMySQL(ctx, cfg.Store.DatabaseURL, poolCfg)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	// Schema statements are idempotent, so every command can rely on them.
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newAnalyzer(st dedup.Store) *dedup.Analyzer {
	comparator := dedup.NewComparator(dedup.ComparatorOptions{
		ContactMatchQualifies: cfg.Dedup.ContactMatchQualifies,
	})
	return dedup.NewAnalyzer(st, dedup.NewEngine(dedup.WithComparator(comparator)), cfg.Dedup.MaxAccounts)
}

func initSalesforce() (sfpkg.Client, error) {
	if err := cfg.Validate("salesforce"); err != nil {
		return nil, err
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	return sfpkg.Connect(sfpkg.Creds{
		LoginURL:      cfg.Salesforce.LoginURL,
		Username:      cfg.Salesforce.Username,
		ClientID:      cfg.Salesforce.ClientID,
		PrivateKeyPEM: string(pemData),
	}, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit))
}
