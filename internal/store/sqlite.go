package store

import (
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLStore{db: db, dialect: sqliteDialect}, nil
}

var sqliteDialect = dialect{
	name: "sqlite",
	migrations: []string{`
CREATE TABLE IF NOT EXISTS accounts (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id        TEXT NOT NULL UNIQUE,
	company_name       TEXT NOT NULL,
	address            TEXT,
	phone              TEXT,
	website            TEXT,
	city               TEXT,
	county             TEXT,
	zip_code           TEXT,
	industry           TEXT,
	data_source        TEXT NOT NULL DEFAULT 'Excel Import',
	possible_duplicate INTEGER NOT NULL DEFAULT 0,
	duplicate_group_id TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
)`, `
CREATE TABLE IF NOT EXISTS duplicate_analysis (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	duplicate_group_id       TEXT NOT NULL,
	account_id_a             INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	account_id_b             INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	name_similarity_score    REAL NOT NULL DEFAULT 0,
	address_similarity_score REAL NOT NULL DEFAULT 0,
	overall_similarity_score REAL NOT NULL DEFAULT 0,
	match_reason             TEXT,
	matched_fields           TEXT,
	algorithm_version        TEXT NOT NULL DEFAULT '1.0',
	analyzed_at              DATETIME NOT NULL DEFAULT (datetime('now'))
)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_duplicate_group ON accounts(duplicate_group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_duplicate_analysis_group ON duplicate_analysis(duplicate_group_id)`,
	},
	upsertAccount: upsertAccountSQL(
		func(col string) string { return "excluded." + col },
		"ON CONFLICT(external_id) DO UPDATE SET",
	),
}
