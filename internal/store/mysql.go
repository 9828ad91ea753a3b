package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rotisserie/eris"
)

// NewMySQL opens a MySQL connection pool. The DSN is go-sql-driver format,
// e.g. "user:pass@tcp(localhost:3306)/leads".
func NewMySQL(ctx context.Context, dsn string, poolCfg *PoolConfig) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "mysql: parse dsn")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// Report matched rather than changed rows so flag updates are not
	// mistaken for missing accounts.
	cfg.ClientFoundRows = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, eris.Wrap(err, "mysql: open")
	}

	maxConns, minConns := 10, 2
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = int(poolCfg.MaxConns)
		}
		if poolCfg.MinConns > 0 {
			minConns = int(poolCfg.MinConns)
		}
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "mysql: ping")
	}
	return &SQLStore{db: db, dialect: mysqlDialect}, nil
}

var mysqlDialect = dialect{
	name: "mysql",
	migrations: []string{`
CREATE TABLE IF NOT EXISTS accounts (
	id                 BIGINT AUTO_INCREMENT PRIMARY KEY,
	external_id        VARCHAR(64) NOT NULL,
	company_name       VARCHAR(255) NOT NULL,
	address            TEXT,
	phone              VARCHAR(50),
	website            VARCHAR(255),
	city               VARCHAR(100),
	county             VARCHAR(100),
	zip_code           VARCHAR(20),
	industry           VARCHAR(100),
	data_source        VARCHAR(50) NOT NULL DEFAULT 'Excel Import',
	possible_duplicate BOOLEAN NOT NULL DEFAULT FALSE,
	duplicate_group_id VARCHAR(36),
	created_at         DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
	updated_at         DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
	UNIQUE KEY uq_accounts_external_id (external_id),
	KEY idx_accounts_duplicate_group (duplicate_group_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS duplicate_analysis (
	id                       BIGINT AUTO_INCREMENT PRIMARY KEY,
	duplicate_group_id       VARCHAR(36) NOT NULL,
	account_id_a             BIGINT NOT NULL,
	account_id_b             BIGINT NOT NULL,
	name_similarity_score    DECIMAL(5,2) NOT NULL DEFAULT 0,
	address_similarity_score DECIMAL(5,2) NOT NULL DEFAULT 0,
	overall_similarity_score DECIMAL(5,2) NOT NULL DEFAULT 0,
	match_reason             TEXT,
	matched_fields           TEXT,
	algorithm_version        VARCHAR(10) NOT NULL DEFAULT '1.0',
	analyzed_at              DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
	KEY idx_duplicate_analysis_group (duplicate_group_id),
	CONSTRAINT fk_duplicate_analysis_a FOREIGN KEY (account_id_a) REFERENCES accounts(id) ON DELETE CASCADE,
	CONSTRAINT fk_duplicate_analysis_b FOREIGN KEY (account_id_b) REFERENCES accounts(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	upsertAccount: upsertAccountSQL(
		func(col string) string { return "VALUES(" + col + ")" },
		"ON DUPLICATE KEY UPDATE",
	),
}
