package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/db"
	"github.com/sells-group/leads-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id                 BIGSERIAL PRIMARY KEY,
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
	possible_duplicate BOOLEAN NOT NULL DEFAULT false,
	duplicate_group_id TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS duplicate_analysis (
	id                       BIGSERIAL PRIMARY KEY,
	duplicate_group_id       TEXT NOT NULL,
	account_id_a             BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	account_id_b             BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	name_similarity_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	address_similarity_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	overall_similarity_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	match_reason             TEXT,
	matched_fields           TEXT,
	algorithm_version        TEXT NOT NULL DEFAULT '1.0',
	analyzed_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_accounts_duplicate_group ON accounts(duplicate_group_id);
CREATE INDEX IF NOT EXISTS idx_accounts_possible_duplicate ON accounts(possible_duplicate) WHERE possible_duplicate;
CREATE INDEX IF NOT EXISTS idx_duplicate_analysis_group ON duplicate_analysis(duplicate_group_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InsertAccounts upserts accounts by external_id through a COPY-staged bulk
// upsert and returns the number of rows written.
func (s *PostgresStore) InsertAccounts(ctx context.Context, accounts []model.Account) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(accounts))
	for _, a := range accounts {
		prepareAccount(&a)
		a.CreatedAt, a.UpdatedAt = now, now
		rows = append(rows, accountArgs(a))
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "accounts",
		Columns:      accountWriteColumns,
		ConflictKeys: []string{"external_id"},
		UpdateCols:   accountUpdateColumns,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert accounts")
	}
	return n, nil
}

// GetAccount returns nil, nil when no account has the given id.
func (s *PostgresStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get account %d", id)
	}
	return a, nil
}

// LoadAllAccounts returns accounts ordered by id. limit <= 0 loads everything.
func (s *PostgresStore) LoadAllAccounts(ctx context.Context, limit int) ([]model.Account, error) {
	if limit > 0 {
		return s.queryAccounts(ctx, "load accounts",
			`SELECT `+accountColumns+` FROM accounts ORDER BY id LIMIT $1`, limit)
	}
	return s.queryAccounts(ctx, "load accounts", `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
}

func (s *PostgresStore) ListFlaggedAccounts(ctx context.Context) ([]model.Account, error) {
	return s.queryAccounts(ctx, "list flagged accounts",
		`SELECT `+accountColumns+` FROM accounts WHERE possible_duplicate ORDER BY duplicate_group_id, id`)
}

func (s *PostgresStore) queryAccounts(ctx context.Context, action, query string, args ...any) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", action)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan account")
		}
		accounts = append(accounts, *a)
	}
	return accounts, eris.Wrapf(rows.Err(), "postgres: %s iterate", action)
}

func (s *PostgresStore) CountAccounts(ctx context.Context) (int64, int64, error) {
	var total, duplicates int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE possible_duplicate) FROM accounts`,
	).Scan(&total, &duplicates)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: count accounts")
	}
	return total, duplicates, nil
}

func (s *PostgresStore) FlagAccountDuplicate(ctx context.Context, accountID int64, groupID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET possible_duplicate = true, duplicate_group_id = $1, updated_at = $2 WHERE id = $3`,
		groupID, time.Now().UTC(), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: flag account %d", accountID)
	}
	return checkRowsAffected(tag.RowsAffected(), "account", accountID)
}

// WriteMatch inserts one analysis row and sets d.ID.
func (s *PostgresStore) WriteMatch(ctx context.Context, d *model.DuplicateAnalysis) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO duplicate_analysis (duplicate_group_id, account_id_a, account_id_b, name_similarity_score, address_similarity_score, overall_similarity_score, match_reason, matched_fields, algorithm_version, analyzed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		analysisArgs(d)...,
	).Scan(&d.ID)
	return eris.Wrap(err, "postgres: insert duplicate analysis")
}

// WriteMatches bulk-loads records with COPY. IDs are not read back.
func (s *PostgresStore) WriteMatches(ctx context.Context, records []*model.DuplicateAnalysis) error {
	rows := make([][]any, len(records))
	for i, d := range records {
		rows[i] = analysisArgs(d)
	}
	if _, err := db.CopyFrom(ctx, s.pool, "duplicate_analysis", analysisWriteColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: write matches")
	}
	return nil
}

// ClearDuplicateAnalysis deletes every analysis row and resets all account
// flags atomically.
func (s *PostgresStore) ClearDuplicateAnalysis(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin clear analysis")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM duplicate_analysis`); err != nil {
		return eris.Wrap(err, "postgres: delete duplicate analysis")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET possible_duplicate = false, duplicate_group_id = NULL WHERE possible_duplicate`,
	); err != nil {
		return eris.Wrap(err, "postgres: reset duplicate flags")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit clear analysis")
}

// ListDuplicateGroups returns groups in the order they were first written.
func (s *PostgresStore) ListDuplicateGroups(ctx context.Context) ([]model.GroupSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT duplicate_group_id, COUNT(*) FROM duplicate_analysis GROUP BY duplicate_group_id ORDER BY MIN(id)`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list duplicate groups")
	}
	defer rows.Close()

	var groups []model.GroupSummary
	for rows.Next() {
		var g model.GroupSummary
		if err := rows.Scan(&g.DuplicateGroupID, &g.MatchCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan duplicate group")
		}
		groups = append(groups, g)
	}
	return groups, eris.Wrap(rows.Err(), "postgres: list duplicate groups iterate")
}

// GetDuplicatesByGroup returns a group's matches, strongest first.
func (s *PostgresStore) GetDuplicatesByGroup(ctx context.Context, groupID string) ([]model.DuplicateAnalysis, error) {
	return s.queryAnalysis(ctx, "get duplicates by group",
		`SELECT `+analysisColumns+` FROM duplicate_analysis WHERE duplicate_group_id = $1 ORDER BY overall_similarity_score DESC, id`,
		groupID,
	)
}

// ListDuplicateAnalysis returns every match row, strongest first.
func (s *PostgresStore) ListDuplicateAnalysis(ctx context.Context) ([]model.DuplicateAnalysis, error) {
	return s.queryAnalysis(ctx, "list duplicate analysis",
		`SELECT `+analysisColumns+` FROM duplicate_analysis ORDER BY overall_similarity_score DESC, id`,
	)
}

func (s *PostgresStore) queryAnalysis(ctx context.Context, action, query string, args ...any) ([]model.DuplicateAnalysis, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", action)
	}
	defer rows.Close()

	var out []model.DuplicateAnalysis
	for rows.Next() {
		d, err := scanAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan duplicate analysis")
		}
		out = append(out, *d)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: %s iterate", action)
}
