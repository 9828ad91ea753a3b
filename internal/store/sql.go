package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
)

// dialect carries the statements that differ between database/sql backends.
type dialect struct {
	name       string
	migrations []string
	// upsertAccount inserts one account or refreshes it on external_id conflict.
	upsertAccount string
}

// SQLStore implements Store on database/sql. It backs both the SQLite and the
// MySQL drivers, which share placeholder syntax.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "%s: migrate", s.dialect.name)
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// InsertAccounts upserts accounts by external_id in a single transaction and
// returns the number of rows written.
func (s *SQLStore) InsertAccounts(ctx context.Context, accounts []model.Account) (int64, error) {
	if len(accounts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "%s: begin insert accounts", s.dialect.name)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, s.dialect.upsertAccount)
	if err != nil {
		return 0, eris.Wrapf(err, "%s: prepare upsert account", s.dialect.name)
	}
	defer stmt.Close() //nolint:errcheck

	// A key repeated within the batch overwrites its earlier row, so only
	// distinct keys count as written.
	now := time.Now().UTC()
	written := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		prepareAccount(&a)
		a.CreatedAt, a.UpdatedAt = now, now
		if _, err := stmt.ExecContext(ctx, accountArgs(a)...); err != nil {
			return 0, eris.Wrapf(err, "%s: upsert account %q", s.dialect.name, a.CompanyName)
		}
		written[a.ExternalID] = struct{}{}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "%s: commit insert accounts", s.dialect.name)
	}
	return int64(len(written)), nil
}

// GetAccount returns nil, nil when no account has the given id.
func (s *SQLStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get account %d", s.dialect.name, id)
	}
	return a, nil
}

// LoadAllAccounts returns accounts ordered by id. limit <= 0 loads everything.
func (s *SQLStore) LoadAllAccounts(ctx context.Context, limit int) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryAccounts(ctx, "load accounts", query, args...)
}

func (s *SQLStore) ListFlaggedAccounts(ctx context.Context) ([]model.Account, error) {
	return s.queryAccounts(ctx, "list flagged accounts",
		`SELECT `+accountColumns+` FROM accounts WHERE possible_duplicate = ? ORDER BY duplicate_group_id, id`,
		true,
	)
}

func (s *SQLStore) queryAccounts(ctx context.Context, action, query string, args ...any) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: %s", s.dialect.name, action)
	}
	defer rows.Close() //nolint:errcheck

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan account", s.dialect.name)
		}
		accounts = append(accounts, *a)
	}
	return accounts, eris.Wrapf(rows.Err(), "%s: %s iterate", s.dialect.name, action)
}

func (s *SQLStore) CountAccounts(ctx context.Context) (int64, int64, error) {
	var total, duplicates int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN possible_duplicate THEN 1 ELSE 0 END), 0) FROM accounts`,
	).Scan(&total, &duplicates)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "%s: count accounts", s.dialect.name)
	}
	return total, duplicates, nil
}

func (s *SQLStore) FlagAccountDuplicate(ctx context.Context, accountID int64, groupID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET possible_duplicate = ?, duplicate_group_id = ?, updated_at = ? WHERE id = ?`,
		true, groupID, time.Now().UTC(), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "%s: flag account %d", s.dialect.name, accountID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "%s: rows affected", s.dialect.name)
	}
	return checkRowsAffected(n, "account", accountID)
}

func (s *SQLStore) insertAnalysisSQL() string {
	return fmt.Sprintf(`INSERT INTO duplicate_analysis (%s) VALUES (%s)`,
		strings.Join(analysisWriteColumns, ", "),
		placeholders(len(analysisWriteColumns)),
	)
}

// WriteMatch inserts one analysis row and sets d.ID.
func (s *SQLStore) WriteMatch(ctx context.Context, d *model.DuplicateAnalysis) error {
	res, err := s.db.ExecContext(ctx, s.insertAnalysisSQL(), analysisArgs(d)...)
	if err != nil {
		return eris.Wrapf(err, "%s: insert duplicate analysis", s.dialect.name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrapf(err, "%s: last insert id", s.dialect.name)
	}
	d.ID = id
	return nil
}

// WriteMatches inserts all records in one transaction.
func (s *SQLStore) WriteMatches(ctx context.Context, records []*model.DuplicateAnalysis) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "%s: begin write matches", s.dialect.name)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, s.insertAnalysisSQL())
	if err != nil {
		return eris.Wrapf(err, "%s: prepare insert duplicate analysis", s.dialect.name)
	}
	defer stmt.Close() //nolint:errcheck

	for _, d := range records {
		res, err := stmt.ExecContext(ctx, analysisArgs(d)...)
		if err != nil {
			return eris.Wrapf(err, "%s: insert duplicate analysis %d-%d", s.dialect.name, d.AccountIDA, d.AccountIDB)
		}
		if d.ID, err = res.LastInsertId(); err != nil {
			return eris.Wrapf(err, "%s: last insert id", s.dialect.name)
		}
	}

	return eris.Wrapf(tx.Commit(), "%s: commit write matches", s.dialect.name)
}

// ClearDuplicateAnalysis deletes every analysis row and resets all account
// flags atomically.
func (s *SQLStore) ClearDuplicateAnalysis(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "%s: begin clear analysis", s.dialect.name)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM duplicate_analysis`); err != nil {
		return eris.Wrapf(err, "%s: delete duplicate analysis", s.dialect.name)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET possible_duplicate = ?, duplicate_group_id = NULL WHERE possible_duplicate = ?`,
		false, true,
	); err != nil {
		return eris.Wrapf(err, "%s: reset duplicate flags", s.dialect.name)
	}

	return eris.Wrapf(tx.Commit(), "%s: commit clear analysis", s.dialect.name)
}

// ListDuplicateGroups returns groups in the order they were first written.
func (s *SQLStore) ListDuplicateGroups(ctx context.Context) ([]model.GroupSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT duplicate_group_id, COUNT(*) FROM duplicate_analysis GROUP BY duplicate_group_id ORDER BY MIN(id)`,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list duplicate groups", s.dialect.name)
	}
	defer rows.Close() //nolint:errcheck

	var groups []model.GroupSummary
	for rows.Next() {
		var g model.GroupSummary
		if err := rows.Scan(&g.DuplicateGroupID, &g.MatchCount); err != nil {
			return nil, eris.Wrapf(err, "%s: scan duplicate group", s.dialect.name)
		}
		groups = append(groups, g)
	}
	return groups, eris.Wrapf(rows.Err(), "%s: list duplicate groups iterate", s.dialect.name)
}

// GetDuplicatesByGroup returns a group's matches, strongest first.
func (s *SQLStore) GetDuplicatesByGroup(ctx context.Context, groupID string) ([]model.DuplicateAnalysis, error) {
	return s.queryAnalysis(ctx, "get duplicates by group",
		`SELECT `+analysisColumns+` FROM duplicate_analysis WHERE duplicate_group_id = ?
		 ORDER BY overall_similarity_score DESC, id`,
		groupID,
	)
}

// ListDuplicateAnalysis returns every match row, strongest first.
func (s *SQLStore) ListDuplicateAnalysis(ctx context.Context) ([]model.DuplicateAnalysis, error) {
	return s.queryAnalysis(ctx, "list duplicate analysis",
		`SELECT `+analysisColumns+` FROM duplicate_analysis ORDER BY overall_similarity_score DESC, id`,
	)
}

func (s *SQLStore) queryAnalysis(ctx context.Context, action, query string, args ...any) ([]model.DuplicateAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: %s", s.dialect.name, action)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DuplicateAnalysis
	for rows.Next() {
		d, err := scanAnalysis(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan duplicate analysis", s.dialect.name)
		}
		out = append(out, *d)
	}
	return out, eris.Wrapf(rows.Err(), "%s: %s iterate", s.dialect.name, action)
}

// placeholders returns n comma-separated "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// upsertAccountSQL builds the INSERT for accountWriteColumns followed by a
// dialect-specific conflict clause.
func upsertAccountSQL(conflict func(col string) string, prefix string) string {
	sets := make([]string, len(accountUpdateColumns))
	for i, c := range accountUpdateColumns {
		sets[i] = c + " = " + conflict(c)
	}
	return fmt.Sprintf(`INSERT INTO accounts (%s) VALUES (%s) %s %s`,
		strings.Join(accountWriteColumns, ", "),
		placeholders(len(accountWriteColumns)),
		prefix,
		strings.Join(sets, ", "),
	)
}
