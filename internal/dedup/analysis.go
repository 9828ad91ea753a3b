package dedup

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
)

// DefaultMaxAccounts bounds the working set loaded for one analysis run.
const DefaultMaxAccounts = 10000

// Store is the persistence surface a deduplication run needs.
type Store interface {
	LoadAllAccounts(ctx context.Context, limit int) ([]model.Account, error)
	WriteMatch(ctx context.Context, d *model.DuplicateAnalysis) error
	FlagAccountDuplicate(ctx context.Context, accountID int64, groupID string) error
	ClearDuplicateAnalysis(ctx context.Context) error
	CountAccounts(ctx context.Context) (total int64, duplicates int64, err error)
	ListDuplicateGroups(ctx context.Context) ([]model.GroupSummary, error)
}

// BatchWriter is implemented by stores that can persist a run's match rows in
// one round trip. Save prefers it over per-row WriteMatch calls.
type BatchWriter interface {
	WriteMatches(ctx context.Context, records []*model.DuplicateAnalysis) error
}

// RunOptions controls a deduplication run.
type RunOptions struct {
	// Reset clears prior match rows and account flags before analyzing.
	Reset bool
	// DryRun analyzes without writing anything back.
	DryRun bool
}

// RunSummary reports what a deduplication run found and persisted.
type RunSummary struct {
	Accounts        int           `json:"accounts"`
	PairsCompared   int           `json:"pairs_compared"`
	Matches         int           `json:"matches"`
	Groups          int           `json:"groups"`
	FlaggedAccounts int           `json:"flagged_accounts"`
	Saved           int           `json:"saved"`
	DryRun          bool          `json:"dry_run"`
	Duration        time.Duration `json:"duration"`
	Result          *Result       `json:"-"`
}

// Analyzer runs load -> cluster -> save as one unit of work.
type Analyzer struct {
	store       Store
	engine      *Engine
	maxAccounts int
	now         func() time.Time
}

// NewAnalyzer creates an analyzer. maxAccounts <= 0 uses DefaultMaxAccounts.
func NewAnalyzer(store Store, engine *Engine, maxAccounts int) *Analyzer {
	if engine == nil {
		engine = NewEngine()
	}
	if maxAccounts <= 0 {
		maxAccounts = DefaultMaxAccounts
	}
	return &Analyzer{
		store:       store,
		engine:      engine,
		maxAccounts: maxAccounts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run performs a full deduplication pass. Any store failure aborts the run.
func (a *Analyzer) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	start := time.Now()

	if opts.Reset && !opts.DryRun {
		if err := a.store.ClearDuplicateAnalysis(ctx); err != nil {
			return nil, eris.Wrap(err, "dedup: clear prior analysis")
		}
		zap.L().Info("dedup: cleared prior analysis")
	}

	accounts, err := a.store.LoadAllAccounts(ctx, a.maxAccounts)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: load accounts")
	}
	if len(accounts) >= a.maxAccounts {
		zap.L().Warn("dedup: account set truncated at load limit", zap.Int("limit", a.maxAccounts))
	}

	res := a.engine.FindAllDuplicates(accounts)

	summary := &RunSummary{
		Accounts:        res.Accounts,
		PairsCompared:   res.PairsCompared,
		Matches:         res.MatchCount(),
		Groups:          len(res.Groups),
		FlaggedAccounts: len(res.FlaggedAccounts()),
		DryRun:          opts.DryRun,
		Result:          res,
	}

	if !opts.DryRun {
		saved, err := a.Save(ctx, res)
		if err != nil {
			return nil, err
		}
		summary.Saved = saved
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// Save writes one analysis row per match and flags every grouped account
// with its group ID. It returns the number of match rows written.
func (a *Analyzer) Save(ctx context.Context, res *Result) (int, error) {
	analyzedAt := a.now()

	var records []*model.DuplicateAnalysis
	for _, g := range res.Groups {
		for _, m := range g.Matches {
			records = append(records, m.Record(g.ID, analyzedAt))
		}
	}

	saved := 0
	if bw, ok := a.store.(BatchWriter); ok && len(records) > 0 {
		if err := bw.WriteMatches(ctx, records); err != nil {
			return 0, eris.Wrapf(err, "dedup: write %d matches", len(records))
		}
		saved = len(records)
	} else {
		for _, rec := range records {
			if err := a.store.WriteMatch(ctx, rec); err != nil {
				return saved, eris.Wrapf(err, "dedup: write match %d-%d", rec.AccountIDA, rec.AccountIDB)
			}
			saved++
		}
	}

	flagged := 0
	for _, g := range res.Groups {
		for _, id := range g.AccountIDs() {
			if err := a.store.FlagAccountDuplicate(ctx, id, g.ID); err != nil {
				return saved, eris.Wrapf(err, "dedup: flag account %d", id)
			}
			flagged++
		}
	}

	zap.L().Info("dedup: saved duplicate analysis",
		zap.Int("records", saved),
		zap.Int("flagged_accounts", flagged),
	)
	return saved, nil
}

// Stats summarizes deduplication across all stored leads.
func (a *Analyzer) Stats(ctx context.Context) (*model.DedupStats, error) {
	total, duplicates, err := a.store.CountAccounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: count accounts")
	}
	groups, err := a.store.ListDuplicateGroups(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: list groups")
	}
	return &model.DedupStats{
		TotalLeads:        total,
		DuplicateLeads:    duplicates,
		DuplicateGroups:   len(groups),
		DeduplicationRate: model.DeduplicationRate(total, duplicates),
	}, nil
}
