package dedup

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
)

// progressEvery controls how often the pair scan logs progress.
const progressEvery = 100

// Group is a cluster of accounts believed to be the same business.
type Group struct {
	ID      string  `json:"id"`
	Matches []Match `json:"matches"`

	seq int
}

// AccountIDs returns the sorted set of accounts referenced by the group's matches.
func (g *Group) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(g.Matches)*2)
	ids := make([]int64, 0, len(g.Matches)*2)
	for _, m := range g.Matches {
		for _, id := range [2]int64{m.AccountIDA, m.AccountIDB} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Result is the output of a clustering run.
type Result struct {
	// Groups are ordered by creation; matches within a group by discovery.
	Groups        []*Group
	Accounts      int
	PairsCompared int
	Elapsed       time.Duration

	byAccount map[int64]*Group
}

// GroupOf returns the group an account was assigned to.
func (r *Result) GroupOf(accountID int64) (*Group, bool) {
	g, ok := r.byAccount[accountID]
	return g, ok
}

// MatchCount returns the total number of matches across all groups.
func (r *Result) MatchCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Matches)
	}
	return n
}

// FlaggedAccounts returns every account that appears in a group, in group order.
func (r *Result) FlaggedAccounts() []int64 {
	var ids []int64
	for _, g := range r.Groups {
		ids = append(ids, g.AccountIDs()...)
	}
	return ids
}

// Engine scans an account set for duplicates and clusters the matches.
type Engine struct {
	comparator *Comparator
	newID      func() string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithComparator overrides the default comparator.
func WithComparator(c *Comparator) EngineOption {
	return func(e *Engine) { e.comparator = c }
}

// WithIDGenerator overrides the group ID generator (default: random UUID).
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates a clustering engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		comparator: defaultComparator,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindAllDuplicates compares every unordered pair of accounts and clusters
// the resulting matches into groups. Groups are connected components: a match
// that bridges two existing groups merges them, and the merged group keeps
// the ID of the older one. Iteration follows input order, so the same input
// always yields the same group membership.
func (e *Engine) FindAllDuplicates(accounts []model.Account) *Result {
	start := time.Now()
	accounts = uniqueByID(accounts)

	zap.L().Info("dedup: analyzing accounts for duplicates", zap.Int("accounts", len(accounts)))

	c := &clusterer{
		uf:     newUnionFind(),
		byRoot: make(map[int64]*Group),
		newID:  e.newID,
	}

	pairs := 0
	for i := range accounts {
		for j := i + 1; j < len(accounts); j++ {
			pairs++
			m := e.comparator.Compare(accounts[i], accounts[j])
			if m == nil {
				continue
			}
			key := m.Pair()
			m.AccountIDA, m.AccountIDB = key.Lo, key.Hi
			c.add(*m)
		}

		if (i+1)%progressEvery == 0 {
			zap.L().Debug("dedup: scan progress",
				zap.Int("processed", i+1),
				zap.Int("total", len(accounts)),
			)
		}
	}

	res := c.result()
	res.Accounts = len(accounts)
	res.PairsCompared = pairs
	res.Elapsed = time.Since(start)

	zap.L().Info("dedup: analysis complete",
		zap.Int("groups", len(res.Groups)),
		zap.Int("matches", res.MatchCount()),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res
}

// uniqueByID drops later accounts whose ID was already seen, so every pair of
// positions is a distinct unordered pair of IDs.
func uniqueByID(accounts []model.Account) []model.Account {
	seen := make(map[int64]struct{}, len(accounts))
	out := make([]model.Account, 0, len(accounts))
	for _, a := range accounts {
		if _, ok := seen[a.ID]; ok {
			zap.L().Warn("dedup: skipping repeated account id", zap.Int64("account_id", a.ID))
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

type clusterer struct {
	uf     *unionFind
	byRoot map[int64]*Group
	groups []*Group
	newID  func() string
}

func (c *clusterer) groupFor(id int64) *Group {
	if !c.uf.has(id) {
		return nil
	}
	return c.byRoot[c.uf.find(id)]
}

func (c *clusterer) add(m Match) {
	ga, gb := c.groupFor(m.AccountIDA), c.groupFor(m.AccountIDB)

	var g *Group
	switch {
	case ga == nil && gb == nil:
		g = &Group{ID: c.newID(), seq: len(c.groups)}
		c.groups = append(c.groups, g)
	case ga == nil:
		g = gb
	case gb == nil || ga == gb:
		g = ga
	default:
		g = c.merge(ga, gb)
	}

	delete(c.byRoot, c.uf.find(m.AccountIDA))
	delete(c.byRoot, c.uf.find(m.AccountIDB))
	root := c.uf.union(m.AccountIDA, m.AccountIDB)
	c.byRoot[root] = g

	g.Matches = append(g.Matches, m)
}

// merge folds the younger group into the older one.
func (c *clusterer) merge(a, b *Group) *Group {
	if b.seq < a.seq {
		a, b = b, a
	}
	a.Matches = append(a.Matches, b.Matches...)
	b.Matches = nil
	b.seq = -1

	zap.L().Debug("dedup: merged bridged groups",
		zap.String("kept", a.ID),
		zap.String("absorbed", b.ID),
	)
	return a
}

func (c *clusterer) result() *Result {
	res := &Result{byAccount: make(map[int64]*Group)}
	for _, g := range c.groups {
		if g.seq < 0 {
			continue
		}
		res.Groups = append(res.Groups, g)
		for _, m := range g.Matches {
			res.byAccount[m.AccountIDA] = g
			res.byAccount[m.AccountIDB] = g
		}
	}
	return res
}
