package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/excel"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
)

// matchDetail is a duplicate analysis row with both accounts attached. An
// account that no longer exists is nil.
type matchDetail struct {
	model.DuplicateAnalysis `yaml:",inline"`
	AccountA                *model.Account `json:"account_a" yaml:"account_a"`
	AccountB                *model.Account `json:"account_b" yaml:"account_b"`
}

// resolveMatches attaches both accounts to every row, fetching each account once.
func resolveMatches(ctx context.Context, st store.Store, rows []model.DuplicateAnalysis) ([]matchDetail, error) {
	cache := make(map[int64]*model.Account)
	get := func(id int64) (*model.Account, error) {
		if a, ok := cache[id]; ok {
			return a, nil
		}
		a, err := st.GetAccount(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "get account %d", id)
		}
		cache[id] = a
		return a, nil
	}

	out := make([]matchDetail, 0, len(rows))
	for _, row := range rows {
		a, err := get(row.AccountIDA)
		if err != nil {
			return nil, err
		}
		b, err := get(row.AccountIDB)
		if err != nil {
			return nil, err
		}
		out = append(out, matchDetail{DuplicateAnalysis: row, AccountA: a, AccountB: b})
	}
	return out, nil
}

func reportMatches(details []matchDetail) []excel.ReportMatch {
	out := make([]excel.ReportMatch, len(details))
	for i, d := range details {
		out[i] = excel.ReportMatch{Analysis: d.DuplicateAnalysis, AccountA: d.AccountA, AccountB: d.AccountB}
	}
	return out
}

func companyName(a *model.Account) string {
	if a == nil {
		return "N/A"
	}
	return a.CompanyName
}
