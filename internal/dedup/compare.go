package dedup

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/leads-cli/internal/model"
)

// Matching policy. Bump AlgorithmVersion whenever any of these change.
const (
	NameMatchThreshold    = 85.0
	AddressMatchThreshold = 80.0
	NameWeight            = 0.6
	AddressWeight         = 0.4
	MinPhoneDigits        = 10
	AlgorithmVersion      = "1.0"
)

// Matched field names.
const (
	FieldCompanyName = "companyName"
	FieldAddress     = "address"
	FieldPhone       = "phone"
	FieldWebsite     = "website"
)

// Match is the result of a pairwise comparison that crossed a threshold.
type Match struct {
	AccountIDA        int64    `json:"account_id_a"`
	AccountIDB        int64    `json:"account_id_b"`
	NameSimilarity    float64  `json:"name_similarity"`
	AddressSimilarity float64  `json:"address_similarity"`
	OverallSimilarity float64  `json:"overall_similarity"`
	MatchReason       string   `json:"match_reason"`
	MatchedFields     []string `json:"matched_fields"`
}

// Pair returns the unordered pair key of the matched accounts.
func (m Match) Pair() PairKey {
	return NewPairKey(m.AccountIDA, m.AccountIDB)
}

// Involves reports whether the match references the given account.
func (m Match) Involves(accountID int64) bool {
	return m.AccountIDA == accountID || m.AccountIDB == accountID
}

// Record converts the match into a persistable analysis row for a group.
func (m Match) Record(groupID string, analyzedAt time.Time) *model.DuplicateAnalysis {
	return &model.DuplicateAnalysis{
		DuplicateGroupID:       groupID,
		AccountIDA:             m.AccountIDA,
		AccountIDB:             m.AccountIDB,
		NameSimilarityScore:    round2(m.NameSimilarity),
		AddressSimilarityScore: round2(m.AddressSimilarity),
		OverallSimilarityScore: round2(m.OverallSimilarity),
		MatchReason:            m.MatchReason,
		MatchedFields:          strings.Join(m.MatchedFields, ","),
		AlgorithmVersion:       AlgorithmVersion,
		AnalyzedAt:             analyzedAt,
	}
}

// ComparatorOptions tunes comparator policy.
type ComparatorOptions struct {
	// ContactMatchQualifies lets an identical phone number or website flag a
	// pair on its own. When false, phone and website only annotate pairs that
	// already passed the name or address threshold.
	ContactMatchQualifies bool
}

// Comparator decides whether two accounts are likely duplicates.
type Comparator struct {
	opts ComparatorOptions
}

// NewComparator creates a comparator with the given options.
func NewComparator(opts ComparatorOptions) *Comparator {
	return &Comparator{opts: opts}
}

// Compare returns a match for accounts a and b, or nil when they are not
// likely duplicates. An account never matches itself.
func (c *Comparator) Compare(a, b model.Account) *Match {
	if a.ID == b.ID {
		return nil
	}

	nameSimilarity := Similarity(NormalizeName(a.CompanyName), NormalizeName(b.CompanyName))
	addressSimilarity := Similarity(NormalizeAddress(a.Address), NormalizeAddress(b.Address))

	isNameMatch := NameMatches(nameSimilarity)
	isAddressMatch := AddressMatches(addressSimilarity)
	isPhoneMatch := samePhone(a.Phone, b.Phone)
	isWebsiteMatch := sameWebsite(a.Website, b.Website)

	if !isNameMatch && !isAddressMatch {
		if !c.opts.ContactMatchQualifies || (!isPhoneMatch && !isWebsiteMatch) {
			return nil
		}
	}

	var fields, reasons []string
	if isNameMatch {
		fields = append(fields, FieldCompanyName)
		reasons = append(reasons, fmt.Sprintf("Company name %s%% similar", FormatScore(nameSimilarity)))
	}
	if isAddressMatch {
		fields = append(fields, FieldAddress)
		reasons = append(reasons, fmt.Sprintf("Address %s%% similar", FormatScore(addressSimilarity)))
	}
	if isPhoneMatch {
		fields = append(fields, FieldPhone)
		reasons = append(reasons, "Identical phone number")
	}
	if isWebsiteMatch {
		fields = append(fields, FieldWebsite)
		reasons = append(reasons, "Identical website")
	}

	return &Match{
		AccountIDA:        a.ID,
		AccountIDB:        b.ID,
		NameSimilarity:    nameSimilarity,
		AddressSimilarity: addressSimilarity,
		OverallSimilarity: nameSimilarity*NameWeight + addressSimilarity*AddressWeight,
		MatchReason:       strings.Join(reasons, "; "),
		MatchedFields:     fields,
	}
}

// NameMatches reports whether a name similarity score meets the name threshold.
func NameMatches(score float64) bool {
	return score >= NameMatchThreshold
}

// AddressMatches reports whether an address similarity score meets the address threshold.
func AddressMatches(score float64) bool {
	return score >= AddressMatchThreshold
}

// Compare runs the default comparator, in which phone and website never
// qualify a pair on their own.
func Compare(a, b model.Account) *Match {
	return defaultComparator.Compare(a, b)
}

var defaultComparator = NewComparator(ComparatorOptions{})

func samePhone(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	da, db := digits(a), digits(b)
	return da == db && len(da) >= MinPhoneDigits
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func sameWebsite(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	wa, wb := normalizeWebsite(a), normalizeWebsite(b)
	return wa != "" && wa == wb
}

// normalizeWebsite strips scheme, www prefix and trailing slash from a URL.
func normalizeWebsite(rawURL string) string {
	w := strings.ToLower(strings.TrimSpace(rawURL))
	w = strings.TrimPrefix(w, "https://")
	w = strings.TrimPrefix(w, "http://")
	w = strings.TrimPrefix(w, "www.")
	return strings.TrimSuffix(w, "/")
}
