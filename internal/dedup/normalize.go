// Package dedup detects likely-duplicate lead accounts by fuzzy comparison of
// company names, addresses and contact channels, and clusters them into groups.
package dedup

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// legalSuffixRe matches legal-entity suffixes as whole words, with an optional trailing period.
	legalSuffixRe = regexp.MustCompile(`\b(inc|llc|ltd|corp|corporation|company|co|limited)\b\.?`)
	streetTypeRe  = regexp.MustCompile(`\b(street|avenue|road|drive|boulevard|suite)\b`)
	punctRe       = regexp.MustCompile(`[^\w\s]`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// streetTypes maps street-type words to their standard abbreviations.
var streetTypes = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"road":      "rd",
	"drive":     "dr",
	"boulevard": "blvd",
	"suite":     "ste",
}

// NormalizeName canonicalizes a company name for comparison:
//  1. Folding diacritics and lower-casing
//  2. Removing legal suffixes (inc, llc, corp, ...) as whole words
//  3. Replacing punctuation and symbols with spaces
//  4. Collapsing whitespace
func NormalizeName(name string) string {
	name = prepare(name)
	if name == "" {
		return ""
	}
	name = legalSuffixRe.ReplaceAllString(name, "")
	return squash(name)
}

// NormalizeAddress canonicalizes a street address for comparison. Street-type
// words are abbreviated (street -> st, avenue -> ave, ...) before punctuation
// is stripped.
func NormalizeAddress(address string) string {
	address = prepare(address)
	if address == "" {
		return ""
	}
	address = streetTypeRe.ReplaceAllStringFunc(address, func(w string) string {
		return streetTypes[w]
	})
	return squash(address)
}

func prepare(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(strings.ToLower(foldDiacritics(s)))
}

func squash(s string) string {
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// foldDiacritics strips combining marks so "Café" compares as "Cafe".
func foldDiacritics(s string) string {
	if isASCII(s) {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
