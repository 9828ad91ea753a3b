package dedup

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns a 0-100 score for two strings based on Levenshtein edit
// distance: (maxLen - distance) / maxLen * 100, rounded to two decimals.
// Empty input scores 0; equal strings score 100.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	s1 := strings.ToLower(strings.TrimSpace(a))
	s2 := strings.ToLower(strings.TrimSpace(b))
	if s1 == s2 {
		return 100
	}

	maxLen := max(utf8.RuneCountInString(s1), utf8.RuneCountInString(s2))
	if maxLen == 0 {
		return 100
	}

	distance := levenshtein.ComputeDistance(s1, s2)
	return round2(float64(maxLen-distance) / float64(maxLen) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatScore renders a score with one decimal. Halves round away from zero
// on the exact binary value, so 81.25 renders as "81.3".
func FormatScore(v float64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	x := new(big.Float).SetPrec(128).SetFloat64(v)
	x.Mul(x, big.NewFloat(10))
	x.Add(x, big.NewFloat(0.5))
	n, _ := x.Int64()
	if n == 0 {
		sign = ""
	}
	return fmt.Sprintf("%s%d.%d", sign, n/10, n%10)
}
