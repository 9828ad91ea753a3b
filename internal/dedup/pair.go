package dedup

// PairKey identifies an unordered pair of account IDs, stored as (min, max).
type PairKey struct {
	Lo int64
	Hi int64
}

// NewPairKey returns the key for the pair {a, b} regardless of argument order.
func NewPairKey(a, b int64) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Lo: a, Hi: b}
}
