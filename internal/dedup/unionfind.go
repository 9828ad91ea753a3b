package dedup

// unionFind is a disjoint-set forest over account IDs with path compression
// and union by rank.
type unionFind struct {
	parent map[int64]int64
	rank   map[int64]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[int64]int64),
		rank:   make(map[int64]int),
	}
}

// find returns the root of x, adding x as a singleton if unseen.
func (u *unionFind) find(x int64) int64 {
	p, ok := u.parent[x]
	if !ok {
		u.parent[x] = x
		return x
	}
	if p == x {
		return x
	}
	root := u.find(p)
	u.parent[x] = root
	return root
}

// union merges the sets of a and b and returns the new root.
func (u *unionFind) union(a, b int64) int64 {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return ra
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		ra, rb = rb, ra
	case u.rank[ra] == u.rank[rb]:
		u.rank[ra]++
	}
	u.parent[rb] = ra
	return ra
}

// has reports whether x has been added to the forest.
func (u *unionFind) has(x int64) bool {
	_, ok := u.parent[x]
	return ok
}
