package consensus

import "github.com/mapsproj/maps/pkg/canonical"

// unionFind tracks connected components over annotation indices while
// enforcing the invariant that no component holds two annotations from
// the same reader. A union that would violate it is silently refused;
// the edge ordering in qualifyingEdges decides which links win.
type unionFind struct {
	parent  []int
	rank    []int
	readers []map[string]bool
}

func newUnionFind(all []canonical.NoduleAnnotation) *unionFind {
	uf := &unionFind{
		parent:  make([]int, len(all)),
		rank:    make([]int, len(all)),
		readers: make([]map[string]bool, len(all)),
	}
	for i, a := range all {
		uf.parent[i] = i
		uf.readers[i] = map[string]bool{a.ReaderID: true}
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(i, j int) bool {
	ri, rj := uf.find(i), uf.find(j)
	if ri == rj {
		return true
	}
	for r := range uf.readers[rj] {
		if uf.readers[ri][r] {
			return false
		}
	}
	if uf.rank[ri] < uf.rank[rj] {
		ri, rj = rj, ri
	}
	uf.parent[rj] = ri
	for r := range uf.readers[rj] {
		uf.readers[ri][r] = true
	}
	uf.readers[rj] = nil
	if uf.rank[ri] == uf.rank[rj] {
		uf.rank[ri]++
	}
	return true
}
