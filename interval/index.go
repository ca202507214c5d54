package interval

import (
	"sort"

	store "github.com/biogo/store/interval"
)

// treeEntry adapts a Set member to the biogo interval-tree interface.  The
// closed-coordinate overlap test lives here so that tree queries agree with
// Overlaps().
type treeEntry struct {
	start, end int
	idx        int
}

func (e treeEntry) Overlap(b store.IntRange) bool {
	return e.end >= b.Start && e.start <= b.End
}

func (e treeEntry) ID() uintptr { return uintptr(e.idx) }

func (e treeEntry) Range() store.IntRange {
	return store.IntRange{Start: e.start, End: e.end}
}

// Index answers overlap queries against a fixed Set.  It is built once and
// read-only afterwards; queries have no side effects.
type Index struct {
	set   Set
	trees map[string]*store.IntTree
}

// NewIndex builds a per-chromosome interval tree over s.  The Set must
// outlive the Index; member intervals are referenced by position.
func NewIndex(s Set) *Index {
	x := &Index{set: s, trees: make(map[string]*store.IntTree)}
	for i, iv := range s {
		tree, ok := x.trees[iv.Chrom]
		if !ok {
			tree = &store.IntTree{}
			x.trees[iv.Chrom] = tree
		}
		// Insert cannot fail for distinct IDs; fast insert defers balancing
		// to the AdjustRanges pass below.
		_ = tree.Insert(treeEntry{start: iv.Start, end: iv.End, idx: i}, true)
	}
	for _, tree := range x.trees {
		tree.AdjustRanges()
	}
	return x
}

// Overlapping returns the members of the indexed Set that share at least one
// base with q, in their original Set order.
func (x *Index) Overlapping(q Interval) Set {
	tree, ok := x.trees[q.Chrom]
	if !ok {
		return nil
	}
	hits := tree.Get(treeEntry{start: q.Start, end: q.End, idx: -1})
	idxs := make([]int, len(hits))
	for i, h := range hits {
		idxs[i] = h.(treeEntry).idx
	}
	sort.Ints(idxs)
	out := make(Set, len(idxs))
	for i, idx := range idxs {
		out[i] = x.set[idx]
	}
	return out
}

// FindOverlapping is a convenience wrapper that builds a throwaway index.
// Prefer NewIndex + Overlapping when issuing many queries.
func FindOverlapping(s Set, q Interval) Set {
	return NewIndex(s).Overlapping(q)
}
