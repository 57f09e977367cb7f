// Package merge implements the two-way merge machinery that resolves
// divergent partition tips into a single tip (spec.md §4.6 "Merge",
// "Latest common ancestor"). The per-element conflict resolution is a
// base/tipA/tipB three-way comparison, the same shape as a textual
// 3-way merge: elements unchanged on one side take the other side's
// value; elements that differ on both sides are handed to a caller-
// supplied solver. Progress and conflict counts are reported through a
// diag.Sink the same way the rest of the engine does, rather than a
// dedicated logging library.
package merge

import (
	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/replay"
	"github.com/untoldecay/partitionstore/internal/sum"
)

// LatestCommonAncestor finds the first state, walking back from b, that is
// also an ancestor of a. It collects all of a's ancestors first, then
// walks b's ancestry until it finds a match (spec.md's BFS description).
// Fails with an Other error if the two states share no ancestor (the
// graphs are disjoint), which shouldn't happen for two tips of the same
// partition's DAG.
func LatestCommonAncestor[E element.Elt](states replay.States[E], a, b sum.Sum) (sum.Sum, error) {
	ancestorsOfA := map[sum.Sum]bool{}
	queue := []sum.Sum{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if ancestorsOfA[cur] {
			continue
		}
		ancestorsOfA[cur] = true
		if st, ok := states[cur]; ok {
			queue = append(queue, st.Parents...)
		}
	}

	visited := map[sum.Sum]bool{}
	queue = []sum.Sum{b}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if ancestorsOfA[cur] {
			return cur, nil
		}
		if st, ok := states[cur]; ok {
			queue = append(queue, st.Parents...)
		}
	}

	return sum.Zero, errs.NewOther("no common ancestor between the given states")
}
