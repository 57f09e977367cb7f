package merge

import (
	"fmt"
	"time"

	"github.com/untoldecay/partitionstore/internal/commit"
	"github.com/untoldecay/partitionstore/internal/diag"
	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/replay"
	"github.com/untoldecay/partitionstore/internal/sum"
)

// MergeAll reduces tips to a single tip, merging any two at a time via
// LatestCommonAncestor and a Session, until at most one remains. Every
// merge commit produced is returned in the order it was created, so a
// caller can push each onto its unsaved queue and commit log (spec.md
// §4.6: "repeated two-way merges until one tip remains").
//
// states is mutated: each merge's resulting state is added to it so
// later merges in the same call can find it as an ancestor candidate.
// tips is mutated to reflect the new single tip (or left as-is if there
// was nothing to merge).
func MergeAll[E element.Elt](states replay.States[E], tips replay.Tips, solver TwoWaySolver[E], ts time.Time, sink diag.Sink) ([]*commit.Commit[E], error) {
	if len(tips) <= 1 {
		return nil, nil
	}

	var commits []*commit.Commit[E]

	for len(tips) > 1 {
		var a, b sum.Sum
		i := 0
		for t := range tips {
			if i == 0 {
				a = t
			} else if i == 1 {
				b = t
				break
			}
			i++
		}

		stateA, ok := states[a]
		if !ok {
			return commits, fmt.Errorf("merging: %w: tip %s not in known states", errs.ErrNotFound, a)
		}
		stateB, ok := states[b]
		if !ok {
			return commits, fmt.Errorf("merging: %w: tip %s not in known states", errs.ErrNotFound, b)
		}

		ancestorSum, err := LatestCommonAncestor(states, a, b)
		if err != nil {
			return commits, fmt.Errorf("merging tips %s and %s: %w", a, b, err)
		}
		base, ok := states[ancestorSum]
		if !ok {
			return commits, fmt.Errorf("%w: common ancestor %s not in known states", errs.ErrNotFound, ancestorSum)
		}

		session := NewSession(base, stateA, stateB)
		if err := session.Solve(solver, sink); err != nil {
			return commits, fmt.Errorf("merging tips %s and %s: %w", a, b, err)
		}
		diag.Printf(sink, "merge: combining tips %s and %s (%d conflicts)", a, b, session.Conflicts())

		c, child, err := session.MakeCommit(ts)
		if err != nil {
			return commits, fmt.Errorf("merging tips %s and %s: %w", a, b, err)
		}

		states[child.StateSum] = child
		delete(tips, a)
		delete(tips, b)
		tips[child.StateSum] = struct{}{}

		commits = append(commits, c)
	}

	return commits, nil
}
