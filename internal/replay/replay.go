// Package replay implements the commit queue and log replay engine
// (spec.md §4.4 "Log replay").
package replay

import (
	"github.com/untoldecay/partitionstore/internal/commit"
	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/pstate"
	"github.com/untoldecay/partitionstore/internal/sum"
)

// Queue is a FIFO buffer of commits awaiting replay, seeded from one or
// more commit-log files in (snapshot ascending, log ascending, position
// ascending) order per spec.md §5.
type Queue[E element.Elt] struct {
	items []*commit.Commit[E]
}

// NewQueue creates an empty queue.
func NewQueue[E element.Elt]() *Queue[E] { return &Queue[E]{} }

// Push appends a commit to the back of the queue.
func (q *Queue[E]) Push(c *commit.Commit[E]) { q.items = append(q.items, c) }

// Len reports the number of commits currently queued.
func (q *Queue[E]) Len() int { return len(q.items) }

// States holds the set of known PartitionState values, keyed by StateSum,
// that a Replayer applies commits against and inserts results into.
type States[E element.Elt] map[sum.Sum]*pstate.State[E]

// Tips is the set of states with no known child in States.
type Tips map[sum.Sum]struct{}

// Replayer applies a Queue of commits against a States set, maintaining
// Tips as it goes. It is re-entrant: Replay may be called multiple times
// (e.g. once per loaded commit log) against the same states/tips. Deferred
// commits are retried only within one call; a commit still unresolved when
// a call ends is reported in that call's Result.Orphans and is not carried
// into later calls.
type Replayer[E element.Elt] struct {
	States States[E]
	Tips   Tips
}

// FromSets builds a Replayer over existing states/tips (e.g. seeded from a
// loaded snapshot).
func FromSets[E element.Elt](states States[E], tips Tips) *Replayer[E] {
	return &Replayer[E]{States: states, Tips: tips}
}

// Result reports the outcome of a Replay call.
type Result struct {
	// EditsApplied is the total number of element-level edits applied
	// across all commits in this pass, for snapshot-policy accounting.
	EditsApplied int
	// Orphans lists commits whose parent was never found, even after
	// repeated passes made no further progress. Non-fatal: the rest of
	// the history remains usable (spec.md §4.4, §7).
	Orphans []*errs.OrphanCommit
}

// Replay drains q, applying every commit whose primary parent
// (Parents[0]) is present in r.States. A commit whose parent is not yet
// known is deferred to a later pass within the same call. The call
// terminates when a full pass over the remaining queue makes no
// progress; anything left is reported as an orphan.
func (r *Replayer[E]) Replay(q *Queue[E]) (Result, error) {
	pending := q.items
	q.items = nil

	var result Result
	for {
		progressed := false
		var stillPending []*commit.Commit[E]

		for _, c := range pending {
			parentSum := c.Parents[0]
			parent, ok := r.States[parentSum]
			if !ok {
				stillPending = append(stillPending, c)
				continue
			}

			child, err := commit.Apply(c, parent)
			if err != nil {
				return result, err
			}
			if child.StateSum != c.StateSum {
				return result, errs.ErrPatchApplyFailed
			}

			r.States[child.StateSum] = child
			for _, p := range child.Parents {
				delete(r.Tips, p)
			}
			r.Tips[child.StateSum] = struct{}{}

			result.EditsApplied += c.NumChanges()
			progressed = true
		}

		pending = stillPending
		if !progressed || len(pending) == 0 {
			break
		}
	}

	for _, c := range pending {
		result.Orphans = append(result.Orphans, &errs.OrphanCommit{
			Reason: "parent state " + c.Parents[0].String() + " never found",
		})
	}

	return result, nil
}
