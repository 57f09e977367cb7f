package merge

import (
	"fmt"
	"time"

	"github.com/untoldecay/partitionstore/internal/commit"
	"github.com/untoldecay/partitionstore/internal/diag"
	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/pstate"
	"github.com/untoldecay/partitionstore/internal/sum"
)

// Triple is the per-element view a TwoWaySolver is asked to resolve: the
// element as it stood at the common ancestor (nil if it didn't exist
// there), and as it stands on each tip (nil if deleted on that side).
type Triple[E element.Elt] struct {
	Id   ids.EltId
	Base *E
	A    *E
	B    *E
}

// TwoWaySolver resolves one conflicting element. It returns the element to
// keep and true, or false to mean "drop the element" (e.g. the solver
// decides a delete on one side should win over an edit on the other).
type TwoWaySolver[E element.Elt] interface {
	Solve(t Triple[E]) (E, bool, error)
}

// resolution records the outcome for one element id after comparing base,
// tipA and tipB.
type resolution[E element.Elt] struct {
	id    ids.EltId
	kept  bool // false means the element should be absent in the merge result
	value E
}

// Session drives a single two-way merge between two tips sharing a common
// ancestor (spec.md §4.6). It mirrors the shape of a textual 3-way merge:
// an element unchanged on one side takes the other side's value; an
// element changed on both sides goes to the solver.
type Session[E element.Elt] struct {
	base *pstate.State[E]
	tipA *pstate.State[E]
	tipB *pstate.State[E]

	resolved    bool
	resolutions []resolution[E]
	conflicts   int
}

// NewSession builds a merge session over base (the latest common ancestor)
// and the two diverging tips.
func NewSession[E element.Elt](base, tipA, tipB *pstate.State[E]) *Session[E] {
	return &Session[E]{base: base, tipA: tipA, tipB: tipB}
}

// Conflicts reports how many elements required the solver.
func (s *Session[E]) Conflicts() int { return s.conflicts }

func ptrOrNil[E element.Elt](st *pstate.State[E], id ids.EltId) *E {
	ref, ok := st.Elts[id]
	if !ok {
		return nil
	}
	v := ref.Get()
	return &v
}

func sameElt[E element.Elt](x, y *E) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return (*x).Sum() == (*y).Sum()
}

// callSolver invokes a caller-supplied TwoWaySolver and recovers a panic
// into an error instead of letting it unwind across the package boundary,
// so a buggy solver fails the merge cleanly rather than corrupting the
// session's partial resolutions.
func callSolver[E element.Elt](solver TwoWaySolver[E], t Triple[E]) (resolved E, keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero E
			resolved, keep, err = zero, false, fmt.Errorf("solver panicked resolving element %s: %v", t.Id, r)
		}
	}()
	return solver.Solve(t)
}

// Solve walks every element id appearing in base, tipA or tipB, classifies
// it, and resolves it either automatically (unchanged on one side) or by
// calling solver (changed on both sides). sink receives one line per
// conflict resolved.
func (s *Session[E]) Solve(solver TwoWaySolver[E], sink diag.Sink) error {
	seen := map[ids.EltId]bool{}
	var ordered []ids.EltId
	collect := func(st *pstate.State[E]) {
		for id := range st.Elts {
			if !seen[id] {
				seen[id] = true
				ordered = append(ordered, id)
			}
		}
	}
	collect(s.base)
	collect(s.tipA)
	collect(s.tipB)

	for _, id := range ordered {
		base := ptrOrNil(s.base, id)
		a := ptrOrNil(s.tipA, id)
		b := ptrOrNil(s.tipB, id)

		switch {
		case sameElt(a, b):
			// Both sides agree (including both nil, i.e. deleted on both).
			if a != nil {
				s.resolutions = append(s.resolutions, resolution[E]{id: id, kept: true, value: *a})
			} else {
				s.resolutions = append(s.resolutions, resolution[E]{id: id, kept: false})
			}
		case sameElt(base, a):
			// Unchanged on A's side: take B's value (possibly a delete).
			if b != nil {
				s.resolutions = append(s.resolutions, resolution[E]{id: id, kept: true, value: *b})
			} else {
				s.resolutions = append(s.resolutions, resolution[E]{id: id, kept: false})
			}
		case sameElt(base, b):
			// Unchanged on B's side: take A's value.
			if a != nil {
				s.resolutions = append(s.resolutions, resolution[E]{id: id, kept: true, value: *a})
			} else {
				s.resolutions = append(s.resolutions, resolution[E]{id: id, kept: false})
			}
		default:
			s.conflicts++
			resolved, keep, err := callSolver(solver, Triple[E]{Id: id, Base: base, A: a, B: b})
			if err != nil {
				return fmt.Errorf("resolving conflict on element %s: %w", id, err)
			}
			diag.Printf(sink, "merge: resolved conflict on element %s (kept=%v)", id, keep)
			s.resolutions = append(s.resolutions, resolution[E]{id: id, kept: keep, value: resolved})
		}
	}

	s.resolved = true
	return nil
}

// MakeCommit applies every resolution onto a child of tipA with both tips
// as parents, and returns the resulting commit plus the new state. Solve
// must have been called first.
//
// If the merged state's sum collides with either input tip's sum,
// MakeCommit fails rather than silently returning that tip as "the merge"
// (spec.md §9's open question: a merge that reproduces an existing tip is
// surfaced as a failure, since a caller asking for a merge commit expects a
// genuinely new state, not confirmation that one side already subsumed the
// other).
func (s *Session[E]) MakeCommit(ts time.Time) (*commit.Commit[E], *pstate.State[E], error) {
	if !s.resolved {
		return nil, nil, fmt.Errorf("%w: MakeCommit called before Solve", errs.ErrArg)
	}

	child, err := s.tipA.ChildWithParents([]sum.Sum{s.tipA.StateSum, s.tipB.StateSum}, ts)
	if err != nil {
		return nil, nil, err
	}

	for _, r := range s.resolutions {
		_, hasExisting := child.Elts[r.id]
		switch {
		case r.kept && hasExisting:
			if _, err := child.Replace(r.id, r.value); err != nil {
				return nil, nil, fmt.Errorf("applying merge resolution for %s: %w", r.id, err)
			}
		case r.kept && !hasExisting:
			if _, err := child.InsertWithId(r.id, r.value); err != nil {
				return nil, nil, fmt.Errorf("applying merge resolution for %s: %w", r.id, err)
			}
		case !r.kept && hasExisting:
			if _, err := child.Remove(r.id); err != nil {
				return nil, nil, fmt.Errorf("applying merge resolution for %s: %w", r.id, err)
			}
		}
	}

	if child.StateSum == s.tipA.StateSum || child.StateSum == s.tipB.StateSum {
		return nil, nil, errs.NewOther("merge result reproduces an existing tip's state sum")
	}

	c, ok := commit.FromDiff(s.tipA, child)
	if !ok {
		return nil, nil, errs.NewOther("merge produced no changes relative to the primary tip")
	}
	return c, child, nil
}
