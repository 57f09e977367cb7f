// Package commit implements Commit, the parent-sums-to-child-sum
// transition record with its edit list, and diff-based commit creation
// (spec.md §3 "Commit", §4.3 "Commit creation").
package commit

import (
	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/meta"
	"github.com/untoldecay/partitionstore/internal/pstate"
	"github.com/untoldecay/partitionstore/internal/sum"
)

// Kind names the four edit shapes a Commit's Changes list may contain.
type Kind int

const (
	Insert Kind = iota
	Remove
	Replace
	NoteMove
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Remove:
		return "remove"
	case Replace:
		return "replace"
	case NoteMove:
		return "note-move"
	default:
		return "unknown"
	}
}

// Change is one edit within a Commit. Which fields are populated depends
// on Kind:
//
//	Insert:   Id, New
//	Remove:   Id, PriorSum
//	Replace:  Id, PriorSum, New
//	NoteMove: Id, NewId
type Change[E element.Elt] struct {
	Kind     Kind
	Id       ids.EltId
	NewId    ids.EltId // NoteMove only
	PriorSum sum.Sum   // Remove, Replace
	New      E         // Insert, Replace
}

// Commit is the transition record from one or more parent states to a
// child state, content-addressed by the child's StateSum.
type Commit[E element.Elt] struct {
	StateSum sum.Sum
	Parents  []sum.Sum
	Changes  []Change[E]
	Meta     meta.CommitMeta
}

// NumChanges returns len(Changes), convenient for snapshot-policy
// accounting.
func (c *Commit[E]) NumChanges() int { return len(c.Changes) }

// FromDiff computes the edit list that takes parent to child, matching
// spec.md §4.3: removals for ids gone from child, insertions for ids new
// in child, replacements for ids present in both with a changed sum, and
// NoteMove edits for any forwarding record new in child.moved. Returns
// (nil, false) if there is no difference ("no commit").
func FromDiff[E element.Elt](parent, child *pstate.State[E]) (*Commit[E], bool) {
	var changes []Change[E]

	for id, oldRef := range parent.Elts {
		if _, ok := child.Elts[id]; !ok {
			changes = append(changes, Change[E]{Kind: Remove, Id: id, PriorSum: oldRef.Sum()})
		}
	}
	for id, newRef := range child.Elts {
		oldRef, ok := parent.Elts[id]
		if !ok {
			changes = append(changes, Change[E]{Kind: Insert, Id: id, New: newRef.Get()})
			continue
		}
		if oldRef.Sum() != newRef.Sum() {
			changes = append(changes, Change[E]{Kind: Replace, Id: id, PriorSum: oldRef.Sum(), New: newRef.Get()})
		}
	}
	for id, newTo := range child.Moved {
		if oldTo, ok := parent.Moved[id]; !ok || oldTo != newTo {
			changes = append(changes, Change[E]{Kind: NoteMove, Id: id, NewId: newTo})
		}
	}

	if len(changes) == 0 {
		return nil, false
	}

	return &Commit[E]{
		StateSum: child.StateSum,
		Parents:  append([]sum.Sum(nil), child.Parents...),
		Changes:  changes,
		Meta:     child.Meta,
	}, true
}

// Apply applies c's Changes to parent, returning the resulting child
// state. It does not verify the resulting StateSum against c.StateSum;
// callers that need that guarantee (e.g. replay) should check themselves
// and return errs.ErrPatchApplyFailed on mismatch.
func Apply[E element.Elt](c *Commit[E], parent *pstate.State[E]) (*pstate.State[E], error) {
	child, err := parent.ChildWithParents(c.Parents, c.Meta.Timestamp)
	if err != nil {
		return nil, err
	}
	child.Meta = c.Meta
	for _, ch := range c.Changes {
		switch ch.Kind {
		case Insert:
			if _, err := child.InsertWithId(ch.Id, ch.New); err != nil {
				return nil, err
			}
		case Remove:
			if _, err := child.Remove(ch.Id); err != nil {
				return nil, err
			}
		case Replace:
			if _, err := child.Replace(ch.Id, ch.New); err != nil {
				return nil, err
			}
		case NoteMove:
			child.SetMove(ch.Id, ch.NewId)
		default:
			return nil, errs.NewOther("unknown change kind")
		}
	}
	return child, nil
}
