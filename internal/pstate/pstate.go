// Package pstate implements PartitionState and the "State" capability
// (spec.md §3 "PartitionState", §4.2 "State operations").
package pstate

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/meta"
	"github.com/untoldecay/partitionstore/internal/sum"
)

// eltNumMask mirrors ids' 24-bit element number field width.
const eltNumMask = 1<<24 - 1

// State is an immutable-by-convention snapshot of one partition's elements,
// forwarding records, parent sums, state sum, and metadata. Values are
// never mutated after being inserted into a Partition's state set; all
// mutating operations go through CloneChild/ChildWithParents plus the
// element-level methods below, which operate on the new child only.
type State[E element.Elt] struct {
	PartId   ids.PartId
	Parents  []sum.Sum
	StateSum sum.Sum
	Elts     map[ids.EltId]element.Ref[E]
	Moved    map[ids.EltId]ids.EltId
	Meta     meta.CommitMeta
}

// New creates the genesis state for a partition: no parents, zero
// statesum, no elements.
func New[E element.Elt](partID ids.PartId) *State[E] {
	return &State[E]{
		PartId:  partID,
		Parents: nil,
		Elts:    make(map[ids.EltId]element.Ref[E]),
		Moved:   make(map[ids.EltId]ids.EltId),
		Meta:    meta.CommitMeta{},
	}
}

// CloneChild produces a new child state with self as sole parent, sharing
// element/moved entries by reference (cheap: an O(|elts|) map copy, O(1)
// per element since Refs are shared pointers).
func (s *State[E]) CloneChild(ts time.Time) *State[E] {
	return &State[E]{
		PartId:   s.PartId,
		Parents:  []sum.Sum{s.StateSum},
		StateSum: s.StateSum,
		Elts:     cloneElts(s.Elts),
		Moved:    cloneMoved(s.Moved),
		Meta:     s.Meta.Next(ts),
	}
}

// ChildWithParents produces a merge child: parents[0] must equal s.StateSum
// (s is the "primary" predecessor); additional parents name the other
// tips being merged in.
func (s *State[E]) ChildWithParents(parents []sum.Sum, ts time.Time) (*State[E], error) {
	if len(parents) == 0 || parents[0] != s.StateSum {
		return nil, fmt.Errorf("%w: first parent must equal this state's sum", errs.ErrArg)
	}
	return &State[E]{
		PartId:   s.PartId,
		Parents:  append([]sum.Sum(nil), parents...),
		StateSum: s.StateSum,
		Elts:     cloneElts(s.Elts),
		Moved:    cloneMoved(s.Moved),
		Meta:     s.Meta.Next(ts),
	}, nil
}

func cloneElts[E element.Elt](m map[ids.EltId]element.Ref[E]) map[ids.EltId]element.Ref[E] {
	out := make(map[ids.EltId]element.Ref[E], len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneMoved(m map[ids.EltId]ids.EltId) map[ids.EltId]ids.EltId {
	out := make(map[ids.EltId]ids.EltId, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RecomputeStateSum folds the sums of every contained element. Used by
// property tests (invariant 1) and available for callers that want to
// verify a state independently of the incremental updates below.
func (s *State[E]) RecomputeStateSum() sum.Sum {
	var acc sum.Sum
	for _, ref := range s.Elts {
		acc.Permute(ref.Sum())
	}
	return acc
}

// AnyAvail reports whether the state holds at least one element.
func (s *State[E]) AnyAvail() bool { return len(s.Elts) > 0 }

// NumAvail returns the number of elements held.
func (s *State[E]) NumAvail() int { return len(s.Elts) }

// IsAvail reports whether id names a live element.
func (s *State[E]) IsAvail(id ids.EltId) bool {
	_, ok := s.Elts[id]
	return ok
}

// Get returns the element at id, or ErrNotFound.
func (s *State[E]) Get(id ids.EltId) (E, error) {
	ref, ok := s.Elts[id]
	if !ok {
		var zero E
		return zero, errs.ErrNotFound
	}
	return ref.Get(), nil
}

// Insert generates a free id and stores elt there, updating StateSum.
func (s *State[E]) Insert(elt E) (ids.EltId, error) {
	id, err := s.genID()
	if err != nil {
		return 0, err
	}
	s.insertRef(id, element.NewRef(elt))
	return id, nil
}

// InsertWithId stores elt at the given id. Fails with ErrWrongPartition if
// id belongs to a different partition, ErrIdClash if id is already
// occupied by a live element (note: a moved-forwarding record at the same
// id does not block reuse, matching the Rust reference's insert_with_id,
// which only checks s.elts).
func (s *State[E]) InsertWithId(id ids.EltId, elt E) (ids.EltId, error) {
	if id.PartId() != s.PartId {
		return 0, errs.ErrWrongPartition
	}
	if s.IsAvail(id) {
		return 0, errs.ErrIdClash
	}
	s.insertRef(id, element.NewRef(elt))
	return id, nil
}

func (s *State[E]) insertRef(id ids.EltId, ref element.Ref[E]) {
	s.StateSum.Permute(ref.Sum())
	s.Elts[id] = ref
}

// Replace swaps the element at id for elt, returning the prior value.
// Fails with ErrNotFound if id is not currently live.
func (s *State[E]) Replace(id ids.EltId, elt E) (E, error) {
	old, ok := s.Elts[id]
	if !ok {
		var zero E
		return zero, errs.ErrNotFound
	}
	newRef := element.NewRef(elt)
	s.StateSum.Permute(newRef.Sum())
	s.StateSum.Permute(old.Sum())
	s.Elts[id] = newRef
	return old.Get(), nil
}

// Remove deletes the element at id, returning the prior value.
func (s *State[E]) Remove(id ids.EltId) (E, error) {
	old, ok := s.Elts[id]
	if !ok {
		var zero E
		return zero, errs.ErrNotFound
	}
	s.StateSum.Permute(old.Sum())
	delete(s.Elts, id)
	return old.Get(), nil
}

// SetMove records that id now lives at newID, e.g. after a cross-partition
// migration. The mapping survives across commits via the NoteMove edit
// kind (spec.md §4.3).
func (s *State[E]) SetMove(id, newID ids.EltId) {
	s.Moved[id] = newID
}

// IsMoved reports the forwarding target for id, if one is recorded.
func (s *State[E]) IsMoved(id ids.EltId) (ids.EltId, bool) {
	to, ok := s.Moved[id]
	return to, ok
}

// Locate follows a chain of forwarding pointers starting at id, guarding
// against cycles via a visited set. Returns the live id the chain
// terminates at, or ErrNotFound on a loop or dead end.
func (s *State[E]) Locate(id ids.EltId) (ids.EltId, error) {
	visited := map[ids.EltId]bool{}
	cur := id
	for {
		if s.IsAvail(cur) {
			return cur, nil
		}
		if visited[cur] {
			return 0, errs.ErrNotFound
		}
		visited[cur] = true
		next, ok := s.IsMoved(cur)
		if !ok {
			return 0, errs.ErrNotFound
		}
		cur = next
	}
}

// genID picks a uniform random 24-bit element number, composes it with
// PartId, and probes forward via NextElt on collision until a free slot
// is found or a full sweep of the 24-bit space is exhausted.
func (s *State[E]) genID() (ids.EltId, error) {
	initial := s.PartId.EltId(randomEltNum())
	id := initial
	for {
		if !s.IsAvail(id) {
			if _, moved := s.IsMoved(id); !moved {
				return id, nil
			}
		}
		id = id.NextElt()
		if id == initial {
			return 0, errs.ErrIdGenFailure
		}
	}
}

// GenIDBinary is as genID, but also avoids ids already occupied in other,
// a second state assumed to share this state's PartId, for callers that
// must pick an id free in both of two tips.
// Unlike the single-state sweep, this uses a bounded number of tries
// rather than an exhaustive 2^24 sweep, matching the Rust reference's
// gen_id_binary.
func (s *State[E]) GenIDBinary(other *State[E]) (ids.EltId, error) {
	id, err := s.genID()
	if err != nil {
		return 0, err
	}
	const maxTries = 1000
	for tries := 0; tries < maxTries; tries++ {
		_, selfMoved := s.IsMoved(id)
		_, otherMoved := other.IsMoved(id)
		if !s.IsAvail(id) && !other.IsAvail(id) && !selfMoved && !otherMoved {
			return id, nil
		}
		id = id.NextElt()
	}
	return 0, errs.ErrIdGenFailure
}

func randomEltNum() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:]) & eltNumMask
}
