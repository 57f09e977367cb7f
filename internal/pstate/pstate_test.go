package pstate

import (
	"testing"
	"time"

	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/sum"
)

type strElt string

func (s strElt) Sum() sum.Sum { return sum.Of([]byte(s)) }

func mustPart(t *testing.T, n uint64) ids.PartId {
	t.Helper()
	p, err := ids.FromNum(n)
	if err != nil {
		t.Fatalf("FromNum: %v", err)
	}
	return p
}

func TestGenesisIsZero(t *testing.T) {
	p := mustPart(t, 1)
	s := New[strElt](p)
	if !s.StateSum.IsZero() {
		t.Fatalf("genesis statesum not zero")
	}
	if s.AnyAvail() {
		t.Fatalf("genesis should have no elements")
	}
	if len(s.Parents) != 0 {
		t.Fatalf("genesis should have no parents")
	}
}

func TestInsertionsCommute(t *testing.T) {
	p := mustPart(t, 1)
	base := New[strElt](p)
	child := base.CloneChild(time.Unix(0, 0))

	a := strElt("This is element one.")
	b := strElt("Element two data.")

	if _, err := child.Insert(a); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := child.Insert(b); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	want := sum.Fold(a.Sum(), b.Sum())
	if child.StateSum != want {
		t.Fatalf("statesum = %s, want %s", child.StateSum, want)
	}
	if got := child.RecomputeStateSum(); got != child.StateSum {
		t.Fatalf("recomputed statesum %s != incremental %s", got, child.StateSum)
	}
}

func TestReplaceAndRemove(t *testing.T) {
	p := mustPart(t, 1)
	s := New[strElt](p).CloneChild(time.Unix(0, 0))
	id, _ := s.Insert(strElt("original"))

	old, err := s.Replace(id, strElt("updated"))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if old != "original" {
		t.Fatalf("replace returned %q, want original", old)
	}
	if got := s.RecomputeStateSum(); got != s.StateSum {
		t.Fatalf("statesum mismatch after replace")
	}

	removed, err := s.Remove(id)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != "updated" {
		t.Fatalf("remove returned %q, want updated", removed)
	}
	if !s.StateSum.IsZero() {
		t.Fatalf("statesum should be zero after removing sole element")
	}
}

func TestInsertWithIdWrongPartitionAndClash(t *testing.T) {
	p1 := mustPart(t, 1)
	p2 := mustPart(t, 2)
	s := New[strElt](p1).CloneChild(time.Unix(0, 0))

	foreign := p2.EltId(5)
	if _, err := s.InsertWithId(foreign, strElt("x")); err == nil {
		t.Fatalf("expected wrong-partition error")
	}

	id := p1.EltId(5)
	if _, err := s.InsertWithId(id, strElt("x")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := s.InsertWithId(id, strElt("y")); err == nil {
		t.Fatalf("expected id-clash error")
	}
}

func TestSetMoveAndLocate(t *testing.T) {
	p := mustPart(t, 1)
	s := New[strElt](p).CloneChild(time.Unix(0, 0))
	oldID := p.EltId(1)
	newID := p.EltId(2)
	if _, err := s.InsertWithId(newID, strElt("moved-here")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.SetMove(oldID, newID)

	got, err := s.Locate(oldID)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != newID {
		t.Fatalf("locate = %v, want %v", got, newID)
	}
}

func TestLocateDetectsLoop(t *testing.T) {
	p := mustPart(t, 1)
	s := New[strElt](p).CloneChild(time.Unix(0, 0))
	a := p.EltId(1)
	b := p.EltId(2)
	s.SetMove(a, b)
	s.SetMove(b, a)
	if _, err := s.Locate(a); err == nil {
		t.Fatalf("expected loop to be detected as not found")
	}
}

func TestChildWithParentsRequiresMatchingFirstParent(t *testing.T) {
	p := mustPart(t, 1)
	s := New[strElt](p)
	if _, err := s.ChildWithParents([]sum.Sum{sum.Of([]byte("not-self"))}, time.Unix(0, 0)); err == nil {
		t.Fatalf("expected error when first parent does not match")
	}
	child, err := s.ChildWithParents([]sum.Sum{s.StateSum, sum.Of([]byte("other-tip"))}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("ChildWithParents: %v", err)
	}
	if len(child.Parents) != 2 {
		t.Fatalf("expected 2 parents, got %d", len(child.Parents))
	}
}
