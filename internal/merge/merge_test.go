package merge

import (
	"testing"
	"time"

	"github.com/untoldecay/partitionstore/internal/diag"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/pstate"
	"github.com/untoldecay/partitionstore/internal/replay"
	"github.com/untoldecay/partitionstore/internal/sum"
)

type strElt string

func (s strElt) Sum() sum.Sum { return sum.Of([]byte(s)) }

// takeA always resolves a conflict by keeping tipA's value.
type takeA struct{}

func (takeA) Solve(t Triple[strElt]) (strElt, bool, error) {
	if t.A == nil {
		return "", false, nil
	}
	return *t.A, true, nil
}

func seedBase(t *testing.T) *pstate.State[strElt] {
	t.Helper()
	p, err := ids.FromNum(1)
	if err != nil {
		t.Fatalf("FromNum: %v", err)
	}
	base := pstate.New[strElt](p).CloneChild(time.Unix(0, 0))
	if _, err := base.Insert(strElt("shared")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return base
}

func TestLatestCommonAncestorFindsSharedParent(t *testing.T) {
	base := seedBase(t)

	tipA := base.CloneChild(time.Unix(1, 0))
	if _, err := tipA.Insert(strElt("a-only")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tipB := base.CloneChild(time.Unix(1, 0))
	if _, err := tipB.Insert(strElt("b-only")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	states := replay.States[strElt]{
		base.StateSum: base,
		tipA.StateSum: tipA,
		tipB.StateSum: tipB,
	}

	got, err := LatestCommonAncestor(states, tipA.StateSum, tipB.StateSum)
	if err != nil {
		t.Fatalf("LatestCommonAncestor: %v", err)
	}
	if got != base.StateSum {
		t.Fatalf("got ancestor %s, want %s", got, base.StateSum)
	}
}

func TestLatestCommonAncestorDisjointFails(t *testing.T) {
	p, _ := ids.FromNum(1)
	a := pstate.New[strElt](p).CloneChild(time.Unix(0, 0))
	if _, err := a.Insert(strElt("a")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Give each state a parent pointer into the void, rather than the
	// implicit shared genesis (sum.Zero), so their ancestries genuinely
	// never meet.
	a.Parents = []sum.Sum{sum.Of([]byte("dangling-a"))}

	b := pstate.New[strElt](p).CloneChild(time.Unix(1, 0))
	if _, err := b.Insert(strElt("b")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	b.Parents = []sum.Sum{sum.Of([]byte("dangling-b"))}

	states := replay.States[strElt]{a.StateSum: a, b.StateSum: b}
	if _, err := LatestCommonAncestor(states, a.StateSum, b.StateSum); err == nil {
		t.Fatalf("expected an error for disjoint ancestries")
	}
}

func TestSessionNoConflictMerge(t *testing.T) {
	base := seedBase(t)

	tipA := base.CloneChild(time.Unix(1, 0))
	idA, err := tipA.Insert(strElt("a-only"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	tipB := base.CloneChild(time.Unix(1, 0))
	idB, err := tipB.Insert(strElt("b-only"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	session := NewSession(base, tipA, tipB)
	if err := session.Solve(takeA{}, diag.Default); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if session.Conflicts() != 0 {
		t.Fatalf("expected no conflicts, got %d", session.Conflicts())
	}

	c, merged, err := session.MakeCommit(time.Unix(2, 0))
	if err != nil {
		t.Fatalf("MakeCommit: %v", err)
	}
	if !merged.IsAvail(idA) || !merged.IsAvail(idB) {
		t.Fatalf("expected both tips' unique elements present in merge result")
	}
	if len(c.Parents) != 2 {
		t.Fatalf("expected a 2-parent merge commit, got %d parents", len(c.Parents))
	}
}

func TestSessionConflictCallsSolver(t *testing.T) {
	base := seedBase(t)
	var sharedId ids.EltId
	for id := range base.Elts {
		sharedId = id
	}

	tipA := base.CloneChild(time.Unix(1, 0))
	if _, err := tipA.Replace(sharedId, strElt("a-version")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	tipB := base.CloneChild(time.Unix(1, 0))
	if _, err := tipB.Replace(sharedId, strElt("b-version")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	// A non-conflicting insert on B keeps the merge result distinct from
	// tipA, which MakeCommit would otherwise reject as reproducing a tip.
	if _, err := tipB.Insert(strElt("b-extra")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	session := NewSession(base, tipA, tipB)
	if err := session.Solve(takeA{}, diag.Default); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if session.Conflicts() != 1 {
		t.Fatalf("expected 1 conflict, got %d", session.Conflicts())
	}

	_, merged, err := session.MakeCommit(time.Unix(2, 0))
	if err != nil {
		t.Fatalf("MakeCommit: %v", err)
	}
	got, err := merged.Get(sharedId)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "a-version" {
		t.Fatalf("expected solver's choice (a-version) to win, got %q", got)
	}
}

func TestMergeAllReducesToSingleTip(t *testing.T) {
	base := seedBase(t)

	tipA := base.CloneChild(time.Unix(1, 0))
	if _, err := tipA.Insert(strElt("a-only")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tipB := base.CloneChild(time.Unix(1, 0))
	if _, err := tipB.Insert(strElt("b-only")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	states := replay.States[strElt]{
		base.StateSum: base,
		tipA.StateSum: tipA,
		tipB.StateSum: tipB,
	}
	tips := replay.Tips{tipA.StateSum: struct{}{}, tipB.StateSum: struct{}{}}

	commits, err := MergeAll(states, tips, takeA{}, time.Unix(2, 0), diag.Default)
	if err != nil {
		t.Fatalf("MergeAll: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("expected 1 merge commit, got %d", len(commits))
	}
	if len(tips) != 1 {
		t.Fatalf("expected a single tip after merging, got %d", len(tips))
	}
	var onlyTip sum.Sum
	for s := range tips {
		onlyTip = s
	}
	if _, ok := states[onlyTip]; !ok {
		t.Fatalf("merged tip not recorded in states")
	}
}

func TestMergeAllNoopOnSingleTip(t *testing.T) {
	base := seedBase(t)
	states := replay.States[strElt]{base.StateSum: base}
	tips := replay.Tips{base.StateSum: struct{}{}}

	commits, err := MergeAll(states, tips, takeA{}, time.Unix(1, 0), diag.Default)
	if err != nil {
		t.Fatalf("MergeAll: %v", err)
	}
	if commits != nil {
		t.Fatalf("expected no commits for a single tip, got %d", len(commits))
	}
}
