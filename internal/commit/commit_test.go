package commit

import (
	"testing"
	"time"

	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/pstate"
	"github.com/untoldecay/partitionstore/internal/sum"
)

type strElt string

func (s strElt) Sum() sum.Sum { return sum.Of([]byte(s)) }

func TestFromDiffNoChangeReturnsFalse(t *testing.T) {
	p, _ := ids.FromNum(1)
	base := pstate.New[strElt](p)
	child := base.CloneChild(time.Unix(0, 0))
	if _, ok := FromDiff(base, child); ok {
		t.Fatalf("expected no commit for identical states")
	}
}

func TestFromDiffRoundTrip(t *testing.T) {
	p, _ := ids.FromNum(1)
	base := pstate.New[strElt](p)
	child := base.CloneChild(time.Unix(0, 0))
	if _, err := child.Insert(strElt("thirty five")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := child.Insert(strElt("sixty eight")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	c, ok := FromDiff(base, child)
	if !ok {
		t.Fatalf("expected a commit")
	}
	applied, err := Apply(c, base)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.StateSum != child.StateSum {
		t.Fatalf("applied statesum %s != child statesum %s", applied.StateSum, child.StateSum)
	}
	if applied.NumAvail() != 2 {
		t.Fatalf("expected 2 elements, got %d", applied.NumAvail())
	}
}

func TestFromDiffReplaceAndRemove(t *testing.T) {
	p, _ := ids.FromNum(1)
	base := pstate.New[strElt](p)
	mid := base.CloneChild(time.Unix(0, 0))
	id, _ := mid.Insert(strElt("one"))
	id2, _ := mid.Insert(strElt("two"))

	child := mid.CloneChild(time.Unix(1, 0))
	if _, err := child.Replace(id, strElt("one-updated")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := child.Remove(id2); err != nil {
		t.Fatalf("remove: %v", err)
	}

	c, ok := FromDiff(mid, child)
	if !ok {
		t.Fatalf("expected a commit")
	}
	var kinds []Kind
	for _, ch := range c.Changes {
		kinds = append(kinds, ch.Kind)
	}
	if len(kinds) != 2 {
		t.Fatalf("expected 2 changes, got %d: %v", len(kinds), kinds)
	}

	applied, err := Apply(c, mid)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.StateSum != child.StateSum {
		t.Fatalf("statesum mismatch after apply")
	}
}
