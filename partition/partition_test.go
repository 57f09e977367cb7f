package partition

import (
	"errors"
	"testing"
	"time"

	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/ioadapter/memio"
	"github.com/untoldecay/partitionstore/internal/merge"
	"github.com/untoldecay/partitionstore/internal/sum"
)

type strElt string

func (s strElt) Sum() sum.Sum { return sum.Of([]byte(s)) }

type strCodec struct{}

func (strCodec) Marshal(s strElt) ([]byte, error)   { return []byte(s), nil }
func (strCodec) Unmarshal(b []byte) (strElt, error) { return strElt(b), nil }

func mustPartId(t *testing.T, n uint64) ids.PartId {
	t.Helper()
	id, err := ids.FromNum(n)
	if err != nil {
		t.Fatalf("FromNum: %v", err)
	}
	return id
}

// Scenario A — genesis has zero sum.
func TestCreateGenesisHasZeroSum(t *testing.T) {
	adapter := memio.New()
	p, err := Create[strElt](adapter, "t", mustPartId(t, 1), strCodec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tip, err := p.TipKey()
	if err != nil {
		t.Fatalf("TipKey: %v", err)
	}
	if !tip.IsZero() {
		t.Fatalf("expected genesis tip to be zero, got %s", tip)
	}
	if len(p.Tips()) != 1 {
		t.Fatalf("expected exactly one tip")
	}
	if len(p.unsaved) != 0 {
		t.Fatalf("expected no unsaved commits after create")
	}
	ssLen, err := adapter.SnapshotLen()
	if err != nil {
		t.Fatalf("SnapshotLen: %v", err)
	}
	if ssLen != 1 {
		t.Fatalf("expected a snapshot at slot 0, SnapshotLen=%d", ssLen)
	}
}

func TestCreateRejectsExisting(t *testing.T) {
	adapter := memio.New()
	if _, err := Create[strElt](adapter, "t", mustPartId(t, 1), strCodec{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := Create[strElt](adapter, "t", mustPartId(t, 1), strCodec{}); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

// Scenario B — no-op commit.
func TestPushStateNoopReturnsFalse(t *testing.T) {
	adapter := memio.New()
	p, err := Create[strElt](adapter, "t", mustPartId(t, 1), strCodec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tip, err := p.Tip()
	if err != nil {
		t.Fatalf("Tip: %v", err)
	}
	child := tip.CloneChild(time.Unix(1, 0))

	wrote, err := p.PushState(child)
	if err != nil {
		t.Fatalf("PushState: %v", err)
	}
	if wrote {
		t.Fatalf("expected no commit for an identical child state")
	}
	if len(p.unsaved) != 0 {
		t.Fatalf("expected unsaved to remain empty")
	}
}

func TestPushStateAppliesDiff(t *testing.T) {
	adapter := memio.New()
	p, err := Create[strElt](adapter, "t", mustPartId(t, 1), strCodec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tip, _ := p.Tip()
	child := tip.CloneChild(time.Unix(1, 0))
	if _, err := child.Insert(strElt("thirty five")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	wrote, err := p.PushState(child)
	if err != nil {
		t.Fatalf("PushState: %v", err)
	}
	if !wrote {
		t.Fatalf("expected a commit to be recorded")
	}
	if len(p.unsaved) != 1 {
		t.Fatalf("expected 1 unsaved commit, got %d", len(p.unsaved))
	}
	newTip, err := p.Tip()
	if err != nil {
		t.Fatalf("Tip: %v", err)
	}
	if newTip.StateSum != child.StateSum {
		t.Fatalf("tip did not advance to the pushed state")
	}
}

// Scenario D — write/read round-trip.
func TestWriteLoadRoundTrip(t *testing.T) {
	adapter := memio.New()
	p, err := Create[strElt](adapter, "create_small", mustPartId(t, 56), strCodec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	inserts := []string{
		"thirty five",
		"six thousand, five hundred and thirteen",
		"sixty eight thousand, one hundred and sixty eight",
		"eighty nine",
		"one thousand and sixty three",
	}
	for i, word := range inserts {
		tip, err := p.Tip()
		if err != nil {
			t.Fatalf("Tip: %v", err)
		}
		child := tip.CloneChild(time.Unix(int64(i+1), 0))
		if _, err := child.Insert(strElt(word)); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := p.PushState(child); err != nil {
			t.Fatalf("PushState: %v", err)
		}
	}

	preWriteTip, err := p.Tip()
	if err != nil {
		t.Fatalf("Tip: %v", err)
	}

	if _, err := p.Write(true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(p.unsaved) != 0 {
		t.Fatalf("expected unsaved to drain after Write")
	}

	p2 := Open[strElt](adapter, mustPartId(t, 56), strCodec{})
	if err := p2.Load(true); err != nil {
		t.Fatalf("Load: %v", err)
	}
	reloadedTip, err := p2.Tip()
	if err != nil {
		t.Fatalf("Tip: %v", err)
	}
	if reloadedTip.StateSum != preWriteTip.StateSum {
		t.Fatalf("reloaded tip %s != pre-write tip %s", reloadedTip.StateSum, preWriteTip.StateSum)
	}
	if reloadedTip.NumAvail() != len(inserts) {
		t.Fatalf("expected %d elements, got %d", len(inserts), reloadedTip.NumAvail())
	}

	clLen, err := adapter.CommitLogLen(0)
	if err != nil {
		t.Fatalf("CommitLogLen: %v", err)
	}
	if clLen != 1 {
		t.Fatalf("expected exactly one commit log for snapshot 0, got %d", clLen)
	}
}

// Scenario E — merge to single tip.
type keepBoth struct{}

func (keepBoth) Solve(t merge.Triple[strElt]) (strElt, bool, error) {
	// Conflicts shouldn't occur in this scenario; if called, keep A.
	if t.A != nil {
		return *t.A, true, nil
	}
	if t.B != nil {
		return *t.B, true, nil
	}
	return "", false, nil
}

func TestMergeToSingleTip(t *testing.T) {
	adapter := memio.New()
	p, err := Create[strElt](adapter, "t", mustPartId(t, 1), strCodec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	base, err := p.Tip()
	if err != nil {
		t.Fatalf("Tip: %v", err)
	}

	c1 := base.CloneChild(time.Unix(1, 0))
	if _, err := c1.Insert(strElt("x")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := p.PushState(c1); err != nil {
		t.Fatalf("PushState c1: %v", err)
	}

	c2 := base.CloneChild(time.Unix(1, 0))
	if _, err := c2.Insert(strElt("y")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := p.PushState(c2); err != nil {
		t.Fatalf("PushState c2: %v", err)
	}

	if !p.MergeRequired() {
		t.Fatalf("expected merge required after two divergent pushes")
	}

	if err := p.Merge(keepBoth{}, time.Unix(2, 0)); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if p.MergeRequired() {
		t.Fatalf("expected a single tip after merge")
	}
	if len(p.Tips()) != 1 {
		t.Fatalf("expected exactly one tip after merge")
	}

	merged, err := p.Tip()
	if err != nil {
		t.Fatalf("Tip: %v", err)
	}
	want := sum.Permuted(sum.Permuted(base.StateSum, sum.Of([]byte("x"))), sum.Of([]byte("y")))
	if merged.StateSum != want {
		t.Fatalf("merged statesum = %s, want %s", merged.StateSum, want)
	}
}

func TestUnloadRefusesWithUnsavedUnlessForced(t *testing.T) {
	adapter := memio.New()
	p, err := Create[strElt](adapter, "t", mustPartId(t, 1), strCodec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tip, _ := p.Tip()
	child := tip.CloneChild(time.Unix(1, 0))
	if _, err := child.Insert(strElt("pending")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := p.PushState(child); err != nil {
		t.Fatalf("PushState: %v", err)
	}

	if p.Unload(false) {
		t.Fatalf("expected Unload(false) to refuse with unsaved commits")
	}
	if !p.Unload(true) {
		t.Fatalf("expected Unload(true) to succeed")
	}
	if p.Phase() != Fresh {
		t.Fatalf("expected Fresh phase after unload, got %s", p.Phase())
	}
}

func TestStateFromStringResolvesPrefix(t *testing.T) {
	adapter := memio.New()
	p, err := Create[strElt](adapter, "t", mustPartId(t, 1), strCodec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tip, _ := p.Tip()
	prefix := tip.StateSum.String()[:8]
	st, err := p.StateFromString(prefix)
	if err != nil {
		t.Fatalf("StateFromString: %v", err)
	}
	if st.StateSum != tip.StateSum {
		t.Fatalf("resolved wrong state")
	}
}

func TestWriteSnapshotRequiresSingleTip(t *testing.T) {
	adapter := memio.New()
	p, err := Create[strElt](adapter, "t", mustPartId(t, 1), strCodec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	base, _ := p.Tip()
	c1 := base.CloneChild(time.Unix(1, 0))
	if _, err := c1.Insert(strElt("x")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := p.PushState(c1); err != nil {
		t.Fatalf("PushState: %v", err)
	}
	c2 := base.CloneChild(time.Unix(1, 0))
	if _, err := c2.Insert(strElt("y")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := p.PushState(c2); err != nil {
		t.Fatalf("PushState: %v", err)
	}

	if err := p.WriteSnapshot(); !errors.Is(err, errs.ErrMergeRequired) {
		t.Fatalf("expected ErrMergeRequired, got %v", err)
	}
}

func TestRequireSnapshotForcesRotationOnNextWrite(t *testing.T) {
	adapter := memio.New()
	p, err := Create[strElt](adapter, "t", mustPartId(t, 1), strCodec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tip, _ := p.Tip()
	child := tip.CloneChild(time.Unix(1, 0))
	if _, err := child.Insert(strElt("a")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := p.PushState(child); err != nil {
		t.Fatalf("PushState: %v", err)
	}

	p.RequireSnapshot()
	if _, err := p.Write(false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ssLen, err := adapter.SnapshotLen()
	if err != nil {
		t.Fatalf("SnapshotLen: %v", err)
	}
	if ssLen != 2 {
		t.Fatalf("expected a forced second snapshot, SnapshotLen=%d", ssLen)
	}
}
