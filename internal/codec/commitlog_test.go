package codec

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/untoldecay/partitionstore/internal/commit"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/pstate"
)

func TestCommitRoundTrip(t *testing.T) {
	p, _ := ids.FromNum(2)
	base := pstate.New[strElt](p)
	child := base.CloneChild(time.Unix(5, 0))
	child.Insert(strElt("one"))
	child.Insert(strElt("two"))

	c, ok := commit.FromDiff(base, child)
	if !ok {
		t.Fatalf("expected a commit")
	}

	var buf bytes.Buffer
	if err := WriteCommit[strElt](&buf, c, strCodec{}); err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	got, err := ReadCommit[strElt](&buf, strCodec{})
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if got.StateSum != c.StateSum {
		t.Fatalf("statesum mismatch")
	}
	if len(got.Changes) != len(c.Changes) {
		t.Fatalf("changes count mismatch: got %d want %d", len(got.Changes), len(c.Changes))
	}

	if _, err := ReadCommit[strElt](&buf, strCodec{}); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestCommitStreamMultiple(t *testing.T) {
	p, _ := ids.FromNum(2)
	base := pstate.New[strElt](p)
	c1State := base.CloneChild(time.Unix(1, 0))
	c1State.Insert(strElt("a"))
	c1, _ := commit.FromDiff(base, c1State)

	c2State := c1State.CloneChild(time.Unix(2, 0))
	c2State.Insert(strElt("b"))
	c2, _ := commit.FromDiff(c1State, c2State)

	var buf bytes.Buffer
	if err := WriteCommit[strElt](&buf, c1, strCodec{}); err != nil {
		t.Fatalf("write c1: %v", err)
	}
	if err := WriteCommit[strElt](&buf, c2, strCodec{}); err != nil {
		t.Fatalf("write c2: %v", err)
	}

	got1, err := ReadCommit[strElt](&buf, strCodec{})
	if err != nil {
		t.Fatalf("read c1: %v", err)
	}
	if got1.StateSum != c1.StateSum {
		t.Fatalf("c1 statesum mismatch")
	}
	got2, err := ReadCommit[strElt](&buf, strCodec{})
	if err != nil {
		t.Fatalf("read c2: %v", err)
	}
	if got2.StateSum != c2.StateSum {
		t.Fatalf("c2 statesum mismatch")
	}
	if _, err := ReadCommit[strElt](&buf, strCodec{}); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestCommitRejectsTruncatedTail(t *testing.T) {
	p, _ := ids.FromNum(2)
	base := pstate.New[strElt](p)
	child := base.CloneChild(time.Unix(0, 0))
	child.Insert(strElt("x"))
	c, _ := commit.FromDiff(base, child)

	var buf bytes.Buffer
	if err := WriteCommit[strElt](&buf, c, strCodec{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-4]

	if _, err := ReadCommit[strElt](bytes.NewReader(truncated), strCodec{}); err == nil {
		t.Fatalf("expected truncated commit to be rejected")
	}
}

func TestCommitSectionMarkerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCommitSectionMarker(&buf); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if err := ReadCommitSectionMarker(&buf); err != nil {
		t.Fatalf("read marker: %v", err)
	}
}
