package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/untoldecay/partitionstore/internal/commit"
	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/sum"
)

// commitSectionMarker delimits the header from the sequence of commits in
// a commit log file (spec.md §6.2 "Commit log body").
const commitSectionMarker = "COMMITS\x00"

// WriteCommitSectionMarker writes the marker that begins a commit log
// file's body, immediately after the file header.
func WriteCommitSectionMarker(w io.Writer) error {
	_, err := io.WriteString(w, commitSectionMarker)
	return err
}

// ReadCommitSectionMarker reads and validates the marker.
func ReadCommitSectionMarker(r io.Reader) error {
	var buf [len(commitSectionMarker)]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fmt.Errorf("reading commit-section marker: %w", err)
	}
	if string(buf[:]) != commitSectionMarker {
		return fmt.Errorf("%w: missing commit-section marker", errs.ErrArg)
	}
	return nil
}

// WriteCommit serializes one commit: metadata, parent sums, child
// statesum, the changes list, terminated by a per-commit checksum that
// lets a reader detect a truncated tail (spec.md §6.2).
func WriteCommit[E element.Elt](w io.Writer, c *commit.Commit[E], ec ElementCodec[E]) error {
	var buf bytes.Buffer
	ew := &errWriter{w: &buf}

	writeMeta(ew, c.Meta)

	ew.u32(uint32(len(c.Parents)))
	for _, p := range c.Parents {
		ew.bytes(p.Slice())
	}
	ew.bytes(c.StateSum.Slice())

	ew.u32(uint32(len(c.Changes)))
	for _, ch := range c.Changes {
		ew.bytes([]byte{byte(ch.Kind)})
		ew.u64(uint64(ch.Id))
		switch ch.Kind {
		case commit.Insert:
			payload, err := ec.Marshal(ch.New)
			if err != nil {
				return fmt.Errorf("marshaling insert payload: %w", err)
			}
			ew.blob(payload)
		case commit.Remove:
			ew.bytes(ch.PriorSum.Slice())
		case commit.Replace:
			ew.bytes(ch.PriorSum.Slice())
			payload, err := ec.Marshal(ch.New)
			if err != nil {
				return fmt.Errorf("marshaling replace payload: %w", err)
			}
			ew.blob(payload)
		case commit.NoteMove:
			ew.u64(uint64(ch.NewId))
		default:
			return fmt.Errorf("%w: unknown change kind %v", errs.ErrArg, ch.Kind)
		}
	}

	if ew.err != nil {
		return ew.err
	}

	commitSum := sum.Of(buf.Bytes())
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(commitSum.Slice())
	return err
}

// ReadCommit reads one commit, validating its trailing checksum. It
// returns io.EOF (unwrapped, checkable with ==) if r is at a clean
// boundary with no more commits, and a wrapped error if a commit was
// begun but not completed or its checksum doesn't match (a truncated or
// corrupt tail).
func ReadCommit[E element.Elt](r io.Reader, ec ElementCodec[E]) (*commit.Commit[E], error) {
	var raw bytes.Buffer
	tr := io.TeeReader(r, &raw)
	er := &errReader{r: tr}

	// Peek one byte to distinguish "no more commits" (clean EOF) from a
	// commit that starts but is truncated partway through.
	var first [1]byte
	n, err := io.ReadFull(r, first[:])
	if n == 0 && err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("reading commit: %w", err)
	}
	raw.Write(first[:])

	prefixed := io.MultiReader(bytes.NewReader(first[:]), tr)
	er.r = prefixed

	cm := readMeta(er)

	numParents := er.u32()
	parents := make([]sum.Sum, 0, numParents)
	for i := uint32(0); i < numParents && er.err == nil; i++ {
		parents = append(parents, sum.Sum(er.bytes(sum.Bytes)))
	}
	stateSum := sum.Sum(er.bytes(sum.Bytes))

	numChanges := er.u32()
	changes := make([]commit.Change[E], 0, numChanges)
	for i := uint32(0); i < numChanges && er.err == nil; i++ {
		kindByte := er.bytes(1)
		if er.err != nil {
			break
		}
		id := ids.EltId(er.u64())
		ch := commit.Change[E]{Kind: commit.Kind(kindByte[0]), Id: id}
		switch ch.Kind {
		case commit.Insert:
			payload := er.blob()
			if er.err != nil {
				break
			}
			v, uerr := ec.Unmarshal(payload)
			if uerr != nil {
				return nil, fmt.Errorf("unmarshaling insert payload: %w", uerr)
			}
			ch.New = v
		case commit.Remove:
			ch.PriorSum = sum.Sum(er.bytes(sum.Bytes))
		case commit.Replace:
			ch.PriorSum = sum.Sum(er.bytes(sum.Bytes))
			payload := er.blob()
			if er.err != nil {
				break
			}
			v, uerr := ec.Unmarshal(payload)
			if uerr != nil {
				return nil, fmt.Errorf("unmarshaling replace payload: %w", uerr)
			}
			ch.New = v
		case commit.NoteMove:
			ch.NewId = ids.EltId(er.u64())
		default:
			return nil, fmt.Errorf("%w: unknown change kind byte %d", errs.ErrArg, kindByte[0])
		}
		changes = append(changes, ch)
	}

	if er.err != nil {
		return nil, fmt.Errorf("truncated commit: %w", er.err)
	}

	var trailer [sum.Bytes]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, fmt.Errorf("truncated commit checksum: %w", err)
	}
	want := sum.Of(raw.Bytes())
	if !bytes.Equal(want.Slice(), trailer[:]) {
		return nil, fmt.Errorf("%w: commit checksum mismatch (truncated or corrupt tail)", errs.ErrArg)
	}

	return &commit.Commit[E]{
		StateSum: stateSum,
		Parents:  parents,
		Changes:  changes,
		Meta:     cm,
	}, nil
}
