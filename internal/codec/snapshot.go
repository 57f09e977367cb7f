package codec

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/meta"
	"github.com/untoldecay/partitionstore/internal/pstate"
	"github.com/untoldecay/partitionstore/internal/sum"
)

// WriteSnapshotBody serializes s immediately after a snapshot file's
// header: partition id, parent sums, metadata, the element map, and the
// moved-forwarding map, followed by a trailing whole-body checksum
// (spec.md §6.2 "Snapshot body").
func WriteSnapshotBody[E element.Elt](w io.Writer, s *pstate.State[E], ec ElementCodec[E]) error {
	var buf bytes.Buffer
	ew := &errWriter{w: &buf}

	ew.u64(s.PartId.Num())

	ew.u32(uint32(len(s.Parents)))
	for _, p := range s.Parents {
		ew.bytes(p.Slice())
	}

	writeMeta(ew, s.Meta)

	ew.u32(uint32(len(s.Elts)))
	for id, ref := range s.Elts {
		ew.u64(uint64(id))
		payload, err := ec.Marshal(ref.Get())
		if err != nil {
			return fmt.Errorf("marshaling element %s: %w", id, err)
		}
		ew.blob(payload)
	}

	ew.u32(uint32(len(s.Moved)))
	for from, to := range s.Moved {
		ew.u64(uint64(from))
		ew.u64(uint64(to))
	}

	if ew.err != nil {
		return ew.err
	}

	bodySum := sum.Of(buf.Bytes())
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(bodySum.Slice())
	return err
}

// ReadSnapshotBody is the inverse of WriteSnapshotBody, validating the
// trailing whole-body checksum.
func ReadSnapshotBody[E element.Elt](r io.Reader, ec ElementCodec[E]) (*pstate.State[E], error) {
	var raw bytes.Buffer
	tr := io.TeeReader(r, &raw)
	er := &errReader{r: tr}

	partNum := er.u64()
	numParents := er.u32()
	parents := make([]sum.Sum, 0, numParents)
	for i := uint32(0); i < numParents && er.err == nil; i++ {
		parents = append(parents, sum.Sum(er.bytes(sum.Bytes)))
	}

	cm := readMeta(er)

	numElts := er.u32()
	elts := make(map[ids.EltId]element.Ref[E], numElts)
	for i := uint32(0); i < numElts && er.err == nil; i++ {
		id := ids.EltId(er.u64())
		payload := er.blob()
		if er.err != nil {
			break
		}
		v, err := ec.Unmarshal(payload)
		if err != nil {
			return nil, fmt.Errorf("unmarshaling element %s: %w", id, err)
		}
		elts[id] = element.NewRef(v)
	}

	numMoved := er.u32()
	moved := make(map[ids.EltId]ids.EltId, numMoved)
	for i := uint32(0); i < numMoved && er.err == nil; i++ {
		from := ids.EltId(er.u64())
		to := ids.EltId(er.u64())
		moved[from] = to
	}

	if er.err != nil {
		return nil, fmt.Errorf("reading snapshot body: %w", er.err)
	}

	var trailer [sum.Bytes]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, fmt.Errorf("reading snapshot body checksum: %w", err)
	}
	want := sum.Of(raw.Bytes())
	if !bytes.Equal(want.Slice(), trailer[:]) {
		return nil, fmt.Errorf("%w: snapshot body checksum mismatch", errs.ErrArg)
	}

	partID, err := ids.FromNum(partNum)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid partition number in snapshot body", errs.ErrArg)
	}

	s := &pstate.State[E]{
		PartId:  partID,
		Parents: parents,
		Elts:    elts,
		Moved:   moved,
		Meta:    cm,
	}
	s.StateSum = s.RecomputeStateSum()
	return s, nil
}

func writeMeta(ew *errWriter, m meta.CommitMeta) {
	ew.u64(m.Number)
	ew.u64(uint64(m.Timestamp.UnixNano()))
	ew.u32(uint32(len(m.Extra)))
	for k, v := range m.Extra {
		ew.str(k)
		ew.str(v)
	}
}

func readMeta(er *errReader) meta.CommitMeta {
	number := er.u64()
	nanos := er.u64()
	count := er.u32()
	var extra map[string]string
	if count > 0 {
		extra = make(map[string]string, count)
	}
	for i := uint32(0); i < count && er.err == nil; i++ {
		k := er.str()
		v := er.str()
		extra[k] = v
	}
	return meta.CommitMeta{
		Number:    number,
		Timestamp: time.Unix(0, int64(nanos)).UTC(),
		Extra:     extra,
	}
}
