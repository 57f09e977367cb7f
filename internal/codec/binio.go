package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// errWriter accumulates the first error from a sequence of writes so
// callers can write a whole record without checking every individual
// call, checking err once at the end.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) u32(v uint32) {
	if e.err != nil {
		return
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, e.err = e.w.Write(b[:])
}

func (e *errWriter) u64(v uint64) {
	if e.err != nil {
		return
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, e.err = e.w.Write(b[:])
}

func (e *errWriter) bytes(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

// blob writes a uint32 length prefix followed by b.
func (e *errWriter) blob(b []byte) {
	e.u32(uint32(len(b)))
	e.bytes(b)
}

func (e *errWriter) str(s string) {
	e.blob([]byte(s))
}

// errReader mirrors errWriter for reads.
type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) u32() uint32 {
	if e.err != nil {
		return 0
	}
	var b [4]byte
	_, e.err = io.ReadFull(e.r, b[:])
	return binary.BigEndian.Uint32(b[:])
}

func (e *errReader) u64() uint64 {
	if e.err != nil {
		return 0
	}
	var b [8]byte
	_, e.err = io.ReadFull(e.r, b[:])
	return binary.BigEndian.Uint64(b[:])
}

func (e *errReader) bytes(n int) []byte {
	if e.err != nil {
		return nil
	}
	b := make([]byte, n)
	_, e.err = io.ReadFull(e.r, b)
	return b
}

// blob reads a uint32 length prefix followed by that many bytes, bounded
// by maxBlob to protect against a corrupt length field driving an
// unbounded allocation.
const maxBlob = 64 << 20

func (e *errReader) blob() []byte {
	n := e.u32()
	if e.err != nil {
		return nil
	}
	if n > maxBlob {
		e.err = fmt.Errorf("blob length %d exceeds maximum %d", n, maxBlob)
		return nil
	}
	return e.bytes(int(n))
}

func (e *errReader) str() string {
	return string(e.blob())
}
