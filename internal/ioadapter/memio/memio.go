// Package memio implements an in-memory ioadapter.Adapter, useful for
// tests and for ephemeral partitions that never hit a disk.
package memio

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/untoldecay/partitionstore/internal/ioadapter"
)

type clKey struct {
	ss, cl int
}

// Adapter is a thread-safe in-memory persistence adapter. Concurrent
// access from multiple goroutines is supported only for the adapter
// itself (spec.md §5 is explicit that the engine above it is not); this
// just avoids data races in the backing maps during tests that drive
// several partitions against shared fakes.
type Adapter struct {
	mu        sync.Mutex
	snapshots map[int][]byte
	logs      map[clKey][]byte
}

var _ ioadapter.Adapter = (*Adapter)(nil)

// New returns an empty adapter.
func New() *Adapter {
	return &Adapter{
		snapshots: make(map[int][]byte),
		logs:      make(map[clKey][]byte),
	}
}

func (a *Adapter) SnapshotLen() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	max := -1
	for n := range a.snapshots {
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (a *Adapter) CommitLogLen(ssNum int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	max := -1
	for k := range a.logs {
		if k.ss == ssNum && k.cl > max {
			max = k.cl
		}
	}
	return max + 1, nil
}

func (a *Adapter) ReadSnapshot(ssNum int) (ioadapter.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.snapshots[ssNum]
	if !ok {
		return nil, nil
	}
	return nopCloser{bytes.NewReader(data)}, nil
}

func (a *Adapter) ReadCommitLog(ssNum, clNum int) (ioadapter.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.logs[clKey{ssNum, clNum}]
	if !ok {
		return nil, nil
	}
	return nopCloser{bytes.NewReader(data)}, nil
}

func (a *Adapter) NewSnapshot(ssNum int) (ioadapter.WriteCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.snapshots[ssNum]; ok {
		return nil, nil
	}
	buf := &bytes.Buffer{}
	a.snapshots[ssNum] = nil // reserve the slot immediately
	return &memWriter{adapter: a, commit: func(b []byte) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.snapshots[ssNum] = b
	}, buf: buf}, nil
}

func (a *Adapter) NewCommitLog(ssNum, clNum int) (ioadapter.WriteCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := clKey{ssNum, clNum}
	if _, ok := a.logs[key]; ok {
		return nil, nil
	}
	buf := &bytes.Buffer{}
	a.logs[key] = nil
	return &memWriter{adapter: a, commit: func(b []byte) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.logs[key] = b
	}, buf: buf}, nil
}

func (a *Adapter) AppendCommitLog(ssNum, clNum int) (ioadapter.WriteCloser, error) {
	a.mu.Lock()
	key := clKey{ssNum, clNum}
	existing, ok := a.logs[key]
	a.mu.Unlock()
	if !ok {
		return nil, nil
	}
	buf := bytes.NewBuffer(append([]byte(nil), existing...))
	return &memWriter{adapter: a, commit: func(b []byte) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.logs[key] = b
	}, buf: buf}, nil
}

// memWriter buffers writes and commits the final bytes to the backing
// map on Close, mimicking a real file's write-then-close durability
// boundary closely enough for tests.
type memWriter struct {
	adapter *Adapter
	commit  func([]byte)
	buf     *bytes.Buffer
	closed  bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed memio stream")
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.commit(w.buf.Bytes())
	return nil
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
