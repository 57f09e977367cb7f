// Package fsio implements ioadapter.Adapter against an ordinary
// directory: one file per snapshot/commit-log slot, named
// "ssNNNN.pipss" and "ssNNNN-clMMMMMM.pipcl". A gofrs/flock advisory lock
// on the partition directory is held while each snapshot or commit-log
// file is created or opened for appending; it is released before the
// stream is returned, so it does not cover the writes themselves.
package fsio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/untoldecay/partitionstore/internal/ioadapter"
)

// Adapter persists snapshots and commit logs as files under Dir. A
// zero LockTimeout blocks indefinitely for the directory lock; a positive
// value bounds the wait (config.Settings.LockTimeout), surfacing
// contention as an error instead of hanging.
type Adapter struct {
	Dir         string
	LockTimeout time.Duration
}

var _ ioadapter.Adapter = (*Adapter)(nil)

// New creates an adapter rooted at dir, creating the directory if it
// doesn't exist.
func New(dir string) (*Adapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating partition directory: %w", err)
	}
	return &Adapter{Dir: dir}, nil
}

func snapshotName(ssNum int) string {
	return fmt.Sprintf("ss%04d.pipss", ssNum)
}

func commitLogName(ssNum, clNum int) string {
	return fmt.Sprintf("ss%04d-cl%06d.pipcl", ssNum, clNum)
}

func (a *Adapter) path(name string) string {
	return filepath.Join(a.Dir, name)
}

func (a *Adapter) lockPath() string {
	return filepath.Join(a.Dir, ".lock")
}

// withLock takes the directory's advisory lock for the duration of fn,
// guarding the partition directory as a critical section.
func (a *Adapter) withLock(fn func() error) error {
	lock := flock.New(a.lockPath())
	if a.LockTimeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), a.LockTimeout)
		defer cancel()
		locked, err := lock.TryLockContext(ctx, 25*time.Millisecond)
		if err != nil {
			return fmt.Errorf("acquiring partition lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("acquiring partition lock: timed out after %s", a.LockTimeout)
		}
	} else if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquiring partition lock: %w", err)
	}
	defer lock.Unlock()
	return fn()
}

func (a *Adapter) SnapshotLen() (int, error) {
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	max := -1
	for _, e := range entries {
		n, ok := parseSnapshotNum(e.Name())
		if ok && n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (a *Adapter) CommitLogLen(ssNum int) (int, error) {
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	max := -1
	for _, e := range entries {
		ss, cl, ok := parseCommitLogNum(e.Name())
		if ok && ss == ssNum && cl > max {
			max = cl
		}
	}
	return max + 1, nil
}

func parseSnapshotNum(name string) (int, bool) {
	if !strings.HasPrefix(name, "ss") || !strings.HasSuffix(name, ".pipss") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "ss"), ".pipss")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseCommitLogNum(name string) (ss, cl int, ok bool) {
	if !strings.HasPrefix(name, "ss") || !strings.HasSuffix(name, ".pipcl") {
		return 0, 0, false
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "ss"), ".pipcl")
	parts := strings.SplitN(trimmed, "-cl", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	ssN, err1 := strconv.Atoi(parts[0])
	clN, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return ssN, clN, true
}

func (a *Adapter) ReadSnapshot(ssNum int) (ioadapter.ReadCloser, error) {
	f, err := os.Open(a.path(snapshotName(ssNum)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return f, err
}

func (a *Adapter) ReadCommitLog(ssNum, clNum int) (ioadapter.ReadCloser, error) {
	f, err := os.Open(a.path(commitLogName(ssNum, clNum)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return f, err
}

// NewSnapshot creates a new snapshot file exclusively: O_EXCL makes a
// pre-existing file a "already exists" (nil, nil) rather than an error,
// matching the adapter contract.
func (a *Adapter) NewSnapshot(ssNum int) (ioadapter.WriteCloser, error) {
	return a.createExclusive(snapshotName(ssNum))
}

func (a *Adapter) NewCommitLog(ssNum, clNum int) (ioadapter.WriteCloser, error) {
	return a.createExclusive(commitLogName(ssNum, clNum))
}

func (a *Adapter) createExclusive(name string) (ioadapter.WriteCloser, error) {
	var f *os.File
	err := a.withLock(func() error {
		var openErr error
		f, openErr = os.OpenFile(a.path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		return openErr
	})
	if os.IsExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return f, nil
}

func (a *Adapter) AppendCommitLog(ssNum, clNum int) (ioadapter.WriteCloser, error) {
	name := commitLogName(ssNum, clNum)
	if _, err := os.Stat(a.path(name)); os.IsNotExist(err) {
		return nil, nil
	}
	var f *os.File
	err := a.withLock(func() error {
		var openErr error
		f, openErr = os.OpenFile(a.path(name), os.O_APPEND|os.O_WRONLY, 0o644)
		return openErr
	})
	if err != nil {
		return nil, fmt.Errorf("appending to %s: %w", name, err)
	}
	return f, nil
}
