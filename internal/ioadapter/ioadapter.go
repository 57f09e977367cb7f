// Package ioadapter defines the persistence adapter interface a Partition
// reads and writes through (spec.md §6.1 "Persistence adapter"). Two
// implementations are provided: memio (in-memory, for tests) and fsio
// (filesystem-backed, for real use).
package ioadapter

import "io"

// WriteCloser is a write stream the caller must Close on every exit path.
type WriteCloser interface {
	io.Writer
	io.Closer
}

// ReadCloser is a read stream the caller must Close on every exit path.
type ReadCloser interface {
	io.Reader
	io.Closer
}

// Adapter is the narrow I/O surface a Partition needs. Discovery of
// snapshot/log files on disk, locking strategy, and rotation naming are
// all adapter concerns; the engine only ever calls these seven methods.
type Adapter interface {
	// SnapshotLen returns one past the highest known snapshot index.
	SnapshotLen() (int, error)
	// CommitLogLen returns one past the highest log index for the given
	// snapshot number.
	CommitLogLen(ssNum int) (int, error)

	// ReadSnapshot opens the given snapshot for reading, or (nil, nil) if
	// it doesn't exist.
	ReadSnapshot(ssNum int) (ReadCloser, error)
	// ReadCommitLog opens the given commit log for reading, or (nil, nil)
	// if it doesn't exist.
	ReadCommitLog(ssNum, clNum int) (ReadCloser, error)

	// NewSnapshot creates a fresh snapshot stream, or (nil, nil) if
	// ssNum already exists. A successful call must be reflected in the
	// next SnapshotLen call.
	NewSnapshot(ssNum int) (WriteCloser, error)
	// NewCommitLog creates a fresh commit log stream, or (nil, nil) if
	// it already exists.
	NewCommitLog(ssNum, clNum int) (WriteCloser, error)
	// AppendCommitLog opens an existing commit log for appending, or
	// (nil, nil) if it does not exist.
	AppendCommitLog(ssNum, clNum int) (WriteCloser, error)
}
