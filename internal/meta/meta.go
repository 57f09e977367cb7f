// Package meta defines CommitMeta, the opaque metadata attached to every
// PartitionState and Commit (spec.md §3 "PartitionState").
package meta

import "time"

// CommitMeta carries a monotonically assigned commit number, a timestamp,
// and optional user fields. It is opaque to the engine beyond the number
// and timestamp: callers may stash arbitrary string key/value pairs in
// Extra (e.g. author, message) which round-trip through the codec as
// length-prefixed key/value strings inside the commit or snapshot body.
type CommitMeta struct {
	Number    uint64
	Timestamp time.Time
	Extra     map[string]string
}

// Next derives the metadata for a child state/commit: the number
// increments, the timestamp is supplied by the caller (never time.Now()
// inside the library, so replay and tests stay deterministic), and Extra
// starts empty unless populated by the caller afterwards.
func (m CommitMeta) Next(ts time.Time) CommitMeta {
	return CommitMeta{
		Number:    m.Number + 1,
		Timestamp: ts,
		Extra:     nil,
	}
}
