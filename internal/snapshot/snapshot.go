// Package snapshot implements the snapshot-rotation heuristic
// (spec.md §4.5 "Snapshot policy").
package snapshot

// defaultThreshold is the trigger spec.md §4.5 names: commits*5+edits > 150.
const defaultThreshold = 150

// Policy tracks the commits-since-snapshot and edits-since-snapshot
// counters a Partition bumps as it applies commits, and decides when a
// new snapshot is due. The thresholds are heuristic, not load-bearing
// (spec.md §4.5): balance replay cost against snapshot write cost.
type Policy struct {
	commits   uint64
	edits     uint64
	forced    bool
	threshold uint64
}

// New returns a freshly reset policy using the default threshold (150).
func New() *Policy { return &Policy{threshold: defaultThreshold} }

// NewWithThreshold returns a freshly reset policy using a caller-supplied
// threshold (config.Settings.SnapshotThreshold), falling back to the
// default for a non-positive value.
func NewWithThreshold(threshold int) *Policy {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Policy{threshold: uint64(threshold)}
}

// RecordCommit bumps the commit counter and the edit counter by
// numChanges, the size of the commit just applied.
func (p *Policy) RecordCommit(numChanges int) {
	p.commits++
	p.edits += uint64(numChanges)
}

// Require forces every Due check to report true until the next Reset, by
// setting a flag independent of the counters. Used after
// load(full) discovers the newest snapshot isn't the final slot
// (spec.md §4.6), and exposed for callers that want to force a
// snapshot on the next write regardless of recent activity.
func (p *Policy) Require() { p.forced = true }

// Due reports whether a new snapshot should be written now:
// commits*5 + edits > threshold, or a prior call to Require.
func (p *Policy) Due() bool {
	if p.forced {
		return true
	}
	threshold := p.threshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	return p.commits*5+p.edits > threshold
}

// Reset zeroes both counters and clears any forced requirement.
// Called after a snapshot is successfully written.
func (p *Policy) Reset() {
	p.commits = 0
	p.edits = 0
	p.forced = false
}

// Commits reports the current commits-since-snapshot counter, exposed
// for diagnostics.
func (p *Policy) Commits() uint64 { return p.commits }

// Edits reports the current edits-since-snapshot counter, exposed for
// diagnostics.
func (p *Policy) Edits() uint64 { return p.edits }
