// Package errs defines the typed error envelope exposed to callers
// (spec.md §7). Errors are plain sentinel values wrapped with fmt.Errorf
// and %w so callers can use errors.Is/errors.As, matching the pattern the
// teacher's internal/validation and internal/storage packages use
// (storage.ErrDBNotInitialized, chained validators returning the first
// error encountered).
package errs

import "errors"

// Element-level operation errors (ElementOp).
var (
	ErrNotFound       = errors.New("element not found")
	ErrNotLoaded      = errors.New("partition not loaded")
	ErrIdClash        = errors.New("element id already in use")
	ErrWrongPartition = errors.New("element id belongs to a different partition")
	ErrIdGenFailure   = errors.New("unable to generate a free element id")
	ErrClassifyFailure = errors.New("unable to classify element for cross-partition routing")
)

// Commit-application errors (PatchOp).
var (
	ErrSumClash        = errors.New("state sum already exists")
	ErrNoParent        = errors.New("primary parent state not known")
	ErrPatchApplyFailed = errors.New("applying commit changes did not reproduce the expected state sum")
)

// Tip-query errors (TipError).
var (
	ErrNotReady      = errors.New("partition has no tip (zero tips)")
	ErrMergeRequired = errors.New("partition has multiple tips; merge required")
)

// Argument errors.
var ErrArg = errors.New("invalid argument")

// ErrAlreadyExists is returned by Create when a partition's slot-0
// snapshot is already present.
var ErrAlreadyExists = errors.New("partition already exists")

// Match errors for partial-prefix lookup.
var ErrNoMatch = errors.New("no state matches the given prefix")

// MultiMatch reports that a prefix matched at least two distinct states.
// Only the first two matches encountered are reported, per spec.md's note
// that match ordering is currently undefined.
type MultiMatch struct {
	A, B string
}

func (e *MultiMatch) Error() string {
	return "ambiguous prefix matches multiple states, e.g. " + e.A + " and " + e.B
}

// OrphanCommit reports a commit whose parent was never found during replay.
// It is informational, not fatal: replay continues and the orphan is
// reported alongside whatever history could be resolved.
type OrphanCommit struct {
	Reason string
}

func (e *OrphanCommit) Error() string {
	return "orphan commit: " + e.Reason
}

// Other wraps miscellaneous conditions named in spec.md §7 (OtherError),
// e.g. "no common ancestor", "merge failed".
type Other struct {
	Msg string
}

func (e *Other) Error() string { return e.Msg }

func NewOther(msg string) error { return &Other{Msg: msg} }
