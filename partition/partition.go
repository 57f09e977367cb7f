// Package partition implements the Partition engine (spec.md §4.6): the
// lifecycle (create/open/load/unload), push_commit/push_state, write
// policy, snapshot rotation, and the queries a caller drives a partition
// through. It ties together pstate, commit, replay, snapshot, codec,
// ioadapter and merge the way original_source/src/detail/partition.rs
// ties together its own sibling modules, translated into Go's
// accept-interfaces-return-structs style in place of the original's
// ref-counted struct fields.
package partition

import (
	"fmt"
	"io"
	"time"

	"github.com/untoldecay/partitionstore/internal/codec"
	"github.com/untoldecay/partitionstore/internal/commit"
	"github.com/untoldecay/partitionstore/internal/diag"
	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/ioadapter"
	"github.com/untoldecay/partitionstore/internal/merge"
	"github.com/untoldecay/partitionstore/internal/pstate"
	"github.com/untoldecay/partitionstore/internal/replay"
	"github.com/untoldecay/partitionstore/internal/snapshot"
	"github.com/untoldecay/partitionstore/internal/sum"
	"github.com/untoldecay/partitionstore/internal/validation"
)

// Phase names the three resting states of a partition's lifecycle
// (spec.md §4.6's state machine). A partition that has just loaded to
// zero tips never settles into a Phase; Load returns errs.ErrNotReady
// instead and leaves the partition Fresh.
type Phase int

const (
	Fresh Phase = iota
	Ready
	NeedsMerge
)

func (p Phase) String() string {
	switch p {
	case Fresh:
		return "fresh"
	case Ready:
		return "ready"
	case NeedsMerge:
		return "needs-merge"
	default:
		return "unknown"
	}
}

// allocateProbeLimit bounds the upward probe for a free snapshot/log file
// number (spec.md §4.6: "probing upward on collision up to 10^6").
const allocateProbeLimit = 1_000_000

// Partition is the in-memory engine over one partition's commit graph,
// backed by an ioadapter.Adapter for durability.
type Partition[E element.Elt] struct {
	Name   string
	PartId ids.PartId

	adapter ioadapter.Adapter
	ec      codec.ElementCodec[E]
	policy  *snapshot.Policy
	sink    diag.Sink

	phase   Phase
	states  replay.States[E]
	tips    replay.Tips
	unsaved []*commit.Commit[E]
	ssNum   int
}

// Option configures a Partition at Create/Open time.
type Option[E element.Elt] func(*Partition[E])

// WithSink installs a diagnostics sink (default: no-op).
func WithSink[E element.Elt](sink diag.Sink) Option[E] {
	return func(p *Partition[E]) { p.sink = sink }
}

// WithSnapshotThreshold overrides the snapshot-policy trigger (spec.md
// §4.5's default 150), e.g. from config.Settings.SnapshotThreshold.
func WithSnapshotThreshold[E element.Elt](threshold int) Option[E] {
	return func(p *Partition[E]) { p.policy = snapshot.NewWithThreshold(threshold) }
}

func newPartition[E element.Elt](adapter ioadapter.Adapter, partId ids.PartId, ec codec.ElementCodec[E], opts []Option[E]) *Partition[E] {
	p := &Partition[E]{
		PartId:  partId,
		adapter: adapter,
		ec:      ec,
		policy:  snapshot.New(),
		sink:    diag.Default,
		phase:   Fresh,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Create validates name, writes a header plus an empty snapshot to
// snapshot slot 0, and returns a Ready partition seeded with the genesis
// state (spec.md §4.6 "Create"). Fails with errs.ErrAlreadyExists if slot
// 0 is already present.
func Create[E element.Elt](adapter ioadapter.Adapter, name string, partId ids.PartId, ec codec.ElementCodec[E], opts ...Option[E]) (*Partition[E], error) {
	if err := codec.ValidateRepoName(name); err != nil {
		return nil, err
	}

	w, err := adapter.NewSnapshot(0)
	if err != nil {
		return nil, fmt.Errorf("creating partition: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("%w: snapshot slot 0 already present", errs.ErrAlreadyExists)
	}
	defer w.Close()

	genesis := pstate.New[E](partId)

	header := codec.Header{Kind: codec.Snapshot, RepoName: name, PartId: partId}
	if err := codec.WriteHeader(w, header); err != nil {
		return nil, fmt.Errorf("writing genesis header: %w", err)
	}
	if err := codec.WriteSnapshotBody(w, genesis, ec); err != nil {
		return nil, fmt.Errorf("writing genesis snapshot: %w", err)
	}

	p := newPartition(adapter, partId, ec, opts)
	p.Name = name
	p.states = replay.States[E]{genesis.StateSum: genesis}
	p.tips = replay.Tips{genesis.StateSum: struct{}{}}
	p.phase = Ready

	return p, nil
}

// Open constructs an unloaded (Fresh) partition over an existing adapter.
// Call Load before using it.
func Open[E element.Elt](adapter ioadapter.Adapter, partId ids.PartId, ec codec.ElementCodec[E], opts ...Option[E]) *Partition[E] {
	return newPartition(adapter, partId, ec, opts)
}

// Phase reports the partition's current lifecycle phase.
func (p *Partition[E]) Phase() Phase { return p.phase }

// GetRepoName returns the partition's repo name, lazily scanning
// snapshots from newest to oldest to recover it if Load hasn't been
// called yet (spec.md §4.6 "Open").
func (p *Partition[E]) GetRepoName() (string, error) {
	if p.Name != "" {
		return p.Name, nil
	}
	n, err := p.adapter.SnapshotLen()
	if err != nil {
		return "", err
	}
	for i := n - 1; i >= 0; i-- {
		r, err := p.adapter.ReadSnapshot(i)
		if err != nil {
			return "", err
		}
		if r == nil {
			continue
		}
		h, err := codec.ReadHeader(r)
		r.Close()
		if err != nil {
			return "", fmt.Errorf("reading snapshot %d header: %w", i, err)
		}
		p.Name = h.RepoName
		return h.RepoName, nil
	}
	return "", errs.NewOther("no snapshot found to recover repo name from")
}

// verifyHead checks a loaded file's header against this partition's
// established name/id, adopting the name on first sight (spec.md's
// "verify_head", from original_source/src/detail/partition.rs).
func (p *Partition[E]) verifyHead(h codec.Header) error {
	if p.Name == "" {
		p.Name = h.RepoName
	} else if p.Name != h.RepoName {
		return errs.NewOther("repository name does not match when loading (wrong repo?)")
	}
	if h.PartId != ids.NoPart && h.PartId != p.PartId {
		return errs.NewOther("partition identifier differs from previous value")
	}
	return nil
}

// Load populates states/tips from the adapter's snapshots and commit
// logs (spec.md §4.6 "Load"). In fast mode, only the newest snapshot and
// its subsequent logs are loaded. In full mode, every snapshot is loaded
// in ascending order, each followed by its own logs before advancing;
// this can yield multiple unmerged tips, which the merge machinery
// handles. Settles the partition into Ready or NeedsMerge, or returns
// errs.ErrNotReady (leaving it Fresh) if no tips resulted.
func (p *Partition[E]) Load(fast bool) error {
	ssLen, err := p.adapter.SnapshotLen()
	if err != nil {
		return err
	}
	if ssLen == 0 {
		return errs.NewOther("no snapshot found to load")
	}

	p.states = replay.States[E]{}
	p.tips = replay.Tips{}

	startSS := 0
	if fast {
		startSS = ssLen - 1
	}

	for ss := startSS; ss < ssLen; ss++ {
		if err := p.loadSnapshot(ss); err != nil {
			return err
		}
	}
	if p.ssNum != ssLen-1 {
		p.policy.Require()
	}

	switch len(p.tips) {
	case 0:
		p.phase = Fresh
		return errs.ErrNotReady
	case 1:
		p.phase = Ready
	default:
		p.phase = NeedsMerge
	}
	return nil
}

func (p *Partition[E]) loadSnapshot(ss int) error {
	r, err := p.adapter.ReadSnapshot(ss)
	if err != nil {
		return err
	}
	if r == nil {
		return p.replayLogsFor(ss)
	}
	defer r.Close()

	h, err := codec.ReadHeader(r)
	if err != nil {
		return fmt.Errorf("reading snapshot %d header: %w", ss, err)
	}
	if err := p.verifyHead(h); err != nil {
		return err
	}
	st, err := codec.ReadSnapshotBody(r, p.ec)
	if err != nil {
		return fmt.Errorf("reading snapshot %d body: %w", ss, err)
	}

	p.states[st.StateSum] = st
	p.tips[st.StateSum] = struct{}{}
	p.ssNum = ss

	return p.replayLogsFor(ss)
}

func (p *Partition[E]) replayLogsFor(ss int) error {
	clLen, err := p.adapter.CommitLogLen(ss)
	if err != nil {
		return err
	}
	replayer := replay.FromSets(p.states, p.tips)
	for cl := 0; cl < clLen; cl++ {
		if err := p.replayOneLog(replayer, ss, cl); err != nil {
			return err
		}
	}
	return nil
}

func (p *Partition[E]) replayOneLog(replayer *replay.Replayer[E], ss, cl int) error {
	r, err := p.adapter.ReadCommitLog(ss, cl)
	if err != nil {
		return err
	}
	if r == nil {
		return nil
	}
	defer r.Close()

	h, err := codec.ReadHeader(r)
	if err != nil {
		return fmt.Errorf("reading log %d/%d header: %w", ss, cl, err)
	}
	if err := p.verifyHead(h); err != nil {
		return err
	}
	if err := codec.ReadCommitSectionMarker(r); err != nil {
		return fmt.Errorf("reading log %d/%d: %w", ss, cl, err)
	}

	q := replay.NewQueue[E]()
	for {
		c, err := codec.ReadCommit(r, p.ec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading log %d/%d: %w", ss, cl, err)
		}
		q.Push(c)
		p.policy.RecordCommit(c.NumChanges())
	}

	result, err := replayer.Replay(q)
	if err != nil {
		return fmt.Errorf("replaying log %d/%d: %w", ss, cl, err)
	}
	for _, orphan := range result.Orphans {
		diag.Printf(p.sink, "replay: %s", orphan.Error())
	}
	return nil
}

// TipKey returns the unique tip's state sum, or errs.ErrNotReady (zero
// tips) / errs.ErrMergeRequired (more than one).
func (p *Partition[E]) TipKey() (sum.Sum, error) {
	switch len(p.tips) {
	case 0:
		return sum.Zero, errs.ErrNotReady
	case 1:
		for t := range p.tips {
			return t, nil
		}
	}
	return sum.Zero, errs.ErrMergeRequired
}

// Tip dereferences the unique tip state.
func (p *Partition[E]) Tip() (*pstate.State[E], error) {
	t, err := p.TipKey()
	if err != nil {
		return nil, err
	}
	return p.states[t], nil
}

// Tips returns every current tip's state sum.
func (p *Partition[E]) Tips() []sum.Sum {
	out := make([]sum.Sum, 0, len(p.tips))
	for t := range p.tips {
		out = append(out, t)
	}
	return out
}

// MergeRequired reports whether more than one tip currently exists.
func (p *Partition[E]) MergeRequired() bool { return len(p.tips) > 1 }

// StateFromString resolves a hex/byte prefix to the unique matching known
// state, or errs.ErrNoMatch / *errs.MultiMatch (spec.md §4.6 "Queries").
func (p *Partition[E]) StateFromString(prefix string) (*pstate.State[E], error) {
	candidates := make([]sum.Sum, 0, len(p.states))
	for s := range p.states {
		candidates = append(candidates, s)
	}
	s, err := validation.ResolvePartialKey(prefix, candidates)
	if err != nil {
		return nil, err
	}
	return p.states[s], nil
}

// PushCommit accepts a caller-constructed commit: rejects errs.ErrSumClash
// if the child sum already exists, errs.ErrNoParent if the primary parent
// isn't known. Applies the changes, updates tips and the unsaved queue,
// and bumps the snapshot policy counters (spec.md §4.6 "push_commit").
func (p *Partition[E]) PushCommit(c *commit.Commit[E]) error {
	if err := validation.ForPush[E]()(c); err != nil {
		return err
	}
	if _, exists := p.states[c.StateSum]; exists {
		return errs.ErrSumClash
	}
	parentSum := c.Parents[0]
	parent, ok := p.states[parentSum]
	if !ok {
		return errs.ErrNoParent
	}

	child, err := commit.Apply(c, parent)
	if err != nil {
		return err
	}
	if child.StateSum != c.StateSum {
		return errs.ErrPatchApplyFailed
	}

	p.states[child.StateSum] = child
	for _, parentSum := range child.Parents {
		delete(p.tips, parentSum)
	}
	p.tips[child.StateSum] = struct{}{}
	p.unsaved = append(p.unsaved, c)
	p.policy.RecordCommit(c.NumChanges())

	if len(p.tips) > 1 {
		p.phase = NeedsMerge
	} else {
		p.phase = Ready
	}
	return nil
}

// PushState computes the diff against child.Parents[0] and, if non-empty,
// behaves as PushCommit. Returns (false, nil) if there was nothing to
// commit (spec.md §4.6 "push_state").
func (p *Partition[E]) PushState(child *pstate.State[E]) (bool, error) {
	if len(child.Parents) == 0 {
		return false, errs.ErrNoParent
	}
	parent, ok := p.states[child.Parents[0]]
	if !ok {
		return false, errs.ErrNoParent
	}

	c, ok := commit.FromDiff(parent, child)
	if !ok {
		return false, nil
	}
	if err := p.PushCommit(c); err != nil {
		return false, err
	}
	return true, nil
}

// MergeTwo builds a merge session between tip sums a and b, computing
// their latest common ancestor internally (spec.md §4.6 "Merge").
func (p *Partition[E]) MergeTwo(a, b sum.Sum) (*merge.Session[E], error) {
	stateA, ok := p.states[a]
	if !ok {
		return nil, fmt.Errorf("%w: tip %s not known", errs.ErrNotFound, a)
	}
	stateB, ok := p.states[b]
	if !ok {
		return nil, fmt.Errorf("%w: tip %s not known", errs.ErrNotFound, b)
	}
	ancestorSum, err := merge.LatestCommonAncestor[E](p.states, a, b)
	if err != nil {
		return nil, err
	}
	base, ok := p.states[ancestorSum]
	if !ok {
		return nil, fmt.Errorf("%w: common ancestor %s not known", errs.ErrNotFound, ancestorSum)
	}
	return merge.NewSession(base, stateA, stateB), nil
}

// Merge drives repeated two-way merges to fixpoint, until at most one tip
// remains, applying each resulting commit as PushCommit would (spec.md
// §4.6's "merge(solver)"). ts supplies the timestamp for every merge
// commit produced (never time.Now(), to keep the engine deterministic).
func (p *Partition[E]) Merge(solver merge.TwoWaySolver[E], ts time.Time) error {
	commits, err := merge.MergeAll(p.states, p.tips, solver, ts, p.sink)
	if err != nil {
		return err
	}
	for _, c := range commits {
		p.unsaved = append(p.unsaved, c)
		p.policy.RecordCommit(c.NumChanges())
	}
	if len(p.tips) == 1 {
		p.phase = Ready
	}
	return nil
}

// writeCommitSafely recovers a panic out of a caller-supplied
// codec.ElementCodec's Marshal, turning it into an error so a bad encoder
// fails this one write rather than corrupting the unsaved queue: the
// caller still holds c in p.unsaved and can retry or drop it explicitly.
func writeCommitSafely[E element.Elt](w io.Writer, c *commit.Commit[E], ec codec.ElementCodec[E]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("element codec panicked encoding commit %s: %v", c.StateSum, r)
		}
	}()
	return codec.WriteCommit(w, c, ec)
}

// allocate probes for the first free numbered slot starting at start,
// using try to attempt creation at a given number.
func allocate[W any](start int, try func(n int) (W, error)) (int, W, error) {
	var zero W
	for n := start; n < start+allocateProbeLimit; n++ {
		w, err := try(n)
		if err != nil {
			return 0, zero, err
		}
		if any(w) != nil {
			return n, w, nil
		}
	}
	return 0, zero, errs.NewOther("unable to allocate a free file slot")
}

// Write flushes every unsaved commit into a freshly allocated commit log
// file, popping each from the queue as it's successfully written (a
// failed write leaves it, and everything after it, queued for retry).
// If fast is false, the partition is Ready, and the snapshot policy
// fires, a new snapshot is also written. Returns whether any commit was
// written (spec.md §4.6 "write(fast)").
func (p *Partition[E]) Write(fast bool) (wrote bool, err error) {
	if len(p.unsaved) > 0 {
		start, serr := p.adapter.CommitLogLen(p.ssNum)
		if serr != nil {
			return false, serr
		}
		_, w, aerr := allocate(start, func(n int) (ioadapter.WriteCloser, error) {
			return p.adapter.NewCommitLog(p.ssNum, n)
		})
		if aerr != nil {
			return false, aerr
		}

		defer func() {
			if cerr := w.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		header := codec.Header{Kind: codec.CommitLog, RepoName: p.Name, PartId: p.PartId}
		if werr := codec.WriteHeader(w, header); werr != nil {
			return false, werr
		}
		if werr := codec.WriteCommitSectionMarker(w); werr != nil {
			return false, werr
		}

		for len(p.unsaved) > 0 {
			c := p.unsaved[0]
			if werr := writeCommitSafely(w, c, p.ec); werr != nil {
				return wrote, werr
			}
			p.unsaved = p.unsaved[1:]
			wrote = true
		}
	}

	if !fast && p.phase == Ready && p.policy.Due() {
		if werr := p.WriteSnapshot(); werr != nil {
			return wrote, werr
		}
	}
	return wrote, nil
}

// WriteSnapshot requires a single tip and writes it to a freshly
// allocated snapshot slot, resetting the policy counters (spec.md §4.6
// "write_snapshot").
func (p *Partition[E]) WriteSnapshot() error {
	tipSum, err := p.TipKey()
	if err != nil {
		return err
	}
	tipState := p.states[tipSum]

	ssNum, w, err := allocate(p.ssNum+1, func(n int) (ioadapter.WriteCloser, error) {
		return p.adapter.NewSnapshot(n)
	})
	if err != nil {
		return err
	}
	defer w.Close()

	header := codec.Header{Kind: codec.Snapshot, RepoName: p.Name, PartId: p.PartId}
	if err := codec.WriteHeader(w, header); err != nil {
		return err
	}
	if err := codec.WriteSnapshotBody(w, tipState, p.ec); err != nil {
		return err
	}

	p.ssNum = ssNum
	p.policy.Reset()
	return nil
}

// Unload drops in-memory states and tips, returning the partition to
// Fresh. Succeeds only if unsaved is empty or force is true; returns
// whether it actually unloaded (spec.md §4.6 "unload(force)").
func (p *Partition[E]) Unload(force bool) bool {
	if !force && len(p.unsaved) > 0 {
		return false
	}
	p.states = nil
	p.tips = nil
	p.unsaved = nil
	p.phase = Fresh
	return true
}

// RequireSnapshot forces the next Write(fast=false) to rotate, regardless
// of the policy's accumulated counters (spec.md §4.5's require()).
func (p *Partition[E]) RequireSnapshot() { p.policy.Require() }
