// Package validation composes small, named checks into validator chains:
// each check is its own function, chains stop at the first failure, and
// callers pick the chain that matches the operation they're guarding.
// Here the checks guard commits and partial-key lookups.
package validation

import (
	"fmt"

	"github.com/untoldecay/partitionstore/internal/commit"
	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/errs"
)

// CommitValidator checks one structural property of a commit pending
// acceptance (e.g. via a partition's push-commit operation) and returns an
// error describing the first problem found.
type CommitValidator[E element.Elt] func(c *commit.Commit[E]) error

// Chain composes validators into one; they run in order and the first
// error stops the chain.
func Chain[E element.Elt](validators ...CommitValidator[E]) CommitValidator[E] {
	return func(c *commit.Commit[E]) error {
		for _, v := range validators {
			if err := v(c); err != nil {
				return err
			}
		}
		return nil
	}
}

// Exists validates that c is non-nil.
func Exists[E element.Elt]() CommitValidator[E] {
	return func(c *commit.Commit[E]) error {
		if c == nil {
			return fmt.Errorf("%w: commit is nil", errs.ErrArg)
		}
		return nil
	}
}

// HasParent validates that c names at least one parent state. Only the
// genesis commit, which the engine constructs itself rather than
// accepting from a caller, may have none.
func HasParent[E element.Elt]() CommitValidator[E] {
	return func(c *commit.Commit[E]) error {
		if c == nil {
			return nil
		}
		if len(c.Parents) == 0 {
			return fmt.Errorf("%w: commit has no parent state", errs.ErrArg)
		}
		return nil
	}
}

// HasChanges validates that c carries at least one edit. An empty commit
// can't have been produced by FromDiff and is most likely a caller error.
func HasChanges[E element.Elt]() CommitValidator[E] {
	return func(c *commit.Commit[E]) error {
		if c == nil {
			return nil
		}
		if len(c.Changes) == 0 {
			return fmt.Errorf("%w: commit has no changes", errs.ErrArg)
		}
		return nil
	}
}

// MaxParents validates that c names no more than n parents. Ordinary
// commits have exactly one; merge commits from this engine's own Session
// have exactly two. A caller pushing a commit claiming more than n parents
// (e.g. an n-way merge this engine doesn't implement) is rejected.
func MaxParents[E element.Elt](n int) CommitValidator[E] {
	return func(c *commit.Commit[E]) error {
		if c == nil {
			return nil
		}
		if len(c.Parents) > n {
			return fmt.Errorf("%w: commit names %d parents, at most %d supported", errs.ErrArg, len(c.Parents), n)
		}
		return nil
	}
}

// ForPush returns the validator chain applied to a commit a caller is
// pushing into a partition (spec.md §4.4's "push commit" operation):
// present, has a parent, carries changes, and isn't claiming more parents
// than a two-way merge produces.
func ForPush[E element.Elt]() CommitValidator[E] {
	return Chain(
		Exists[E](),
		HasParent[E](),
		HasChanges[E](),
		MaxParents[E](2),
	)
}
