// Package element defines the element container: an opaque user payload
// that can produce its own checksum and is cheap to clone via shared
// ownership (spec.md §3 "Element container").
package element

import "github.com/untoldecay/partitionstore/internal/sum"

// Elt is the capability a user payload type must provide: its own content
// sum. Implementations should make Sum cheap to call repeatedly (e.g. cache
// it) since it is invoked on every insert/replace/remove.
type Elt interface {
	Sum() sum.Sum
}

// Ref is a cheaply-cloneable, shared handle to an Elt. Multiple
// PartitionState values hold the same Ref when an element is unchanged
// across commits, so cloning a state into a child is an O(1)-per-element
// pointer copy rather than a deep copy.
type Ref[E Elt] struct {
	v *E
}

// NewRef wraps a value in a shared Ref.
func NewRef[E Elt](v E) Ref[E] {
	return Ref[E]{v: &v}
}

// Get returns the underlying value.
func (r Ref[E]) Get() E {
	return *r.v
}

// Sum returns the element's content sum.
func (r Ref[E]) Sum() sum.Sum {
	return (*r.v).Sum()
}

// Valid reports whether the Ref wraps a value (false for the zero Ref).
func (r Ref[E]) Valid() bool {
	return r.v != nil
}
