package partition

import (
	"github.com/untoldecay/partitionstore/internal/element"
	"github.com/untoldecay/partitionstore/internal/ids"
)

// Classifier derives the destination partition for an element whose
// NoteMove target must be computed from its payload, e.g. a cross-
// partition migration helper deciding where an element belongs after a
// reshard. This is the narrow hook behind the ClassifyFailure error
// variant (errs.ErrClassifyFailure): only the hook and the error are
// implemented here, not a router.
type Classifier[E element.Elt] interface {
	ClassifyElt(elt E) (ids.PartId, error)
}
