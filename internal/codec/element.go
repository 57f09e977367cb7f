package codec

import "github.com/untoldecay/partitionstore/internal/element"

// ElementCodec marshals and unmarshals the opaque user element type E to
// and from its on-disk byte representation. Snapshot and commit log
// bodies are generic over E (spec.md §3's "opaque user-defined elements"),
// so the codec package can't know how to serialize E on its own; callers
// supply one alongside their element type.
type ElementCodec[E element.Elt] interface {
	Marshal(E) ([]byte, error)
	Unmarshal([]byte) (E, error)
}
