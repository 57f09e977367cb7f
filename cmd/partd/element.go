package main

import "github.com/untoldecay/partitionstore/internal/sum"

// textElt is the demo element type: a plain UTF-8 string, content-addressed
// by its own bytes. Real callers supply their own element.Elt plus
// codec.ElementCodec; this is the stand-in that lets partd exercise the
// engine without a domain of its own.
type textElt string

func (t textElt) Sum() sum.Sum { return sum.Of([]byte(t)) }

type textCodec struct{}

func (textCodec) Marshal(t textElt) ([]byte, error)   { return []byte(t), nil }
func (textCodec) Unmarshal(b []byte) (textElt, error) { return textElt(b), nil }
