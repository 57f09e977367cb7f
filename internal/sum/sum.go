// Package sum implements the fixed-width content checksum used to
// content-address partition states, elements and commits.
package sum

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Bytes is the on-disk and in-memory width of a Sum: a 32-byte BLAKE2b-256
// digest, the only checksum algorithm the header codec accepts at read
// time.
const Bytes = 32

// Sum is a fixed-width content checksum. The zero value is the identity
// element for Permute.
type Sum [Bytes]byte

// Zero is the identity Sum: permuting any Sum with Zero is a no-op.
var Zero = Sum{}

// Of hashes an arbitrary payload into a Sum. Element types use this (or an
// equivalent) to implement their Sum() method.
func Of(data []byte) Sum {
	return Sum(blake2b.Sum256(data))
}

// IsZero reports whether s is the identity value.
func (s Sum) IsZero() bool {
	return s == Zero
}

// Equal reports byte-for-byte equality.
func (s Sum) Equal(other Sum) bool {
	return s == other
}

// Permute commutatively and associatively folds other into s, in place.
// Permute is self-inverse: calling it twice with the same argument restores
// the original value. This is what lets statesum be updated in O(1) on
// insert/remove/replace without re-hashing the whole element set.
func (s *Sum) Permute(other Sum) {
	for i := range s {
		s[i] ^= other[i]
	}
}

// Permuted returns a new Sum equal to s with other folded in, leaving s
// unmodified.
func Permuted(s, other Sum) Sum {
	r := s
	r.Permute(other)
	return r
}

// Fold computes the commutative combination of all the given sums, in any
// order. Fold(nil) == Zero.
func Fold(sums ...Sum) Sum {
	var acc Sum
	for _, s := range sums {
		acc.Permute(s)
	}
	return acc
}

// String renders the Sum as uppercase hex, matching the normalization used
// by partial-prefix lookups (state_from_string).
func (s Sum) String() string {
	return strings.ToUpper(hex.EncodeToString(s[:]))
}

// Slice returns the raw digest bytes.
func (s Sum) Slice() []byte {
	return s[:]
}

// HasPrefix reports whether the hex encoding of s begins with the given
// (already normalized) hex prefix.
func (s Sum) HasPrefix(hexPrefix string) bool {
	return strings.HasPrefix(s.String(), hexPrefix)
}

// NormalizePrefix upper-cases a user-supplied key fragment and strips
// embedded whitespace, mirroring state_from_string's normalization rule,
// then validates it contains only hex digits.
func NormalizePrefix(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	norm := strings.ToUpper(b.String())
	for _, r := range norm {
		if !((r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')) {
			return "", false
		}
	}
	return norm, true
}

// FromHex parses a full-length hex string into a Sum.
func FromHex(s string) (Sum, bool) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != Bytes {
		return Sum{}, false
	}
	var out Sum
	copy(out[:], b)
	return out, true
}
