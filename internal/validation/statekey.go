package validation

import (
	"fmt"

	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/sum"
)

// ResolvePartialKey normalizes raw (per sum.NormalizePrefix) and matches it
// against candidates, the set of known state sums, implementing
// state_from_string's partial-key lookup: an empty or malformed
// prefix is rejected, a prefix matching no candidate is ErrNoMatch, one
// matching two or more is an *errs.MultiMatch (reporting the first two
// encountered, since candidate order is otherwise unspecified), and a
// prefix matching exactly one candidate returns it.
func ResolvePartialKey(raw string, candidates []sum.Sum) (sum.Sum, error) {
	norm, ok := sum.NormalizePrefix(raw)
	if !ok || norm == "" {
		return sum.Zero, fmt.Errorf("%w: %q is not a valid hex prefix", errs.ErrArg, raw)
	}

	var matches []sum.Sum
	for _, c := range candidates {
		if c.HasPrefix(norm) {
			matches = append(matches, c)
			if len(matches) >= 2 {
				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return sum.Zero, errs.ErrNoMatch
	case 1:
		return matches[0], nil
	default:
		return sum.Zero, &errs.MultiMatch{A: matches[0].String(), B: matches[1].String()}
	}
}
