package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/sum"
)

func TestResolvePartialKeyUniqueMatch(t *testing.T) {
	a := sum.Of([]byte("a"))
	b := sum.Of([]byte("b"))
	got, err := ResolvePartialKey(a.String()[:8], []sum.Sum{a, b})
	if err != nil {
		t.Fatalf("ResolvePartialKey: %v", err)
	}
	if got != a {
		t.Fatalf("got %s, want %s", got, a)
	}
}

func TestResolvePartialKeyNormalizesCase(t *testing.T) {
	a := sum.Of([]byte("normalize-me"))
	lower := strings.ToLower(a.String()[:6])
	got, err := ResolvePartialKey(lower, []sum.Sum{a})
	if err != nil {
		t.Fatalf("ResolvePartialKey: %v", err)
	}
	if got != a {
		t.Fatalf("got %s, want %s", got, a)
	}
}

func TestResolvePartialKeyNoMatch(t *testing.T) {
	a := sum.Of([]byte("a"))
	_, err := ResolvePartialKey("FFFFFFFF", []sum.Sum{a})
	if !errors.Is(err, errs.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestResolvePartialKeyAmbiguous(t *testing.T) {
	// Craft two sums that share a prefix by brute-force search over a
	// small input space; bounded and deterministic for a test.
	prefix := ""
	var a, b sum.Sum
	found := false
	seen := map[string]sum.Sum{}
	for i := 0; i < 100000 && !found; i++ {
		s := sum.Of([]byte{byte(i), byte(i >> 8), byte(i >> 16)})
		key := s.String()[:2]
		if existing, ok := seen[key]; ok {
			a, b, prefix, found = existing, s, key, true
			break
		}
		seen[key] = s
	}
	if !found {
		t.Skip("no colliding 2-hex-digit prefix found in search space")
	}

	_, err := ResolvePartialKey(prefix, []sum.Sum{a, b})
	var multi *errs.MultiMatch
	if !errors.As(err, &multi) {
		t.Fatalf("expected *errs.MultiMatch, got %v", err)
	}
}

func TestResolvePartialKeyRejectsNonHex(t *testing.T) {
	a := sum.Of([]byte("a"))
	if _, err := ResolvePartialKey("not-hex!", []sum.Sum{a}); !errors.Is(err, errs.ErrArg) {
		t.Fatalf("expected ErrArg, got %v", err)
	}
}
