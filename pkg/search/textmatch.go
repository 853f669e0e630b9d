// Package search implements the candidate search and scoring framework
// shared by every resolution task: bounded multi-root gathering, an
// additive scoring function with named terms, and tiered text matching.
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// MatchTier orders text match quality from none to exact.
type MatchTier int

const (
	MatchNone MatchTier = iota
	MatchWeakContainment
	MatchHonorific
	MatchReverse
	MatchSubstring
	MatchPrefix
	MatchExact
)

// String returns the string representation of MatchTier.
func (t MatchTier) String() string {
	switch t {
	case MatchNone:
		return "none"
	case MatchWeakContainment:
		return "weak-containment"
	case MatchHonorific:
		return "honorific"
	case MatchReverse:
		return "reverse"
	case MatchSubstring:
		return "substring"
	case MatchPrefix:
		return "prefix"
	case MatchExact:
		return "exact"
	default:
		return "unknown"
	}
}

// Points returns the additive score contribution of the tier.
func (t MatchTier) Points() float64 {
	switch t {
	case MatchExact:
		return 100
	case MatchPrefix:
		return 80
	case MatchSubstring:
		return 60
	case MatchReverse:
		return 45
	case MatchHonorific:
		return 40
	case MatchWeakContainment:
		return 20
	default:
		return 0
	}
}

// Honorific suffixes the target's users append to contact names.
var honorificSuffixes = []string{"님", "씨", "-nim", "-ssi", " nim", " ssi"}

// invisible runes that chat titles pick up from copy-paste and emoji
// sequences.
func isInvisible(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return false
}

// Normalize folds a token for comparison: full/half width folding,
// diacritic stripping, invisible-rune removal, whitespace collapsing,
// and lowercasing.
func Normalize(s string) string {
	s = width.Fold.String(s)
	s = norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) || isInvisible(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}

	// Recompose so Hangul comparisons see precomposed syllables again.
	folded := norm.NFC.String(b.String())
	return strings.Join(strings.Fields(folded), " ")
}

// StripHonorific removes a single trailing honorific suffix from an
// already-normalized token, also trimming any separating space.
func StripHonorific(s string) string {
	for _, suffix := range honorificSuffixes {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(s, suffix))
		}
	}
	return s
}

// MatchText compares a query against candidate text and returns the best
// matching tier. Both sides are normalized before comparison. Tiers are
// checked strictly in descending order so the result is deterministic.
func MatchText(query, text string) MatchTier {
	q := Normalize(query)
	tx := Normalize(text)
	if q == "" || tx == "" {
		return MatchNone
	}

	switch {
	case tx == q:
		return MatchExact
	case strings.HasPrefix(tx, q):
		return MatchPrefix
	case strings.Contains(tx, q):
		return MatchSubstring
	case strings.Contains(q, tx):
		return MatchReverse
	}

	// Honorific variants: "지연씨" should find "지연님". Strip both sides
	// so a suffix on either the query or the title still matches.
	sq, stx := StripHonorific(q), StripHonorific(tx)
	if (sq != q || stx != tx) && sq != "" {
		if stx == sq || strings.HasPrefix(stx, sq) {
			return MatchHonorific
		}
	}

	// Last resort: ignore internal spacing entirely and look for the
	// shorter token inside the longer one.
	qc := strings.ReplaceAll(q, " ", "")
	tc := strings.ReplaceAll(tx, " ", "")
	shorter, longer := qc, tc
	if len([]rune(shorter)) > len([]rune(longer)) {
		shorter, longer = longer, shorter
	}
	if len([]rune(shorter)) >= 2 && strings.Contains(longer, shorter) {
		return MatchWeakContainment
	}

	return MatchNone
}
