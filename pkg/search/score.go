package search

import (
	"github.com/openclaw/kmsg/pkg/ax"
)

// ExclusionThreshold is the score at or below which a candidate is
// treated as excluded regardless of its other terms. Hard geometric
// exclusions are expressed as terms of -1000 or worse.
const ExclusionThreshold = -500.0

// Term is one named contribution to a candidate's score, kept separate
// so fallback decisions stay auditable in traces and unit-testable per
// term.
type Term struct {
	Name   string
	Points float64
}

// Score is an additive candidate score.
type Score struct {
	Terms []Term
}

// Add appends a named term. Zero-point terms are recorded too: an
// explicit zero is evidence the term was evaluated.
func (s *Score) Add(name string, points float64) {
	s.Terms = append(s.Terms, Term{Name: name, Points: points})
}

// Total sums all terms.
func (s Score) Total() float64 {
	var total float64
	for _, t := range s.Terms {
		total += t.Points
	}
	return total
}

// Term returns the points of the named term and whether it was recorded.
func (s Score) Term(name string) (float64, bool) {
	for _, t := range s.Terms {
		if t.Name == name {
			return t.Points, true
		}
	}
	return 0, false
}

// Func scores one candidate. Implementations must be deterministic for
// identical candidates and geometry.
type Func func(ax.Element) Score

// Candidate is an ephemeral scored element, alive for one resolution
// attempt only.
type Candidate struct {
	Element     ax.Element
	Score       Score
	MatchedText string
}

// TieBreak configures how equal-scoring candidates are ordered.
type TieBreak struct {
	// PreferredRoles win ties, in the order given.
	PreferredRoles []string
}

func rolePreference(roles []string, role string) int {
	for i, r := range roles {
		if r == role {
			return len(roles) - i
		}
	}
	return 0
}

func hasPressAction(el ax.Element) bool {
	for _, a := range el.Actions() {
		if a == ax.ActionPress {
			return true
		}
	}
	return false
}

// Best scores every element and returns the maximum-scoring candidate.
// Candidates at or below ExclusionThreshold never win; ok is false when
// no candidate survives. Ties break on role preference, then on the
// presence of a press action, then on input order.
func Best(elements []ax.Element, score Func, tie TieBreak) (Candidate, bool) {
	var best Candidate
	found := false
	bestRolePref := 0
	bestPress := false

	for _, el := range elements {
		sc := score(el)
		total := sc.Total()
		if total <= ExclusionThreshold {
			continue
		}

		pref := rolePreference(tie.PreferredRoles, el.Role())
		press := hasPressAction(el)

		better := false
		switch {
		case !found:
			better = true
		case total > best.Score.Total():
			better = true
		case total == best.Score.Total():
			if pref > bestRolePref {
				better = true
			} else if pref == bestRolePref && press && !bestPress {
				better = true
			}
		}

		if better {
			best = Candidate{Element: el, Score: sc}
			bestRolePref = pref
			bestPress = press
			found = true
		}
	}

	return best, found
}

// Gather collects candidates from multiple roots via bounded BFS,
// deduplicated by platform identity. Limits apply per root; roots may
// overlap (a focused window is often also in the window list).
func Gather(roots []ax.Element, pred ax.Predicate, lim ax.Limits) []ax.Element {
	var out []ax.Element
	seen := make(map[string]bool)

	for _, root := range roots {
		if root == nil {
			continue
		}
		for _, el := range ax.Find(root, pred, lim) {
			if seen[el.ID()] {
				continue
			}
			seen[el.ID()] = true
			out = append(out, el)
		}
	}

	return out
}
