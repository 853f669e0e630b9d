package ax

// Limits bounds a tree search. Zero values mean unbounded.
type Limits struct {
	// MaxResults stops the search once this many elements matched.
	MaxResults int
	// MaxVisits stops the search after this many nodes were inspected,
	// matched or not. Guards against runaway walks of transiently huge
	// or cyclic-looking trees.
	MaxVisits int
	// Roles, when non-empty, restricts matches to these roles. The
	// predicate still runs on role-matching nodes.
	Roles []string
}

// Predicate decides whether an element is a match. A nil Predicate
// matches everything.
type Predicate func(Element) bool

// FindAll walks the subtree under root breadth-first and returns every
// element matching pred. Unbounded; prefer Find for externally-owned
// trees of unknown size.
func FindAll(root Element, pred Predicate) []Element {
	return Find(root, pred, Limits{})
}

// Find walks the subtree under root breadth-first, returning matches in
// visit order. root itself is a candidate. The walk stops as soon as
// either limit is exhausted.
func Find(root Element, pred Predicate, lim Limits) []Element {
	if root == nil {
		return nil
	}

	var roleSet map[string]bool
	if len(lim.Roles) > 0 {
		roleSet = make(map[string]bool, len(lim.Roles))
		for _, r := range lim.Roles {
			roleSet[r] = true
		}
	}

	var matches []Element
	visited := 0
	queue := []Element{root}
	// Identity-based cycle guard: a damaged tree can report an ancestor
	// as its own descendant.
	seen := map[string]bool{root.ID(): true}

	for len(queue) > 0 {
		el := queue[0]
		queue = queue[1:]

		visited++
		if lim.MaxVisits > 0 && visited > lim.MaxVisits {
			break
		}

		if roleSet == nil || roleSet[el.Role()] {
			if pred == nil || pred(el) {
				matches = append(matches, el)
				if lim.MaxResults > 0 && len(matches) >= lim.MaxResults {
					break
				}
			}
		}

		for _, child := range el.Children() {
			if child == nil || seen[child.ID()] {
				continue
			}
			seen[child.ID()] = true
			queue = append(queue, child)
		}
	}

	return matches
}

// FindFirst returns the first match under root, or nil.
func FindFirst(root Element, pred Predicate, lim Limits) Element {
	lim.MaxResults = 1
	found := Find(root, pred, lim)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// Ancestors returns el's ancestor chain, nearest first, up to and
// including the tree root.
func Ancestors(el Element) []Element {
	var chain []Element
	for p := el.Parent(); p != nil; p = p.Parent() {
		chain = append(chain, p)
		// Drift guard against malformed parent loops.
		if len(chain) > 256 {
			break
		}
	}
	return chain
}
