package chat

import (
	"strings"
	"time"

	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/core"
	"github.com/openclaw/kmsg/pkg/logger"
	"github.com/openclaw/kmsg/pkg/pathcache"
	"github.com/openclaw/kmsg/pkg/poll"
	"github.com/openclaw/kmsg/pkg/search"
)

// searchOpen drives the list window's search field to open a chat:
// locate field, focus, clear, type, wait for results, rank, activate,
// confirm a new window. Each stage owns its failure code.
func (r *Resolver) searchOpen(usable ax.Element, query string) (ax.Element, error) {
	root := r.searchRoot(usable)

	field, err := r.locateSearchField(root)
	if err != nil {
		return nil, err
	}
	if err := r.focusField(field); err != nil {
		return nil, err
	}
	if err := r.clearField(field); err != nil {
		return nil, err
	}
	if err := r.enterQuery(field, query); err != nil {
		return nil, err
	}

	// Snapshot window identities before activation so a genuinely new
	// window is distinguishable from a re-raised old one.
	before := windowIDs(r.app.Windows())

	candidate, err := r.waitForResult(root, field, query)
	if err != nil {
		return nil, err
	}
	return r.activate(candidate, before, query)
}

// isTextInput reports whether an element can receive typed text.
func isTextInput(el ax.Element) bool {
	switch el.Role() {
	case ax.RoleTextField, ax.RoleTextArea:
		return true
	}
	return false
}

// looksLikeSearch checks the identifier/title vocabulary the app uses
// for its search affordances.
func looksLikeSearch(el ax.Element) bool {
	for _, s := range []string{el.Identifier(), el.Title(), el.Value()} {
		low := strings.ToLower(s)
		if strings.Contains(low, "search") || strings.Contains(s, "검색") {
			return true
		}
	}
	return false
}

// locateSearchField finds the list window's search input. Cache first,
// then bounded discovery, then a press of any search-like button to
// reveal a collapsed field before one last discovery pass.
func (r *Resolver) locateSearchField(root ax.Element) (ax.Element, error) {
	validate := func(el ax.Element) bool {
		if !isTextInput(el) {
			return false
		}
		_, ok := el.Frame()
		return ok
	}

	if cached := r.cache.Resolve(pathcache.SlotSearchField, root, validate); cached != nil {
		logger.Trace("chat: search field from cache")
		return cached, nil
	}

	if field := r.discoverSearchField(root); field != nil {
		r.rememberQuietly(pathcache.SlotSearchField, root, field)
		return field, nil
	}

	// The field may be collapsed behind a search button.
	if r.pressSearchButton(root) {
		var field ax.Element
		poll.Until(r.cfg.ResultsTimeout, r.cfg.PollInterval, func() bool {
			field = r.discoverSearchField(root)
			return field != nil
		})
		if field != nil {
			r.rememberQuietly(pathcache.SlotSearchField, root, field)
			return field, nil
		}
	}

	return nil, core.ErrSearchFieldMissing.WithDetails(map[string]interface{}{
		"root": root.Identifier(),
	})
}

// discoverSearchField scans for text inputs and scores them: search
// vocabulary and top-of-window placement up, everything else down.
func (r *Resolver) discoverSearchField(root ax.Element) ax.Element {
	rootFrame, haveRoot := root.Frame()

	inputs := ax.Find(root, nil, ax.Limits{
		MaxResults: 8,
		MaxVisits:  r.cfg.FastLimits.MaxVisits,
		Roles:      []string{ax.RoleTextField, ax.RoleTextArea},
	})

	best, ok := search.Best(inputs, func(el ax.Element) search.Score {
		var sc search.Score
		if el.Role() == ax.RoleTextField {
			sc.Add("role", 20)
		}
		if looksLikeSearch(el) {
			sc.Add("vocabulary", 50)
		}
		if frame, ok := el.Frame(); ok && haveRoot {
			// Search sits in the top band of the list window.
			if frame.Y < rootFrame.Y+rootFrame.Height*0.3 {
				sc.Add("placement", 30)
			}
		} else if !ok {
			sc.Add("frameless", search.ExclusionThreshold)
		}
		return sc
	}, search.TieBreak{PreferredRoles: []string{ax.RoleTextField}})
	if !ok {
		return nil
	}
	return best.Element
}

// pressSearchButton presses the first button that advertises search
// vocabulary. Returns whether a press was issued.
func (r *Resolver) pressSearchButton(root ax.Element) bool {
	buttons := ax.Find(root, looksLikeSearch, ax.Limits{
		MaxResults: 4,
		MaxVisits:  r.cfg.FastLimits.MaxVisits,
		Roles:      []string{ax.RoleButton},
	})
	for _, b := range buttons {
		if err := b.Perform(ax.ActionPress); err == nil {
			logger.Trace("chat: pressed search button %q", b.Identifier())
			return true
		}
	}
	return false
}

func (r *Resolver) rememberQuietly(slot pathcache.Slot, root, el ax.Element) {
	if err := r.cache.Remember(slot, root, el); err != nil {
		logger.Warn("chat: remember %s: %v", slot, err)
	}
}

// focusField focuses the field and verifies the focus actually landed.
// Claimed focus is not trusted; either the element reports focused or
// the application reports it as the focused element.
func (r *Resolver) focusField(field ax.Element) error {
	tryFocus := func() bool {
		if err := field.Focus(); err != nil {
			logger.Trace("chat: focus call failed: %v", err)
		}
		return r.focusLanded(field)
	}

	if poll.Until(r.cfg.FocusTimeout, r.cfg.PollInterval, tryFocus) {
		return nil
	}

	// A press sometimes succeeds where raw focus does not.
	if err := field.Perform(ax.ActionPress); err == nil {
		if poll.Until(r.cfg.FocusTimeout, r.cfg.PollInterval, func() bool {
			return r.focusLanded(field)
		}) {
			return nil
		}
	}

	return core.ErrFocusFail.WithDetails(map[string]interface{}{
		"identifier": field.Identifier(),
	})
}

func (r *Resolver) focusLanded(field ax.Element) bool {
	if field.Focused() {
		return true
	}
	return ax.Same(r.app.FocusedElement(), field)
}

// clearField empties the field and waits until it reads back empty.
func (r *Resolver) clearField(field ax.Element) error {
	if field.Value() == "" {
		return nil
	}
	if err := field.SetValue(""); err != nil {
		logger.Trace("chat: clear via SetValue failed: %v", err)
	}
	if poll.Until(r.cfg.TypeTimeout, r.cfg.PollInterval, func() bool {
		return field.Value() == ""
	}) {
		return nil
	}
	return core.ErrInputNotReflected.WithMessage("search field would not clear")
}

// enterQuery writes the query and verifies the field reflects it under
// normalization. SetValue first; per-rune keystrokes as fallback.
func (r *Resolver) enterQuery(field ax.Element, query string) error {
	reflected := func() bool {
		return search.Normalize(field.Value()) == search.Normalize(query)
	}

	if err := field.SetValue(query); err != nil {
		logger.Trace("chat: SetValue(%q) failed: %v", query, err)
	}
	if poll.Until(r.cfg.TypeTimeout, r.cfg.PollInterval, reflected) {
		return nil
	}

	// Some builds ignore programmatic value writes on this field.
	if err := field.SetValue(""); err == nil {
		if err := r.app.Type(query); err != nil {
			logger.Trace("chat: synthetic typing failed: %v", err)
		}
		if poll.Until(r.cfg.TypeTimeout, r.cfg.PollInterval, reflected) {
			return nil
		}
	}

	return core.ErrInputNotReflected.WithDetails(map[string]interface{}{
		"want": query,
		"have": field.Value(),
	})
}

// waitForResult polls for a ranked result: a fast scan over row-like
// roles first, then a wider, slower scan before giving up.
func (r *Resolver) waitForResult(root, field ax.Element, query string) (ax.Element, error) {
	if c := r.pollResults(root, field, query, r.cfg.ResultsTimeout, r.cfg.FastLimits); c != nil {
		return c, nil
	}
	logger.Trace("chat: fast result scan empty, widening")
	if c := r.pollResults(root, field, query, r.cfg.WideTimeout, r.cfg.WideLimits); c != nil {
		return c, nil
	}
	return nil, core.ErrSearchMiss.WithDetails(map[string]interface{}{
		"query": query,
	})
}

func (r *Resolver) pollResults(root, field ax.Element, query string, timeout time.Duration, limits ax.Limits) ax.Element {
	var winner ax.Element
	poll.Until(timeout, r.cfg.PollInterval, func() bool {
		winner = r.bestResult(root, field, query, limits)
		return winner != nil
	})
	return winner
}

// roleWeights orders plausible result containers.
var resultRoleWeights = map[string]float64{
	ax.RoleRow:        30,
	ax.RoleCell:       25,
	ax.RoleLink:       15,
	ax.RoleStaticText: 10,
}

// bestResult gathers candidates under root and ranks them by text match
// tier, role, and geometry. Candidates outside the root window or above
// the search field are excluded outright.
func (r *Resolver) bestResult(root, field ax.Element, query string, limits ax.Limits) ax.Element {
	rootFrame, haveRoot := root.Frame()
	fieldFrame, haveField := field.Frame()

	candidates := ax.Find(root, func(el ax.Element) bool {
		return candidateText(el) != ""
	}, limits)

	best, ok := search.Best(candidates, func(el ax.Element) search.Score {
		var sc search.Score

		tier := search.MatchText(query, candidateText(el))
		if tier == search.MatchNone {
			sc.Add("text", search.ExclusionThreshold)
			return sc
		}
		sc.Add("text", float64(tier.Points()))
		sc.Add("role", resultRoleWeights[el.Role()])

		frame, ok := el.Frame()
		if !ok {
			sc.Add("frameless", search.ExclusionThreshold)
			return sc
		}
		if haveRoot && !rootFrame.ContainsRect(frame) {
			sc.Add("outside-window", search.ExclusionThreshold)
		}
		// Anything above the search field is chrome, not a result.
		if haveField && frame.Y+frame.Height <= fieldFrame.Y {
			sc.Add("above-field", search.ExclusionThreshold)
		}
		if el.Focused() {
			sc.Add("focused", 10)
		}
		return sc
	}, search.TieBreak{PreferredRoles: []string{ax.RoleRow, ax.RoleCell}})
	if !ok {
		return nil
	}
	logger.Trace("chat: best result %q score %.0f", candidateText(best.Element), best.Score.Total())
	return best.Element
}

// candidateText extracts the text a result row carries, preferring its
// own title, then value, then the first static text beneath it.
func candidateText(el ax.Element) string {
	if t := el.Title(); t != "" {
		return t
	}
	if v := el.Value(); v != "" {
		return v
	}
	switch el.Role() {
	case ax.RoleRow, ax.RoleCell, ax.RoleGroup:
		inner := ax.FindFirst(el, func(s ax.Element) bool {
			return s.Title() != "" || s.Value() != ""
		}, ax.Limits{MaxVisits: 32, Roles: []string{ax.RoleStaticText}})
		if inner != nil {
			if t := inner.Title(); t != "" {
				return t
			}
			return inner.Value()
		}
	}
	return ""
}

// activate opens the chosen result: accessibility press, then row
// selection plus Return, then a raw Return. Each mechanism is confirmed
// by polling for the chat window; a mechanism the tree accepts but that
// opens nothing falls through to the next one.
func (r *Resolver) activate(candidate ax.Element, before map[string]bool, query string) (ax.Element, error) {
	mechanisms := []struct {
		name string
		fire func() error
	}{
		{"press", func() error {
			return candidate.Perform(ax.ActionPress)
		}},
		{"select-return", func() error {
			if err := candidate.Select(); err != nil {
				return err
			}
			return r.app.Press(ax.KeyReturn, ax.Modifiers{})
		}},
		{"return", func() error {
			return r.app.Press(ax.KeyReturn, ax.Modifiers{})
		}},
	}

	accepted := false
	for _, m := range mechanisms {
		if err := m.fire(); err != nil {
			logger.Trace("chat: activation via %s rejected: %v", m.name, err)
			continue
		}
		accepted = true
		if win := r.pollOpenedWindow(before, query); win != nil {
			logger.Trace("chat: opened window %q via %s", win.Title(), m.name)
			return win, nil
		}
		logger.Trace("chat: activation via %s accepted but no window appeared", m.name)
	}

	if !accepted {
		return nil, core.ErrEnterNotEffective.WithMessage("no activation mechanism accepted the selection")
	}
	return nil, core.ErrOpenNotConfirmed.WithDetails(map[string]interface{}{
		"query": query,
	})
}

// pollOpenedWindow waits for a window that was not in the before set
// and looks like the requested chat: title containing the query, or
// failing that, a plausible message input inside it. Returns nil when
// none appears within the open budget.
func (r *Resolver) pollOpenedWindow(before map[string]bool, query string) ax.Element {
	var opened ax.Element
	poll.Until(r.cfg.OpenTimeout, r.cfg.PollInterval, func() bool {
		var fallback ax.Element
		for _, win := range r.app.Windows() {
			if before[win.ID()] {
				continue
			}
			if !usableWindow(win) {
				continue
			}
			if titleContains(win.Title(), query) {
				opened = win
				return true
			}
			if fallback == nil && hasPlausibleMessageInput(win) {
				fallback = win
			}
		}
		if fallback != nil {
			opened = fallback
			return true
		}
		return false
	})
	return opened
}

func usableWindow(win ax.Element) bool {
	if win == nil {
		return false
	}
	_, ok := win.Frame()
	return ok
}

// hasPlausibleMessageInput does a cheap scan for a text area in the
// lower half, the signature of a chat window regardless of its title.
func hasPlausibleMessageInput(win ax.Element) bool {
	winFrame, ok := win.Frame()
	if !ok {
		return false
	}
	input := ax.FindFirst(win, func(el ax.Element) bool {
		frame, ok := el.Frame()
		return ok && frame.Y >= winFrame.Y+winFrame.Height/2
	}, ax.Limits{MaxVisits: 300, Roles: []string{ax.RoleTextArea}})
	return input != nil
}

func windowIDs(windows []ax.Element) map[string]bool {
	ids := make(map[string]bool, len(windows))
	for _, win := range windows {
		ids[win.ID()] = true
	}
	return ids
}
