package chat

import (
	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/core"
	"github.com/openclaw/kmsg/pkg/logger"
	"github.com/openclaw/kmsg/pkg/pathcache"
	"github.com/openclaw/kmsg/pkg/search"
)

// Context is a chat window's working surface: the message input, the
// chat pane containing it, and the transcript container.
type Context struct {
	Input      ax.Element
	Pane       ax.Element
	Transcript ax.Element
}

// contextLimits bounds the input discovery scan.
var contextLimits = ax.Limits{
	MaxResults: 12,
	MaxVisits:  1200,
	Roles:      []string{ax.RoleTextArea, ax.RoleTextField},
}

// ResolveMessageContext locates the message input and transcript inside
// a resolved chat window. The input is found first; the pane and
// transcript hang off its position.
func (r *Resolver) ResolveMessageContext(win ax.Element) (*Context, error) {
	input, err := r.resolveInput(win)
	if err != nil {
		return nil, err
	}

	pane := r.resolvePane(win, input)
	transcript, err := r.resolveTranscript(win, pane, input)
	if err != nil {
		return nil, err
	}

	return &Context{Input: input, Pane: pane, Transcript: transcript}, nil
}

// resolveInput finds the message input. Order: cached path, the
// currently focused element and its vicinity, then up to two bounded
// multi-root scans with a re-activation between them.
func (r *Resolver) resolveInput(win ax.Element) (ax.Element, error) {
	validate := func(el ax.Element) bool {
		return isTextInput(el) && !looksLikeSearch(el)
	}

	if cached := r.cache.Resolve(pathcache.SlotMessageInput, win, validate); cached != nil {
		logger.Trace("chat: message input from cache")
		return cached, nil
	}

	if input := r.inputNearFocus(win); input != nil {
		r.rememberQuietly(pathcache.SlotMessageInput, win, input)
		return input, nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			// Some layouts only populate the tree once the window is
			// frontmost.
			if err := r.app.Activate(); err != nil {
				logger.Trace("chat: reactivate before input rescan failed: %v", err)
			}
			if err := win.Perform(ax.ActionRaise); err != nil {
				logger.Trace("chat: raise before input rescan failed: %v", err)
			}
		}

		roots := []ax.Element{win, r.app.FocusedWindow()}
		candidates := search.Gather(roots, isTextInput, contextLimits)
		if input := r.scoreInputs(win, candidates); input != nil {
			r.rememberQuietly(pathcache.SlotMessageInput, win, input)
			return input, nil
		}
	}

	return nil, core.ErrInputFieldMissing.WithDetails(map[string]interface{}{
		"window": win.Title(),
	})
}

// inputNearFocus checks whether the focused element already is, or sits
// next to, the message input. Typing focus usually lands there when a
// chat window opens.
func (r *Resolver) inputNearFocus(win ax.Element) ax.Element {
	focused := r.app.FocusedElement()
	if focused == nil {
		return nil
	}
	if isTextInput(focused) && !looksLikeSearch(focused) && inWindow(win, focused) {
		return focused
	}
	// One hop around: the focused element may be a wrapper group.
	near := ax.FindFirst(focused, func(el ax.Element) bool {
		return isTextInput(el) && !looksLikeSearch(el)
	}, ax.Limits{MaxVisits: 32})
	if near != nil && inWindow(win, near) {
		return near
	}
	return nil
}

// inWindow reports whether el's ancestor chain reaches win.
func inWindow(win, el ax.Element) bool {
	if ax.Same(win, el) {
		return true
	}
	for _, anc := range ax.Ancestors(el) {
		if ax.Same(anc, win) {
			return true
		}
	}
	return false
}

// scoreInputs ranks input candidates by role, geometry and focus. A
// search look-alike is excluded outright so the resolver never types a
// message into the contact search box.
func (r *Resolver) scoreInputs(win ax.Element, candidates []ax.Element) ax.Element {
	winFrame, haveWin := win.Frame()

	best, ok := search.Best(candidates, func(el ax.Element) search.Score {
		var sc search.Score

		switch el.Role() {
		case ax.RoleTextArea:
			sc.Add("role", 40)
		case ax.RoleTextField:
			sc.Add("role", 25)
		}

		if looksLikeSearch(el) {
			sc.Add("search-look-alike", -1000)
			return sc
		}

		frame, okF := el.Frame()
		if !okF {
			sc.Add("frameless", search.ExclusionThreshold)
			return sc
		}
		if haveWin {
			if !winFrame.ContainsRect(frame) {
				sc.Add("outside-window", -1000)
				return sc
			}
			// Message inputs live at the bottom; search fields at the top.
			if frame.Y >= winFrame.Y+winFrame.Height/2 {
				sc.Add("lower-half", 20)
			}
			if frame.Y < winFrame.Y+winFrame.Height*0.25 {
				sc.Add("top-band", -1000)
				return sc
			}
			if frame.Width >= winFrame.Width*0.5 {
				sc.Add("wide", 10)
			}
		}
		if el.Focused() {
			sc.Add("focused", 15)
		}
		return sc
	}, search.TieBreak{PreferredRoles: []string{ax.RoleTextArea}})
	if !ok {
		return nil
	}
	return best.Element
}

// resolvePane picks the smallest ancestor of the input that still spans
// most of the window, the subtree that holds both input and transcript.
// Falls back to the window itself.
func (r *Resolver) resolvePane(win, input ax.Element) ax.Element {
	winFrame, haveWin := win.Frame()
	if !haveWin {
		return win
	}

	for _, anc := range ax.Ancestors(input) {
		if ax.Same(anc, win) {
			break
		}
		frame, ok := anc.Frame()
		if !ok {
			continue
		}
		if frame.Width >= winFrame.Width*0.7 && frame.Height >= winFrame.Height*0.6 {
			return anc
		}
	}
	return win
}

// transcriptRoleWeights orders plausible transcript containers. Scroll
// areas and tables are what the app actually uses; groups are a last
// resort.
var transcriptRoleWeights = map[string]float64{
	ax.RoleScrollArea: 40,
	ax.RoleTable:      35,
	ax.RoleOutline:    30,
	ax.RoleList:       25,
	ax.RoleGroup:      10,
}

// resolveTranscript finds the scrollable message history container,
// searching the pane first and the whole window as fallback.
func (r *Resolver) resolveTranscript(win, pane, input ax.Element) (ax.Element, error) {
	if t := r.scoreTranscripts(pane, input); t != nil {
		return t, nil
	}
	if !ax.Same(pane, win) {
		if t := r.scoreTranscripts(win, input); t != nil {
			return t, nil
		}
	}
	return nil, core.ErrTranscriptMissing.WithDetails(map[string]interface{}{
		"window": win.Title(),
	})
}

func (r *Resolver) scoreTranscripts(root, input ax.Element) ax.Element {
	inputFrame, haveInput := input.Frame()

	candidates := ax.Find(root, func(el ax.Element) bool {
		return !ax.Same(el, root)
	}, ax.Limits{
		MaxResults: 16,
		MaxVisits:  1200,
		Roles: []string{
			ax.RoleScrollArea, ax.RoleTable, ax.RoleOutline,
			ax.RoleList, ax.RoleGroup,
		},
	})

	best, ok := search.Best(candidates, func(el ax.Element) search.Score {
		var sc search.Score
		sc.Add("role", transcriptRoleWeights[el.Role()])

		frame, okF := el.Frame()
		if !okF {
			sc.Add("frameless", search.ExclusionThreshold)
			return sc
		}
		if haveInput {
			sc.Add("overlap", frame.HorizontalOverlap(inputFrame)*20)
			// The transcript sits above the input. Below it is toolbars
			// and emoji drawers.
			if frame.Y+frame.Height <= inputFrame.Y+inputFrame.Height {
				sc.Add("above-input", 25)
			} else {
				sc.Add("below-input", -250)
			}
		}
		sc.Add("row-density", rowDensity(el))
		return sc
	}, search.TieBreak{PreferredRoles: []string{ax.RoleScrollArea, ax.RoleTable}})
	if !ok {
		return nil
	}
	return best.Element
}

// rowDensity rewards containers that actually hold message rows,
// capped so a huge backlog does not dominate the score.
func rowDensity(el ax.Element) float64 {
	rows := ax.Find(el, nil, ax.Limits{
		MaxResults: 20,
		MaxVisits:  200,
		Roles:      []string{ax.RoleRow, ax.RoleCell},
	})
	d := float64(len(rows))
	if d > 20 {
		d = 20
	}
	return d
}
