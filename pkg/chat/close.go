package chat

import (
	"strings"

	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/core"
	"github.com/openclaw/kmsg/pkg/logger"
	"github.com/openclaw/kmsg/pkg/poll"
)

// CloseWindow closes a window the engine opened. Mechanisms are tried
// in order of reliability and each attempt is verified by the window
// disappearing from the application's window list.
func (r *Resolver) CloseWindow(win ax.Element) error {
	if win == nil {
		return nil
	}
	id := win.ID()

	if err := win.Perform(ax.ActionRaise); err != nil {
		logger.Trace("chat: raise before close failed: %v", err)
	}

	if r.pressCloseButton(win) && r.waitGone(id) {
		return nil
	}
	if r.pressCloseHeuristic(win) && r.waitGone(id) {
		return nil
	}
	if err := r.app.Press(ax.KeyW, ax.Modifiers{Command: true}); err == nil && r.waitGone(id) {
		return nil
	}

	return core.ErrCloseNotConfirmed.WithDetails(map[string]interface{}{
		"title": win.Title(),
	})
}

// pressCloseButton presses the window's standard close button, found by
// its subrole.
func (r *Resolver) pressCloseButton(win ax.Element) bool {
	btn := ax.FindFirst(win, func(el ax.Element) bool {
		return el.Subrole() == "AXCloseButton"
	}, ax.Limits{MaxVisits: 64, Roles: []string{ax.RoleButton}})
	if btn == nil {
		return false
	}
	if err := btn.Perform(ax.ActionPress); err != nil {
		logger.Trace("chat: close button press failed: %v", err)
		return false
	}
	return true
}

// pressCloseHeuristic presses any button advertising close vocabulary.
func (r *Resolver) pressCloseHeuristic(win ax.Element) bool {
	btn := ax.FindFirst(win, func(el ax.Element) bool {
		for _, s := range []string{el.Identifier(), el.Title()} {
			low := strings.ToLower(s)
			if strings.Contains(low, "close") || strings.Contains(s, "닫기") {
				return true
			}
		}
		return false
	}, ax.Limits{MaxVisits: 200, Roles: []string{ax.RoleButton}})
	if btn == nil {
		return false
	}
	return btn.Perform(ax.ActionPress) == nil
}

// waitGone polls until no window with the given identity remains.
func (r *Resolver) waitGone(id string) bool {
	return poll.Until(r.cfg.CloseTimeout, r.cfg.PollInterval, func() bool {
		for _, win := range r.app.Windows() {
			if win.ID() == id {
				return false
			}
		}
		return true
	})
}
