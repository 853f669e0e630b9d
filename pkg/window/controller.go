// Package window proves a target window is usable before any other
// action proceeds. The controller is an explicit tier state machine:
// Idle → FastProbe → ActivateRescan → (Recovery only) Relaunch →
// ForceOpen → Resolved/Failed. Escalation happens only after a tier's
// full timeout elapses with no match.
package window

import (
	"time"

	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/core"
	"github.com/openclaw/kmsg/pkg/logger"
	"github.com/openclaw/kmsg/pkg/poll"
)

// Policy selects how far the controller may escalate.
type Policy int

const (
	// PolicyFast stays in-process and never relaunches; total budget
	// is roughly 1.2s.
	PolicyFast Policy = iota
	// PolicyRecovery escalates through relaunch and forced reopen of
	// the installed bundle; total budget is roughly 3-5s.
	PolicyRecovery
)

// String returns the string representation of Policy.
func (p Policy) String() string {
	switch p {
	case PolicyFast:
		return "fast"
	case PolicyRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// Source records which probe produced the window, for diagnostics.
type Source int

const (
	SourceFocused Source = iota
	SourceMain
	SourceFirst
)

// String returns the string representation of Source.
func (s Source) String() string {
	switch s {
	case SourceFocused:
		return "focused"
	case SourceMain:
		return "main"
	case SourceFirst:
		return "first"
	default:
		return "unknown"
	}
}

// State is one node of the availability state machine.
type State int

const (
	StateIdle State = iota
	StateFastProbe
	StateActivateRescan
	StateRelaunch
	StateForceOpen
	StateResolved
	StateFailed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFastProbe:
		return "fast-probe"
	case StateActivateRescan:
		return "activate-rescan"
	case StateRelaunch:
		return "relaunch"
	case StateForceOpen:
		return "force-open"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds the per-tier budgets. The defaults reproduce the fast
// ~1.2s and recovery ~4.2s envelopes.
type Config struct {
	PollInterval         time.Duration
	FastProbeTimeout     time.Duration
	ActivateRescanTimeout time.Duration
	RelaunchTimeout      time.Duration
	ForceOpenTimeout     time.Duration
}

// DefaultConfig returns the production tier budgets.
func DefaultConfig() Config {
	return Config{
		PollInterval:          100 * time.Millisecond,
		FastProbeTimeout:      500 * time.Millisecond,
		ActivateRescanTimeout: 700 * time.Millisecond,
		RelaunchTimeout:       1500 * time.Millisecond,
		ForceOpenTimeout:      1500 * time.Millisecond,
	}
}

// Controller resolves a usable window or a typed availability failure.
type Controller struct {
	app ax.Application
	cfg Config
}

// NewController creates a controller for the given application.
func NewController(app ax.Application, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Controller{app: app, cfg: cfg}
}

// probe checks the window sources in priority order. A window is usable
// when its handle still reports a frame.
func (c *Controller) probe() (ax.Element, Source, bool) {
	if win := c.app.FocusedWindow(); usable(win) {
		return win, SourceFocused, true
	}
	if win := c.app.MainWindow(); usable(win) {
		return win, SourceMain, true
	}
	for _, win := range c.app.Windows() {
		if usable(win) {
			return win, SourceFirst, true
		}
	}
	return nil, 0, false
}

func usable(win ax.Element) bool {
	if win == nil {
		return false
	}
	_, ok := win.Frame()
	return ok
}

// pollTier polls the window sources for the tier's full budget.
func (c *Controller) pollTier(state State, timeout time.Duration) (ax.Element, Source, bool) {
	var win ax.Element
	var src Source
	ok := poll.Until(timeout, c.cfg.PollInterval, func() bool {
		w, s, found := c.probe()
		if found {
			win, src = w, s
		}
		return found
	})
	if !ok {
		logger.Trace("window: tier %s exhausted after %v", state, timeout)
	}
	return win, src, ok
}

// Ensure runs the state machine until a usable window resolves or the
// policy's final tier is exhausted. The returned Source tags which
// probe matched.
func (c *Controller) Ensure(policy Policy) (ax.Element, Source, error) {
	state := StateFastProbe
	for {
		logger.Trace("window: state %s (policy %s)", state, policy)

		switch state {
		case StateFastProbe:
			// In-process scan before disturbing the foreground app.
			if win, src, ok := c.probe(); ok {
				logger.Trace("window: resolved via %s in %s", src, state)
				return win, src, nil
			}
			if _, _, ok := c.pollTier(state, c.cfg.FastProbeTimeout); ok {
				return c.resolved(state)
			}
			state = StateActivateRescan

		case StateActivateRescan:
			if err := c.app.Activate(); err != nil {
				logger.Trace("window: activate failed: %v", err)
			}
			if _, _, ok := c.pollTier(state, c.cfg.ActivateRescanTimeout); ok {
				return c.resolved(state)
			}
			if policy == PolicyRecovery {
				state = StateRelaunch
			} else {
				state = StateFailed
			}

		case StateRelaunch:
			if err := c.app.Relaunch(); err != nil {
				logger.Trace("window: relaunch failed: %v", err)
			}
			if err := c.app.Activate(); err != nil {
				logger.Trace("window: activate after relaunch failed: %v", err)
			}
			if _, _, ok := c.pollTier(state, c.cfg.RelaunchTimeout); ok {
				return c.resolved(state)
			}
			state = StateForceOpen

		case StateForceOpen:
			if err := c.app.ForceOpen(); err != nil {
				logger.Trace("window: force-open failed: %v", err)
			}
			if err := c.app.Activate(); err != nil {
				logger.Trace("window: activate after force-open failed: %v", err)
			}
			if _, _, ok := c.pollTier(state, c.cfg.ForceOpenTimeout); ok {
				return c.resolved(state)
			}
			state = StateFailed

		case StateFailed:
			return nil, 0, core.ErrWindowNotReady.WithDetails(map[string]interface{}{
				"policy": policy.String(),
			})
		}
	}
}

// resolved re-probes once so the caller gets a fresh handle, then tags
// the source. The window that satisfied the poll may already be stale.
func (c *Controller) resolved(state State) (ax.Element, Source, error) {
	win, src, ok := c.probe()
	if !ok {
		// Vanished between poll and re-probe. Treat as tier failure.
		return nil, 0, core.ErrWindowNotReady.WithDetails(map[string]interface{}{
			"state": state.String(),
		})
	}
	logger.Trace("window: resolved via %s in %s", src, state)
	return win, src, nil
}
