// Package chat resolves chat windows and their message context inside
// the target application's accessibility tree. Heuristics are tuned to
// one application's conventions; when a layout defeats them the
// resolver degrades to precise, typed failures instead of guessing.
package chat

import (
	"strings"
	"time"

	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/logger"
	"github.com/openclaw/kmsg/pkg/pathcache"
	"github.com/openclaw/kmsg/pkg/search"
	"github.com/openclaw/kmsg/pkg/window"
)

// Method records how a chat window was obtained.
type Method int

const (
	// MethodExistingWindow means an already-open window's title matched.
	MethodExistingWindow Method = iota
	// MethodSearchOpen means the window was opened via the search flow.
	MethodSearchOpen
)

// String returns the string representation of Method.
func (m Method) String() string {
	switch m {
	case MethodExistingWindow:
		return "existing-window"
	case MethodSearchOpen:
		return "search-open"
	default:
		return "unknown"
	}
}

// Result is a resolved chat window.
type Result struct {
	Window ax.Element
	Method Method
	// Opened is true when the engine opened the window itself, so the
	// caller can close it again unless asked to keep it.
	Opened bool
}

// Config holds the resolver's budgets and search bounds.
type Config struct {
	PollInterval   time.Duration
	FocusTimeout   time.Duration
	TypeTimeout    time.Duration
	ResultsTimeout time.Duration
	WideTimeout    time.Duration
	OpenTimeout    time.Duration
	CloseTimeout   time.Duration

	// FastLimits bounds the first result scan; WideLimits the slower
	// rescan over more roles and a larger node budget.
	FastLimits ax.Limits
	WideLimits ax.Limits

	// DeepRecovery permits escalation to the window controller's
	// recovery policy when the fast policy fails.
	DeepRecovery bool
}

// DefaultConfig returns production budgets.
func DefaultConfig() Config {
	return Config{
		PollInterval:   100 * time.Millisecond,
		FocusTimeout:   800 * time.Millisecond,
		TypeTimeout:    1200 * time.Millisecond,
		ResultsTimeout: 1500 * time.Millisecond,
		WideTimeout:    2500 * time.Millisecond,
		OpenTimeout:    3 * time.Second,
		CloseTimeout:   2 * time.Second,
		FastLimits: ax.Limits{
			MaxResults: 24,
			MaxVisits:  400,
			Roles:      []string{ax.RoleRow, ax.RoleCell},
		},
		WideLimits: ax.Limits{
			MaxResults: 64,
			MaxVisits:  2400,
			Roles: []string{
				ax.RoleRow, ax.RoleCell, ax.RoleStaticText,
				ax.RoleLink, ax.RoleGroup,
			},
		},
	}
}

// Resolver orchestrates window availability, cached paths, and the
// search-open flow.
type Resolver struct {
	app     ax.Application
	windows *window.Controller
	cache   *pathcache.Store
	cfg     Config
}

// NewResolver creates a resolver. The cache store is injected so tests
// can supply a temp-file-backed instance.
func NewResolver(app ax.Application, wc *window.Controller, cache *pathcache.Store, cfg Config) *Resolver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Resolver{app: app, windows: wc, cache: cache, cfg: cfg}
}

// WithDeepRecovery returns a resolver whose recovery permission differs
// from the receiver's. The derived resolver shares the application
// handle, window controller and cache.
func (r *Resolver) WithDeepRecovery(on bool) *Resolver {
	if r.cfg.DeepRecovery == on {
		return r
	}
	derived := *r
	derived.cfg.DeepRecovery = on
	return &derived
}

// Resolve produces a chat window for the query: an already-open window
// whose title contains the query, or one opened through the search
// flow. Every exhausted stage fails with its own stable code.
func (r *Resolver) Resolve(query string) (*Result, error) {
	win, src, err := r.windows.Ensure(window.PolicyFast)
	if err != nil && r.cfg.DeepRecovery {
		logger.Trace("chat: fast window ensure failed, escalating to recovery")
		win, src, err = r.windows.Ensure(window.PolicyRecovery)
	}
	if err != nil {
		return nil, err
	}
	logger.Trace("chat: usable window via %s", src)

	if existing := r.findExistingWindow(query); existing != nil {
		logger.Trace("chat: existing window title matches %q", query)
		return &Result{Window: existing, Method: MethodExistingWindow}, nil
	}

	opened, err := r.searchOpen(win, query)
	if err != nil {
		return nil, err
	}
	return &Result{Window: opened, Method: MethodSearchOpen, Opened: true}, nil
}

// findExistingWindow returns an open window whose title already
// contains the query.
func (r *Resolver) findExistingWindow(query string) ax.Element {
	for _, win := range r.app.Windows() {
		if titleContains(win.Title(), query) {
			return win
		}
	}
	return nil
}

// titleContains checks query containment under normalization: exact,
// prefix and substring tiers all count as "contains".
func titleContains(title, query string) bool {
	return search.MatchText(query, title) >= search.MatchSubstring
}

// searchRoot picks where the search flow starts: a dedicated list
// window when one exists, else the main window, else the usable window
// the availability controller produced.
func (r *Resolver) searchRoot(usable ax.Element) ax.Element {
	for _, win := range r.app.Windows() {
		id := strings.ToLower(win.Identifier())
		if strings.Contains(id, "list") || strings.Contains(id, "friend") {
			return win
		}
	}
	if main := r.app.MainWindow(); main != nil {
		return main
	}
	return usable
}
