// Package axtest provides an in-memory fake accessibility tree for
// testing the resolution engine without a live application.
package axtest

import (
	"fmt"

	"github.com/openclaw/kmsg/pkg/ax"
)

var nextID int

// Node is a scriptable fake ax.Element.
type Node struct {
	id         string
	role       string
	subrole    string
	title      string
	value      string
	identifier string
	frame      ax.Rect
	hasFrame   bool
	enabled    bool
	selected   bool
	actions    []string

	parent   *Node
	children []*Node
	app      *App

	// Detached simulates a stale handle: Frame reports ok=false and the
	// parent stops listing the node.
	Detached bool

	// Performed records every action invoked on the node.
	Performed []string

	// Hooks override default behavior when set.
	OnPerform  func(action string) error
	OnSetValue func(value string) error
	OnFocus    func() error
}

// NewNode creates a node with a fresh platform identity.
func NewNode(role string) *Node {
	nextID++
	return &Node{
		id:       fmt.Sprintf("node-%d", nextID),
		role:     role,
		enabled:  true,
		hasFrame: false,
	}
}

// WithTitle sets the node title.
func (n *Node) WithTitle(title string) *Node { n.title = title; return n }

// WithValue sets the node value.
func (n *Node) WithValue(value string) *Node { n.value = value; return n }

// WithIdentifier sets the accessibility identifier.
func (n *Node) WithIdentifier(id string) *Node { n.identifier = id; return n }

// WithSubrole sets the subrole.
func (n *Node) WithSubrole(sr string) *Node { n.subrole = sr; return n }

// WithFrame sets the node frame.
func (n *Node) WithFrame(x, y, w, h float64) *Node {
	n.frame = ax.Rect{X: x, Y: y, Width: w, Height: h}
	n.hasFrame = true
	return n
}

// WithActions sets the supported actions.
func (n *Node) WithActions(actions ...string) *Node { n.actions = actions; return n }

// WithEnabled sets the enabled state.
func (n *Node) WithEnabled(enabled bool) *Node { n.enabled = enabled; return n }

// Add appends children, wiring their parent pointers, and returns n.
func (n *Node) Add(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		c.setApp(n.app)
		n.children = append(n.children, c)
	}
	return n
}

// Remove detaches child from n.
func (n *Node) Remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

func (n *Node) setApp(app *App) {
	n.app = app
	for _, c := range n.children {
		c.setApp(app)
	}
}

// ID implements ax.Element.
func (n *Node) ID() string { return n.id }

// Role implements ax.Element.
func (n *Node) Role() string { return n.role }

// Subrole implements ax.Element.
func (n *Node) Subrole() string { return n.subrole }

// Title implements ax.Element.
func (n *Node) Title() string { return n.title }

// Value implements ax.Element.
func (n *Node) Value() string { return n.value }

// Identifier implements ax.Element.
func (n *Node) Identifier() string { return n.identifier }

// Frame implements ax.Element.
func (n *Node) Frame() (ax.Rect, bool) {
	if n.Detached || !n.hasFrame {
		return ax.Rect{}, false
	}
	return n.frame, true
}

// Enabled implements ax.Element.
func (n *Node) Enabled() bool { return n.enabled && !n.Detached }

// Focused implements ax.Element.
func (n *Node) Focused() bool {
	return n.app != nil && n.app.focusedElement == n
}

// Parent implements ax.Element.
func (n *Node) Parent() ax.Element {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// Children implements ax.Element.
func (n *Node) Children() []ax.Element {
	out := make([]ax.Element, 0, len(n.children))
	for _, c := range n.children {
		if c.Detached {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Actions implements ax.Element.
func (n *Node) Actions() []string { return n.actions }

// Perform implements ax.Element.
func (n *Node) Perform(action string) error {
	n.Performed = append(n.Performed, action)
	if n.OnPerform != nil {
		return n.OnPerform(action)
	}
	for _, a := range n.actions {
		if a == action {
			return nil
		}
	}
	return fmt.Errorf("action %s not supported by %s", action, n.role)
}

// SetValue implements ax.Element.
func (n *Node) SetValue(value string) error {
	if n.OnSetValue != nil {
		return n.OnSetValue(value)
	}
	n.value = value
	return nil
}

// Focus implements ax.Element.
func (n *Node) Focus() error {
	if n.OnFocus != nil {
		return n.OnFocus()
	}
	if n.app != nil {
		n.app.focusedElement = n
	}
	return nil
}

// Selected implements ax.Element.
func (n *Node) Selected() bool { return n.selected }

// Select implements ax.Element.
func (n *Node) Select() error {
	n.selected = true
	return nil
}

// App is a scriptable fake ax.Application.
type App struct {
	windows        []*Node
	focusedWindow  *Node
	mainWindow     *Node
	focusedElement *Node
	fingerprint    string
	running        bool

	// Counters for assertions.
	Activations    int
	Relaunches     int
	ForceOpens     int
	TypedText      []string
	PressedKeys    []PressedKey
	ClipboardFiles []string

	// Hooks override or extend default behavior when set.
	OnActivate         func() error
	OnRelaunch         func() error
	OnForceOpen        func() error
	OnPress            func(key ax.Key, mods ax.Modifiers) error
	OnType             func(text string) error
	OnSetClipboardFile func(path string) error
}

// PressedKey records one synthesized keystroke.
type PressedKey struct {
	Key  ax.Key
	Mods ax.Modifiers
}

// NewApp creates a running fake application with the given fingerprint.
func NewApp(fingerprint string) *App {
	return &App{fingerprint: fingerprint, running: true}
}

// AddWindow registers a window and wires the subtree to the app.
func (a *App) AddWindow(w *Node) *App {
	w.setApp(a)
	a.windows = append(a.windows, w)
	if a.mainWindow == nil {
		a.mainWindow = w
	}
	return a
}

// RemoveWindow drops a window from the window list.
func (a *App) RemoveWindow(w *Node) {
	for i, win := range a.windows {
		if win == w {
			a.windows = append(a.windows[:i], a.windows[i+1:]...)
			break
		}
	}
	if a.focusedWindow == w {
		a.focusedWindow = nil
	}
	if a.mainWindow == w {
		a.mainWindow = nil
	}
}

// SetFocusedWindow marks w as the focused window.
func (a *App) SetFocusedWindow(w *Node) { a.focusedWindow = w }

// SetMainWindow marks w as the main window.
func (a *App) SetMainWindow(w *Node) { a.mainWindow = w }

// SetFocusedElement marks el as the focused element.
func (a *App) SetFocusedElement(el *Node) { a.focusedElement = el }

// SetRunning sets the process-alive state.
func (a *App) SetRunning(running bool) { a.running = running }

// Activate implements ax.Application.
func (a *App) Activate() error {
	a.Activations++
	if a.OnActivate != nil {
		return a.OnActivate()
	}
	return nil
}

// Running implements ax.Application.
func (a *App) Running() bool { return a.running }

// Windows implements ax.Application.
func (a *App) Windows() []ax.Element {
	out := make([]ax.Element, 0, len(a.windows))
	for _, w := range a.windows {
		out = append(out, w)
	}
	return out
}

// FocusedWindow implements ax.Application.
func (a *App) FocusedWindow() ax.Element {
	if a.focusedWindow == nil {
		return nil
	}
	return a.focusedWindow
}

// MainWindow implements ax.Application.
func (a *App) MainWindow() ax.Element {
	if a.mainWindow == nil {
		return nil
	}
	return a.mainWindow
}

// FocusedElement implements ax.Application.
func (a *App) FocusedElement() ax.Element {
	if a.focusedElement == nil {
		return nil
	}
	return a.focusedElement
}

// Relaunch implements ax.Application.
func (a *App) Relaunch() error {
	a.Relaunches++
	if a.OnRelaunch != nil {
		return a.OnRelaunch()
	}
	a.running = true
	return nil
}

// ForceOpen implements ax.Application.
func (a *App) ForceOpen() error {
	a.ForceOpens++
	if a.OnForceOpen != nil {
		return a.OnForceOpen()
	}
	a.running = true
	return nil
}

// Press implements ax.Application.
func (a *App) Press(key ax.Key, mods ax.Modifiers) error {
	a.PressedKeys = append(a.PressedKeys, PressedKey{Key: key, Mods: mods})
	if a.OnPress != nil {
		return a.OnPress(key, mods)
	}
	return nil
}

// Type implements ax.Application.
func (a *App) Type(text string) error {
	a.TypedText = append(a.TypedText, text)
	if a.OnType != nil {
		return a.OnType(text)
	}
	if a.focusedElement != nil {
		a.focusedElement.value += text
	}
	return nil
}

// SetClipboardFile implements ax.Application.
func (a *App) SetClipboardFile(path string) error {
	a.ClipboardFiles = append(a.ClipboardFiles, path)
	if a.OnSetClipboardFile != nil {
		return a.OnSetClipboardFile(path)
	}
	return nil
}

// Fingerprint implements ax.Application.
func (a *App) Fingerprint() string { return a.fingerprint }
