// Package ax defines the accessibility-tree surface the resolution engine
// drives. The tree is owned by the OS and the target application: every
// handle is an opaque, possibly-stale reference, compared by platform
// identity and never cached beyond a single resolution attempt.
package ax

// Common accessibility roles of the target application.
const (
	RoleApplication = "AXApplication"
	RoleWindow      = "AXWindow"
	RoleButton      = "AXButton"
	RoleTextField   = "AXTextField"
	RoleTextArea    = "AXTextArea"
	RoleStaticText  = "AXStaticText"
	RoleScrollArea  = "AXScrollArea"
	RoleTable       = "AXTable"
	RoleOutline     = "AXOutline"
	RoleList        = "AXList"
	RoleGroup       = "AXGroup"
	RoleRow         = "AXRow"
	RoleCell        = "AXCell"
	RoleImage       = "AXImage"
	RoleLink        = "AXLink"
)

// Actions an element may support.
const (
	ActionPress   = "AXPress"
	ActionConfirm = "AXConfirm"
	ActionRaise   = "AXRaise"
	ActionCancel  = "AXCancel"
)

// Key identifies a synthesizable key.
type Key string

// Keys the engine synthesizes.
const (
	KeyReturn Key = "return"
	KeyEscape Key = "escape"
	KeyDelete Key = "delete"
	KeyW      Key = "w"
	KeyA      Key = "a"
	KeyV      Key = "v"
)

// Modifiers describes the modifier keys held during a synthesized keystroke.
type Modifiers struct {
	Command bool
	Shift   bool
	Option  bool
	Control bool
}

// Element is an opaque handle into the live accessibility tree.
//
// All reads may observe stale state: the tree belongs to another process.
// Implementations return zero values (empty string, nil, false) for
// attributes the underlying element no longer exposes.
type Element interface {
	// ID is the platform identity token. Two handles refer to the same
	// underlying element exactly when their IDs are equal.
	ID() string

	Role() string
	Subrole() string
	Title() string
	Value() string
	Identifier() string

	// Frame returns the element's bounds in screen coordinates.
	// ok is false when the handle is stale or the element has no frame.
	Frame() (r Rect, ok bool)

	Enabled() bool
	Focused() bool

	Parent() Element
	Children() []Element

	// Actions lists the names of actions the element supports.
	Actions() []string
	// Perform invokes a named action on the element.
	Perform(action string) error

	// SetValue assigns the element's value directly (no synthesized input).
	SetValue(value string) error
	// Focus requests keyboard focus for the element.
	Focus() error
	// Selected reports the element's selection state, for result rows.
	Selected() bool
	// Select sets the element's selection state.
	Select() error
}

// Application is the running target application.
type Application interface {
	// Activate brings the application to the foreground.
	Activate() error
	// Running reports whether the application process is alive.
	Running() bool

	Windows() []Element
	FocusedWindow() Element
	MainWindow() Element
	FocusedElement() Element

	// Relaunch terminates and relaunches the installed bundle.
	Relaunch() error
	// ForceOpen opens the installed bundle even if the process is wedged.
	ForceOpen() error

	// Press synthesizes an application-targeted keystroke.
	Press(key Key, mods Modifiers) error
	// Type synthesizes per-character text input to the focused element.
	Type(text string) error

	// SetClipboardFile places a file reference on the system clipboard,
	// ready to be pasted as an attachment.
	SetClipboardFile(path string) error

	// Fingerprint is a short derived string (bundle identifier plus
	// version) identifying the installed application build. The path
	// cache is invalidated wholesale when it changes.
	Fingerprint() string
}

// Same reports whether two handles refer to the same underlying element.
// Either side may be nil.
func Same(a, b Element) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID() == b.ID()
}

// IndexInParent returns el's position among its parent's children, or -1
// when el has no parent or is no longer listed (stale handle).
func IndexInParent(el Element) int {
	parent := el.Parent()
	if parent == nil {
		return -1
	}
	for i, child := range parent.Children() {
		if Same(child, el) {
			return i
		}
	}
	return -1
}
