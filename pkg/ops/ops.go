// Package ops implements the operations exposed over the CLI and MCP
// surfaces: reading a chat's transcript, sending text and images, and
// probing readiness. Each operation composes the window, chat and
// message layers and owns its cleanup.
package ops

import (
	"os"
	"time"

	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/chat"
	"github.com/openclaw/kmsg/pkg/core"
	"github.com/openclaw/kmsg/pkg/logger"
	"github.com/openclaw/kmsg/pkg/messages"
	"github.com/openclaw/kmsg/pkg/poll"
)

// DefaultReadLimit bounds a read when the caller does not pass one.
const DefaultReadLimit = 30

// transcriptRowLimits bounds the row scan of one read.
var transcriptRowLimits = ax.Limits{
	MaxResults: 400,
	MaxVisits:  4000,
	Roles:      []string{ax.RoleRow},
}

// Options tunes one engine instance.
type Options struct {
	// KeepWindow leaves windows the engine opened on screen after the
	// operation finishes.
	KeepWindow bool
	// SendTimeout bounds the post-send verification poll.
	SendTimeout  time.Duration
	PollInterval time.Duration
}

// Engine executes operations against one application.
type Engine struct {
	app      ax.Application
	resolver *chat.Resolver
	opts     Options
}

// NewEngine builds an engine around an already-constructed resolver.
func NewEngine(app ax.Application, resolver *chat.Resolver, opts Options) *Engine {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 3 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	return &Engine{app: app, resolver: resolver, opts: opts}
}

// Overrides adjusts engine behavior for a single call. Nil fields keep
// the engine's configured defaults.
type Overrides struct {
	DeepRecovery *bool
	KeepWindow   *bool
}

// With returns an engine applying per-call overrides. The receiver is
// unchanged; the derived engine shares the application handle and the
// resolver's cache.
func (e *Engine) With(o Overrides) *Engine {
	derived := *e
	if o.KeepWindow != nil {
		derived.opts.KeepWindow = *o.KeepWindow
	}
	if o.DeepRecovery != nil {
		derived.resolver = e.resolver.WithDeepRecovery(*o.DeepRecovery)
	}
	return &derived
}

// ReadResult is the payload of one transcript read.
type ReadResult struct {
	Chat      string             `json:"chat"`
	FetchedAt time.Time          `json:"fetched_at"`
	Count     int                `json:"count"`
	Messages  []messages.Message `json:"messages"`
}

// Read resolves the chat, extracts up to limit messages from the end of
// its transcript, and closes the window again if the engine opened it.
func (e *Engine) Read(chatName string, limit int) (*ReadResult, error) {
	if limit <= 0 {
		limit = DefaultReadLimit
	}

	res, err := e.resolver.Resolve(chatName)
	if err != nil {
		return nil, err
	}
	defer e.cleanup(res)

	ctx, err := e.resolver.ResolveMessageContext(res.Window)
	if err != nil {
		return nil, err
	}

	rows := ax.Find(ctx.Transcript, nil, transcriptRowLimits)
	msgs := messages.Extract(rows, limit)

	return &ReadResult{
		Chat:      chatName,
		FetchedAt: time.Now(),
		Count:     len(msgs),
		Messages:  msgs,
	}, nil
}

// Send writes text into the chat's message input and confirms the send
// by the input clearing.
func (e *Engine) Send(chatName, text string) error {
	res, err := e.resolver.Resolve(chatName)
	if err != nil {
		return err
	}
	defer e.cleanup(res)

	ctx, err := e.resolver.ResolveMessageContext(res.Window)
	if err != nil {
		return err
	}

	if err := e.resolver.EnterText(ctx.Input, text); err != nil {
		return err
	}
	if err := e.app.Press(ax.KeyReturn, ax.Modifiers{}); err != nil {
		return core.ErrEnterNotEffective.WithCause(err)
	}

	// The input emptying is the only observable proof the message left.
	if !poll.Until(e.opts.SendTimeout, e.opts.PollInterval, func() bool {
		return ctx.Input.Value() == ""
	}) {
		return core.ErrEnterNotEffective.WithDetails(map[string]interface{}{
			"residual": ctx.Input.Value(),
		})
	}
	return nil
}

// SendImage pastes a file from the clipboard into the chat and confirms
// the attach dialog.
func (e *Engine) SendImage(chatName, path string) error {
	if _, err := os.Stat(path); err != nil {
		return core.New(core.CategoryResolution, "FILE_NOT_FOUND", "image file does not exist").
			WithCause(err).
			WithDetails(map[string]interface{}{"path": path})
	}

	res, err := e.resolver.Resolve(chatName)
	if err != nil {
		return err
	}
	defer e.cleanup(res)

	ctx, err := e.resolver.ResolveMessageContext(res.Window)
	if err != nil {
		return err
	}
	if err := e.resolver.FocusVerified(ctx.Input); err != nil {
		return err
	}

	if err := e.app.SetClipboardFile(path); err != nil {
		return core.New(core.CategoryResolution, "CLIPBOARD_FAIL", "file could not be placed on the clipboard").
			WithCause(err)
	}
	if err := e.app.Press(ax.KeyV, ax.Modifiers{Command: true}); err != nil {
		return core.ErrEnterNotEffective.WithCause(err)
	}

	// Pasting a file raises a confirmation sheet. Press its confirm
	// button when one shows up; fall back to Return otherwise.
	if !e.confirmAttachDialog() {
		if err := e.app.Press(ax.KeyReturn, ax.Modifiers{}); err != nil {
			return core.ErrEnterNotEffective.WithCause(err)
		}
	}
	return nil
}

// confirmAttachDialog looks for the paste confirmation dialog across
// all windows and presses its confirm button.
func (e *Engine) confirmAttachDialog() bool {
	confirmed := false
	poll.Until(e.opts.SendTimeout, e.opts.PollInterval, func() bool {
		for _, win := range e.app.Windows() {
			btn := ax.FindFirst(win, func(el ax.Element) bool {
				switch el.Title() {
				case "전송", "확인", "Send", "OK":
					return true
				}
				return false
			}, ax.Limits{MaxVisits: 120, Roles: []string{ax.RoleButton}})
			if btn == nil {
				continue
			}
			if err := btn.Perform(ax.ActionPress); err == nil {
				confirmed = true
				return true
			}
		}
		return false
	})
	return confirmed
}

// StatusResult is the readiness probe payload.
type StatusResult struct {
	Running         bool   `json:"running"`
	WindowAvailable bool   `json:"window_available"`
	Fingerprint     string `json:"fingerprint"`
}

// Status reports process and window availability without side effects:
// no activation, no recovery.
func (e *Engine) Status() *StatusResult {
	st := &StatusResult{
		Running:     e.app.Running(),
		Fingerprint: e.app.Fingerprint(),
	}
	for _, win := range e.app.Windows() {
		if _, ok := win.Frame(); ok {
			st.WindowAvailable = true
			break
		}
	}
	return st
}

// cleanup closes a window the engine opened, unless the caller asked to
// keep it. Close failures do not fail the operation.
func (e *Engine) cleanup(res *chat.Result) {
	if !res.Opened || e.opts.KeepWindow {
		return
	}
	if err := e.resolver.CloseWindow(res.Window); err != nil {
		logger.Warn("ops: close after operation: %v", err)
	}
}
