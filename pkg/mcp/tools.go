package mcp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openclaw/kmsg/pkg/core"
	"github.com/openclaw/kmsg/pkg/logger"
	"github.com/openclaw/kmsg/pkg/ops"
)

// hints give the calling agent an actionable next step per error code.
var hints = map[string]string{
	"WINDOW_NOT_READY":     "the app has no usable window; retry with deep_recovery=true",
	"SEARCH_MISS":          "no contact or chat matched; check the name's spelling",
	"SEARCH_FIELD_MISSING": "the contact search field was not found; the app layout may have changed",
	"INPUT_FIELD_MISSING":  "the message input was not found in the chat window",
	"TRANSCRIPT_MISSING":   "the chat window has no readable transcript",
	"OPEN_NOT_CONFIRMED":   "the chat window did not open; retry, or open the chat manually",
	"ENTER_NOT_EFFECTIVE":  "the send could not be confirmed; verify manually before retrying",
	"FILE_NOT_FOUND":       "the image path does not exist on this machine",
}

// okPayload wraps a successful result with call latency.
func okPayload(result interface{}, started time.Time) map[string]interface{} {
	return map[string]interface{}{
		"ok":     true,
		"result": result,
		"meta":   meta(started),
	}
}

// errPayload converts an engine failure into a structured tool result.
// Failures are data for the calling agent, not protocol errors.
func errPayload(err error, started time.Time) map[string]interface{} {
	code := core.CodeOf(err)
	if code == "" {
		code = "INTERNAL"
	}
	e := map[string]interface{}{
		"code":    code,
		"message": err.Error(),
	}
	if hint, ok := hints[code]; ok {
		e["hint"] = hint
	}
	return map[string]interface{}{
		"ok":    false,
		"error": e,
		"meta":  meta(started),
	}
}

func meta(started time.Time) map[string]interface{} {
	return map[string]interface{}{
		"latency_ms": time.Since(started).Milliseconds(),
	}
}

func stringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %s must be a non-empty string", key)
	}
	return s, nil
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func boolArg(args map[string]interface{}, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// confirmationGate handles the pre-send confirmation protocol: sends go
// through by default, and confirm=true turns the call into a blocked
// request the agent must re-issue after getting user approval.
func confirmationGate(args map[string]interface{}, started time.Time) map[string]interface{} {
	if !boolArg(args, "confirm") {
		return nil
	}
	return map[string]interface{}{
		"ok": false,
		"error": map[string]interface{}{
			"code":    "CONFIRMATION_REQUIRED",
			"message": "blocked because confirm=true requests pre-send confirmation",
			"hint":    "ask the user for explicit approval, then call again with confirm=false or omitted",
		},
		"meta": meta(started),
	}
}

// engineFor applies the per-call option arguments: deep_recovery and
// keep_window derive a one-call engine, trace_ax turns on the stderr
// resolution trace.
func engineFor(engine *ops.Engine, args map[string]interface{}) *ops.Engine {
	if boolArg(args, "trace_ax") {
		logger.EnableTrace(os.Stderr)
	}
	var o ops.Overrides
	if v, ok := args["deep_recovery"].(bool); ok {
		o.DeepRecovery = &v
	}
	if v, ok := args["keep_window"].(bool); ok {
		o.KeepWindow = &v
	}
	return engine.With(o)
}

// optionProperties is the schema fragment the per-call options share.
func optionProperties() map[string]interface{} {
	return map[string]interface{}{
		"deep_recovery": map[string]interface{}{
			"type":        "boolean",
			"description": "Permit app relaunch and forced reopen when no window is usable",
		},
		"keep_window": map[string]interface{}{
			"type":        "boolean",
			"description": "Leave a chat window this call opened on screen",
		},
		"trace_ax": map[string]interface{}{
			"type":        "boolean",
			"description": "Trace accessibility resolution stages to stderr",
		},
	}
}

// ReadTool reads the latest messages of a chat.
type ReadTool struct {
	engine *ops.Engine
}

func (t *ReadTool) Name() string { return "kmsg_read" }

func (t *ReadTool) Description() string {
	return "Read the latest messages of a KakaoTalk chat. Returns {chat, fetched_at, count, messages[]}."
}

func (t *ReadTool) InputSchema() map[string]interface{} {
	props := optionProperties()
	props["chat"] = map[string]interface{}{
		"type":        "string",
		"description": "Chat or contact name to read",
	}
	props["limit"] = map[string]interface{}{
		"type":        "integer",
		"description": "Maximum number of messages (default 30)",
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"chat"},
	}
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	started := time.Now()
	chatName, err := stringArg(args, "chat")
	if err != nil {
		return nil, err
	}

	result, err := engineFor(t.engine, args).Read(chatName, intArg(args, "limit", ops.DefaultReadLimit))
	if err != nil {
		return errPayload(err, started), nil
	}
	return okPayload(result, started), nil
}

// SendTool sends a text message.
type SendTool struct {
	engine *ops.Engine
}

func (t *SendTool) Name() string { return "kmsg_send" }

func (t *SendTool) Description() string {
	return "Send a text message to a KakaoTalk chat. Sends immediately by default; confirm=true requests a confirmation step instead."
}

func (t *SendTool) InputSchema() map[string]interface{} {
	props := optionProperties()
	props["chat"] = map[string]interface{}{
		"type":        "string",
		"description": "Chat or contact name to send to",
	}
	props["text"] = map[string]interface{}{
		"type":        "string",
		"description": "Message text",
	}
	props["confirm"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Set true to block the send and require explicit user approval first",
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"chat", "text"},
	}
}

func (t *SendTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	started := time.Now()
	chatName, err := stringArg(args, "chat")
	if err != nil {
		return nil, err
	}
	text, err := stringArg(args, "text")
	if err != nil {
		return nil, err
	}
	if gate := confirmationGate(args, started); gate != nil {
		return gate, nil
	}

	if err := engineFor(t.engine, args).Send(chatName, text); err != nil {
		return errPayload(err, started), nil
	}
	return okPayload(map[string]interface{}{"sent": true, "chat": chatName}, started), nil
}

// SendImageTool sends an image file.
type SendImageTool struct {
	engine *ops.Engine
}

func (t *SendImageTool) Name() string { return "kmsg_send_image" }

func (t *SendImageTool) Description() string {
	return "Send an image file to a KakaoTalk chat via the clipboard. Sends immediately by default; confirm=true requests a confirmation step instead."
}

func (t *SendImageTool) InputSchema() map[string]interface{} {
	props := optionProperties()
	props["chat"] = map[string]interface{}{
		"type":        "string",
		"description": "Chat or contact name to send to",
	}
	props["path"] = map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
	props["confirm"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Set true to block the send and require explicit user approval first",
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"chat", "path"},
	}
}

func (t *SendImageTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	started := time.Now()
	chatName, err := stringArg(args, "chat")
	if err != nil {
		return nil, err
	}
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	if gate := confirmationGate(args, started); gate != nil {
		return gate, nil
	}

	if err := engineFor(t.engine, args).SendImage(chatName, path); err != nil {
		return errPayload(err, started), nil
	}
	return okPayload(map[string]interface{}{"sent": true, "chat": chatName, "path": path}, started), nil
}

// StatusTool probes readiness.
type StatusTool struct {
	engine *ops.Engine
}

func (t *StatusTool) Name() string { return "kmsg_status" }

func (t *StatusTool) Description() string {
	return "Report whether the KakaoTalk app is running and has a usable window."
}

func (t *StatusTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *StatusTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	started := time.Now()
	return okPayload(t.engine.Status(), started), nil
}
