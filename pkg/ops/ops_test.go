package ops

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/ax/axtest"
	"github.com/openclaw/kmsg/pkg/chat"
	"github.com/openclaw/kmsg/pkg/core"
	"github.com/openclaw/kmsg/pkg/pathcache"
	"github.com/openclaw/kmsg/pkg/window"
)

func testEngine(t *testing.T, app *axtest.App, opts Options) *Engine {
	t.Helper()

	wcfg := window.Config{
		PollInterval:          time.Millisecond,
		FastProbeTimeout:      10 * time.Millisecond,
		ActivateRescanTimeout: 10 * time.Millisecond,
		RelaunchTimeout:       10 * time.Millisecond,
		ForceOpenTimeout:      10 * time.Millisecond,
	}
	ccfg := chat.DefaultConfig()
	ccfg.PollInterval = time.Millisecond
	ccfg.FocusTimeout = 10 * time.Millisecond
	ccfg.TypeTimeout = 10 * time.Millisecond
	ccfg.ResultsTimeout = 20 * time.Millisecond
	ccfg.WideTimeout = 20 * time.Millisecond
	ccfg.OpenTimeout = 30 * time.Millisecond
	ccfg.CloseTimeout = 20 * time.Millisecond

	store := pathcache.NewStore(
		filepath.Join(t.TempDir(), "axpaths.json"), app.Fingerprint(), pathcache.Options{})
	resolver := chat.NewResolver(app, window.NewController(app, wcfg), store, ccfg)

	if opts.SendTimeout == 0 {
		opts.SendTimeout = 50 * time.Millisecond
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	return NewEngine(app, resolver, opts)
}

func msgText(s string, x, y float64) *axtest.Node {
	return axtest.NewNode(ax.RoleStaticText).WithValue(s).WithFrame(x, y, 150, 18)
}

func messageRow(author, body, clock string, y float64) *axtest.Node {
	row := axtest.NewNode(ax.RoleRow).WithFrame(0, y, 380, 60)
	if author != "" {
		row.Add(msgText(author, 40, y+4))
	}
	row.Add(msgText(body, 40, y+26))
	if clock != "" {
		row.Add(msgText(clock, 210, y+40))
	}
	return row
}

// chatWindow builds a complete chat window: transcript with rows above
// a message input.
func chatWindow(title string, rows ...*axtest.Node) (win, input *axtest.Node) {
	table := axtest.NewNode(ax.RoleTable).WithFrame(10, 50, 380, 400)
	for _, r := range rows {
		table.Add(r)
	}
	input = axtest.NewNode(ax.RoleTextArea).
		WithIdentifier("message_input").
		WithFrame(10, 500, 380, 60)
	win = axtest.NewNode(ax.RoleWindow).
		WithTitle(title).
		WithFrame(0, 0, 400, 600).
		Add(axtest.NewNode(ax.RoleGroup).WithFrame(0, 40, 400, 560).Add(
			axtest.NewNode(ax.RoleScrollArea).WithFrame(10, 50, 380, 400).Add(table),
			axtest.NewNode(ax.RoleGroup).WithFrame(0, 490, 400, 80).Add(input),
		))
	return win, input
}

func TestRead_ExistingWindow(t *testing.T) {
	app := axtest.NewApp("kakao-3.6.5")
	win, _ := chatWindow("지연",
		messageRow("지연", "점심 먹었어?", "오전 10:00", 50),
		messageRow("", "나는 김밥", "오전 10:05", 110),
	)
	app.AddWindow(win)
	app.SetFocusedWindow(win)

	got, err := testEngine(t, app, Options{}).Read("지연", 10)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Chat != "지연" || got.Count != 2 {
		t.Errorf("got chat=%q count=%d, want 지연/2", got.Chat, got.Count)
	}
	if got.Messages[0].Author != "지연" || got.Messages[1].Author != "지연" {
		t.Errorf("authors = %q/%q, want chained 지연", got.Messages[0].Author, got.Messages[1].Author)
	}
	if got.FetchedAt.IsZero() {
		t.Error("fetched_at must be set")
	}
	if len(app.Windows()) != 1 {
		t.Error("an already-open window must not be closed")
	}
}

func TestRead_Limit(t *testing.T) {
	app := axtest.NewApp("kakao-3.6.5")
	win, _ := chatWindow("지연",
		messageRow("지연", "하나", "오전 9:01", 50),
		messageRow("", "둘", "오전 9:02", 110),
		messageRow("", "셋", "오전 9:03", 170),
	)
	app.AddWindow(win)
	app.SetFocusedWindow(win)

	got, err := testEngine(t, app, Options{}).Read("지연", 2)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Count != 2 || got.Messages[0].Text != "둘" {
		t.Errorf("got count=%d first=%q, want the two newest", got.Count, got.Messages[0].Text)
	}
}

// searchableApp wires a list window whose search opens the given chat
// window, plus Cmd+W close support.
func searchableApp(chatWin *axtest.Node) *axtest.App {
	app := axtest.NewApp("kakao-3.6.5")
	field := axtest.NewNode(ax.RoleTextField).
		WithIdentifier("search_input").
		WithFrame(10, 10, 300, 30)
	list := axtest.NewNode(ax.RoleWindow).
		WithTitle("KakaoTalk").
		WithIdentifier("chat_list").
		WithFrame(0, 0, 400, 600).
		Add(field)
	app.AddWindow(list)
	app.SetFocusedWindow(list)

	row := axtest.NewNode(ax.RoleRow).
		WithTitle(chatWin.Title()).
		WithFrame(10, 60, 380, 40).
		WithActions(ax.ActionPress)
	field.OnSetValue = func(v string) error {
		field.WithValue(v)
		if v != "" {
			list.Add(row)
		}
		return nil
	}
	row.OnPerform = func(string) error {
		app.AddWindow(chatWin)
		return nil
	}
	app.OnPress = func(key ax.Key, mods ax.Modifiers) error {
		if key == ax.KeyW && mods.Command {
			app.RemoveWindow(chatWin)
		}
		return nil
	}
	return app
}

func TestRead_ClosesOpenedWindow(t *testing.T) {
	win, _ := chatWindow("지연", messageRow("지연", "안녕", "오전 9:00", 50))
	app := searchableApp(win)

	got, err := testEngine(t, app, Options{}).Read("지연", 10)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Count != 1 {
		t.Errorf("count = %d, want 1", got.Count)
	}
	for _, w := range app.Windows() {
		if ax.Same(w, win) {
			t.Error("the engine-opened window should be closed after the read")
		}
	}
}

func TestRead_KeepWindow(t *testing.T) {
	win, _ := chatWindow("지연", messageRow("지연", "안녕", "오전 9:00", 50))
	app := searchableApp(win)

	if _, err := testEngine(t, app, Options{KeepWindow: true}).Read("지연", 10); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	found := false
	for _, w := range app.Windows() {
		if ax.Same(w, win) {
			found = true
		}
	}
	if !found {
		t.Error("keep-window must leave the opened window on screen")
	}
}

func TestWith_PerCallOverrides(t *testing.T) {
	win, _ := chatWindow("지연", messageRow("지연", "안녕", "오전 9:00", 50))
	app := searchableApp(win)

	base := testEngine(t, app, Options{})
	keep := true
	if _, err := base.With(Overrides{KeepWindow: &keep}).Read("지연", 10); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	found := false
	for _, w := range app.Windows() {
		if ax.Same(w, win) {
			found = true
		}
	}
	if !found {
		t.Error("the per-call override should leave the opened window on screen")
	}
	if base.opts.KeepWindow {
		t.Error("a per-call override must not mutate the base engine")
	}
}

func TestSend_ConfirmedByInputClearing(t *testing.T) {
	app := axtest.NewApp("kakao-3.6.5")
	win, input := chatWindow("지연")
	app.AddWindow(win)
	app.SetFocusedWindow(win)

	app.OnPress = func(key ax.Key, mods ax.Modifiers) error {
		if key == ax.KeyReturn && !mods.Command {
			input.WithValue("")
		}
		return nil
	}

	if err := testEngine(t, app, Options{}).Send("지연", "저녁 먹자"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if input.Value() != "" {
		t.Error("the input should be empty after a confirmed send")
	}
	if len(app.PressedKeys) == 0 {
		t.Error("Return should have been pressed")
	}
}

func TestSend_UnclearedInputIsEnterNotEffective(t *testing.T) {
	app := axtest.NewApp("kakao-3.6.5")
	win, _ := chatWindow("지연")
	app.AddWindow(win)
	app.SetFocusedWindow(win)

	// Return is swallowed; the text stays in the input.
	err := testEngine(t, app, Options{}).Send("지연", "저녁 먹자")
	if !errors.Is(err, core.ErrEnterNotEffective) {
		t.Fatalf("err = %v, want ENTER_NOT_EFFECTIVE", err)
	}
}

func TestSendImage_PasteAndConfirm(t *testing.T) {
	app := axtest.NewApp("kakao-3.6.5")
	win, _ := chatWindow("지연")
	app.AddWindow(win)
	app.SetFocusedWindow(win)

	img := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(img, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}

	confirm := axtest.NewNode(ax.RoleButton).
		WithTitle("전송").
		WithFrame(150, 300, 60, 24).
		WithActions(ax.ActionPress)
	dialog := axtest.NewNode(ax.RoleWindow).
		WithFrame(100, 200, 200, 160).
		Add(confirm)
	app.OnPress = func(key ax.Key, mods ax.Modifiers) error {
		if key == ax.KeyV && mods.Command {
			app.AddWindow(dialog)
		}
		return nil
	}

	if err := testEngine(t, app, Options{}).SendImage("지연", img); err != nil {
		t.Fatalf("SendImage failed: %v", err)
	}
	if len(app.ClipboardFiles) != 1 || app.ClipboardFiles[0] != img {
		t.Errorf("clipboard files = %v, want the image path", app.ClipboardFiles)
	}
	if len(confirm.Performed) == 0 {
		t.Error("the confirmation button should have been pressed")
	}
}

func TestSendImage_MissingFile(t *testing.T) {
	app := axtest.NewApp("kakao-3.6.5")

	err := testEngine(t, app, Options{}).SendImage("지연", "/nonexistent/photo.png")
	if core.CodeOf(err) != "FILE_NOT_FOUND" {
		t.Fatalf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestStatus(t *testing.T) {
	app := axtest.NewApp("kakao-3.6.5")
	st := testEngine(t, app, Options{}).Status()
	if !st.Running || st.WindowAvailable {
		t.Errorf("got %+v, want running without windows", st)
	}

	app.AddWindow(axtest.NewNode(ax.RoleWindow).WithTitle("KakaoTalk").WithFrame(0, 0, 400, 600))
	st = testEngine(t, app, Options{}).Status()
	if !st.WindowAvailable {
		t.Error("a framed window should report available")
	}
	if st.Fingerprint != "kakao-3.6.5" {
		t.Errorf("fingerprint = %q", st.Fingerprint)
	}
	if app.Activations != 0 {
		t.Error("status must not activate the app")
	}
}
