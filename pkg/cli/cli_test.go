package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	urfave "github.com/urfave/cli/v2"

	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/ax/axtest"
	"github.com/openclaw/kmsg/pkg/config"
)

// runApp executes the CLI against a fake application and captures its
// output. The exit handler is neutered so exit-coded errors come back
// as values.
func runApp(t *testing.T, fake *axtest.App, args ...string) (string, error) {
	t.Helper()
	config.ResetHome()
	t.Setenv("KMSG_HOME", t.TempDir())

	var buf bytes.Buffer
	app := NewApp(func() (ax.Application, error) { return fake, nil })
	app.Writer = &buf
	app.ErrWriter = &buf
	app.ExitErrHandler = func(*urfave.Context, error) {}

	err := app.Run(append([]string{"kmsg"}, args...))
	return buf.String(), err
}

func chatWindow(title, body string) *axtest.Node {
	row := axtest.NewNode(ax.RoleRow).WithFrame(0, 50, 380, 60).Add(
		axtest.NewNode(ax.RoleStaticText).WithValue(body).WithFrame(40, 76, 150, 18),
	)
	return axtest.NewNode(ax.RoleWindow).
		WithTitle(title).
		WithFrame(0, 0, 400, 600).
		Add(axtest.NewNode(ax.RoleGroup).WithFrame(0, 40, 400, 560).Add(
			axtest.NewNode(ax.RoleScrollArea).WithFrame(10, 50, 380, 400).Add(
				axtest.NewNode(ax.RoleTable).WithFrame(10, 50, 380, 400).Add(row),
			),
			axtest.NewNode(ax.RoleGroup).WithFrame(0, 490, 400, 80).Add(
				axtest.NewNode(ax.RoleTextArea).WithIdentifier("message_input").WithFrame(10, 500, 380, 60),
			),
		))
}

func TestStatusCommand_JSON(t *testing.T) {
	fake := axtest.NewApp("kakao-3.6.5")
	fake.AddWindow(chatWindow("KakaoTalk", "hello"))

	out, err := runApp(t, fake, "--json", "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}

	var st struct {
		Running         bool   `json:"running"`
		WindowAvailable bool   `json:"window_available"`
		Fingerprint     string `json:"fingerprint"`
	}
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !st.Running || !st.WindowAvailable || st.Fingerprint != "kakao-3.6.5" {
		t.Errorf("status = %+v", st)
	}
}

func TestReadCommand_JSON(t *testing.T) {
	fake := axtest.NewApp("kakao-3.6.5")
	win := chatWindow("지연", "점심 먹었어?")
	fake.AddWindow(win)
	fake.SetFocusedWindow(win)

	out, err := runApp(t, fake, "--json", "read", "지연")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var payload struct {
		Chat     string `json:"chat"`
		Count    int    `json:"count"`
		Messages []struct {
			Text string `json:"text"`
		} `json:"messages"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if payload.Chat != "지연" || payload.Count != 1 || payload.Messages[0].Text != "점심 먹었어?" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestReadCommand_HumanOutput(t *testing.T) {
	fake := axtest.NewApp("kakao-3.6.5")
	win := chatWindow("지연", "점심 먹었어?")
	fake.AddWindow(win)
	fake.SetFocusedWindow(win)

	out, err := runApp(t, fake, "read", "지연")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(out, "점심 먹었어?") {
		t.Errorf("human output missing message text:\n%s", out)
	}
}

func TestSendCommand(t *testing.T) {
	fake := axtest.NewApp("kakao-3.6.5")
	win := chatWindow("지연", "이전 메시지")
	fake.AddWindow(win)
	fake.SetFocusedWindow(win)

	fake.OnPress = func(key ax.Key, mods ax.Modifiers) error {
		if key == ax.KeyReturn && fake.FocusedElement() != nil {
			fake.FocusedElement().(*axtest.Node).WithValue("")
		}
		return nil
	}

	out, err := runApp(t, fake, "--json", "send", "지연", "저녁 먹자")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.Contains(out, `"ok": true`) {
		t.Errorf("output = %s", out)
	}
}

func TestReadCommand_UsageError(t *testing.T) {
	fake := axtest.NewApp("kakao-3.6.5")

	_, err := runApp(t, fake, "read")
	if err == nil {
		t.Fatal("read without a chat argument should fail")
	}
	var coder urfave.ExitCoder
	if !errors.As(err, &coder) || coder.ExitCode() != 2 {
		t.Errorf("err = %v, want usage exit code 2", err)
	}
}

func TestCacheExportCommand(t *testing.T) {
	fake := axtest.NewApp("kakao-3.6.5")

	out, err := runApp(t, fake, "cache", "export")
	if err != nil {
		t.Fatalf("cache export failed: %v", err)
	}
	if !strings.Contains(out, `"schemaVersion": 1`) {
		t.Errorf("export output missing schema:\n%s", out)
	}
	if !strings.Contains(out, "kakao-3.6.5") {
		t.Errorf("export output missing fingerprint:\n%s", out)
	}
}

func TestConnectFailurePropagates(t *testing.T) {
	config.ResetHome()
	t.Setenv("KMSG_HOME", t.TempDir())

	var buf bytes.Buffer
	app := NewApp(func() (ax.Application, error) { return nil, ax.ErrNoProvider })
	app.Writer = &buf
	app.ExitErrHandler = func(*urfave.Context, error) {}

	err := app.Run([]string{"kmsg", "status"})
	if !errors.Is(err, ax.ErrNoProvider) {
		t.Fatalf("err = %v, want the bridge error", err)
	}
}
