package messages

import (
	"testing"

	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/ax/axtest"
)

func text(s string, x, y, w float64) *axtest.Node {
	return axtest.NewNode(ax.RoleStaticText).WithValue(s).WithFrame(x, y, w, 18)
}

// leftRow builds a row with an optional author label, a body bubble on
// the left edge, and a timestamp.
func leftRow(author, body, clock string, y float64) *axtest.Node {
	row := axtest.NewNode(ax.RoleRow).WithFrame(0, y, 380, 60)
	if author != "" {
		row.Add(text(author, 40, y+4, 60))
	}
	row.Add(text(body, 40, y+26, 160))
	if clock != "" {
		row.Add(text(clock, 210, y+40, 60))
	}
	return row
}

func rightRow(body, clock string, y float64) *axtest.Node {
	row := axtest.NewNode(ax.RoleRow).WithFrame(0, y, 380, 60)
	row.Add(text(body, 220, y+26, 150))
	if clock != "" {
		row.Add(text(clock, 150, y+40, 60))
	}
	return row
}

func dateRow(s string, y float64) *axtest.Node {
	row := axtest.NewNode(ax.RoleRow).WithFrame(0, y, 380, 30)
	row.Add(text(s, 120, y+6, 140))
	return row
}

func elements(rows ...*axtest.Node) []ax.Element {
	out := make([]ax.Element, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

func TestExtract_AuthorChainInheritance(t *testing.T) {
	rows := elements(
		leftRow("지연", "점심 먹었어?", "오전 10:00", 0),
		leftRow("", "나는 김밥", "오전 10:05", 60),
		rightRow("응 먹었어", "오전 10:06", 120),
		leftRow("", "주인 없는 말", "오전 10:07", 180),
	)

	got := Extract(rows, 0)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0].Author != "지연" || got[0].Mine {
		t.Errorf("row 0 = %+v, want explicit author 지연", got[0])
	}
	if got[1].Author != "지연" {
		t.Errorf("row 1 author = %q, want inherited 지연", got[1].Author)
	}
	if !got[2].Mine || got[2].Author != "" {
		t.Errorf("row 2 = %+v, want own message", got[2])
	}
	if got[3].Author != "" {
		t.Errorf("row 3 author = %q, want none: the chain broke at the own message", got[3].Author)
	}
}

func TestExtract_AmbiguousSideCountsAsMine(t *testing.T) {
	// Body centered in the row: neither edge wins, so the row defaults
	// to an own message and breaks any running author chain.
	centered := axtest.NewNode(ax.RoleRow).WithFrame(0, 60, 380, 60)
	centered.Add(text("가운데 메시지", 150, 86, 100))

	rows := elements(
		leftRow("지연", "먼저 온 말", "오전 9:00", 0),
		centered,
		leftRow("", "나중 온 말", "오전 9:10", 120),
	)

	got := Extract(rows, 0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if !got[1].Mine || got[1].Author != "" {
		t.Errorf("row 1 = %+v, want an unattributed own message", got[1])
	}
	if got[2].Author != "" {
		t.Errorf("row 2 author = %q, want none: the chain broke at the ambiguous row", got[2].Author)
	}
}

func TestExtract_ClockRegressionBreaksChain(t *testing.T) {
	rows := elements(
		leftRow("지연", "잘 자", "오후 11:50", 0),
		leftRow("", "좋은 아침", "오전 9:00", 60),
	)

	got := Extract(rows, 0)
	if got[0].Author != "지연" {
		t.Fatalf("row 0 author = %q", got[0].Author)
	}
	if got[1].Author != "" {
		t.Errorf("row 1 author = %q, want none: the clock went backwards", got[1].Author)
	}
}

func TestExtract_DateSeparatorResetsAnchor(t *testing.T) {
	rows := elements(
		leftRow("지연", "어제 이야기", "오후 9:00", 0),
		dateRow("2026년 8월 23일 일요일", 60),
		leftRow("", "오늘 이야기", "오후 9:30", 90),
	)

	got := Extract(rows, 0)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: the separator row is not a message", len(got))
	}
	if got[1].Author != "" {
		t.Errorf("author = %q, want none across a date separator", got[1].Author)
	}
}

func TestExtract_AttachmentRowExcluded(t *testing.T) {
	attachment := axtest.NewNode(ax.RoleRow).WithFrame(0, 0, 380, 80)
	attachment.Add(
		text("photo.jpg", 40, 10, 120),
		text("2.4 MB", 40, 32, 60),
		axtest.NewNode(ax.RoleButton).WithTitle("저장").WithFrame(40, 54, 40, 20),
	)
	rows := elements(
		attachment,
		leftRow("지연", "사진 봤어?", "오후 1:00", 80),
	)

	got := Extract(rows, 0)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: attachment stubs are not messages", len(got))
	}
	if got[0].Text != "사진 봤어?" {
		t.Errorf("text = %q", got[0].Text)
	}
}

func TestExtract_Limit(t *testing.T) {
	rows := elements(
		leftRow("지연", "하나", "오전 9:01", 0),
		leftRow("", "둘", "오전 9:02", 60),
		leftRow("", "셋", "오전 9:03", 120),
	)

	got := Extract(rows, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Text != "둘" || got[1].Text != "셋" {
		t.Errorf("got %v, want the two newest messages", got)
	}
}

func TestAnalyzeRow_TruncatedBodyPromotedFromLink(t *testing.T) {
	full := "안녕하세요 여러분 오늘 회의는 3시로 옮겼습니다"
	row := axtest.NewNode(ax.RoleRow).WithFrame(0, 0, 380, 60)
	row.Add(
		text("안녕하세요 여러분 오늘…", 40, 10, 200),
		axtest.NewNode(ax.RoleLink).WithTitle(full).WithFrame(40, 10, 200, 18),
	)

	an := AnalyzeRow(row)
	if an.Body != full {
		t.Errorf("body = %q, want the link's full text", an.Body)
	}
}

func TestAnalyzeRow_SideFromProfileImage(t *testing.T) {
	row := axtest.NewNode(ax.RoleRow).WithFrame(0, 0, 380, 60)
	row.Add(
		axtest.NewNode(ax.RoleImage).WithFrame(4, 10, 32, 32),
		text("왼쪽 메시지", 50, 20, 150),
	)
	if an := AnalyzeRow(row); an.Side != SideLeft {
		t.Errorf("side = %v, want left: image sits left of the bubble", an.Side)
	}

	mine := axtest.NewNode(ax.RoleRow).WithFrame(0, 0, 380, 60)
	mine.Add(
		text("오른쪽 메시지", 100, 20, 150),
		axtest.NewNode(ax.RoleImage).WithFrame(344, 10, 32, 32),
	)
	if an := AnalyzeRow(mine); an.Side != SideRight {
		t.Errorf("side = %v, want right", an.Side)
	}
}

func TestAnalyzeRow_SideFromPosition(t *testing.T) {
	if an := AnalyzeRow(leftRow("", "왼쪽", "", 0)); an.Side != SideLeft {
		t.Errorf("side = %v, want left", an.Side)
	}
	if an := AnalyzeRow(rightRow("오른쪽", "", 0)); an.Side != SideRight {
		t.Errorf("side = %v, want right", an.Side)
	}
}

func TestAnalyzeRow_MetadataTokensIgnored(t *testing.T) {
	row := axtest.NewNode(ax.RoleRow).WithFrame(0, 0, 380, 60)
	row.Add(
		text("1", 210, 26, 12),
		text("진짜 본문", 40, 26, 120),
		text("오후 2:30", 210, 40, 60),
	)

	an := AnalyzeRow(row)
	if an.Body != "진짜 본문" {
		t.Errorf("body = %q: badges and clocks must not win", an.Body)
	}
	if an.TimeRaw != "오후 2:30" {
		t.Errorf("time = %q", an.TimeRaw)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"오전 10:23", 623},
		{"오후 3:05", 905},
		{"오후 12:10", 730},
		{"오전 12:01", 1},
		{"10:23 AM", 623},
		{"11:40 PM", 1420},
		{"12:00", 720},
		{"not a time", -1},
		{"", -1},
	}
	for _, c := range cases {
		if got := parseClock(c.in); got != c.want {
			t.Errorf("parseClock(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
