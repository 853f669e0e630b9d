// Package messages turns transcript rows into structured messages. The
// tree exposes each visual row as a grab bag of static texts, links and
// images with no explicit sender field, so authorship is reconstructed
// from layout, metadata tokens and message order.
package messages

import (
	"regexp"
	"strings"

	"github.com/openclaw/kmsg/pkg/ax"
)

// Side is which edge of the transcript a row's bubble hangs on. The
// target app renders the user's own messages on the right.
type Side int

const (
	SideUnknown Side = iota
	SideLeft
	SideRight
)

// String returns the string representation of Side.
func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "unknown"
	}
}

// Message is one extracted chat message.
type Message struct {
	Author string `json:"author,omitempty"`
	Time   string `json:"time,omitempty"`
	Text   string `json:"text"`
	Mine   bool   `json:"mine"`
}

var (
	// "오전 10:23", "오후 3:05", "10:23 AM", bare "10:23".
	timeToken = regexp.MustCompile(`^(오전|오후)?\s*\d{1,2}:\d{2}\s*(AM|PM|am|pm)?$`)

	// Unread-count badges are one to three bare digits.
	countBadge = regexp.MustCompile(`^\d{1,3}$`)

	// Date separator rows: "2026년 8월 23일 ..." or "2026-08-23".
	dateOnly = regexp.MustCompile(`^\d{4}년 \d{1,2}월 \d{1,2}일|^\d{4}[-./]\d{1,2}[-./]\d{1,2}`)

	// Attachment metadata: "2.4 MB", "512KB".
	attachmentMeta = regexp.MustCompile(`^\d+(\.\d+)?\s?(KB|MB|GB)$`)
)

// isMetadataToken reports whether a text is row chrome rather than
// message content.
func isMetadataToken(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return true
	}
	if timeToken.MatchString(t) || countBadge.MatchString(t) ||
		dateOnly.MatchString(t) || attachmentMeta.MatchString(t) {
		return true
	}
	switch t {
	case "Save", "저장", "Download", "다운로드":
		return true
	}
	return false
}

// truncated reports whether inline's text is a truncated rendering of
// full (the tree elides long messages with an ellipsis).
func truncated(inline, full string) bool {
	for _, mark := range []string{"…", "..."} {
		if strings.HasSuffix(inline, mark) {
			stem := strings.TrimSuffix(inline, mark)
			if stem != "" && strings.HasPrefix(full, stem) {
				return true
			}
		}
	}
	return false
}

// RowAnalysis is the per-row evidence the extractor works from.
type RowAnalysis struct {
	// Body is the message text; empty when the row carries none.
	Body string
	// ExplicitAuthor is a sender label present on the row itself.
	ExplicitAuthor string
	// TimeRaw is the row's timestamp token, verbatim.
	TimeRaw string
	// Side is the inferred bubble side.
	Side Side
	// SystemLike marks date separators, attachment stubs and other rows
	// that are not messages.
	SystemLike bool

	bodyFrame    ax.Rect
	hasBodyFrame bool
}

// rowLimits bounds the per-row fallback scan. Rows are tiny subtrees;
// anything deeper than this is not a message row.
var rowLimits = ax.Limits{MaxResults: 16, MaxVisits: 48}

type rowPart struct {
	text  string
	frame ax.Rect
	hasFr bool
}

// collectParts prefers the row's direct children and only descends when
// the row wraps its content in intermediate groups.
func collectParts(row ax.Element, role string) []rowPart {
	gather := func(els []ax.Element) []rowPart {
		var out []rowPart
		for _, el := range els {
			if el.Role() != role {
				continue
			}
			text := el.Title()
			if text == "" {
				text = el.Value()
			}
			frame, ok := el.Frame()
			out = append(out, rowPart{text: text, frame: frame, hasFr: ok})
		}
		return out
	}

	if parts := gather(row.Children()); len(parts) > 0 {
		return parts
	}
	return gather(ax.Find(row, nil, ax.Limits{
		MaxResults: rowLimits.MaxResults,
		MaxVisits:  rowLimits.MaxVisits,
		Roles:      []string{role},
	}))
}

// AnalyzeRow classifies a transcript row's parts into body, author,
// timestamp and side.
func AnalyzeRow(row ax.Element) RowAnalysis {
	var an RowAnalysis

	texts := collectParts(row, ax.RoleStaticText)
	links := collectParts(row, ax.RoleLink)
	images := collectParts(row, ax.RoleImage)

	// Body: the longest content-bearing static text.
	var content []rowPart
	for _, p := range texts {
		t := strings.TrimSpace(p.text)
		if t == "" {
			continue
		}
		if timeToken.MatchString(t) {
			if an.TimeRaw == "" {
				an.TimeRaw = t
			}
			continue
		}
		if isMetadataToken(t) {
			continue
		}
		content = append(content, p)
	}
	var body rowPart
	for _, p := range content {
		if len([]rune(p.text)) > len([]rune(body.text)) {
			body = p
		}
	}
	an.Body = strings.TrimSpace(body.text)
	an.bodyFrame, an.hasBodyFrame = body.frame, body.hasFr

	// Long messages render truncated inline while a link child carries
	// the full text.
	for _, l := range links {
		full := strings.TrimSpace(l.text)
		if full == "" {
			continue
		}
		if an.Body == "" || truncated(an.Body, full) {
			an.Body = full
			if l.hasFr {
				an.bodyFrame, an.hasBodyFrame = l.frame, true
			}
			break
		}
	}

	// Author: a distinct short label above the body.
	for _, p := range content {
		t := strings.TrimSpace(p.text)
		if t == an.Body {
			continue
		}
		if p.hasFr && an.hasBodyFrame && p.frame.Y >= an.bodyFrame.Y {
			continue
		}
		an.ExplicitAuthor = t
		break
	}

	an.Side = inferSide(row, images, an)
	an.SystemLike = systemLike(row, texts, an)
	return an
}

// inferSide uses the profile image as anchor when present, else the
// body's horizontal position within the row.
func inferSide(row ax.Element, images []rowPart, an RowAnalysis) Side {
	if an.hasBodyFrame {
		bodyX, _ := an.bodyFrame.Center()
		for _, img := range images {
			if !img.hasFr {
				continue
			}
			if imgX, _ := img.frame.Center(); imgX < bodyX {
				return SideLeft
			}
			return SideRight
		}
	}

	rowFrame, ok := row.Frame()
	if !ok || !an.hasBodyFrame || rowFrame.Width <= 0 {
		return SideUnknown
	}
	bodyX, _ := an.bodyFrame.Center()
	ratio := (bodyX - rowFrame.X) / rowFrame.Width
	switch {
	case ratio < 0.45:
		return SideLeft
	case ratio > 0.6:
		return SideRight
	default:
		return SideUnknown
	}
}

// systemLike marks rows that carry no message: date separators, rows
// whose only payload is attachment metadata with a save affordance, and
// rows with no body at all.
func systemLike(row ax.Element, texts []rowPart, an RowAnalysis) bool {
	if an.Body == "" {
		return true
	}
	if dateOnly.MatchString(an.Body) {
		return true
	}

	// Attachment stub: every text is metadata-or-size and something on
	// the row offers a save action.
	onlyMeta := true
	sawSize := false
	for _, p := range texts {
		t := strings.TrimSpace(p.text)
		if t == "" {
			continue
		}
		if attachmentMeta.MatchString(t) {
			sawSize = true
			continue
		}
		if !isMetadataToken(t) && t != an.Body {
			onlyMeta = false
		}
	}
	if sawSize && onlyMeta && hasSaveAffordance(row) {
		return true
	}
	return false
}

func hasSaveAffordance(row ax.Element) bool {
	btn := ax.FindFirst(row, func(el ax.Element) bool {
		switch strings.TrimSpace(el.Title()) {
		case "Save", "저장":
			return true
		}
		return false
	}, ax.Limits{MaxVisits: rowLimits.MaxVisits, Roles: []string{ax.RoleButton, ax.RoleLink}})
	return btn != nil
}

// parseClock converts a timestamp token to minutes since midnight.
// Returns -1 when the token is not a clock time.
func parseClock(s string) int {
	t := strings.TrimSpace(s)
	if t == "" {
		return -1
	}

	pm, am := false, false
	switch {
	case strings.HasPrefix(t, "오후"):
		pm = true
		t = strings.TrimSpace(strings.TrimPrefix(t, "오후"))
	case strings.HasPrefix(t, "오전"):
		am = true
		t = strings.TrimSpace(strings.TrimPrefix(t, "오전"))
	}
	upper := strings.ToUpper(t)
	switch {
	case strings.HasSuffix(upper, "PM"):
		pm = true
		t = strings.TrimSpace(t[:len(t)-2])
	case strings.HasSuffix(upper, "AM"):
		am = true
		t = strings.TrimSpace(t[:len(t)-2])
	}

	parts := strings.SplitN(t, ":", 2)
	if len(parts) != 2 {
		return -1
	}
	h, m := atoi(parts[0]), atoi(parts[1])
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return -1
	}
	if pm && h < 12 {
		h += 12
	}
	if am && h == 12 {
		h = 0
	}
	return h*60 + m
}

func atoi(s string) int {
	n := 0
	if s == "" {
		return -1
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// Extract walks transcript rows in visual order and emits messages.
// Consecutive left-side rows without an explicit sender inherit the
// previous sender, but only while row timestamps do not move backwards;
// a clock regression means the chain crossed a day boundary or a
// reordered batch, and inheriting across it would misattribute.
func Extract(rows []ax.Element, limit int) []Message {
	var out []Message

	anchor := ""
	anchorMinutes := -1

	for _, row := range rows {
		an := AnalyzeRow(row)
		if an.SystemLike {
			anchor, anchorMinutes = "", -1
			continue
		}

		msg := Message{Text: an.Body, Time: an.TimeRaw}
		minutes := parseClock(an.TimeRaw)

		switch an.Side {
		case SideLeft:
			switch {
			case an.ExplicitAuthor != "":
				anchor = an.ExplicitAuthor
				anchorMinutes = minutes
				msg.Author = anchor
			case anchor != "" && clockMonotonic(anchorMinutes, minutes):
				msg.Author = anchor
				if minutes >= 0 {
					anchorMinutes = minutes
				}
			default:
				anchor, anchorMinutes = "", -1
			}
		default:
			// Right-side bubbles are the user's own; unknown-side rows
			// are treated the same rather than guessing a sender.
			msg.Mine = true
			anchor, anchorMinutes = "", -1
		}

		out = append(out, msg)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// clockMonotonic reports whether moving from prev to next does not go
// backwards. Unknown times on either side do not break the chain.
func clockMonotonic(prev, next int) bool {
	if prev < 0 || next < 0 {
		return true
	}
	return next >= prev
}
