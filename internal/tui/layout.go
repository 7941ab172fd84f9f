package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/intent"
	"github.com/csheth/lexdesk/internal/sessions"
)

type pageLayout struct {
	windowWidth    int
	windowHeight   int
	sidebarWidth   int
	viewportWidth  int
	viewportHeight int
}

func newPageLayout() pageLayout {
	return pageLayout{
		sidebarWidth:   sidebarWidth,
		viewportWidth:  80,
		viewportHeight: 20,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	l.sidebarWidth = sidebarWidth
	if width < sidebarWidth+minViewportWidth+viewportHorizontalPadding {
		l.sidebarWidth = 0
	}
	innerWidth := width - l.sidebarWidth - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth
	// top bar, composer panel, status lines
	const chrome = 9
	usable := height - chrome
	if usable < 6 {
		usable = 6
	}
	l.viewportHeight = usable
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

// buildTranscript renders the conversation. Assistant replies go through the
// intent extractor so schedule blocks never reach the screen.
func (m *model) buildTranscript() string {
	cb := &contentBuilder{}
	if len(m.transcript) == 0 {
		cb.WriteString(sectionHeaderStyle.Render("New conversation"))
		cb.WriteRune('\n')
		cb.WriteString(helperStyle.Render("Ask about case law, statutes or procedure, or press Ctrl+O to attach a PDF for review."))
		cb.WriteRune('\n')
		return cb.String()
	}
	wrap := m.wrapWidth(4)
	for idx, entry := range m.transcript {
		if idx > 0 {
			cb.WriteRune('\n')
		}
		cb.WriteString(entryLabel(entry))
		cb.WriteRune('\n')
		body := wordwrap.String(entryBody(entry), wrap)
		cb.WriteString(indentMultiline(body, "  "))
		cb.WriteRune('\n')
	}
	if m.suggestion != nil && m.suggestionGen == m.pipeline.Generation() {
		cb.WriteRune('\n')
		card := joinLines(
			sectionHeaderStyle.Render("Calendar suggestion"),
			m.suggestion.String(),
			helperStyle.Render(suggestionHelpText),
		)
		cb.WriteString(suggestionBoxStyle.Render(card))
		cb.WriteRune('\n')
	}
	return cb.String()
}

func entryLabel(entry sessions.Entry) string {
	switch {
	case entry.Message.HasAttachment():
		return attachmentLabelStyle.Render("📎 " + entry.Message.DocumentName)
	case entry.Message.Role == backend.RoleAssistant:
		return assistantLabelStyle.Render("Assistant")
	case entry.Pending():
		return pendingLabelStyle.Render("You (sending…)")
	default:
		return userLabelStyle.Render("You")
	}
}

func entryBody(entry sessions.Entry) string {
	switch {
	case entry.Message.HasAttachment():
		return "Document shared with the assistant."
	case entry.Message.Role == backend.RoleAssistant:
		return intent.Extract(entry.Message.Content).DisplayText
	default:
		return entry.Message.Content
	}
}

func (m *model) wrapWidth(padding int) int {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func joinLines(lines ...string) string {
	return strings.Join(lines, "\n")
}

func previewText(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func upcomingLine(entry backend.ScheduleEntry) string {
	return fmt.Sprintf("%s  %s", entry.CourtDate.Format("Mon 15:04"), previewText(entry.CaseName, titlePreviewLimit))
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
