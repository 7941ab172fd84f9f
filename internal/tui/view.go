package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/csheth/lexdesk/internal/pipeline"
)

func (m *model) View() string {
	m.refreshViewportIfDirty()
	main := joinNonEmpty([]string{
		m.viewport.View(),
		m.statusView(),
		m.composerPanel(),
	})
	body := main
	if m.layout.sidebarWidth > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), main)
	}
	return joinNonEmpty([]string{m.topBarView(), m.toastView(), body})
}

func (m *model) topBarView() string {
	title := heroTitleStyle.Render("LexDesk")
	who := helperStyle.Render("not signed in")
	if m.user != nil {
		who = helperStyle.Render(m.user.DisplayName())
	}
	bell := bellStyle.Render(fmt.Sprintf("🔔 %d", len(m.upcoming)))
	if len(m.upcoming) > 0 {
		bell = bellActiveStyle.Render(fmt.Sprintf("🔔 %d", len(m.upcoming)))
	}
	stats := []string{who, bell}
	if badges := m.jobStatusBadges(); len(badges) > 0 {
		stats = append(stats, badges...)
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", statusBarStyle.Render(strings.Join(stats, "  •  ")))
	parts := []string{bar, taglineStyle.Render(heroTagline)}
	if m.authNotice != "" {
		parts = append(parts, errorStyle.Render(m.authNotice))
	}
	return strings.Join(parts, "\n")
}

func (m *model) jobStatusBadges() []string {
	var badges []string
	if m.pipelineState != pipeline.Idle {
		badges = append(badges, fmt.Sprintf("%s %s…", m.spinner.View(), m.pipelineState))
	}
	for _, kind := range []jobKind{jobKindOpen, jobKindDelete, jobKindSchedule, jobKindIdentity} {
		if m.runningJobs[kind] > 0 {
			badges = append(badges, fmt.Sprintf("%s %s", m.spinner.View(), kind))
		}
	}
	return badges
}

func (m *model) toastView() string {
	if len(m.toasts) == 0 {
		return ""
	}
	visible := m.toasts
	if len(visible) > maxVisibleToasts {
		visible = visible[:maxVisibleToasts]
	}
	lines := make([]string, 0, len(visible)+1)
	for _, t := range visible {
		lines = append(lines, "⏰ "+t.Text)
	}
	hint := "Esc to dismiss"
	if extra := len(m.toasts) - len(visible); extra > 0 {
		hint = fmt.Sprintf("%d more • %s", extra, hint)
	}
	lines = append(lines, helperStyle.Render(hint))
	return toastStyle.Render(strings.Join(lines, "\n"))
}

func (m *model) sidebarView() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Conversations"))
	b.WriteRune('\n')
	if len(m.sessions) == 0 {
		b.WriteString(helperStyle.Render("No conversations yet."))
		b.WriteRune('\n')
	}
	for idx, session := range m.sessions {
		marker := "  "
		if session.ID == m.activeID {
			marker = "● "
		}
		row := marker + previewText(session.Title, titlePreviewLimit)
		switch {
		case m.stage == stageSidebar && idx == m.sidebarCursor:
			row = currentLineStyle.Render(row)
		case session.ID == m.activeID:
			row = activeSessionStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteRune('\n')
	}
	if len(m.upcoming) > 0 {
		b.WriteRune('\n')
		b.WriteString(sectionHeaderStyle.Render("Next 24 hours"))
		b.WriteRune('\n')
		for _, entry := range m.upcoming {
			b.WriteString(helperStyle.Render(upcomingLine(entry)))
			b.WriteRune('\n')
		}
	}
	style := sidebarStyle
	if m.stage == stageSidebar || m.stage == stageConfirmDelete {
		style = sidebarFocusedStyle
	}
	return style.Width(m.layout.sidebarWidth - 2).Render(strings.TrimRight(b.String(), "\n"))
}

func (m *model) statusView() string {
	var parts []string
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		parts = append(parts, helperStyle.Render(m.infoMessage))
	}
	return strings.Join(parts, "\n")
}

func (m *model) composerPanel() string {
	lines := []string{}
	if m.attachment != nil {
		lines = append(lines, attachmentLabelStyle.Render(fmt.Sprintf("📎 %s • %d page(s)", m.attachment.Name, m.attachment.Pages)))
	}
	switch m.stage {
	case stageAttach:
		lines = append(lines, m.attachInput.View(), helperStyle.Render(attachHelpText))
	case stageSidebar, stageConfirmDelete:
		lines = append(lines, m.composer.View(), helperStyle.Render(sidebarHelpText))
	default:
		if m.pipelineState != pipeline.Idle {
			m.composer.Placeholder = composerBusyPlaceholder
		} else {
			m.composer.Placeholder = composerPlaceholder
		}
		lines = append(lines, m.composer.View(), helperStyle.Render(composerHelpText))
	}
	return composerBoxStyle.Render(strings.Join(lines, "\n"))
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

var (
	sectionHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	userLabelStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
	pendingLabelStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	assistantLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffb347"))
	attachmentLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a3be8c"))

	heroAccentColor = lipgloss.Color("#ff8c00")

	heroTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	taglineStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb347")).Italic(true)
	statusBarStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	bellStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f"))
	bellActiveStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9b2226"))
	toastStyle          = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#ffd166")).Padding(0, 1)
	suggestionBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(heroAccentColor).Padding(0, 1)
	composerBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(0, 1)
	sidebarStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e"))
	sidebarFocusedStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7f5af0"))
	currentLineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	activeSessionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e0def4"))
)
