package tui

import (
	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/intent"
	"github.com/csheth/lexdesk/internal/pipeline"
	"github.com/csheth/lexdesk/internal/reminder"
	"github.com/csheth/lexdesk/internal/sessions"
)

type stage int

const (
	stageComposer stage = iota
	stageSidebar
	stageAttach
	stageConfirmDelete
)

const heroTagline = "Legal research, drafting and hearings in one desk."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	sidebarWidth              = 30
	maxVisibleToasts          = 3
	titlePreviewLimit         = 26
)

const (
	composerPlaceholder       = "Ask a legal question…"
	composerBusyPlaceholder   = "Waiting for the assistant…"
	attachPlaceholder         = "/path/to/document.pdf"
	composerHelpText          = "Enter: send • Ctrl+O: attach PDF • Ctrl+X: drop attachment • Tab: sessions"
	sidebarHelpText           = "↑/↓: move • Enter: open • n: new chat • d: delete • Tab: composer"
	attachHelpText            = "Enter to stage the PDF, Esc to cancel."
	suggestionHelpText        = "Ctrl+S: add to calendar • Ctrl+G: ignore"
	authExpiredNotice         = "Your login expired. Run `lexdesk login`, then press Ctrl+R."
	identityUnavailableNotice = "Backend unreachable. Press Ctrl+R to retry."
)

type toast struct {
	ID   int64
	Text string
}

type pipelineEventMsg struct {
	event pipeline.Event
}

type reminderEventMsg struct {
	epoch int
	event reminder.Event
}

type sessionsLoadedMsg struct {
	sessions []backend.Session
	err      error
}

type sessionOpenedMsg struct {
	id      backend.SessionID
	entries []sessions.Entry
	err     error
}

type sendResultMsg struct {
	generation uint64
	result     pipeline.Result
	err        error
}

type sessionDeletedMsg struct {
	id  backend.SessionID
	err error
}

type scheduleCreatedMsg struct {
	suggestion intent.Suggestion
	entry      backend.ScheduleEntry
	err        error
}

type identityResultMsg struct {
	user backend.User
	err  error
}
