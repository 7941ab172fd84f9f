package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/lexdesk/internal/attachment"
	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/intent"
	"github.com/csheth/lexdesk/internal/logger"
	"github.com/csheth/lexdesk/internal/pipeline"
	"github.com/csheth/lexdesk/internal/reminder"
	"github.com/csheth/lexdesk/internal/sessions"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Client *backend.Client
	// Reminder tunes the watcher; its Handler is owned by the UI.
	Reminder reminder.Config
	// JobTimeout bounds each backend call made on behalf of a keystroke.
	JobTimeout time.Duration
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	composer := textinput.New()
	composer.Placeholder = composerPlaceholder
	composer.Prompt = "› "
	composer.CharLimit = 4000
	composer.Width = 70
	composer.Focus()

	attachInput := textinput.New()
	attachInput.Placeholder = attachPlaceholder
	attachInput.Prompt = "PDF: "
	attachInput.CharLimit = 1024
	attachInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	store := sessions.NewStore(config.Client)
	pipelineEvents := make(chan pipeline.Event, 64)

	return &model{
		config:         config,
		stage:          stageComposer,
		layout:         newPageLayout(),
		composer:       composer,
		attachInput:    attachInput,
		spinner:        spin,
		viewport:       vp,
		jobs:           newJobBus(config.JobTimeout),
		runningJobs:    map[jobKind]int{},
		store:          store,
		pipeline:       pipeline.New(config.Client, store, forwardPipeline(pipelineEvents)),
		pipelineEvents: pipelineEvents,
		reminderEvents: make(chan reminderEventMsg, 64),
		viewportDirty:  true,
		infoMessage:    "Ask a question or press Tab to browse past conversations.",
	}
}

type model struct {
	config Config
	stage  stage
	layout pageLayout

	composer    textinput.Model
	attachInput textinput.Model
	spinner     spinner.Model
	viewport    viewport.Model

	jobs           *jobBus
	runningJobs    map[jobKind]int
	store          *sessions.Store
	pipeline       *pipeline.Pipeline
	pipelineEvents chan pipeline.Event
	reminderEvents chan reminderEventMsg

	watcher     *reminder.Watcher
	watchHandle *reminder.Handle
	watchEpoch  int

	user          *backend.User
	sessions      []backend.Session
	transcript    []sessions.Entry
	activeID      backend.SessionID
	sidebarCursor int
	pendingDelete backend.SessionID
	attachment    *attachment.Info
	pipelineState pipeline.State

	suggestion    *intent.Suggestion
	suggestionGen uint64

	// sending is set from Enter until the send job's result arrives, for
	// the generation in sendingGen. sentDraft is restored if the job loses
	// to another turn.
	sending    bool
	sendingGen uint64
	sentDraft  string

	upcoming   []backend.ScheduleEntry
	toasts     []toast
	authNotice string

	infoMessage   string
	errorMessage  string
	viewportDirty bool
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		listenPipeline(m.pipelineEvents),
		listenReminders(m.reminderEvents),
		m.jobs.Start(jobKindIdentity, checkIdentityJob(m.config.Client)),
		m.jobs.Start(jobKindSessions, loadSessionsJob(m.store)),
	)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.viewport.Width = m.layout.viewportWidth
		m.viewport.Height = m.layout.viewportHeight
		m.composer.Width = m.layout.viewportWidth - 4
		m.attachInput.Width = m.layout.viewportWidth - 8
		m.markViewportDirty()
		return m, nil
	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case jobSignalMsg:
		m.runningJobs[msg.Snapshot.Kind]++
		return m, m.spinner.Tick
	case jobResultEnvelope:
		if m.runningJobs[msg.Snapshot.Kind] > 0 {
			m.runningJobs[msg.Snapshot.Kind]--
		}
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case pipelineEventMsg:
		m.applyPipelineEvent(msg.event)
		return m, listenPipeline(m.pipelineEvents)
	case reminderEventMsg:
		m.applyReminderEvent(msg)
		return m, listenReminders(m.reminderEvents)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case sessionsLoadedMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("could not load sessions: %v", msg.err)
			return m, m.authCheck(msg.err)
		}
		m.syncFromStore()
		return m, nil
	case sessionOpenedMsg:
		return m, m.handleSessionOpened(msg)
	case sendResultMsg:
		return m, m.handleSendResult(msg)
	case sessionDeletedMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("delete failed: %v", msg.err)
			return m, m.authCheck(msg.err)
		}
		m.syncFromStore()
		m.infoMessage = "Conversation deleted."
		m.errorMessage = ""
		return m, nil
	case scheduleCreatedMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("could not add %q to the calendar: %v", msg.suggestion.Title, msg.err)
			return m, m.authCheck(msg.err)
		}
		if m.suggestion != nil && *m.suggestion == msg.suggestion {
			m.suggestion = nil
		}
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Scheduled %s for %s.", msg.entry.CaseName, msg.entry.CourtDate.Format("Mon 2 Jan 15:04"))
		m.markViewportDirty()
		return m, nil
	case identityResultMsg:
		return m, m.handleIdentity(msg)
	}
	return m, nil
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyCtrlC:
		m.stopWatcher()
		return m, tea.Quit
	case tea.KeyCtrlR:
		m.authNotice = ""
		m.infoMessage = "Checking your login…"
		return m, m.jobs.Start(jobKindIdentity, checkIdentityJob(m.config.Client))
	case tea.KeyCtrlS:
		return m, m.acceptSuggestion()
	case tea.KeyCtrlG:
		if m.suggestion != nil {
			m.suggestion = nil
			m.infoMessage = "Suggestion ignored."
			m.markViewportDirty()
		}
		return m, nil
	}

	switch m.stage {
	case stageSidebar:
		return m.handleSidebarKey(key)
	case stageAttach:
		return m.handleAttachKey(key)
	case stageConfirmDelete:
		return m.handleConfirmDeleteKey(key)
	default:
		return m.handleComposerKey(key)
	}
}

func (m *model) handleComposerKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyTab:
		m.focusSidebar()
		return m, nil
	case tea.KeyEsc:
		if m.dismissToast() {
			return m, nil
		}
		m.composer.SetValue("")
		return m, nil
	case tea.KeyCtrlO:
		m.stage = stageAttach
		m.composer.Blur()
		m.attachInput.SetValue("")
		m.attachInput.Focus()
		m.infoMessage = attachHelpText
		return m, textinput.Blink
	case tea.KeyCtrlX:
		if m.attachment == nil {
			m.infoMessage = "No attachment staged."
			return m, nil
		}
		m.pipeline.ClearAttachment()
		m.attachment = nil
		m.infoMessage = "Attachment removed."
		return m, nil
	case tea.KeyEnter:
		return m, m.submitComposer()
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(key)
		return m, cmd
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(key)
	return m, cmd
}

// submitComposer starts a turn. The keystroke is ignored while a turn is in
// flight so the composer keeps its draft.
func (m *model) submitComposer() tea.Cmd {
	text := strings.TrimSpace(m.composer.Value())
	if m.sendInFlight() {
		m.infoMessage = "Still waiting for the last reply; your draft is kept."
		return nil
	}
	if text == "" && m.attachment == nil {
		m.infoMessage = "Type a message or attach a PDF first."
		return nil
	}
	m.composer.SetValue("")
	m.errorMessage = ""
	m.suggestion = nil
	m.infoMessage = ""
	m.markViewportDirty()
	gen := m.pipeline.Generation()
	m.sending = true
	m.sendingGen = gen
	m.sentDraft = text
	return m.jobs.Start(jobKindSend, sendJob(m.pipeline, gen, text))
}

// sendInFlight covers the gap between Enter and the job entering the
// pipeline, where Busy is still false.
func (m *model) sendInFlight() bool {
	if m.pipeline.Busy() {
		return true
	}
	return m.sending && m.sendingGen == m.pipeline.Generation()
}

func (m *model) handleSidebarKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "tab", "i":
		m.focusComposer()
		return m, textinput.Blink
	case "esc":
		if !m.dismissToast() {
			m.focusComposer()
		}
		return m, nil
	case "up", "k":
		m.moveSidebar(-1)
	case "down", "j":
		m.moveSidebar(1)
	case "n":
		m.pipeline.NewConversation()
		m.resetView()
		m.focusComposer()
		m.infoMessage = "New conversation."
		return m, textinput.Blink
	case "enter":
		session, ok := m.sessionAtCursor()
		if !ok {
			return m, nil
		}
		m.resetView()
		m.activeID = session.ID
		m.infoMessage = fmt.Sprintf("Opening %s…", session.Title)
		return m, m.jobs.Start(jobKindOpen, openSessionJob(m.pipeline, session.ID))
	case "d":
		session, ok := m.sessionAtCursor()
		if !ok {
			return m, nil
		}
		m.pendingDelete = session.ID
		m.stage = stageConfirmDelete
		m.infoMessage = fmt.Sprintf("Delete %q? Press y to confirm.", previewText(session.Title, titlePreviewLimit))
	}
	return m, nil
}

func (m *model) handleConfirmDeleteKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.pendingDelete
	m.pendingDelete = 0
	m.stage = stageSidebar
	if key.String() != "y" {
		m.infoMessage = "Delete cancelled."
		return m, nil
	}
	if active, ok := m.store.Active(); ok && active == id {
		// Abandon the view first so an in-flight reply cannot land in it.
		m.pipeline.NewConversation()
		m.resetView()
	}
	m.infoMessage = "Deleting conversation…"
	return m, m.jobs.Start(jobKindDelete, deleteSessionJob(m.store, id))
}

func (m *model) handleAttachKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		m.focusComposer()
		m.infoMessage = "Attachment cancelled."
		return m, textinput.Blink
	case tea.KeyEnter:
		path := strings.TrimSpace(m.attachInput.Value())
		if path == "" {
			m.errorMessage = "Enter the path to a PDF."
			return m, nil
		}
		info, err := m.pipeline.Attach(expandHome(path))
		if err != nil {
			if errors.Is(err, attachment.ErrUnsupportedType) {
				m.errorMessage = "Only PDF documents can be attached."
			} else {
				m.errorMessage = fmt.Sprintf("attach: %v", err)
			}
			return m, nil
		}
		m.attachment = &info
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Staged %s (%s). It uploads with your next message.", info.Name, attachment.HumanSize(info.Size))
		m.focusComposer()
		return m, textinput.Blink
	}
	var cmd tea.Cmd
	m.attachInput, cmd = m.attachInput.Update(key)
	return m, cmd
}

func (m *model) acceptSuggestion() tea.Cmd {
	if m.suggestion == nil {
		m.infoMessage = "No calendar suggestion to accept."
		return nil
	}
	s := *m.suggestion
	m.infoMessage = fmt.Sprintf("Adding %s to the calendar…", s)
	return m.jobs.Start(jobKindSchedule, acceptSuggestionJob(m.pipeline, s))
}

func (m *model) handleSessionOpened(msg sessionOpenedMsg) tea.Cmd {
	switch {
	case errors.Is(msg.err, pipeline.ErrStale):
		return nil
	case errors.Is(msg.err, sessions.ErrNotFound):
		m.syncFromStore()
		m.errorMessage = "That conversation no longer exists."
		return nil
	case msg.err != nil:
		m.errorMessage = fmt.Sprintf("could not open conversation: %v", msg.err)
		return m.authCheck(msg.err)
	}
	m.syncFromStore()
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Loaded %d message(s).", len(msg.entries))
	m.focusComposer()
	m.viewport.GotoBottom()
	return textinput.Blink
}

func (m *model) handleSendResult(msg sendResultMsg) tea.Cmd {
	draft := m.sentDraft
	if m.sending && msg.generation == m.sendingGen {
		m.sending = false
		m.sentDraft = ""
	}
	if msg.generation != m.pipeline.Generation() || errors.Is(msg.err, pipeline.ErrStale) {
		logger.Debugf("[tui] dropping stale reply for generation %d", msg.generation)
		return nil
	}
	m.syncFromStore()
	if msg.err != nil {
		switch {
		case errors.Is(msg.err, pipeline.ErrUploadFailed):
			m.errorMessage = fmt.Sprintf("%v. The attachment is still staged; press Enter to retry.", msg.err)
		case errors.Is(msg.err, pipeline.ErrBusy):
			if m.composer.Value() == "" {
				m.composer.SetValue(draft)
				m.composer.CursorEnd()
			}
			m.infoMessage = "Still waiting for the last reply; your draft is back in the composer."
		default:
			m.errorMessage = msg.err.Error()
		}
		return m.authCheck(msg.err)
	}
	if msg.result.Uploaded != "" {
		m.infoMessage = fmt.Sprintf("Uploaded %s.", msg.result.Uploaded)
	}
	if s := msg.result.Extract.Suggestion; s != nil {
		copied := *s
		m.suggestion = &copied
		m.suggestionGen = msg.generation
		m.infoMessage = fmt.Sprintf("The assistant suggests a calendar entry: %s.", copied)
	}
	m.viewport.GotoBottom()
	return nil
}

func (m *model) handleIdentity(msg identityResultMsg) tea.Cmd {
	if msg.err != nil {
		m.stopWatcher()
		m.upcoming = nil
		if backend.IsUnauthorized(msg.err) {
			m.authNotice = authExpiredNotice
		} else {
			m.authNotice = identityUnavailableNotice
		}
		logger.Warnf("[tui] identity check: %v", msg.err)
		return nil
	}
	user := msg.user
	m.user = &user
	m.authNotice = ""
	m.infoMessage = fmt.Sprintf("Signed in as %s.", user.DisplayName())
	if err := m.restartWatcher(); err != nil {
		m.errorMessage = err.Error()
	}
	return m.jobs.Start(jobKindSessions, loadSessionsJob(m.store))
}

// authCheck turns a 401 from any call into the expired-login notice.
func (m *model) authCheck(err error) tea.Cmd {
	if !backend.IsUnauthorized(err) {
		return nil
	}
	m.authNotice = authExpiredNotice
	return nil
}

func (m *model) applyPipelineEvent(ev pipeline.Event) {
	if ev.Generation != m.pipeline.Generation() {
		return
	}
	switch ev.Kind {
	case pipeline.EventState:
		m.pipelineState = ev.State
	case pipeline.EventAttachment:
		if info, ok := m.pipeline.Pending(); ok {
			m.attachment = &info
		} else {
			m.attachment = nil
		}
	case pipeline.EventReset:
		m.pipelineState = pipeline.Idle
		m.suggestion = nil
	}
	m.syncFromStore()
}

func (m *model) applyReminderEvent(msg reminderEventMsg) {
	if msg.epoch != m.watchEpoch {
		return
	}
	ev := msg.event
	switch ev.Kind {
	case reminder.EventDue:
		m.pushToast(toast{
			ID:   ev.Entry.ID,
			Text: fmt.Sprintf("Hearing now: %s at %s", ev.Entry.CaseName, ev.Entry.CourtDate.Format("15:04")),
		})
	case reminder.EventUpcoming:
		m.upcoming = ev.Upcoming
	case reminder.EventAuthExpired:
		m.upcoming = nil
		m.authNotice = authExpiredNotice
	}
}

func (m *model) restartWatcher() error {
	m.stopWatcher()
	m.watchEpoch++
	cfg := m.config.Reminder
	cfg.Handler = forwardReminders(m.reminderEvents, m.watchEpoch)
	w, err := reminder.New(m.config.Client, cfg)
	if err != nil {
		return fmt.Errorf("reminders disabled: %w", err)
	}
	m.watcher = w
	m.watchHandle = w.Start(context.Background())
	return nil
}

func (m *model) stopWatcher() {
	if m.watcher == nil {
		return
	}
	m.watcher.Stop(m.watchHandle)
	m.watcher = nil
	m.watchHandle = nil
}

func (m *model) pushToast(t toast) {
	for _, existing := range m.toasts {
		if existing.ID == t.ID {
			return
		}
	}
	m.toasts = append(m.toasts, t)
}

func (m *model) dismissToast() bool {
	if len(m.toasts) == 0 {
		return false
	}
	m.toasts = m.toasts[1:]
	return true
}

func (m *model) syncFromStore() {
	m.sessions = m.store.Sessions()
	m.transcript = m.store.Transcript()
	if id, ok := m.store.Active(); ok {
		m.activeID = id
	} else {
		m.activeID = 0
	}
	if m.sidebarCursor >= len(m.sessions) {
		m.sidebarCursor = len(m.sessions) - 1
	}
	if m.sidebarCursor < 0 {
		m.sidebarCursor = 0
	}
	m.markViewportDirty()
}

func (m *model) resetView() {
	m.suggestion = nil
	m.attachment = nil
	m.errorMessage = ""
	m.syncFromStore()
	m.viewport.SetYOffset(0)
}

func (m *model) focusSidebar() {
	m.stage = stageSidebar
	m.composer.Blur()
	m.attachInput.Blur()
	for idx, session := range m.sessions {
		if session.ID == m.activeID {
			m.sidebarCursor = idx
		}
	}
}

func (m *model) focusComposer() {
	m.stage = stageComposer
	m.attachInput.Blur()
	m.composer.Focus()
}

func (m *model) moveSidebar(delta int) {
	if len(m.sessions) == 0 {
		return
	}
	target := m.sidebarCursor + delta
	if target < 0 {
		target = 0
	}
	if target >= len(m.sessions) {
		target = len(m.sessions) - 1
	}
	m.sidebarCursor = target
}

func (m *model) sessionAtCursor() (backend.Session, bool) {
	if m.sidebarCursor < 0 || m.sidebarCursor >= len(m.sessions) {
		return backend.Session{}, false
	}
	return m.sessions[m.sidebarCursor], true
}

func (m *model) busy() bool {
	if m.pipelineState != pipeline.Idle {
		return true
	}
	for _, count := range m.runningJobs {
		if count > 0 {
			return true
		}
	}
	return false
}

func (m *model) markViewportDirty() {
	m.viewportDirty = true
}

func (m *model) refreshViewportIfDirty() {
	if !m.viewportDirty {
		return
	}
	m.viewportDirty = false
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.buildTranscript())
	if atBottom {
		m.viewport.GotoBottom()
	}
}
