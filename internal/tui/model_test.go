package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/lexdesk/internal/attachment/attachmenttest"
	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/devserver"
	"github.com/csheth/lexdesk/internal/intent"
	"github.com/csheth/lexdesk/internal/pipeline"
	"github.com/csheth/lexdesk/internal/reminder"
)

type testEnv struct {
	m      *model
	srv    *devserver.Server
	client *backend.Client
}

func newTestModel(t *testing.T, responder devserver.Responder) testEnv {
	t.Helper()
	srv := devserver.New(devserver.Options{Responder: responder})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	client, err := backend.New(backend.Config{BaseURL: ts.URL + "/api", Token: srv.IssueToken()})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	teaModel, ok := New(Config{Client: client, JobTimeout: 5 * time.Second}).(*model)
	if !ok {
		t.Fatalf("expected *model, got %T", teaModel)
	}
	t.Cleanup(teaModel.stopWatcher)
	return testEnv{m: teaModel, srv: srv, client: client}
}

// run executes a job runner inline and feeds its payload to the model.
func (e testEnv) run(t *testing.T, runner jobRunner) tea.Cmd {
	t.Helper()
	msg, _ := runner(context.Background())
	_, cmd := e.m.Update(msg)
	return cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSendRendersReplyWithoutScheduleBlock(t *testing.T) {
	reply := "Noted.\n```json\n{\"action\":\"schedule\",\"title\":\"Filing\",\"date\":\"2025-04-10\",\"time\":\"09:00\"}\n```"
	env := newTestModel(t, devserver.StaticResponder(reply))
	m := env.m

	m.composer.SetValue("Remind me about the filing")
	if cmd := m.submitComposer(); cmd == nil {
		t.Fatal("enter should start a send job")
	}
	if got := m.composer.Value(); got != "" {
		t.Fatalf("composer not cleared after submit: %q", got)
	}
	env.run(t, sendJob(m.pipeline, m.pipeline.Generation(), "Remind me about the filing"))

	if len(m.transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(m.transcript))
	}
	if m.suggestion == nil || m.suggestion.Title != "Filing" {
		t.Fatalf("suggestion not surfaced: %+v", m.suggestion)
	}
	view := m.View()
	if strings.Contains(view, "```json") {
		t.Fatal("schedule block leaked into the transcript")
	}
	if !strings.Contains(view, "Calendar suggestion") {
		t.Fatal("suggestion card missing from view")
	}
	if !m.activeID.Valid() || len(m.sessions) != 1 {
		t.Fatalf("new session not adopted: active=%v sessions=%d", m.activeID, len(m.sessions))
	}
}

func TestAcceptSuggestionCreatesScheduleEntry(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m
	s := intent.Suggestion{Title: "Filing", Date: "2025-04-10", Time: "09:00"}
	m.suggestion = &s

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS}); cmd == nil {
		t.Fatal("ctrl+s should start a schedule job")
	}
	env.run(t, acceptSuggestionJob(m.pipeline, s))

	if m.suggestion != nil {
		t.Fatal("accepted suggestion should be cleared")
	}
	entries, err := env.client.ListSchedule(context.Background())
	if err != nil {
		t.Fatalf("list schedule: %v", err)
	}
	if len(entries) != 1 || entries[0].CaseName != "Filing" {
		t.Fatalf("unexpected schedule: %+v", entries)
	}
	if got := entries[0].CourtDate.String(); got != "2025-04-10T09:00:00" {
		t.Fatalf("court date = %s", got)
	}
}

func TestIgnoreSuggestion(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m
	m.suggestion = &intent.Suggestion{Title: "Filing", Date: "2025-04-10"}

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlG}); cmd != nil {
		t.Fatalf("ctrl+g should not issue a command, got %T", cmd)
	}
	if m.suggestion != nil {
		t.Fatal("suggestion should be dropped")
	}
	if calls := len(env.srv.Calls()); calls != 0 {
		t.Fatalf("ignoring must not call the backend, saw %d calls", calls)
	}
}

func TestSubmitIgnoredWhileBusy(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	responder := devserver.ResponderFunc(func(ctx context.Context, turn devserver.Turn) (string, error) {
		entered <- struct{}{}
		<-release
		return "ok", nil
	})
	env := newTestModel(t, responder)
	m := env.m

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.pipeline.Send(context.Background(), "first")
	}()
	<-entered

	m.composer.SetValue("second draft")
	if cmd := m.submitComposer(); cmd != nil {
		t.Fatalf("submit while busy should be ignored, got %T", cmd)
	}
	if got := m.composer.Value(); got != "second draft" {
		t.Fatalf("draft lost while busy: %q", got)
	}
	close(release)
	<-done
}

func TestSecondEnterBeforeSendStartsIsIgnored(t *testing.T) {
	env := newTestModel(t, devserver.StaticResponder("ok"))
	m := env.m

	m.composer.SetValue("first")
	if cmd := m.submitComposer(); cmd == nil {
		t.Fatal("first enter should start a send job")
	}
	m.composer.SetValue("second")
	if cmd := m.submitComposer(); cmd != nil {
		t.Fatalf("second enter before the first reply should be ignored, got %T", cmd)
	}
	if got := m.composer.Value(); got != "second" {
		t.Fatalf("second draft lost: %q", got)
	}

	env.run(t, sendJob(m.pipeline, m.pipeline.Generation(), "first"))
	if m.sending {
		t.Fatal("send gate should reopen once the reply lands")
	}
	if cmd := m.submitComposer(); cmd == nil {
		t.Fatal("enter after the reply should send the kept draft")
	}
}

func TestNewConversationReopensSendGate(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m

	m.composer.SetValue("first")
	gen := m.pipeline.Generation()
	if cmd := m.submitComposer(); cmd == nil {
		t.Fatal("enter should start a send job")
	}
	m.pipeline.NewConversation()
	m.composer.SetValue("fresh start")
	if cmd := m.submitComposer(); cmd == nil {
		t.Fatal("a new conversation should accept a send while the old turn is pending")
	}
	_, _ = m.Update(sendResultMsg{generation: gen, err: pipeline.ErrStale})
	if !m.sending {
		t.Fatal("stale result must not reopen the gate of the newer send")
	}
}

func TestBusyResultRestoresDraft(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m

	m.composer.SetValue("lost draft")
	if cmd := m.submitComposer(); cmd == nil {
		t.Fatal("enter should start a send job")
	}
	_, _ = m.Update(sendResultMsg{generation: m.pipeline.Generation(), err: pipeline.ErrBusy})
	if got := m.composer.Value(); got != "lost draft" {
		t.Fatalf("draft not restored after busy rejection: %q", got)
	}
	if m.sending {
		t.Fatal("send gate should reopen after the rejection")
	}
}

func TestStaleSendResultIsDropped(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m
	gen := m.pipeline.Generation()

	m.pipeline.NewConversation()
	_, _ = m.Update(sendResultMsg{
		generation: gen,
		result: pipeline.Result{Extract: intent.Result{
			DisplayText: "late",
			Suggestion:  &intent.Suggestion{Title: "Late", Date: "2025-04-10"},
		}},
	})
	if m.suggestion != nil {
		t.Fatal("stale reply must not surface a suggestion")
	}
}

func TestSidebarDeleteNeedsConfirmation(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m
	ctx := context.Background()
	if _, err := env.client.CreateSession(ctx, "Tenancy dispute"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	env.run(t, loadSessionsJob(m.store))
	if len(m.sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(m.sessions))
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.stage != stageSidebar {
		t.Fatalf("tab should focus the sidebar, stage=%v", m.stage)
	}
	m.Update(keyRunes("d"))
	if m.stage != stageConfirmDelete {
		t.Fatalf("d should ask for confirmation, stage=%v", m.stage)
	}
	if _, cmd := m.Update(keyRunes("n")); cmd != nil {
		t.Fatal("anything but y cancels the delete")
	}
	if m.stage != stageSidebar || len(m.sessions) != 1 {
		t.Fatal("cancelled delete changed state")
	}

	m.Update(keyRunes("d"))
	if _, cmd := m.Update(keyRunes("y")); cmd == nil {
		t.Fatal("y should start the delete job")
	}
	env.run(t, deleteSessionJob(m.store, env.m.store.Sessions()[0].ID))
	if len(m.sessions) != 0 {
		t.Fatalf("session still listed after delete: %+v", m.sessions)
	}
}

func TestOpenSessionLoadsTranscript(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m
	ctx := context.Background()
	reply, err := env.client.SendMessage(ctx, 0, "What is adverse possession?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	env.run(t, loadSessionsJob(m.store))

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd == nil {
		t.Fatal("enter should open the highlighted session")
	}
	env.run(t, openSessionJob(m.pipeline, reply.SessionID))

	if m.activeID != reply.SessionID {
		t.Fatalf("active = %v, want %v", m.activeID, reply.SessionID)
	}
	if len(m.transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(m.transcript))
	}
	if m.stage != stageComposer {
		t.Fatal("opening a session should return focus to the composer")
	}
}

func TestAttachPromptStagesPDF(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	if m.stage != stageAttach {
		t.Fatalf("ctrl+o should open the attach prompt, stage=%v", m.stage)
	}
	m.attachInput.SetValue("/tmp/notes.docx")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.attachment != nil || m.errorMessage == "" {
		t.Fatal("non-PDF should be rejected with an error")
	}

	path := attachmenttest.WritePDF(t, "lease.pdf", "This lease is made between the parties.")
	m.attachInput.SetValue(path)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.attachment == nil || m.attachment.Name != "lease.pdf" {
		t.Fatalf("attachment not staged: %+v", m.attachment)
	}
	if m.stage != stageComposer {
		t.Fatal("staging should return to the composer")
	}
	if !strings.Contains(m.View(), "lease.pdf") {
		t.Fatal("staged attachment missing from composer panel")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	if _, ok := m.pipeline.Pending(); ok || m.attachment != nil {
		t.Fatal("ctrl+x should drop the staged attachment")
	}
}

func TestReminderEventsDriveBellAndToasts(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m
	entry := backend.ScheduleEntry{ID: 9, CaseName: "Smith v Jones", CourtDate: backend.NewTimestamp(time.Now())}

	m.Update(reminderEventMsg{epoch: m.watchEpoch, event: reminder.Event{Kind: reminder.EventUpcoming, Upcoming: []backend.ScheduleEntry{entry}}})
	if len(m.upcoming) != 1 {
		t.Fatalf("upcoming = %d, want 1", len(m.upcoming))
	}
	if !strings.Contains(m.View(), "🔔 1") {
		t.Fatal("bell badge should show the upcoming count")
	}

	due := reminderEventMsg{epoch: m.watchEpoch, event: reminder.Event{Kind: reminder.EventDue, Entry: entry}}
	m.Update(due)
	m.Update(due)
	if len(m.toasts) != 1 {
		t.Fatalf("toasts = %d, want 1", len(m.toasts))
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if len(m.toasts) != 0 {
		t.Fatal("esc should dismiss the toast")
	}

	m.Update(reminderEventMsg{epoch: m.watchEpoch + 1, event: reminder.Event{Kind: reminder.EventDue, Entry: entry}})
	if len(m.toasts) != 0 {
		t.Fatal("events from a replaced watcher must be ignored")
	}

	m.Update(reminderEventMsg{epoch: m.watchEpoch, event: reminder.Event{Kind: reminder.EventAuthExpired}})
	if m.authNotice != authExpiredNotice || len(m.upcoming) != 0 {
		t.Fatalf("auth expiry not surfaced: notice=%q upcoming=%d", m.authNotice, len(m.upcoming))
	}
}

func TestIdentityCheckStartsWatcher(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m

	if cmd := env.run(t, checkIdentityJob(env.client)); cmd == nil {
		t.Fatal("identity success should reload sessions")
	}
	if m.user == nil {
		t.Fatal("user not recorded")
	}
	if m.watcher == nil || !m.watcher.Running() {
		t.Fatal("watcher should be running after sign-in")
	}
	first := m.watchEpoch

	env.run(t, checkIdentityJob(env.client))
	if m.watchEpoch != first+1 {
		t.Fatalf("re-check should restart the watcher, epoch %d -> %d", first, m.watchEpoch)
	}
}

func TestIdentityCheckUnauthorized(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m
	env.srv.RevokeTokens()

	env.run(t, checkIdentityJob(env.client))
	if m.authNotice != authExpiredNotice {
		t.Fatalf("notice = %q", m.authNotice)
	}
	if m.watcher != nil {
		t.Fatal("watcher must not run without a valid login")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR}); cmd == nil {
		t.Fatal("ctrl+r should re-check identity")
	}
	if m.authNotice != "" {
		t.Fatal("ctrl+r clears the notice while re-checking")
	}
}

func TestSendFailureSurfacesError(t *testing.T) {
	env := newTestModel(t, nil)
	m := env.m
	env.srv.FailNext(http.MethodPost, "/api/chat/message", http.StatusBadGateway)

	env.run(t, sendJob(m.pipeline, m.pipeline.Generation(), "hello"))
	if m.errorMessage == "" {
		t.Fatal("send failure should be reported")
	}
	if len(m.transcript) != 1 || !m.transcript[0].Pending() {
		t.Fatalf("optimistic entry should remain: %+v", m.transcript)
	}
	if !strings.Contains(m.View(), "sending…") {
		t.Fatal("pending entry should be marked in the transcript")
	}
}
