package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/intent"
	"github.com/csheth/lexdesk/internal/logger"
	"github.com/csheth/lexdesk/internal/pipeline"
	"github.com/csheth/lexdesk/internal/reminder"
	"github.com/csheth/lexdesk/internal/sessions"
)

func loadSessionsJob(store *sessions.Store) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		list, err := store.List(ctx)
		return sessionsLoadedMsg{sessions: list, err: err}, err
	}
}

func openSessionJob(p *pipeline.Pipeline, id backend.SessionID) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		entries, err := p.Open(ctx, id)
		return sessionOpenedMsg{id: id, entries: entries, err: err}, err
	}
}

func sendJob(p *pipeline.Pipeline, generation uint64, text string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		res, err := p.Send(ctx, text)
		return sendResultMsg{generation: generation, result: res, err: err}, err
	}
}

func deleteSessionJob(store *sessions.Store, id backend.SessionID) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		err := store.Delete(ctx, id)
		return sessionDeletedMsg{id: id, err: err}, err
	}
}

func acceptSuggestionJob(p *pipeline.Pipeline, s intent.Suggestion) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		entry, err := p.AcceptSuggestion(ctx, s)
		return scheduleCreatedMsg{suggestion: s, entry: entry, err: err}, err
	}
}

func checkIdentityJob(client *backend.Client) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		user, err := client.CurrentUser(ctx)
		return identityResultMsg{user: user, err: err}, err
	}
}

// listenPipeline delivers the next pipeline event. The model re-arms it after
// every delivery.
func listenPipeline(ch <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		return pipelineEventMsg{event: <-ch}
	}
}

func listenReminders(ch <-chan reminderEventMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// forwardPipeline returns an observer that never blocks the pipeline. Events
// only signal that the store changed, so a dropped event is covered by the
// ones still queued.
func forwardPipeline(ch chan<- pipeline.Event) pipeline.Observer {
	return func(ev pipeline.Event) {
		select {
		case ch <- ev:
		default:
		}
	}
}

// forwardReminders queues watcher events for the model. Due alerts and the
// auth expiry notice are emitted once, so they wait for room in the queue
// and are only given up when the watcher is stopped. Upcoming lists are
// superseded by the next poll and may be dropped.
func forwardReminders(ch chan<- reminderEventMsg, epoch int) func(context.Context, reminder.Event) {
	return func(ctx context.Context, ev reminder.Event) {
		msg := reminderEventMsg{epoch: epoch, event: ev}
		if ev.Kind == reminder.EventUpcoming {
			select {
			case ch <- msg:
			default:
				logger.Warnf("[tui] reminder queue full, dropped %s event", ev.Kind)
			}
			return
		}
		select {
		case ch <- msg:
		case <-ctx.Done():
			logger.Warnf("[tui] watcher stopped before %s event was queued", ev.Kind)
		}
	}
}
