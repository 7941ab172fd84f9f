package tui

import (
	"context"
	"testing"
	"time"

	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/reminder"
)

func TestForwardRemindersWaitsForRoomForDueAlerts(t *testing.T) {
	ch := make(chan reminderEventMsg, 1)
	forward := forwardReminders(ch, 3)
	ctx := context.Background()

	forward(ctx, reminder.Event{Kind: reminder.EventUpcoming})
	forward(ctx, reminder.Event{Kind: reminder.EventUpcoming})
	if len(ch) != 1 {
		t.Fatalf("upcoming lists should drop when the queue is full, queued %d", len(ch))
	}

	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		forward(ctx, reminder.Event{Kind: reminder.EventDue, Entry: backend.ScheduleEntry{ID: 9}})
	}()
	select {
	case <-delivered:
		t.Fatal("due alert should wait for queue room instead of dropping")
	case <-time.After(20 * time.Millisecond):
	}

	<-ch
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("due alert not queued after room was made")
	}
	msg := <-ch
	if msg.epoch != 3 || msg.event.Kind != reminder.EventDue || msg.event.Entry.ID != 9 {
		t.Fatalf("unexpected queued message: %+v", msg)
	}
}

func TestForwardRemindersGivesUpWhenWatcherStops(t *testing.T) {
	ch := make(chan reminderEventMsg, 1)
	ch <- reminderEventMsg{}
	forward := forwardReminders(ch, 1)
	ctx, cancel := context.WithCancel(context.Background())

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		forward(ctx, reminder.Event{Kind: reminder.EventAuthExpired})
	}()
	cancel()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked forward ignored watcher cancellation")
	}
	if len(ch) != 1 {
		t.Fatalf("cancelled event should not be queued, queue len %d", len(ch))
	}
}
