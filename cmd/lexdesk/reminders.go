package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/csheth/lexdesk/internal/logger"
	"github.com/csheth/lexdesk/internal/reminder"
)

func newRemindersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Hearing reminders",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Poll the schedule and print due hearings until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client(true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchReminders(ctx, client, reminder.Config{
				Period:    a.cfg.Reminder.PollInterval,
				DueWindow: a.cfg.Reminder.DueWindow,
				Horizon:   a.cfg.Reminder.UpcomingHorizon,
			}, cmd.OutOrStdout())
		},
	})
	return cmd
}

// watchReminders runs a watcher until ctx ends or the login expires.
func watchReminders(ctx context.Context, api reminder.API, cfg reminder.Config, out io.Writer) error {
	expired := make(chan struct{}, 1)
	lastCount := -1
	cfg.Handler = func(_ context.Context, ev reminder.Event) {
		switch ev.Kind {
		case reminder.EventDue:
			fmt.Fprintf(out, "\a⏰ %s  %s (#%d)\n", ev.Entry.CourtDate.Format("15:04"), ev.Entry.CaseName, ev.Entry.ID)
		case reminder.EventUpcoming:
			if len(ev.Upcoming) != lastCount {
				lastCount = len(ev.Upcoming)
				logger.Infof("[reminder] %d hearing(s) in the next %s", lastCount, cfgHorizon(cfg))
			}
		case reminder.EventAuthExpired:
			select {
			case expired <- struct{}{}:
			default:
			}
		}
	}
	w, err := reminder.New(api, cfg)
	if err != nil {
		return err
	}
	h := w.Start(ctx)
	defer w.Stop(h)

	select {
	case <-ctx.Done():
	case <-h.Done():
	}
	select {
	case <-expired:
		return errors.New("login expired; run `lexdesk login` and start the watcher again")
	default:
		return nil
	}
}

func cfgHorizon(cfg reminder.Config) string {
	if cfg.Horizon == 0 {
		return reminder.DefaultHorizon.String()
	}
	return cfg.Horizon.String()
}
