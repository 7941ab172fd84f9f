package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/csheth/lexdesk/internal/reminder"
	"github.com/csheth/lexdesk/internal/tui"
)

func newChatCommand(a *app) *cobra.Command {
	var noAltScreen bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat desk (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client(true)
			if err != nil {
				return err
			}
			opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
			if a.cfg.UI.AltScreen && !noAltScreen {
				opts = append(opts, tea.WithAltScreen())
			}
			program := tea.NewProgram(
				tui.New(tui.Config{
					Client: client,
					Reminder: reminder.Config{
						Period:    a.cfg.Reminder.PollInterval,
						DueWindow: a.cfg.Reminder.DueWindow,
						Horizon:   a.cfg.Reminder.UpcomingHorizon,
					},
					JobTimeout: a.cfg.API.Timeout,
				}),
				opts...,
			)
			_, err = program.Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&noAltScreen, "no-alt-screen", false, "disable the alternate screen buffer")
	return cmd
}
