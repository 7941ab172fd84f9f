package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/sessions"
)

func newSessionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List or delete past conversations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client(true)
			if err != nil {
				return err
			}
			list, err := sessions.NewStore(client).List(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet.")
				return nil
			}
			t := newTable("ID", "Title", "Updated")
			for _, s := range list {
				updated := s.UpdatedAt
				if updated.IsZero() {
					updated = s.CreatedAt
				}
				t.Row(s.ID.String(), s.Title, updated.Format("2006-01-02 15:04"))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation; deleting a missing one is not an error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := backend.ParseSessionID(args[0])
			if err != nil {
				return err
			}
			client, err := a.client(true)
			if err != nil {
				return err
			}
			if err := sessions.NewStore(client).Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation %s.\n", id)
			return nil
		},
	})
	return cmd
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#56526e"))).
		Headers(headers...)
}

func parseScheduleID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid schedule id %q", raw)
	}
	return id, nil
}
