package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/intent"
)

func newScheduleCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage hearings and reminders",
	}

	var upcomingDays int
	list := &cobra.Command{
		Use:   "list",
		Short: "List scheduled hearings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client(true)
			if err != nil {
				return err
			}
			var entries []backend.ScheduleEntry
			if upcomingDays > 0 {
				entries, err = client.UpcomingSchedule(cmd.Context(), upcomingDays)
			} else {
				entries, err = client.ListSchedule(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing scheduled.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), scheduleTable(entries).Render())
			return nil
		},
	}
	list.Flags().IntVar(&upcomingDays, "upcoming", 0, "only show hearings within this many days")

	var title, date, clock string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a hearing with a reminder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := intent.Suggestion{Title: title, Date: date, Time: clock}.ScheduleRequest()
			if err != nil {
				return err
			}
			client, err := a.client(true)
			if err != nil {
				return err
			}
			entry, err := client.CreateSchedule(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduled #%d %s at %s.\n", entry.ID, entry.CaseName, entry.CourtDate)
			return nil
		},
	}
	add.Flags().StringVar(&title, "title", "", "case name")
	add.Flags().StringVar(&date, "date", "", "hearing date (YYYY-MM-DD)")
	add.Flags().StringVar(&clock, "time", intent.DefaultTime, "hearing time (HH:MM)")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("date")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scheduled hearing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseScheduleID(args[0])
			if err != nil {
				return err
			}
			client, err := a.client(true)
			if err != nil {
				return err
			}
			if err := client.DeleteSchedule(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted schedule entry #%d.\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func scheduleTable(entries []backend.ScheduleEntry) *table.Table {
	t := newTable("ID", "Case", "Court date", "Status", "Notify")
	for _, e := range entries {
		t.Row(
			strconv.FormatInt(e.ID, 10),
			e.CaseName,
			e.CourtDate.Format("2006-01-02 15:04"),
			e.Status,
			strconv.FormatBool(e.NotificationEnabled),
		)
	}
	return t
}
