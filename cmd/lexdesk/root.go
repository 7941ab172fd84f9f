package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/config"
	"github.com/csheth/lexdesk/internal/logger"
)

// app carries the state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logs    io.Closer
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	chat := newChatCommand(a)
	root := &cobra.Command{
		Use:   "lexdesk",
		Short: "Terminal desk for the legal research assistant",
		Long: `lexdesk talks to the legal assistant backend: ask questions, attach PDFs
for review, manage past conversations and get reminded before hearings.

Examples:
  lexdesk login --email advocate@example.com
  lexdesk                          # open the chat desk
  lexdesk schedule add --title "Smith v Jones" --date 2025-04-10 --time 09:30
  lexdesk reminders watch`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
		RunE:              chat.RunE,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/lexdesk/config.yaml)")
	flags.String("api-url", "", "backend base URL, e.g. http://localhost:8000/api")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("api.base_url", flags.Lookup("api-url"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(chat)
	root.AddCommand(newLoginCommand(a))
	root.AddCommand(newLogoutCommand(a))
	root.AddCommand(newSessionsCommand(a))
	root.AddCommand(newScheduleCommand(a))
	root.AddCommand(newRemindersCommand(a))
	return root
}

// setup loads configuration and points the logger at the right sink. The
// chat desk owns the terminal, so it logs to a file.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logPath := ""
	if cmd.Name() == "chat" || cmd == cmd.Root() {
		logPath = cfg.Log.File
	}
	closer, err := logger.Init(cfg.Log.Level, cfg.Log.Format, logPath)
	if err != nil {
		return err
	}
	a.logs = closer
	logger.Debugf("[cli] %s using %s", cmd.CommandPath(), cfg.API.BaseURL)
	return nil
}

func (a *app) teardown() {
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

func (a *app) tokens() *backend.TokenStore {
	return backend.NewTokenStore(a.cfg.Auth.TokenFile)
}

// client builds a Backend API client. With requireLogin set, a missing token
// is an error instead of an anonymous client.
func (a *app) client(requireLogin bool) (*backend.Client, error) {
	token, err := a.tokens().Load()
	switch {
	case errors.Is(err, backend.ErrNoToken) && requireLogin:
		return nil, fmt.Errorf("%w: run `lexdesk login` first", err)
	case err != nil && !errors.Is(err, backend.ErrNoToken):
		return nil, err
	}
	return backend.New(backend.Config{
		BaseURL: a.cfg.API.BaseURL,
		Token:   token,
		Timeout: a.cfg.API.Timeout,
	})
}
