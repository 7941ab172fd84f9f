// Command lexdesk-devserver serves an in-memory Backend API for local use and
// demos. Assistant replies come from the echo responder unless a model
// provider is configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/csheth/lexdesk/internal/config"
	"github.com/csheth/lexdesk/internal/devserver"
	"github.com/csheth/lexdesk/internal/llm"
	"github.com/csheth/lexdesk/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lexdesk-devserver:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.New()
	var cfgFile string
	cmd := &cobra.Command{
		Use:          "lexdesk-devserver",
		Short:        "Serve an in-memory legal assistant backend",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/lexdesk/config.yaml)")
	flags.String("addr", "", "listen address")
	flags.String("email", "", "login email")
	flags.String("password", "", "login password")
	flags.String("log-level", "", "log level")
	flags.String("llm-provider", "", "answer with a model: ollama or openai (default echo)")
	flags.String("llm-model", "", "model name for the provider")
	flags.String("llm-endpoint", "", "provider base URL")
	_ = v.BindPFlag("devserver.addr", flags.Lookup("addr"))
	_ = v.BindPFlag("devserver.email", flags.Lookup("email"))
	_ = v.BindPFlag("devserver.password", flags.Lookup("password"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("devserver.llm.provider", flags.Lookup("llm-provider"))
	_ = v.BindPFlag("devserver.llm.model", flags.Lookup("llm-model"))
	_ = v.BindPFlag("devserver.llm.endpoint", flags.Lookup("llm-endpoint"))
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	closer, err := logger.Init(cfg.Log.Level, cfg.Log.Format, "")
	if err != nil {
		return err
	}
	defer closer.Close()

	responder, err := newResponder(cfg.DevServer.LLM)
	if err != nil {
		return err
	}
	addr := cfg.DevServer.Addr
	srv := devserver.New(devserver.Options{
		Email:     cfg.DevServer.Email,
		Password:  cfg.DevServer.Password,
		Responder: responder,
	})
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Infof("[devserver] listening on %s (login %s)", addr, cfg.DevServer.Email)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Errorf("[devserver] listen on %s: %v", addr, err)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Infof("[devserver] shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func newResponder(cfg config.LLMConfig) (devserver.Responder, error) {
	if cfg.Provider == "" {
		return devserver.EchoResponder{}, nil
	}
	client, err := llm.New(llm.Config{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		Endpoint:  cfg.Endpoint,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("[devserver] assistant replies from %s", client.Name())
	return devserver.LLMResponder{Client: client}, nil
}
