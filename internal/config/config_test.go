package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	require.Equal(t, 30*time.Second, cfg.Reminder.PollInterval)
	require.Equal(t, 60*time.Second, cfg.Reminder.DueWindow)
	require.Equal(t, 24*time.Hour, cfg.Reminder.UpcomingHorizon)
	require.True(t, cfg.UI.AltScreen)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("api:\n  base_url: http://example.test/api/\nreminder:\n  poll_interval: 10s\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, body, 0o644))
	t.Setenv("LEXDESK_LOG_FORMAT", "json")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	require.Equal(t, "http://example.test/api", cfg.API.BaseURL)
	require.Equal(t, 10*time.Second, cfg.Reminder.PollInterval)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestValidateRejectsSlowPolling(t *testing.T) {
	cfg := Config{
		API: APIConfig{BaseURL: "http://x"},
		Reminder: ReminderConfig{
			PollInterval:    time.Minute,
			DueWindow:       time.Minute,
			UpcomingHorizon: time.Hour,
		},
	}
	require.Error(t, cfg.Validate())

	cfg.Reminder.PollInterval = 30 * time.Second
	require.NoError(t, cfg.Validate())
}

func TestDevServerModelFromEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LEXDESK_DEVSERVER_LLM_PROVIDER", "ollama")
	t.Setenv("LEXDESK_DEVSERVER_LLM_MODEL", "mistral:7b")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	require.Equal(t, "ollama", cfg.DevServer.LLM.Provider)
	require.Equal(t, "mistral:7b", cfg.DevServer.LLM.Model)
	require.Equal(t, 1024, cfg.DevServer.LLM.MaxTokens)
	require.Empty(t, cfg.DevServer.LLM.APIKey)
}
