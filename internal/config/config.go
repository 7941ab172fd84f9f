package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "LEXDESK"

// Config holds every runtime option of the client and the dev backend.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Log       LogConfig       `mapstructure:"log"`
	UI        UIConfig        `mapstructure:"ui"`
	DevServer DevServerConfig `mapstructure:"devserver"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	TokenFile string `mapstructure:"token_file"`
}

type ReminderConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	DueWindow       time.Duration `mapstructure:"due_window"`
	UpcomingHorizon time.Duration `mapstructure:"upcoming_horizon"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type UIConfig struct {
	AltScreen bool `mapstructure:"alt_screen"`
}

type DevServerConfig struct {
	Addr     string    `mapstructure:"addr"`
	Email    string    `mapstructure:"email"`
	Password string    `mapstructure:"password"`
	LLM      LLMConfig `mapstructure:"llm"`
}

// LLMConfig selects the model behind the dev backend. An empty provider keeps
// the built-in echo responder.
type LLMConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	Endpoint  string `mapstructure:"endpoint"`
	APIKey    string `mapstructure:"api_key"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// New returns a viper instance with defaults and env binding applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	dir := defaultDir()
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.timeout", 2*time.Minute)
	v.SetDefault("auth.token_file", filepath.Join(dir, "token"))
	v.SetDefault("reminder.poll_interval", 30*time.Second)
	v.SetDefault("reminder.due_window", 60*time.Second)
	v.SetDefault("reminder.upcoming_horizon", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", filepath.Join(dir, "lexdesk.log"))
	v.SetDefault("ui.alt_screen", true)
	v.SetDefault("devserver.addr", ":8000")
	v.SetDefault("devserver.email", "advocate@example.com")
	v.SetDefault("devserver.password", "lexdesk")
	v.SetDefault("devserver.llm.provider", "")
	v.SetDefault("devserver.llm.model", "")
	v.SetDefault("devserver.llm.endpoint", "")
	v.SetDefault("devserver.llm.api_key", "")
	v.SetDefault("devserver.llm.max_tokens", 1024)
}

// Load reads the optional config file at path into v and decodes it. An empty
// path falls back to config.yaml in the user config dir when it exists.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		candidate := filepath.Join(defaultDir(), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that break the reminder guarantees.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must be configured")
	}
	r := c.Reminder
	if r.PollInterval <= 0 || r.DueWindow <= 0 {
		return errors.New("reminder.poll_interval and reminder.due_window must be positive")
	}
	// A due entry is only guaranteed to be observed when at least one tick
	// lands inside its window.
	if r.PollInterval >= r.DueWindow {
		return fmt.Errorf("reminder.poll_interval (%s) must be shorter than reminder.due_window (%s)", r.PollInterval, r.DueWindow)
	}
	if r.UpcomingHorizon <= 0 {
		return errors.New("reminder.upcoming_horizon must be positive")
	}
	return nil
}

func defaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "lexdesk")
}
