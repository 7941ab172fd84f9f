package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "mistral:7b-instruct"
	defaultOpenAIBase  = "https://api.together.xyz/v1"
	defaultOpenAIModel = "mistralai/Mixtral-8x7B-Instruct-v0.1"
	defaultMaxTokens   = 1024
)

const defaultLLMHTTPTimeout = 3 * time.Minute

// ErrEmptyReply is returned when the provider answers without any content.
var ErrEmptyReply = errors.New("llm: empty reply")

// Config describes how to build a chat client.
type Config struct {
	Provider   string
	Model      string
	Endpoint   string
	APIKey     string
	MaxTokens  int
	HTTPClient *http.Client
}

// Role values match the chat completion wire format of both providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client produces a completion for a prepared conversation.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// New builds a client for cfg.Provider. Empty fields fall back to the
// provider's environment variables and then to built-in defaults.
func New(cfg Config) (Client, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOllama:
		return &ollamaClient{
			host:   strings.TrimRight(firstNonEmpty(cfg.Endpoint, os.Getenv("OLLAMA_HOST"), defaultOllamaHost), "/"),
			model:  firstNonEmpty(cfg.Model, os.Getenv("OLLAMA_MODEL"), defaultOllamaModel),
			client: pickHTTPClient(cfg.HTTPClient),
		}, nil
	case ProviderOpenAI:
		key := firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, errors.New("llm: openai provider needs an api key")
		}
		model := firstNonEmpty(cfg.Model, os.Getenv("OPENAI_MODEL"), defaultOpenAIModel)
		base := strings.TrimRight(firstNonEmpty(cfg.Endpoint, os.Getenv("OPENAI_BASE_URL"), defaultOpenAIBase), "/")
		return newOpenAIClient(cfg, key, model, base, maxTokens), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// Local models often need more than a minute; callers cancel through ctx.
	return &http.Client{Timeout: defaultLLMHTTPTimeout}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
