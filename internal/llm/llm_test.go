package llm

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestPickHTTPClientHonorsCustomClient(t *testing.T) {
	custom := &http.Client{Timeout: 42 * time.Second}
	if got := pickHTTPClient(custom); got != custom {
		t.Fatalf("expected custom client to be returned")
	}
}

func TestPickHTTPClientUsesLongerTimeout(t *testing.T) {
	client := pickHTTPClient(nil)
	if client.Timeout != defaultLLMHTTPTimeout {
		t.Fatalf("expected default timeout %s, got %s", defaultLLMHTTPTimeout, client.Timeout)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("OPENAI_API_KEY", "")

	client, err := New(Config{Provider: "Ollama"})
	if err != nil {
		t.Fatalf("ollama: %v", err)
	}
	oc, ok := client.(*ollamaClient)
	if !ok {
		t.Fatalf("expected ollama client, got %T", client)
	}
	if oc.host != defaultOllamaHost || oc.model != defaultOllamaModel {
		t.Fatalf("unexpected ollama defaults: %+v", oc)
	}

	if _, err := New(Config{Provider: ProviderOpenAI}); err == nil {
		t.Fatal("expected missing api key to fail")
	}
	client, err = New(Config{Provider: ProviderOpenAI, APIKey: "k", Model: "mixtral"})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	ac, ok := client.(*openAIClient)
	if !ok {
		t.Fatalf("expected openai client, got %T", client)
	}
	if ac.model != "mixtral" || ac.maxTokens != defaultMaxTokens {
		t.Fatalf("unexpected openai client: model=%s maxTokens=%d", ac.model, ac.maxTokens)
	}

	if _, err := New(Config{Provider: "bard"}); err == nil {
		t.Fatal("expected unknown provider to fail")
	}
}

func TestSystemPromptCarriesDate(t *testing.T) {
	prompt := SystemPrompt(time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC))
	if !strings.Contains(prompt, "Current Date: 2025-04-01") {
		t.Fatalf("prompt missing date: %s", prompt)
	}
	if !strings.Contains(prompt, `"action": "schedule"`) {
		t.Fatalf("prompt missing schedule block format")
	}
}

func TestPrepareMessagesMergesAndClips(t *testing.T) {
	long := strings.Repeat("a", maxMessageChars+10)
	got := PrepareMessages("sys", []Message{
		{Role: RoleUser, Content: "I have uploaded a document"},
		{Role: RoleUser, Content: "  Summarize this  "},
		{Role: RoleAssistant, Content: "   "},
		{Role: RoleAssistant, Content: "Sure."},
		{Role: RoleUser, Content: long},
	})
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(got), got)
	}
	if got[0].Role != RoleSystem || got[0].Content != "sys" {
		t.Fatalf("unexpected system message: %+v", got[0])
	}
	if got[1].Content != "I have uploaded a document\n\nSummarize this" {
		t.Fatalf("expected merged user turns, got %q", got[1].Content)
	}
	if got[2].Role != RoleAssistant || got[2].Content != "Sure." {
		t.Fatalf("unexpected assistant turn: %+v", got[2])
	}
	if !strings.HasSuffix(got[3].Content, truncatedMarker) || len(got[3].Content) != maxMessageChars+len(truncatedMarker) {
		t.Fatalf("expected clipped turn, got length %d", len(got[3].Content))
	}
}

func TestPrepareMessagesWithoutSystem(t *testing.T) {
	got := PrepareMessages(" ", []Message{{Role: RoleUser, Content: "hi"}})
	if len(got) != 1 || got[0].Role != RoleUser {
		t.Fatalf("unexpected messages: %+v", got)
	}
}
