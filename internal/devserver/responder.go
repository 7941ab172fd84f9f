package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/llm"
)

// Turn is the input handed to a Responder.
type Turn struct {
	SessionID backend.SessionID
	History   []backend.Message
	Message   string
	Now       time.Time
}

// Responder produces the assistant reply for one turn.
type Responder interface {
	Respond(ctx context.Context, turn Turn) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, turn Turn) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, turn Turn) (string, error) { return f(ctx, turn) }

// StaticResponder always answers with the same text.
type StaticResponder string

func (r StaticResponder) Respond(context.Context, Turn) (string, error) { return string(r), nil }

// LLMResponder forwards the session history to a language model.
type LLMResponder struct {
	Client llm.Client
}

func (r LLMResponder) Respond(ctx context.Context, turn Turn) (string, error) {
	history := make([]llm.Message, 0, len(turn.History))
	for _, msg := range turn.History {
		history = append(history, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}
	reply, err := r.Client.Chat(ctx, llm.PrepareMessages(llm.SystemPrompt(turn.Now), history))
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.Client.Name(), err)
	}
	return reply, nil
}

var (
	dateRegexp = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	timeRegexp = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
)

// EchoResponder acknowledges the message, mentions uploaded documents, and
// proposes a schedule block when asked to schedule something on a date.
type EchoResponder struct{}

func (EchoResponder) Respond(_ context.Context, turn Turn) (string, error) {
	var b strings.Builder
	if docs := documentNames(turn.History); len(docs) > 0 {
		fmt.Fprintf(&b, "I have the following documents in context: %s.\n\n", strings.Join(docs, ", "))
	}
	fmt.Fprintf(&b, "You said: %s", strings.TrimSpace(turn.Message))

	lower := strings.ToLower(turn.Message)
	if !strings.Contains(lower, "schedule") && !strings.Contains(lower, "remind") {
		return b.String(), nil
	}
	date := dateRegexp.FindString(turn.Message)
	if date == "" {
		b.WriteString("\n\nTell me the date (YYYY-MM-DD) and I will draft a reminder.")
		return b.String(), nil
	}
	block := scheduleBlock{
		Action: "schedule",
		Title:  scheduleTitle(turn.Message),
		Date:   date,
	}
	if m := timeRegexp.FindStringSubmatch(turn.Message); m != nil {
		hour, _ := strconv.Atoi(m[1])
		block.Time = fmt.Sprintf("%02d:%s", hour, m[2])
	}
	raw, err := json.MarshalIndent(block, "", "  ")
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "\n\nI can add this to your calendar:\n```json\n%s\n```", raw)
	return b.String(), nil
}

// scheduleBlock field order matters: clients look for "action" first.
type scheduleBlock struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Date   string `json:"date"`
	Time   string `json:"time,omitempty"`
}

func scheduleTitle(message string) string {
	cleaned := dateRegexp.ReplaceAllString(message, "")
	cleaned = timeRegexp.ReplaceAllString(cleaned, "")
	lower := strings.ToLower(cleaned)
	for _, marker := range []string{"schedule", "remind me about", "remind me of", "remind me"} {
		if idx := strings.Index(lower, marker); idx >= 0 {
			cleaned = cleaned[idx+len(marker):]
			break
		}
	}
	for {
		trimmed := strings.Trim(strings.TrimSpace(cleaned), " .,:;!?")
		for _, suffix := range []string{" on", " at", " for"} {
			trimmed = strings.TrimSuffix(trimmed, suffix)
		}
		if trimmed == cleaned {
			break
		}
		cleaned = trimmed
	}
	if cleaned == "" {
		return "Court hearing"
	}
	return cleaned
}

func documentNames(history []backend.Message) []string {
	var names []string
	seen := map[string]bool{}
	for _, msg := range history {
		if msg.DocumentName != "" && !seen[msg.DocumentName] {
			seen[msg.DocumentName] = true
			names = append(names, msg.DocumentName)
		}
	}
	return names
}
