package llm

import (
	"fmt"
	"strings"
	"time"
)

// maxMessageChars clips a single turn so a pasted document cannot exhaust
// the model context on its own.
const maxMessageChars = 12_000

const truncatedMarker = "...[truncated]"

const systemPromptTemplate = `You are an advanced legal assistant for practising advocates. Current Date: %s

Guidelines:
1. Conversation: answer casual greetings briefly and without legal jargon. Do not invent legal scenarios unless asked.
2. Legal knowledge: when discussing legal matters cite the Bharatiya Nyaya Sanhita (BNS), Bharatiya Nagarik Suraksha Sanhita (BNSS) and Bharatiya Sakshya Adhiniyam (BSA), together with the corresponding IPC, CrPC or IEA sections.
3. Documents: when the user has shared a document, ground your answer in its text and say so when the document does not cover the question.
4. Scheduling: only when the user explicitly asks to schedule, add to calendar or be reminded of an event:
   - If the requested date is before the Current Date, do not schedule and ask for a future date.
   - If the title, date or time is missing or ambiguous, ask for it.
   - Only when title, a future date and time are all present, end your reply with exactly one block in this format:
` + "```json" + `
{
  "action": "schedule",
  "title": "Event Title",
  "date": "YYYY-MM-DD",
  "time": "HH:MM"
}
` + "```" + `
Never output this block for general questions, past dates or incomplete details.`

// SystemPrompt returns the assistant instructions anchored to now's date.
func SystemPrompt(now time.Time) string {
	return fmt.Sprintf(systemPromptTemplate, now.Format("2006-01-02"))
}

// PrepareMessages prepends the system prompt and normalises history for
// providers that reject empty turns or consecutive turns from one role.
// Empty turns are dropped, long turns are clipped and adjacent turns with the
// same role are merged.
func PrepareMessages(system string, history []Message) []Message {
	out := make([]Message, 0, len(history)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, Message{Role: RoleSystem, Content: system})
	}
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		content = clipText(content, maxMessageChars)
		if n := len(out); n > 0 && out[n-1].Role == msg.Role {
			out[n-1].Content += "\n\n" + content
			continue
		}
		out = append(out, Message{Role: msg.Role, Content: content})
	}
	return out
}

func clipText(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + truncatedMarker
}
