package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SessionID is assigned by the server. Zero means no session.
type SessionID int64

// Valid reports whether the id refers to a server-side session.
func (id SessionID) Valid() bool { return id > 0 }

func (id SessionID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseSessionID parses a decimal session id as typed on the command line.
func ParseSessionID(raw string) (SessionID, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid session id %q", raw)
	}
	return SessionID(n), nil
}

// Role is the closed set of transcript authors.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is a server-side conversation container.
type Session struct {
	ID        SessionID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at,omitempty"`
}

// Message is one transcript entry as stored by the server.
type Message struct {
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	DocumentName string    `json:"document_name,omitempty"`
	CreatedAt    Timestamp `json:"created_at,omitempty"`
}

// HasAttachment reports whether the message references an uploaded document.
func (m Message) HasAttachment() bool { return m.DocumentName != "" }

// Schedule statuses. Unknown values coming from the server are kept verbatim.
const (
	StatusScheduled  = "Scheduled"
	StatusInProgress = "In Progress"
	StatusClosed     = "Closed"
)

// ScheduleEntry is a court date tracked by the server.
type ScheduleEntry struct {
	ID                  int64      `json:"id"`
	CaseName            string     `json:"case_name"`
	CourtDate           Timestamp  `json:"court_date"`
	ReminderDate        *Timestamp `json:"reminder_date,omitempty"`
	Status              string     `json:"status"`
	NotificationEnabled bool       `json:"notification_enabled"`
	Progress            string     `json:"progress,omitempty"`
}

// ReminderAt is when the entry should be surfaced to the user.
func (e ScheduleEntry) ReminderAt() time.Time {
	if e.ReminderDate != nil && !e.ReminderDate.IsZero() {
		return e.ReminderDate.Time
	}
	return e.CourtDate.Time
}

// ScheduleRequest is the payload accepted by POST /schedule/.
type ScheduleRequest struct {
	CaseName            string     `json:"case_name"`
	CourtDate           Timestamp  `json:"court_date"`
	ReminderDate        *Timestamp `json:"reminder_date,omitempty"`
	Status              string     `json:"status"`
	NotificationEnabled bool       `json:"notification_enabled"`
	Progress            string     `json:"progress,omitempty"`
}

// User is the identity returned by /auth/me.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// DisplayName prefers the full name and falls back to the email.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// MessageRequest is the body of POST /chat/message.
type MessageRequest struct {
	SessionID *SessionID `json:"session_id"`
	Message   string     `json:"message"`
}

// MessageReply is the response of POST /chat/message.
type MessageReply struct {
	Response  string    `json:"response"`
	SessionID SessionID `json:"session_id"`
}

// NaiveLayout is the local-time layout used on the wire.
const NaiveLayout = "2006-01-02T15:04:05"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	NaiveLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Timestamp accepts RFC 3339 or naive timestamps and emits naive local time.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

// ParseTimestamp parses raw, interpreting naive values in local time.
func ParseTimestamp(raw string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if layout == time.RFC3339Nano {
			if t, err := time.Parse(layout, raw); err == nil {
				return Timestamp{Time: t.Local()}, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(NaiveLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if raw == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
