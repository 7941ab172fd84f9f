// Package intent finds machine-readable scheduling proposals embedded in
// assistant replies.
//
// The assistant proposes a calendar entry by appending a fenced block:
//
//	```json
//	{"action": "schedule", "title": "Filing", "date": "2025-04-10", "time": "09:00"}
//	```
//
// Only the first such block is considered.
package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/csheth/lexdesk/internal/backend"
)

// Version names the embedded-block convention understood by Extract.
const Version = "schedule/v1"

// DefaultTime is used when a suggestion carries a date but no time.
const DefaultTime = "10:00"

// ErrParseFailed reports a candidate block whose JSON did not decode.
var ErrParseFailed = errors.New("schedule block is not valid JSON")

var blockRegexp = regexp.MustCompile("```json\\s*(\\{\\s*\"action\"\\s*:\\s*\"schedule\"[\\s\\S]*?\\})\\s*```")

// Suggestion is a proposed calendar entry.
type Suggestion struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	Time  string `json:"time,omitempty"`
}

// Result is the user-visible text plus an optional suggestion.
type Result struct {
	DisplayText string
	Suggestion  *Suggestion
}

// Extract never fails: anything that does not parse is shown verbatim.
func Extract(text string) Result {
	res, _ := ExtractStrict(text)
	return res
}

// ExtractStrict behaves like Extract but reports malformed blocks.
func ExtractStrict(text string) (Result, error) {
	loc := blockRegexp.FindStringSubmatchIndex(text)
	if loc == nil {
		return Result{DisplayText: text}, nil
	}
	body := text[loc[2]:loc[3]]

	var payload struct {
		Action string `json:"action"`
		Suggestion
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Result{DisplayText: text}, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	s := payload.Suggestion
	s.Title = strings.TrimSpace(s.Title)
	s.Date = strings.TrimSpace(s.Date)
	s.Time = strings.TrimSpace(s.Time)

	display := strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	return Result{DisplayText: display, Suggestion: &s}, nil
}

// When resolves the suggestion to a point in time in loc.
func (s Suggestion) When(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	clock := s.Time
	if clock == "" {
		clock = DefaultTime
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", s.Date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid suggestion date %q time %q: %w", s.Date, clock, err)
	}
	return at, nil
}

// ScheduleRequest converts the suggestion to a Backend API payload with the
// court date and reminder date both set to the suggested time.
func (s Suggestion) ScheduleRequest() (backend.ScheduleRequest, error) {
	if s.Title == "" {
		return backend.ScheduleRequest{}, errors.New("suggestion has no title")
	}
	at, err := s.When(time.Local)
	if err != nil {
		return backend.ScheduleRequest{}, err
	}
	ts := backend.NewTimestamp(at)
	return backend.ScheduleRequest{
		CaseName:            s.Title,
		CourtDate:           ts,
		ReminderDate:        &ts,
		Status:              backend.StatusScheduled,
		NotificationEnabled: true,
	}, nil
}

// String renders the suggestion for display, e.g. "Filing on 2025-04-10 at 09:00".
func (s Suggestion) String() string {
	clock := s.Time
	if clock == "" {
		clock = DefaultTime
	}
	return fmt.Sprintf("%s on %s at %s", s.Title, s.Date, clock)
}
