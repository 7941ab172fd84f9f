package reminder

import (
	"time"

	"github.com/csheth/lexdesk/internal/backend"
)

type EventKind int

const (
	// EventDue fires once per schedule entry when its court date is within the due window.
	EventDue EventKind = iota
	// EventUpcoming carries the fresh upcoming list after every successful poll.
	EventUpcoming
	// EventAuthExpired fires once when the token is rejected; polling stops.
	EventAuthExpired
)

func (k EventKind) String() string {
	switch k {
	case EventDue:
		return "due"
	case EventUpcoming:
		return "upcoming"
	case EventAuthExpired:
		return "auth-expired"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind     EventKind
	Entry    backend.ScheduleEntry
	Upcoming []backend.ScheduleEntry
	At       time.Time
}
