package sessions

import (
	"errors"

	"github.com/csheth/lexdesk/internal/backend"
)

// ErrNotFound reports that the requested session was deleted on the server.
var ErrNotFound = errors.New("conversation deleted")

// EntryID identifies a transcript entry locally.
type EntryID int

// State tags a transcript entry.
type State int

const (
	// Confirmed entries are known to the server.
	Confirmed State = iota
	// Optimistic entries were shown before the server acknowledged them.
	Optimistic
)

func (s State) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case Optimistic:
		return "optimistic"
	default:
		return "unknown"
	}
}

// Entry is one line of the local transcript. Its message never changes after
// it is appended; only an optimistic entry's state may move to Confirmed.
type Entry struct {
	ID      EntryID
	State   State
	Message backend.Message
}

func (e Entry) Pending() bool { return e.State == Optimistic }
