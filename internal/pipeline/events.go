package pipeline

// State is the pipeline's position within a turn.
type State int

const (
	Idle State = iota
	UploadingAttachment
	EnsuringSession
	Sending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case UploadingAttachment:
		return "uploading attachment"
	case EnsuringSession:
		return "creating session"
	case Sending:
		return "sending"
	default:
		return "unknown"
	}
}

// EventKind says what changed.
type EventKind int

const (
	EventState EventKind = iota
	EventTranscript
	EventSessions
	EventAttachment
	EventReset
)

// Event is delivered to the Observer after every state change or transcript
// mutation.
type Event struct {
	Kind       EventKind
	Generation uint64
	State      State
}

// Observer receives events synchronously; it must not block.
type Observer func(Event)
