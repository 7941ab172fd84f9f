// Package pipeline runs one conversational turn at a time: optional document
// upload, session bootstrap, optimistic user echo, and the assistant reply.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/csheth/lexdesk/internal/attachment"
	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/intent"
	"github.com/csheth/lexdesk/internal/logger"
	"github.com/csheth/lexdesk/internal/sessions"
)

// DocumentSessionTitle names sessions created to hold an upload.
const DocumentSessionTitle = "New Document Analysis"

var (
	ErrBusy         = errors.New("a message is already being sent")
	ErrEmpty        = errors.New("nothing to send")
	ErrUploadFailed = errors.New("attachment upload failed")
	ErrSendFailed   = errors.New("message send failed")
	// ErrStale is returned when the conversation was abandoned mid-turn; the
	// turn's results were discarded.
	ErrStale = errors.New("conversation changed while the message was in flight")
)

// API is the part of the Backend API the pipeline calls directly.
type API interface {
	GetSession(ctx context.Context, id backend.SessionID) ([]backend.Message, error)
	SendMessage(ctx context.Context, sessionID backend.SessionID, text string) (backend.MessageReply, error)
	UploadAttachment(ctx context.Context, sessionID backend.SessionID, name string, content io.Reader) error
	CreateSchedule(ctx context.Context, req backend.ScheduleRequest) (backend.ScheduleEntry, error)
}

// Result summarises a completed turn.
type Result struct {
	SessionID backend.SessionID
	// Uploaded is the attachment name when the turn uploaded one.
	Uploaded string
	// Reply is empty for attachment-only turns.
	Reply   string
	Extract intent.Result
}

// Pipeline serialises turns for a single conversation view.
type Pipeline struct {
	api      API
	store    *sessions.Store
	observer Observer

	mu         sync.Mutex
	state      State
	generation uint64
	pending    *attachment.Info
}

// New wires a pipeline to api and store. observer may be nil.
func New(api API, store *sessions.Store, observer Observer) *Pipeline {
	return &Pipeline{api: api, store: store, observer: observer}
}

func (p *Pipeline) Store() *sessions.Store { return p.store }

// Busy reports whether a turn is in flight.
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state != Idle
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Generation identifies the current conversation view.
func (p *Pipeline) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Pending returns the staged attachment, if any.
func (p *Pipeline) Pending() (attachment.Info, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return attachment.Info{}, false
	}
	return *p.pending, true
}

// Attach stages the PDF at path for the next turn, replacing any previous one.
func (p *Pipeline) Attach(path string) (attachment.Info, error) {
	info, err := attachment.Inspect(strings.TrimSpace(path))
	if err != nil {
		return attachment.Info{}, err
	}
	p.mu.Lock()
	p.pending = &info
	gen := p.generation
	p.mu.Unlock()
	p.emit(Event{Kind: EventAttachment, Generation: gen})
	return info, nil
}

// ClearAttachment drops the staged attachment.
func (p *Pipeline) ClearAttachment() {
	p.mu.Lock()
	had := p.pending != nil
	p.pending = nil
	gen := p.generation
	p.mu.Unlock()
	if had {
		p.emit(Event{Kind: EventAttachment, Generation: gen})
	}
}

// NewConversation abandons the current view: the store is reset, the staged
// attachment is dropped, and any in-flight turn becomes stale.
func (p *Pipeline) NewConversation() {
	p.mu.Lock()
	p.generation++
	p.state = Idle
	p.pending = nil
	p.store.Reset()
	gen := p.generation
	p.mu.Unlock()
	logger.Debugf("[pipeline] new conversation (generation %d)", gen)
	p.emit(Event{Kind: EventReset, Generation: gen, State: Idle})
}

// Open loads an existing session as the current view. Like NewConversation it
// invalidates any in-flight turn.
func (p *Pipeline) Open(ctx context.Context, id backend.SessionID) ([]sessions.Entry, error) {
	p.mu.Lock()
	p.generation++
	p.state = Idle
	p.pending = nil
	gen := p.generation
	p.mu.Unlock()
	p.emit(Event{Kind: EventReset, Generation: gen, State: Idle})

	messages, err := p.api.GetSession(ctx, id)
	var entries []sessions.Entry
	switch {
	case backend.IsNotFound(err):
		if p.commit(gen, func() { p.store.Discard(id) }, EventTranscript, EventSessions) {
			return nil, fmt.Errorf("open session %s: %w", id, sessions.ErrNotFound)
		}
		return nil, ErrStale
	case err != nil:
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}
	if !p.commit(gen, func() { entries = p.store.Replace(id, messages) }, EventTranscript) {
		return nil, ErrStale
	}
	return entries, nil
}

// Send runs one turn. Only one turn may be in flight; a second call returns
// ErrBusy without side effects.
func (p *Pipeline) Send(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)

	p.mu.Lock()
	if p.state != Idle {
		p.mu.Unlock()
		return Result{}, ErrBusy
	}
	if text == "" && p.pending == nil {
		p.mu.Unlock()
		return Result{}, ErrEmpty
	}
	gen := p.generation
	staged := p.pending
	p.state = Sending
	if staged != nil {
		p.state = UploadingAttachment
	}
	first := p.state
	p.mu.Unlock()
	p.emit(Event{Kind: EventState, Generation: gen, State: first})
	defer p.finish(gen)

	var res Result
	if staged != nil {
		id, err := p.upload(ctx, gen, staged)
		if err != nil {
			return Result{}, err
		}
		res.SessionID = id
		res.Uploaded = staged.Name
	}
	if text == "" {
		return res, nil
	}

	var entryID sessions.EntryID
	var target backend.SessionID
	var hadSession bool
	ok := p.commit(gen, func() {
		p.state = Sending
		target, hadSession = p.store.Active()
		entryID = p.store.AppendOptimistic(backend.Message{Role: backend.RoleUser, Content: text})
	}, EventState, EventTranscript)
	if !ok {
		return Result{}, ErrStale
	}

	reply, err := p.api.SendMessage(ctx, target, text)
	if err != nil {
		if !p.current(gen) {
			return Result{}, ErrStale
		}
		logger.Warnf("[pipeline] send failed: %v", err)
		return Result{}, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	ok = p.commit(gen, func() {
		p.store.AppendConfirmed(backend.Message{Role: backend.RoleAssistant, Content: reply.Response})
		p.store.Confirm(entryID)
		if !hadSession && reply.SessionID.Valid() {
			p.store.Adopt(reply.SessionID)
		}
	}, EventTranscript)
	if !ok {
		return Result{}, ErrStale
	}
	if !hadSession {
		if err := p.store.Refresh(ctx); err != nil {
			logger.Warnf("[pipeline] refresh session list: %v", err)
		} else {
			p.emit(Event{Kind: EventSessions, Generation: gen})
		}
	}

	extract, perr := intent.ExtractStrict(reply.Response)
	if perr != nil {
		logger.Debugf("[pipeline] ignoring schedule block: %v", perr)
	}
	res.SessionID = reply.SessionID
	res.Reply = reply.Response
	res.Extract = extract
	return res, nil
}

// upload binds staged to a session, creating one first when none is active,
// then reloads the transcript so it shows the stored attachment reference.
func (p *Pipeline) upload(ctx context.Context, gen uint64, staged *attachment.Info) (backend.SessionID, error) {
	id, ok := p.store.Active()
	if !ok {
		if !p.commit(gen, func() { p.state = EnsuringSession }, EventState) {
			return 0, ErrStale
		}
		session, err := p.store.Create(ctx, DocumentSessionTitle)
		if err != nil {
			if !p.current(gen) {
				return 0, ErrStale
			}
			return 0, fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		id = session.ID
		if !p.commit(gen, func() {
			p.store.Adopt(id)
			p.state = UploadingAttachment
		}, EventState, EventSessions) {
			return 0, ErrStale
		}
	}

	file, err := os.Open(staged.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	err = p.api.UploadAttachment(ctx, id, staged.Name, file)
	file.Close()
	if err != nil {
		if !p.current(gen) {
			return 0, ErrStale
		}
		logger.Warnf("[pipeline] upload %s failed: %v", staged.Name, err)
		return 0, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	messages, err := p.api.GetSession(ctx, id)
	if err != nil {
		logger.Warnf("[pipeline] reload session %s after upload: %v", id, err)
	}
	if !p.commit(gen, func() {
		if p.pending == staged {
			p.pending = nil
		}
		if err == nil {
			p.store.Replace(id, messages)
		}
	}, EventAttachment, EventTranscript) {
		return 0, ErrStale
	}
	logger.Infof("[pipeline] uploaded %s to session %s", staged.Name, id)
	return id, nil
}

// AcceptSuggestion creates the calendar entry a reply proposed. The transcript
// is not touched.
func (p *Pipeline) AcceptSuggestion(ctx context.Context, s intent.Suggestion) (backend.ScheduleEntry, error) {
	req, err := s.ScheduleRequest()
	if err != nil {
		return backend.ScheduleEntry{}, err
	}
	entry, err := p.api.CreateSchedule(ctx, req)
	if err != nil {
		return backend.ScheduleEntry{}, fmt.Errorf("schedule %q: %w", s.Title, err)
	}
	logger.Infof("[pipeline] scheduled %q for %s", entry.CaseName, entry.CourtDate)
	return entry, nil
}

// commit runs fn under the pipeline lock if gen is still current and then
// emits kinds.
func (p *Pipeline) commit(gen uint64, fn func(), kinds ...EventKind) bool {
	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		return false
	}
	fn()
	state := p.state
	p.mu.Unlock()
	for _, kind := range kinds {
		p.emit(Event{Kind: kind, Generation: gen, State: state})
	}
	return true
}

func (p *Pipeline) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation == gen
}

func (p *Pipeline) finish(gen uint64) {
	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		return
	}
	p.state = Idle
	p.mu.Unlock()
	p.emit(Event{Kind: EventState, Generation: gen, State: Idle})
}

func (p *Pipeline) emit(ev Event) {
	if p.observer != nil {
		p.observer(ev)
	}
}
