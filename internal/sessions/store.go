package sessions

import (
	"context"
	"fmt"
	"sync"

	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/logger"
)

// API is the part of the Backend API the store depends on.
type API interface {
	ListSessions(ctx context.Context) ([]backend.Session, error)
	GetSession(ctx context.Context, id backend.SessionID) ([]backend.Message, error)
	CreateSession(ctx context.Context, title string) (backend.Session, error)
	DeleteSession(ctx context.Context, id backend.SessionID) error
}

// Store tracks the session list, the active session and its transcript.
// At most one session is active at a time.
type Store struct {
	api API

	mu         sync.Mutex
	sessions   []backend.Session
	active     backend.SessionID
	transcript []Entry
	nextEntry  EntryID
}

func NewStore(api API) *Store {
	return &Store{api: api}
}

// List fetches the session list and caches it in server order.
func (s *Store) List(ctx context.Context) ([]backend.Session, error) {
	list, err := s.api.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	s.mu.Lock()
	s.sessions = append([]backend.Session(nil), list...)
	s.mu.Unlock()
	return list, nil
}

// Refresh re-fetches the cached session list.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.List(ctx)
	return err
}

// Load makes id active and replaces the transcript with the server copy.
// A session that no longer exists resets the store and yields ErrNotFound.
func (s *Store) Load(ctx context.Context, id backend.SessionID) ([]Entry, error) {
	messages, err := s.api.GetSession(ctx, id)
	if backend.IsNotFound(err) {
		s.Discard(id)
		return nil, fmt.Errorf("load session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	return s.Replace(id, messages), nil
}

// Replace makes id active with messages as its confirmed transcript.
func (s *Store) Replace(id backend.SessionID, messages []backend.Message) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
	s.transcript = make([]Entry, 0, len(messages))
	for _, msg := range messages {
		s.transcript = append(s.transcript, s.newEntryLocked(msg, Confirmed))
	}
	return append([]Entry(nil), s.transcript...)
}

// Discard forgets a session the server no longer has and returns to the
// empty state.
func (s *Store) Discard(id backend.SessionID) {
	s.mu.Lock()
	s.resetLocked()
	s.dropLocked(id)
	s.mu.Unlock()
	logger.Infof("[sessions] session %s no longer exists", id)
}

// Create makes a new session and refreshes the cached list. It does not
// change the active session.
func (s *Store) Create(ctx context.Context, title string) (backend.Session, error) {
	session, err := s.api.CreateSession(ctx, title)
	if err != nil {
		return backend.Session{}, fmt.Errorf("create session: %w", err)
	}
	if err := s.Refresh(ctx); err != nil {
		logger.Warnf("[sessions] refresh after create: %v", err)
		s.mu.Lock()
		s.sessions = append([]backend.Session{session}, s.sessions...)
		s.mu.Unlock()
	}
	return session, nil
}

// Delete removes id on the server. Deleting a session that is already gone
// succeeds. Deleting the active session resets the store.
func (s *Store) Delete(ctx context.Context, id backend.SessionID) error {
	if err := s.api.DeleteSession(ctx, id); err != nil && !backend.IsNotFound(err) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	s.mu.Lock()
	if s.active == id {
		s.resetLocked()
	}
	s.dropLocked(id)
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		logger.Warnf("[sessions] refresh after delete: %v", err)
	}
	return nil
}

// Reset returns to the empty state: no active session, empty transcript.
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

// Active reports the active session id.
func (s *Store) Active() (backend.SessionID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active.Valid()
}

// Adopt marks id active without touching the transcript. Used when the
// server assigned an id to a conversation that started locally.
func (s *Store) Adopt(id backend.SessionID) {
	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
}

// Transcript returns a copy of the active transcript.
func (s *Store) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.transcript...)
}

// Sessions returns a copy of the cached session list.
func (s *Store) Sessions() []backend.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Session(nil), s.sessions...)
}

// AppendOptimistic records a user message that has not been acknowledged yet.
func (s *Store) AppendOptimistic(msg backend.Message) EntryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.newEntryLocked(msg, Optimistic)
	s.transcript = append(s.transcript, entry)
	return entry.ID
}

// Confirm reconciles an optimistic entry once the server accepted it.
// It reports false when the entry is no longer in the transcript.
func (s *Store) Confirm(id EntryID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transcript {
		if s.transcript[i].ID == id {
			s.transcript[i].State = Confirmed
			return true
		}
	}
	return false
}

// AppendConfirmed records a message the server already holds.
func (s *Store) AppendConfirmed(msg backend.Message) EntryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.newEntryLocked(msg, Confirmed)
	s.transcript = append(s.transcript, entry)
	return entry.ID
}

func (s *Store) newEntryLocked(msg backend.Message, state State) Entry {
	s.nextEntry++
	return Entry{ID: s.nextEntry, State: state, Message: msg}
}

func (s *Store) resetLocked() {
	s.active = 0
	s.transcript = nil
}

func (s *Store) dropLocked(id backend.SessionID) {
	kept := s.sessions[:0]
	for _, session := range s.sessions {
		if session.ID != id {
			kept = append(kept, session)
		}
	}
	s.sessions = kept
}
