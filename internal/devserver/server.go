// Package devserver is an in-memory implementation of the Backend API used for
// local development and as the collaborator in tests.
package devserver

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/logger"
)

const (
	defaultEmail    = "advocate@example.com"
	defaultPassword = "lexdesk"
	maxUploadBytes  = 20 << 20
	maxContextChars = 10_000
)

// Options configures a Server.
type Options struct {
	Email     string
	Password  string
	FullName  string
	Responder Responder
	Now       func() time.Time
}

// Call records one request seen by the server.
type Call struct {
	Method string
	Path   string
	Status int
}

type fault struct {
	method string
	path   string
	status int
}

type chatSession struct {
	meta      backend.Session
	updatedAt time.Time
	messages  []backend.Message
}

// Server holds all Backend API state in memory.
type Server struct {
	opts   Options
	engine *gin.Engine

	mu           sync.Mutex
	tokens       map[string]struct{}
	sessions     map[backend.SessionID]*chatSession
	schedule     map[int64]backend.ScheduleEntry
	nextSession  backend.SessionID
	nextSchedule int64
	seq          int
	faults       []fault
	calls        []Call
}

// New builds a server with a single account.
func New(opts Options) *Server {
	if opts.Email == "" {
		opts.Email = defaultEmail
	}
	if opts.Password == "" {
		opts.Password = defaultPassword
	}
	if opts.FullName == "" {
		opts.FullName = "Dev Advocate"
	}
	if opts.Responder == nil {
		opts.Responder = EchoResponder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		opts:     opts,
		tokens:   make(map[string]struct{}),
		sessions: make(map[backend.SessionID]*chatSession),
		schedule: make(map[int64]backend.ScheduleEntry),
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the gin engine.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.record(), s.injectFaults())

	api := r.Group("/api")
	api.POST("/auth/login", s.login)

	authed := api.Group("")
	authed.Use(s.requireToken())
	authed.GET("/auth/me", s.me)
	authed.GET("/chat/sessions", s.listSessions)
	authed.POST("/chat/sessions", s.createSession)
	authed.GET("/chat/sessions/:id", s.getSession)
	authed.DELETE("/chat/sessions/:id", s.deleteSession)
	authed.POST("/chat/message", s.sendMessage)
	authed.POST("/chat/upload", s.upload)
	authed.GET("/schedule/", s.listSchedule)
	authed.GET("/schedule/upcoming", s.upcomingSchedule)
	authed.POST("/schedule/", s.createSchedule)
	authed.DELETE("/schedule/:id", s.deleteSchedule)
	return r
}

func (s *Server) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		call := Call{Method: c.Request.Method, Path: c.Request.URL.Path, Status: c.Writer.Status()}
		s.mu.Lock()
		s.calls = append(s.calls, call)
		s.mu.Unlock()
		logger.WithFields(map[string]any{
			"request_id": c.GetHeader(backend.RequestIDHeader),
			"status":     call.Status,
			"elapsed":    time.Since(started).Round(time.Microsecond).String(),
		}).Debugf("[devserver] %s %s", call.Method, call.Path)
	}
}

func (s *Server) injectFaults() gin.HandlerFunc {
	return func(c *gin.Context) {
		if status, ok := s.takeFault(c.Request.Method, c.Request.URL.Path); ok {
			c.AbortWithStatusJSON(status, gin.H{"detail": "injected failure"})
			return
		}
		c.Next()
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		s.mu.Lock()
		_, ok := s.tokens[token]
		s.mu.Unlock()
		if token == "" || !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
			return
		}
		c.Next()
	}
}

// IssueToken mints a valid bearer token without going through login.
func (s *Server) IssueToken() string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = struct{}{}
	s.mu.Unlock()
	return token
}

// RevokeTokens invalidates every issued token; later requests get 401.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.tokens = make(map[string]struct{})
	s.mu.Unlock()
}

// FailNext makes the next request matching method and path answer with status.
func (s *Server) FailNext(method, path string, status int) {
	s.mu.Lock()
	s.faults = append(s.faults, fault{method: method, path: path, status: status})
	s.mu.Unlock()
}

func (s *Server) takeFault(method, path string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.faults {
		if f.method == method && f.path == path {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
			return f.status, true
		}
	}
	return 0, false
}

// Calls returns every request handled so far, in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Messages returns the stored transcript of id.
func (s *Server) Messages(id backend.SessionID) []backend.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return append([]backend.Message(nil), sess.messages...)
}

// SetCourtDate moves a schedule entry, as if it had been edited elsewhere.
func (s *Server) SetCourtDate(id int64, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.schedule[id]
	if !ok {
		return false
	}
	entry.CourtDate = backend.NewTimestamp(at)
	s.schedule[id] = entry
	return true
}

func (s *Server) newSessionLocked(title string) *chatSession {
	s.nextSession++
	now := s.opts.Now()
	sess := &chatSession{
		meta:      backend.Session{ID: s.nextSession, Title: title, CreatedAt: backend.NewTimestamp(now)},
		updatedAt: now,
	}
	s.touchLocked(sess)
	s.sessions[sess.meta.ID] = sess
	return sess
}

// touchLocked bumps the session's update time. A sequence suffix keeps the
// ordering strict when the clock does not advance between requests.
func (s *Server) touchLocked(sess *chatSession) {
	s.seq++
	sess.updatedAt = s.opts.Now().Add(time.Duration(s.seq))
	sess.meta.UpdatedAt = backend.NewTimestamp(sess.updatedAt)
}

func (s *Server) sortedSessionsLocked() []backend.Session {
	list := make([]*chatSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].updatedAt.After(list[j].updatedAt)
	})
	out := make([]backend.Session, 0, len(list))
	for _, sess := range list {
		out = append(out, sess.meta)
	}
	return out
}

func (s *Server) sortedScheduleLocked() []backend.ScheduleEntry {
	out := make([]backend.ScheduleEntry, 0, len(s.schedule))
	for _, entry := range s.schedule {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
