package devserver

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/csheth/lexdesk/internal/attachment"
	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/logger"
)

func (s *Server) login(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email != s.opts.Email || password != s.opts.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect email or password"})
		return
	}
	token := s.IssueToken()
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, backend.User{ID: 1, Email: s.opts.Email, FullName: s.opts.FullName})
}

func (s *Server) listSessions(c *gin.Context) {
	s.mu.Lock()
	list := s.sortedSessionsLocked()
	s.mu.Unlock()
	c.JSON(http.StatusOK, list)
}

func (s *Server) createSession(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = "New Conversation"
	}
	s.mu.Lock()
	sess := s.newSessionLocked(req.Title)
	meta := sess.meta
	s.mu.Unlock()
	c.JSON(http.StatusOK, meta)
}

func (s *Server) getSession(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	sess, found := s.sessions[id]
	var messages []backend.Message
	if found {
		messages = append([]backend.Message{}, sess.messages...)
	}
	s.mu.Unlock()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (s *Server) deleteSession(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	_, found := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Session deleted"})
}

func (s *Server) sendMessage(c *gin.Context) {
	var req backend.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid request body"})
		return
	}

	s.mu.Lock()
	var sess *chatSession
	if req.SessionID == nil || !req.SessionID.Valid() {
		sess = s.newSessionLocked(sessionTitle(req.Message))
	} else {
		sess = s.sessions[*req.SessionID]
	}
	if sess == nil {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}
	now := s.opts.Now()
	sess.messages = append(sess.messages, backend.Message{
		Role:      backend.RoleUser,
		Content:   req.Message,
		CreatedAt: backend.NewTimestamp(now),
	})
	turn := Turn{
		SessionID: sess.meta.ID,
		History:   append([]backend.Message(nil), sess.messages...),
		Message:   req.Message,
		Now:       now,
	}
	s.mu.Unlock()

	reply, err := s.opts.Responder.Respond(c.Request.Context(), turn)
	if err != nil {
		logger.WithField("session_id", turn.SessionID.String()).Errorf("[devserver] responder failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "assistant unavailable"})
		return
	}

	s.mu.Lock()
	// The session may have been deleted while the responder ran.
	if current, ok := s.sessions[turn.SessionID]; ok {
		current.messages = append(current.messages, backend.Message{
			Role:      backend.RoleAssistant,
			Content:   reply,
			CreatedAt: backend.NewTimestamp(s.opts.Now()),
		})
		s.touchLocked(current)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, backend.MessageReply{Response: reply, SessionID: turn.SessionID})
}

func (s *Server) upload(c *gin.Context) {
	id, err := backend.ParseSessionID(c.PostForm("session_id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "session_id is required"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "file is required"})
		return
	}
	if !attachment.IsPDF(file.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only PDF files are supported"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "file too large"})
		return
	}

	dir, err := os.MkdirTemp("", "lexdesk-upload-")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "save file failed"})
		return
	}
	defer os.RemoveAll(dir)
	name := filepath.Base(file.Filename)
	dest := filepath.Join(dir, uuid.NewString()+".pdf")
	if err := c.SaveUploadedFile(file, dest); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "save file failed"})
		return
	}
	text, err := attachment.ExtractText(dest)
	if err != nil {
		// Scanned documents have no text layer; keep the reference anyway.
		logger.Warnf("[devserver] extract %s: %v", name, err)
		text = "(no extractable text)"
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		sess.messages = append(sess.messages, backend.Message{
			Role:         backend.RoleUser,
			Content:      documentContext(name, text),
			DocumentName: name,
			CreatedAt:    backend.NewTimestamp(s.opts.Now()),
		})
		s.touchLocked(sess)
	}
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Document processed and added to context"})
}

func (s *Server) listSchedule(c *gin.Context) {
	s.mu.Lock()
	list := s.sortedScheduleLocked()
	s.mu.Unlock()
	c.JSON(http.StatusOK, list)
}

func (s *Server) upcomingSchedule(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "days must be a non-negative integer"})
		return
	}
	now := s.opts.Now()
	until := now.Add(time.Duration(days) * 24 * time.Hour)
	s.mu.Lock()
	all := s.sortedScheduleLocked()
	s.mu.Unlock()
	out := make([]backend.ScheduleEntry, 0, len(all))
	for _, entry := range all {
		at := entry.CourtDate.Time
		if !at.Before(now) && !at.After(until) {
			out = append(out, entry)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createSchedule(c *gin.Context) {
	var req backend.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.CaseName) == "" || req.CourtDate.IsZero() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "case_name and court_date are required"})
		return
	}
	if req.Status == "" {
		req.Status = backend.StatusScheduled
	}
	s.mu.Lock()
	s.nextSchedule++
	entry := backend.ScheduleEntry{
		ID:                  s.nextSchedule,
		CaseName:            req.CaseName,
		CourtDate:           req.CourtDate,
		ReminderDate:        req.ReminderDate,
		Status:              req.Status,
		NotificationEnabled: req.NotificationEnabled,
		Progress:            req.Progress,
	}
	s.schedule[entry.ID] = entry
	s.mu.Unlock()
	c.JSON(http.StatusOK, entry)
}

func (s *Server) deleteSchedule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid schedule id"})
		return
	}
	s.mu.Lock()
	_, found := s.schedule[id]
	delete(s.schedule, id)
	s.mu.Unlock()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Schedule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted successfully"})
}

func sessionParam(c *gin.Context) (backend.SessionID, bool) {
	id, err := backend.ParseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid session id"})
		return 0, false
	}
	return id, true
}

func sessionTitle(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) > 30 {
		runes = runes[:30]
	}
	return string(runes) + "..."
}

func documentContext(name, text string) string {
	digest := attachment.BuildDigest(text, maxContextChars)
	var b strings.Builder
	fmt.Fprintf(&b, "I have uploaded a document named '%s'. Use this context for our discussion.\n\n", name)
	fmt.Fprintf(&b, "Reading Document: %s\n\nContent:\n%s", name, digest.Text)
	if digest.Truncated {
		b.WriteString("\n...(document truncated)...")
	}
	return b.String()
}
