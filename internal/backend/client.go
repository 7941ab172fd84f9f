package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/csheth/lexdesk/internal/logger"
)

const (
	defaultHTTPTimeout = 2 * time.Minute
	maxResponseBytes   = 4 << 20
	maxErrorBodyBytes  = 2048

	// RequestIDHeader correlates client logs with server logs.
	RequestIDHeader = "X-Request-ID"
)

// Config describes how to reach the Backend API.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the Backend API over HTTP+JSON.
type Client struct {
	base   string
	client *http.Client

	mu    sync.RWMutex
	token string
}

// New builds a client for cfg.BaseURL, which includes the /api prefix.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	return &Client{
		base:   base,
		client: pickHTTPClient(cfg.HTTPClient, cfg.Timeout),
		token:  cfg.Token,
	}, nil
}

func pickHTTPClient(custom *http.Client, timeout time.Duration) *http.Client {
	if custom != nil {
		return custom
	}
	if timeout <= 0 {
		// Assistant replies can take a while; the caller's context handles cancellation.
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login exchanges credentials for an access token and installs it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("login response did not include an access token")
	}
	c.SetToken(out.AccessToken)
	return out.AccessToken, nil
}

func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var user User
	err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &user)
	return user, err
}

// ListSessions returns sessions in server order (most recently updated first).
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.doJSON(ctx, http.MethodGet, "/chat/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession returns the ordered transcript of id.
func (c *Client) GetSession(ctx context.Context, id SessionID) ([]Message, error) {
	var messages []Message
	if err := c.doJSON(ctx, http.MethodGet, "/chat/sessions/"+id.String(), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) CreateSession(ctx context.Context, title string) (Session, error) {
	var session Session
	err := c.doJSON(ctx, http.MethodPost, "/chat/sessions", map[string]string{"title": title}, &session)
	return session, err
}

func (c *Client) DeleteSession(ctx context.Context, id SessionID) error {
	return c.doJSON(ctx, http.MethodDelete, "/chat/sessions/"+id.String(), nil, nil)
}

// SendMessage posts text to sessionID, or lets the server create a session when it is zero.
func (c *Client) SendMessage(ctx context.Context, sessionID SessionID, text string) (MessageReply, error) {
	req := MessageRequest{Message: text}
	if sessionID.Valid() {
		req.SessionID = &sessionID
	}
	var reply MessageReply
	err := c.doJSON(ctx, http.MethodPost, "/chat/message", req, &reply)
	return reply, err
}

// UploadAttachment streams a document into sessionID as multipart form data.
func (c *Client) UploadAttachment(ctx context.Context, sessionID SessionID, name string, content io.Reader) error {
	if !sessionID.Valid() {
		return fmt.Errorf("upload requires a session")
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	if err := writer.WriteField("session_id", sessionID.String()); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/chat/upload", &buf, writer.FormDataContentType(), nil)
}

func (c *Client) ListSchedule(ctx context.Context) ([]ScheduleEntry, error) {
	var entries []ScheduleEntry
	if err := c.doJSON(ctx, http.MethodGet, "/schedule/", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpcomingSchedule returns entries whose court date falls within the next days.
func (c *Client) UpcomingSchedule(ctx context.Context, days int) ([]ScheduleEntry, error) {
	var entries []ScheduleEntry
	path := "/schedule/upcoming?days=" + strconv.Itoa(days)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) CreateSchedule(ctx context.Context, req ScheduleRequest) (ScheduleEntry, error) {
	if req.Status == "" {
		req.Status = StatusScheduled
	}
	var entry ScheduleEntry
	err := c.doJSON(ctx, http.MethodPost, "/schedule/", req, &entry)
	return entry, err
}

func (c *Client) DeleteSchedule(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/schedule/%d", id), nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logger.WithFields(map[string]any{"request_id": requestID, "method": method, "path": path}).
			Warnf("[backend] request failed: %v", err)
		return err
	}
	defer resp.Body.Close()

	logger.WithFields(map[string]any{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"elapsed":    time.Since(started).Round(time.Millisecond).String(),
	}).Debugf("[backend] %s %s", method, path)

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return err
	}
	if len(raw) > maxResponseBytes {
		return fmt.Errorf("backend response for %s %s exceeds %d bytes", method, path, maxResponseBytes)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
