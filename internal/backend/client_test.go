package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csheth/lexdesk/internal/attachment/attachmenttest"
	"github.com/csheth/lexdesk/internal/backend"
	"github.com/csheth/lexdesk/internal/devserver"
)

func newTestClient(t *testing.T) (*backend.Client, *devserver.Server) {
	t.Helper()
	srv := devserver.New(devserver.Options{Email: "a@b.c", Password: "pw"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := backend.New(backend.Config{BaseURL: ts.URL + "/api/", Token: srv.IssueToken()})
	require.NoError(t, err)
	return client, srv
}

func TestLoginInstallsToken(t *testing.T) {
	srv := devserver.New(devserver.Options{Email: "a@b.c", Password: "pw"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client, err := backend.New(backend.Config{BaseURL: ts.URL + "/api"})
	require.NoError(t, err)

	_, err = client.CurrentUser(context.Background())
	require.True(t, backend.IsUnauthorized(err), "got %v", err)

	_, err = client.Login(context.Background(), "a@b.c", "wrong")
	require.True(t, backend.IsUnauthorized(err))

	token, err := client.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, token, client.Token())

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a@b.c", user.Email)
}

func TestSessionLifecycle(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	first, err := client.CreateSession(ctx, "First")
	require.NoError(t, err)
	second, err := client.CreateSession(ctx, "Second")
	require.NoError(t, err)

	list, err := client.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "most recently updated first")

	reply, err := client.SendMessage(ctx, first.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, first.ID, reply.SessionID)
	assert.Contains(t, reply.Response, "hello")

	list, err = client.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, list[0].ID, "sending a message bumps the session")

	history, err := client.GetSession(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, backend.RoleUser, history[0].Role)
	assert.Equal(t, backend.RoleAssistant, history[1].Role)

	require.NoError(t, client.DeleteSession(ctx, first.ID))
	err = client.DeleteSession(ctx, first.ID)
	require.True(t, backend.IsNotFound(err), "got %v", err)

	_, err = client.GetSession(ctx, first.ID)
	require.True(t, backend.IsNotFound(err))
}

func TestSendMessageWithoutSessionCreatesOne(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	reply, err := client.SendMessage(ctx, 0, "What is the limitation period for contract claims?")
	require.NoError(t, err)
	require.True(t, reply.SessionID.Valid())

	list, err := client.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "What is the limitation period ...", list[0].Title)
}

func TestUploadAttachment(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	session, err := client.CreateSession(ctx, "Docs")
	require.NoError(t, err)

	pdf := attachmenttest.PDF("Lease")
	require.NoError(t, client.UploadAttachment(ctx, session.ID, "lease.pdf", strings.NewReader(string(pdf))))

	messages := srv.Messages(session.ID)
	require.Len(t, messages, 1)
	assert.Equal(t, "lease.pdf", messages[0].DocumentName)
	assert.Equal(t, backend.RoleUser, messages[0].Role)

	err = client.UploadAttachment(ctx, session.ID, "notes.txt", strings.NewReader("plain"))
	require.Equal(t, http.StatusBadRequest, backend.StatusOf(err))

	err = client.UploadAttachment(ctx, 0, "lease.pdf", strings.NewReader(string(pdf)))
	require.Error(t, err)
}

func TestScheduleCRUD(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	when := time.Date(2025, 4, 10, 9, 0, 0, 0, time.Local)
	ts := backend.NewTimestamp(when)
	entry, err := client.CreateSchedule(ctx, backend.ScheduleRequest{
		CaseName:            "Filing",
		CourtDate:           ts,
		ReminderDate:        &ts,
		NotificationEnabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, backend.StatusScheduled, entry.Status)
	assert.True(t, entry.CourtDate.Equal(when))

	entries, err := client.ListSchedule(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Filing", entries[0].CaseName)

	require.NoError(t, client.DeleteSchedule(ctx, entry.ID))
	require.True(t, backend.IsNotFound(client.DeleteSchedule(ctx, entry.ID)))
}

func TestUpcomingSchedule(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	for _, offset := range []time.Duration{-time.Hour, 48 * time.Hour, 30 * 24 * time.Hour} {
		_, err := client.CreateSchedule(ctx, backend.ScheduleRequest{
			CaseName:  offset.String(),
			CourtDate: backend.NewTimestamp(time.Now().Add(offset)),
		})
		require.NoError(t, err)
	}

	upcoming, err := client.UpcomingSchedule(ctx, 7)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, (48 * time.Hour).String(), upcoming[0].CaseName)
}

func TestErrorsCarryStatusAndBody(t *testing.T) {
	client, srv := newTestClient(t)
	srv.FailNext(http.MethodGet, "/api/chat/sessions", http.StatusBadGateway)

	_, err := client.ListSessions(context.Background())
	require.Error(t, err)

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Contains(t, apiErr.Body, "injected failure")
	assert.False(t, backend.IsNotFound(err))
	assert.False(t, backend.IsUnauthorized(err))
}

func TestRequestsCarryRequestID(t *testing.T) {
	var seen []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(backend.RequestIDHeader))
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	client, err := backend.New(backend.Config{BaseURL: ts.URL, Token: "tkn"})
	require.NoError(t, err)
	_, err = client.ListSessions(context.Background())
	require.NoError(t, err)
	_, err = client.ListSchedule(context.Background())
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.NotEmpty(t, seen[0])
	assert.NotEqual(t, seen[0], seen[1])
}

func TestRevokedTokenIsUnauthorized(t *testing.T) {
	client, srv := newTestClient(t)
	srv.RevokeTokens()

	_, err := client.ListSchedule(context.Background())
	require.True(t, backend.IsUnauthorized(err), "got %v", err)
	require.Equal(t, http.StatusUnauthorized, backend.StatusOf(err))
}
