package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailmate/mailmate/internal/authstore"
	"github.com/mailmate/mailmate/internal/calendar"
	"github.com/mailmate/mailmate/internal/google"
	"github.com/mailmate/mailmate/internal/llm"
)

type stubChatter struct{}

func (stubChatter) Chat(context.Context, string, string) (string, error) {
	return "", nil
}

func (stubChatter) ChatWithTools(context.Context, string, []llm.Tool) (string, []llm.ToolCall, error) {
	return "", nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := authstore.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	return New(Config{
		Addr:           ":0",
		FrontendOrigin: "http://localhost:8501",
		Google: google.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost:8101/auth/callback",
		},
	}, store, stubChatter{}, nil)
}

func do(s *Server, method, target, body string, withCookie bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if withCookie {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "no-such-session"})
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRootHello(t *testing.T) {
	rec := do(newTestServer(t), http.MethodGet, "/", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"Hello": "World"}`, rec.Body.String())
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	// After shutdown starts the readiness probe flips.
	s.health.SetReady(false)
	rec = do(s, http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMissingCookieIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/email"},
		{http.MethodPost, "/email/send"},
		{http.MethodPost, "/email/mark-as-read"},
		{http.MethodGet, "/calendar"},
		{http.MethodPost, "/calendar/event"},
		{http.MethodPost, "/assistant/chat"},
	} {
		rec := do(s, target.method, target.path, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", target.method, target.path)
	}
}

func TestUnknownSessionIsUnauthorized(t *testing.T) {
	s := newTestServer(t)

	// The cookie is present but no credential bundle exists for it, so the
	// gateway construction fails with an auth error, never a crash.
	rec := do(s, http.MethodGet, "/email", "", true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(s, http.MethodGet, "/calendar", "", true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendEmailValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing to",
			body: `{"subject": "s", "body": "b"}`,
			want: "to",
		},
		{
			name: "missing subject",
			body: `{"to": "a@x.com", "body": "b"}`,
			want: "subject",
		},
		{
			name: "missing body",
			body: `{"to": "a@x.com", "subject": "s"}`,
			want: "body",
		},
		{
			name: "id without threadId",
			body: `{"to": "a@x.com", "subject": "s", "body": "b", "id": "m1"}`,
			want: "threadId and id are required together",
		},
		{
			name: "threadId without id",
			body: `{"to": "a@x.com", "subject": "s", "body": "b", "threadId": "t1"}`,
			want: "threadId and id are required together",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Validation runs before the gateway: a session without stored
			// credentials still gets 400, not 401.
			rec := do(s, http.MethodPost, "/email/send", tt.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestMarkAsReadRequiresIDs(t *testing.T) {
	rec := do(newTestServer(t), http.MethodPost, "/email/mark-as-read", `{"ids": []}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ids")
}

func TestAddEventValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing summary",
			body: `{"start": {"dateTime": "2025-04-01T10:00:00"}, "end": {"dateTime": "2025-04-01T11:00:00"}}`,
		},
		{
			name: "missing start",
			body: `{"summary": "meet", "end": {"dateTime": "2025-04-01T11:00:00"}}`,
		},
		{
			name: "garbage start",
			body: `{"summary": "meet", "start": {"dateTime": "tomorrow"}, "end": {"dateTime": "2025-04-01T11:00:00"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/calendar/event", tt.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestChatRequiresMessages(t *testing.T) {
	rec := do(newTestServer(t), http.MethodPost, "/assistant/chat", `{"messages": ""}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "messages")
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	rec := do(newTestServer(t), http.MethodGet, "/auth/callback?state=bogus&code=c", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRedirectsToConsent(t *testing.T) {
	rec := do(newTestServer(t), http.MethodGet, "/auth/login", "", false)
	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Contains(t, loc, "accounts.google.com")
	assert.Contains(t, loc, "client-id")
}

func TestValidateEventTime(t *testing.T) {
	tests := []struct {
		name    string
		in      calendar.EventTime
		wantErr bool
	}{
		{"rfc3339", calendar.EventTime{DateTime: "2025-04-01T10:00:00Z"}, false},
		{"rfc3339 offset", calendar.EventTime{DateTime: "2025-04-01T10:00:00+08:00"}, false},
		{"no zone", calendar.EventTime{DateTime: "2025-04-01T10:00:00"}, false},
		{"empty", calendar.EventTime{}, true},
		{"date only", calendar.EventTime{DateTime: "2025-04-01"}, true},
		{"garbage", calendar.EventTime{DateTime: "next tuesday"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEventTime("start.dateTime", tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
