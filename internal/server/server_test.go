package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/config"
	"github.com/linkedgrow/dashboard/internal/email"
	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/linkedgrow/dashboard/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureSender struct {
	mu   sync.Mutex
	msgs []email.Message
}

func (s *captureSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *captureSender) Provider() string { return "capture" }

// resetTokens returns the tokens of every reset email sent, oldest first.
func (s *captureSender) resetTokens(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.msgs {
		if m.Subject != "Reset your password" {
			continue
		}
		link, err := url.Parse(m.Text[strings.LastIndex(m.Text, " ")+1:])
		require.NoError(t, err)
		out = append(out, link.Query().Get("token"))
	}
	return out
}

func (s *captureSender) sentTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.msgs {
		out = append(out, m.To)
	}
	return out
}

type testEnv struct {
	srv    *Server
	store  *store.Gorm
	mailer *captureSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Env:           "test",
		Port:          "0",
		BaseURL:       "https://app.test",
		FrontendURL:   "https://app.test",
		AuthRateLimit: 100,
		Auth: config.AuthConfig{
			SessionSecret: "cookie-test-secret",
			JWTSecret:     "jwt-test-secret",
			Issuer:        "linkedgrow",
		},
		Usage: config.UsageConfig{FreeMonthlyLimit: 5},
	}
	st := storetest.New(t)
	mailer := &captureSender{}
	srv, err := New(cfg, st, Integrations{Sender: mailer}, nil)
	require.NoError(t, err)
	return &testEnv{srv: srv, store: st, mailer: mailer}
}

// client keeps the session cookie between requests.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (e *testEnv) client(t *testing.T) *client {
	return &client{t: t, handler: e.srv.Router, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.client(t).do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for _, path := range []string{"/api/usage", "/api/onboarding", "/api/settings/linkedin", "/api/customer"} {
		w := c.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := c.do(http.MethodPost, "/api/get-noticed", map[string]any{"headline": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestNewUserIsRoutedThroughOnboarding(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	w := c.do(http.MethodPost, "/api/auth/sign-up", map[string]any{
		"email": "new@example.com", "password": "secret1", "name": "New",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/onboarding/role", w.Header().Get("Location"))

	w = c.do(http.MethodPost, "/api/onboarding", map[string]any{"step": "role", "data": map[string]any{"role": "founder"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = c.do(http.MethodGet, "/dashboard/settings", nil)
	assert.Equal(t, "/onboarding/discovery", w.Header().Get("Location"))

	w = c.do(http.MethodPost, "/api/onboarding", map[string]any{"step": "discovery", "data": map[string]any{"source": "friend"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = c.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, "/onboarding/terms", w.Header().Get("Location"))

	w = c.do(http.MethodPost, "/api/onboarding", map[string]any{
		"step": "complete",
		"data": map[string]any{"terms": map[string]any{"accepted": true}, "marketing": true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-page="dashboard"`)

	w = c.do(http.MethodGet, "/onboarding/role", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	body := decode(t, c.do(http.MethodGet, "/api/onboarding", nil))
	assert.Equal(t, true, body["isComplete"])

	usage := decode(t, c.do(http.MethodGet, "/api/usage", nil))["usage"].(map[string]any)
	assert.EqualValues(t, 5, usage["remaining"])
}

func TestOnlyLatestResetTokenWorks(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	w := c.do(http.MethodPost, "/api/auth/sign-up", map[string]any{"email": "reset@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	anon := env.client(t)
	for i := 0; i < 2; i++ {
		w = anon.do(http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "reset@example.com"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	tokens := env.mailer.resetTokens(t)
	require.Len(t, tokens, 2)

	w = anon.do(http.MethodPost, "/api/auth/reset-password", map[string]any{
		"token": tokens[0], "email": "reset@example.com", "password": "newsecret",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = anon.do(http.MethodPost, "/api/auth/reset-password", map[string]any{
		"token": tokens[1], "email": "reset@example.com", "password": "newsecret",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = anon.do(http.MethodPost, "/api/auth/sign-in", map[string]any{"email": "reset@example.com", "password": "newsecret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestForgotPasswordUnknownEmailLooksTheSame(t *testing.T) {
	env := newTestEnv(t)
	w := env.client(t).do(http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "ghost@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["message"], "If an account exists")
	assert.Empty(t, env.mailer.resetTokens(t))
}

func TestAdminBroadcast(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.client(t)
	w := admin.do(http.MethodPost, "/api/auth/sign-up", map[string]any{"email": "admin@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = admin.do(http.MethodPost, "/api/admin/email/broadcast", map[string]any{"subject": "News", "html": "<p>hi</p>"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.NoError(t, env.store.DB().Model(&models.User{}).
		Where("email = ?", "admin@example.com").
		Update("role", models.RoleAdmin).Error)

	for _, addr := range []string{"in@example.com", "out@example.com"} {
		require.NoError(t, env.store.CreateUser(ctx, &models.User{Email: addr}))
	}
	in, err := env.store.GetUserByEmail(ctx, "in@example.com")
	require.NoError(t, err)
	require.NoError(t, env.store.CompleteOnboarding(ctx, in.ID, json.RawMessage(`{"accepted":true}`), true))

	w = admin.do(http.MethodPost, "/api/admin/email/broadcast", map[string]any{"subject": "News"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = admin.do(http.MethodPost, "/api/admin/email/broadcast", map[string]any{"subject": "News", "html": "<p>hi</p>"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["sent"])
	assert.EqualValues(t, 1, body["total"])
	assert.Contains(t, env.mailer.sentTo(), "in@example.com")
	assert.NotContains(t, env.mailer.sentTo(), "out@example.com")
}

func TestAuthRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.srv.cfg.AuthRateLimit = 1

	srv, err := New(env.srv.cfg, env.store, Integrations{Sender: env.mailer}, nil)
	require.NoError(t, err)
	c := &client{t: t, handler: srv.Router, cookies: map[string]*http.Cookie{}}

	w := c.do(http.MethodPost, "/api/auth/sign-in", map[string]any{"email": "a@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = c.do(http.MethodPost, "/api/auth/sign-in", map[string]any{"email": "a@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestVoicePracticeWithoutPlatformIsLabelledMock(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	w := c.do(http.MethodPost, "/api/auth/sign-up", map[string]any{"email": "voice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = c.do(http.MethodPost, "/api/voice-practice", map[string]any{"scenario": "interview"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["fallback"])
	assert.Equal(t, "not_configured", body["fallbackReason"])

	usage := decode(t, c.do(http.MethodGet, "/api/usage", nil))["usage"].(map[string]any)
	assert.EqualValues(t, 0, usage["currentUsage"])
}
