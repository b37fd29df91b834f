package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authconfig "github.com/smallbiznis/flowmarket/internal/auth/config"
	authdomain "github.com/smallbiznis/flowmarket/internal/auth/domain"
	"github.com/smallbiznis/flowmarket/internal/auth/oauth"
	"github.com/smallbiznis/flowmarket/internal/auth/repository"
	authservice "github.com/smallbiznis/flowmarket/internal/auth/service"
	"github.com/smallbiznis/flowmarket/internal/auth/session"
	"github.com/smallbiznis/flowmarket/internal/clock"
	"github.com/smallbiznis/flowmarket/internal/config"
	"github.com/smallbiznis/flowmarket/internal/providers/email"
	"github.com/smallbiznis/flowmarket/internal/registration"
	"github.com/smallbiznis/flowmarket/internal/registration/gateway"
	"github.com/smallbiznis/flowmarket/internal/registration/navigator"
	"github.com/smallbiznis/flowmarket/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type capturingMailer struct {
	mu   sync.Mutex
	sent []email.ConfirmEmailData
}

func (m *capturingMailer) Send(context.Context, []string, string, string) error {
	return nil
}

func (m *capturingMailer) SendTemplate(_ context.Context, _ []string, _ string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := data.(email.ConfirmEmailData); ok {
		m.sent = append(m.sent, d)
	}
	return nil
}

func (m *capturingMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	u, err := url.Parse(m.sent[len(m.sent)-1].ConfirmURL)
	require.NoError(t, err)
	return u.Query().Get("token")
}

type testClient struct {
	t       *testing.T
	engine  *gin.Engine
	cookies map[string]*http.Cookie
}

func (tc *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	tc.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(tc.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range tc.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	tc.engine.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		tc.cookies[c.Name] = c
	}
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) RegistrationView {
	t.Helper()
	var view RegistrationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

type testServer struct {
	client *testClient
	mailer *capturingMailer
	visits *registration.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	idp := http.NewServeMux()
	idp.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "at"})
	})
	idp.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": "g-7", "email": "gee@example.com", "name": "Gee"})
	})
	srv := httptest.NewServer(idp)
	t.Cleanup(srv.Close)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(authdomain.Models()...))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{PublicBaseURL: "http://flowmarket.test"}
	clk := clock.NewFakeClock(time.Now())
	policy := config.NewStaticPolicyHolder(config.DefaultRegistrationPolicy())
	users, confirmations, sessions := repository.New(conn)
	authsvc := authservice.New(log, users, confirmations, sessions, node, clk, policy)

	registry := authconfig.BuildAuthProviderRegistry(zap.NewNop(), map[string]authconfig.AuthProviderConfig{
		"google": {
			Enabled:     true,
			ClientID:    "client",
			AuthURL:     srv.URL + "/authorize",
			TokenURL:    srv.URL + "/token",
			APIURL:      srv.URL + "/userinfo",
			AllowSignUp: true,
		},
	})
	oauthSvc := oauth.NewServiceWithClient(registry, srv.Client())

	mailer := &capturingMailer{}
	gw := gateway.New(log, cfg, authsvc, oauthSvc, mailer, policy)
	visits := registration.NewStore(registration.NewFactory(log, gw, nil, nil), clk, policy, log)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	NewServer(ServerParams{
		Gin:      engine,
		Cfg:      cfg,
		Log:      log,
		Visits:   visits,
		Routes:   navigator.NewRoutes(policy),
		Authsvc:  authsvc,
		Sessions: session.NewManager(cfg, clk),
	})

	return &testServer{
		client: &testClient{t: t, engine: engine, cookies: map[string]*http.Cookie{}},
		mailer: mailer,
		visits: visits,
	}
}

func (ts *testServer) fillForm(password, confirm string) {
	rec := ts.client.do(http.MethodPut, "/auth/register/fields", map[string]string{
		"name":            "Ada",
		"email":           "ada@example.com",
		"password":        password,
		"confirmPassword": confirm,
	})
	require.Equal(ts.client.t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGetRegistrationStartsVisit(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.client.do(http.MethodGet, "/auth/register", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decodeView(t, rec).Status)

	visit, ok := ts.client.cookies[visitCookieName]
	require.True(t, ok)
	assert.NotEmpty(t, visit.Value)
	assert.Equal(t, 1, ts.visits.Len())

	ts.client.do(http.MethodGet, "/auth/register", nil)
	assert.Equal(t, 1, ts.visits.Len())
}

func TestCredentialRegistration(t *testing.T) {
	ts := newTestServer(t)
	ts.fillForm("secret123", "secret123")

	rec := ts.client.do(http.MethodPost, "/auth/register", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	view := decodeView(t, rec)
	assert.Equal(t, "succeeded", view.Status)
	assert.Equal(t, "credentials", view.Path)
	assert.Equal(t, "ada@example.com", view.Email)
	assert.Empty(t, view.Redirect)

	// the success view keeps the submitted email after the form changes
	ts.client.do(http.MethodPut, "/auth/register/fields", map[string]string{"field": "email", "value": "other@example.com"})
	assert.Equal(t, "ada@example.com", decodeView(t, ts.client.do(http.MethodGet, "/auth/register", nil)).Email)

	rec = ts.client.do(http.MethodPost, "/auth/register", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeError(t, rec).Type)

	rec = ts.client.do(http.MethodPost, "/auth/register/acknowledge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/auth/login", decodeView(t, rec).Redirect)

	rec = ts.client.do(http.MethodGet, "/auth/confirm?token="+url.QueryEscape(ts.mailer.lastToken(t)), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"verified":true`)
}

func TestCredentialRegistrationFailureIsRetryable(t *testing.T) {
	ts := newTestServer(t)
	ts.fillForm("secret123", "secret456")

	rec := ts.client.do(http.MethodPost, "/auth/register", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	view := decodeView(t, rec)
	assert.Equal(t, "failed", view.Status)
	assert.Equal(t, "Passwords do not match", view.Error)

	ts.client.do(http.MethodPut, "/auth/register/fields", map[string]string{"field": "confirmPassword", "value": "secret123"})
	rec = ts.client.do(http.MethodPost, "/auth/register", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	view = decodeView(t, rec)
	assert.Equal(t, "succeeded", view.Status)
	assert.Empty(t, view.Error)
}

func TestSetFieldsRejectsUnknownName(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.client.do(http.MethodPut, "/auth/register/fields", map[string]string{
		"email":    "ada@example.com",
		"nickname": "ada",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "nickname", payload.Errors[0].Field)

	rec = ts.client.do(http.MethodPut, "/auth/register/fields", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcknowledgeRequiresCredentialSuccess(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.client.do(http.MethodPost, "/auth/register/acknowledge", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_acknowledgeable", decodeError(t, rec).Type)
}

func startProvider(t *testing.T, ts *testServer) string {
	t.Helper()
	rec := ts.client.do(http.MethodPost, "/auth/register/providers/google", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	view := decodeView(t, rec)
	assert.Equal(t, "submitting", view.Status)
	require.NotEmpty(t, view.AuthorizationURL)

	u, err := url.Parse(view.AuthorizationURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestProviderRegistration(t *testing.T) {
	ts := newTestServer(t)
	state := startProvider(t, ts)

	rec := ts.client.do(http.MethodGet, "/auth/callback/google?code=abc&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	sid, ok := ts.client.cookies[session.DefaultCookieName]
	require.True(t, ok)
	assert.NotEmpty(t, sid.Value)

	view := decodeView(t, ts.client.do(http.MethodGet, "/auth/register", nil))
	assert.Equal(t, "succeeded", view.Status)
	assert.Equal(t, "provider", view.Path)
	assert.Equal(t, "/dashboard", view.Redirect)
}

func TestSignedInVisitorIsSentHomeUntilLogout(t *testing.T) {
	ts := newTestServer(t)
	state := startProvider(t, ts)
	rec := ts.client.do(http.MethodGet, "/auth/callback/google?code=abc&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusFound, rec.Code)

	// a later visit only carries the session cookie
	delete(ts.client.cookies, visitCookieName)
	view := decodeView(t, ts.client.do(http.MethodGet, "/auth/register", nil))
	assert.True(t, view.Authenticated)
	assert.Equal(t, "idle", view.Status)
	assert.Equal(t, "/dashboard", view.Redirect)

	rec = ts.client.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	sid := ts.client.cookies[session.DefaultCookieName]
	require.NotNil(t, sid)
	assert.Empty(t, sid.Value)
	assert.Negative(t, sid.MaxAge)

	delete(ts.client.cookies, visitCookieName)
	view = decodeView(t, ts.client.do(http.MethodGet, "/auth/register", nil))
	assert.False(t, view.Authenticated)
	assert.Empty(t, view.Redirect)

	rec = ts.client.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUnknownSessionCookieIsCleared(t *testing.T) {
	ts := newTestServer(t)
	ts.client.cookies[session.DefaultCookieName] = &http.Cookie{Name: session.DefaultCookieName, Value: "not-a-session"}

	view := decodeView(t, ts.client.do(http.MethodGet, "/auth/register", nil))
	assert.False(t, view.Authenticated)
	assert.Empty(t, view.Redirect)
	assert.Empty(t, ts.client.cookies[session.DefaultCookieName].Value)
}

func TestProviderRegistrationPopupClosed(t *testing.T) {
	ts := newTestServer(t)
	state := startProvider(t, ts)

	rec := ts.client.do(http.MethodGet, "/auth/callback/google?error=popup_closed&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/register", rec.Header().Get("Location"))
	_, ok := ts.client.cookies[session.DefaultCookieName]
	assert.False(t, ok)

	view := decodeView(t, ts.client.do(http.MethodGet, "/auth/register", nil))
	assert.Equal(t, "failed", view.Status)
	assert.Equal(t, "popup_closed", view.Error)
	assert.Empty(t, view.Redirect)
}

func TestProviderSubmitWhileInFlight(t *testing.T) {
	ts := newTestServer(t)
	state := startProvider(t, ts)

	rec := ts.client.do(http.MethodPost, "/auth/register/providers/google", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "submission_in_flight", decodeError(t, rec).Type)

	rec = ts.client.do(http.MethodPost, "/auth/register", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "submission_in_flight", decodeError(t, rec).Type)

	// the pending sign-in still completes
	rec = ts.client.do(http.MethodGet, "/auth/callback/google?code=abc&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestProviderCallbackWithoutPendingConsent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.client.do(http.MethodGet, "/auth/callback/google?code=abc&state=unknown", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/register", rec.Header().Get("Location"))
}

func TestConfirmEmailUnknownToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.client.do(http.MethodGet, "/auth/confirm?token=nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.client.do(http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}
