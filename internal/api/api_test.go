package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/feedback"
	"github.com/MJE43/senipy/internal/games"
	"github.com/MJE43/senipy/internal/profile"
	"github.com/MJE43/senipy/internal/schedule"
	"github.com/MJE43/senipy/internal/scores"
	"github.com/MJE43/senipy/internal/store"
	"github.com/MJE43/senipy/internal/supa"
)

const (
	testSiteURL = "https://senipy.example"
	testAPKURL  = "https://cdn.example/robo-companion.apk"
)

// fakeBackend is an in-process stand-in for the hosted auth, rest and
// storage endpoints.
type fakeBackend struct {
	mu           sync.Mutex
	profile      map[string]any
	feedback     []supa.FeedbackRow
	uploads      []string
	failFeedback bool
}

func (f *fakeBackend) feedbackRows() []supa.FeedbackRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]supa.FeedbackRow(nil), f.feedback...)
}

func (f *fakeBackend) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

func (f *fakeBackend) setFailFeedback(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFeedback = fail
}

func sessionJSON(provider string) map[string]any {
	return map[string]any{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"token_type":    "bearer",
		"expires_in":    3600,
		"user": map[string]any{
			"id":            "user-1",
			"email":         "john@example.com",
			"user_metadata": map[string]any{"first_name": "John", "last_name": "Doe"},
			"app_metadata":  map[string]any{"provider": provider},
		},
	}
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	invalidGrant := func() {
		reply(http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
	}

	switch {
	case r.URL.Path == "/auth/v1/token":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != "correct" {
				invalidGrant()
				return
			}
			reply(http.StatusOK, sessionJSON("email"))
		case "pkce":
			if body["auth_code"] != "good-code" || body["code_verifier"] == "" {
				invalidGrant()
				return
			}
			reply(http.StatusOK, sessionJSON("google"))
		case "refresh_token":
			reply(http.StatusOK, sessionJSON("email"))
		default:
			invalidGrant()
		}
	case r.URL.Path == "/auth/v1/signup":
		var body struct {
			Email string `json:"email"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		reply(http.StatusOK, map[string]any{"id": "user-2", "email": body.Email})
	case r.URL.Path == "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/rest/v1/profiles" && r.Method == http.MethodGet:
		reply(http.StatusOK, f.profile)
	case r.URL.Path == "/rest/v1/profiles" && r.Method == http.MethodPatch:
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		for k, v := range patch {
			f.profile[k] = v
		}
		reply(http.StatusOK, f.profile)
	case r.URL.Path == "/rest/v1/feedback":
		if f.failFeedback {
			reply(http.StatusInternalServerError, map[string]string{"message": "database unavailable"})
			return
		}
		var rows []supa.FeedbackRow
		_ = json.NewDecoder(r.Body).Decode(&rows)
		f.feedback = append(f.feedback, rows...)
		w.WriteHeader(http.StatusCreated)
	case r.URL.Path == "/storage/v1/bucket/avatars":
		reply(http.StatusOK, map[string]any{"id": "avatars", "name": "avatars", "public": true})
	case strings.HasPrefix(r.URL.Path, "/storage/v1/object/avatars/"):
		f.uploads = append(f.uploads, strings.TrimPrefix(r.URL.Path, "/storage/v1/object/avatars/"))
		reply(http.StatusOK, map[string]string{"Key": r.URL.Path})
	default:
		reply(http.StatusNotFound, map[string]string{"message": "not found"})
	}
}

type harness struct {
	t       *testing.T
	backend *fakeBackend
	ts      *httptest.Server
	api     *Server
	authSvc *auth.Service
	client  *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := schedule.NewManual(time.Now())

	backend := &fakeBackend{profile: map[string]any{
		"id": "user-1", "first_name": "John", "last_name": "Doe", "avatar_url": nil,
	}}
	backendServer := httptest.NewServer(backend)
	t.Cleanup(backendServer.Close)

	client, err := supa.NewClient(supa.Config{BaseURL: backendServer.URL, AnonKey: "anon"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	db, err := store.NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	signer, err := auth.NewSigner(bytes.Repeat([]byte("k"), 32), clock.Now)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	authSvc := auth.NewService(auth.Config{SiteURL: testSiteURL}, client, db, db, signer, auth.NewHub(), clock, logger)
	scoreStore := scores.New(db, logger)
	manager := games.NewManager(clock, scoreStore, logger, games.ManagerConfig{})
	t.Cleanup(manager.Shutdown)

	srv := NewServer(Config{SiteURL: testSiteURL, APKURL: testAPKURL, APKSize: 48234496}, Deps{
		DB:       db,
		Games:    manager,
		Scores:   scoreStore,
		Auth:     authSvc,
		Feedback: feedback.NewService(client, logger),
		Profile:  profile.NewService(client, authSvc, logger),
		Clock:    clock,
		Logger:   logger,
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &harness{
		t:       t,
		backend: backend,
		ts:      ts,
		api:     srv,
		authSvc: authSvc,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *harness) do(method, path string, body any) *http.Response {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, r)
	if err != nil {
		h.t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.send(req)
}

func (h *harness) send(req *http.Request) *http.Response {
	h.t.Helper()
	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	h.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (h *harness) cookie(name string) string {
	u, _ := url.Parse(h.ts.URL)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (h *harness) login() {
	h.t.Helper()
	resp := h.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "john@example.com", Password: "correct"})
	expectStatus(h.t, resp, http.StatusOK)
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status %d, want %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, b)
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", resp.Request.URL.Path, err)
	}
	return v
}

func expectError(t *testing.T, resp *http.Response, status int, errType string) ErrorResponse {
	t.Helper()
	expectStatus(t, resp, status)
	e := decode[ErrorResponse](t, resp)
	if e.Type != errType {
		t.Fatalf("error type = %q, want %q (%s)", e.Type, errType, e.Message)
	}
	if resp.Header.Get("X-Error-Type") != errType {
		t.Errorf("X-Error-Type = %q", resp.Header.Get("X-Error-Type"))
	}
	return e
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/health", nil)
	expectStatus(t, resp, http.StatusOK)
	health := decode[HealthCheckResponse](t, resp)
	if health.Status != HealthStatusHealthy {
		t.Errorf("status = %s, want healthy: %+v", health.Status, health.Checks)
	}
	for _, name := range []string{"games", "database"} {
		if _, ok := health.Checks[name]; !ok {
			t.Errorf("missing %s check", name)
		}
	}

	expectStatus(t, h.do(http.MethodGet, "/health/live", nil), http.StatusOK)
	expectStatus(t, h.do(http.MethodGet, "/health/ready", nil), http.StatusOK)

	resp = h.do(http.MethodGet, "/version", nil)
	expectStatus(t, resp, http.StatusOK)
	if v := decode[VersionInfo](t, resp); v.Version == "" {
		t.Error("Expected version in response")
	}
}

func TestGamesEndpoint(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/api/v1/games", nil)
	expectStatus(t, resp, http.StatusOK)
	got := decode[GamesResponse](t, resp)
	if len(got.Games) != 4 {
		t.Errorf("Expected 4 games, got %d", len(got.Games))
	}
	if got.Version == "" {
		t.Error("Expected version in response")
	}
}

func TestVisitorCookieIsStable(t *testing.T) {
	h := newHarness(t)

	h.do(http.MethodGet, "/api/v1/games", nil)
	first := h.cookie(VisitorCookie)
	if first == "" {
		t.Fatal("visitor cookie not set")
	}
	resp := h.do(http.MethodGet, "/api/v1/games", nil)
	for _, c := range resp.Cookies() {
		if c.Name == VisitorCookie {
			t.Errorf("visitor cookie reissued: %q", c.Value)
		}
	}
	if h.cookie(VisitorCookie) != first {
		t.Error("visitor id changed")
	}
}

func TestGameSessionLifecycle(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodPost, "/api/v1/games/memory/sessions", nil)
	expectStatus(t, resp, http.StatusCreated)
	snap := decode[games.Snapshot](t, resp)
	if snap.ID == "" || snap.Game != games.IDMemory {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	path := "/api/v1/games/sessions/" + snap.ID

	expectStatus(t, h.do(http.MethodGet, path, nil), http.StatusOK)

	resp = h.do(http.MethodPost, path+"/actions", games.Action{Type: games.ActionReveal, Card: 0})
	expectStatus(t, resp, http.StatusOK)
	type memoryState struct {
		State struct {
			Cards []struct {
				Revealed bool `json:"revealed"`
			} `json:"cards"`
		} `json:"state"`
	}
	state := decode[memoryState](t, resp)
	if len(state.State.Cards) == 0 || !state.State.Cards[0].Revealed {
		t.Errorf("card 0 not revealed: %+v", state)
	}

	expectError(t, h.do(http.MethodPost, path+"/actions", games.Action{Type: games.ActionMove}), http.StatusBadRequest, ErrTypeUnknownAction)
	expectError(t, h.do(http.MethodPost, path+"/actions", games.Action{}), http.StatusBadRequest, ErrTypeValidation)
	expectError(t, h.do(http.MethodPost, path+"/actions", map[string]any{"kind": "reveal"}), http.StatusBadRequest, ErrTypeInvalidJSON)

	// Another browser cannot see the session.
	req, _ := http.NewRequest(http.MethodGet, h.ts.URL+path, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	expectError(t, resp, http.StatusNotFound, ErrTypeSessionNotFound)

	resp = h.do(http.MethodDelete, path, nil)
	expectStatus(t, resp, http.StatusNoContent)
	expectError(t, h.do(http.MethodGet, path, nil), http.StatusNotFound, ErrTypeSessionNotFound)
}

func TestUnknownGame(t *testing.T) {
	h := newHarness(t)
	expectError(t, h.do(http.MethodPost, "/api/v1/games/chess/sessions", nil), http.StatusNotFound, ErrTypeGameNotFound)
	expectError(t, h.do(http.MethodGet, "/api/v1/games/sessions/not-a-uuid", nil), http.StatusNotFound, ErrTypeSessionNotFound)
}

func TestScores(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/api/v1/scores", nil)
	expectStatus(t, resp, http.StatusOK)
	if s := decode[scores.Summary](t, resp); s.Played != 0 || s.Average != 0 {
		t.Errorf("fresh visitor summary = %+v", s)
	}

	score := func(v int) ScoreRequest { return ScoreRequest{Score: &v} }

	expectStatus(t, h.do(http.MethodPut, "/api/v1/scores/memory", score(80)), http.StatusOK)
	resp = h.do(http.MethodPut, "/api/v1/scores/word", score(65))
	expectStatus(t, resp, http.StatusOK)
	s := decode[scores.Summary](t, resp)
	if s.Played != 2 || s.Average != 73 {
		t.Errorf("summary = %+v, want 2 played averaging 73", s)
	}
	if s.Scores[games.IDMemory] != 80 || s.Scores[games.IDWord] != 65 {
		t.Errorf("scores = %v", s.Scores)
	}

	expectError(t, h.do(http.MethodPut, "/api/v1/scores/memory", score(101)), http.StatusBadRequest, ErrTypeValidation)
	expectError(t, h.do(http.MethodPut, "/api/v1/scores/memory", score(-1)), http.StatusBadRequest, ErrTypeValidation)
	expectError(t, h.do(http.MethodPut, "/api/v1/scores/memory", ScoreRequest{}), http.StatusBadRequest, ErrTypeValidation)
	expectError(t, h.do(http.MethodPut, "/api/v1/scores/chess", score(10)), http.StatusNotFound, ErrTypeGameNotFound)

	req, _ := http.NewRequest(http.MethodPut, h.ts.URL+"/api/v1/scores/memory", strings.NewReader("{"))
	expectError(t, h.send(req), http.StatusBadRequest, ErrTypeInvalidJSON)
}

func TestLoginSessionLogout(t *testing.T) {
	h := newHarness(t)

	e := expectError(t, h.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "john", Password: "x"}), http.StatusBadRequest, ErrTypeValidation)
	if e.Context["title"] != "Email Required" {
		t.Errorf("context = %v", e.Context)
	}

	e = expectError(t, h.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "john@example.com", Password: "wrong"}), http.StatusUnauthorized, ErrTypeAuthFailed)
	if e.Message != "Invalid login credentials" {
		t.Errorf("message = %q", e.Message)
	}
	if h.cookie(SessionCookie) != "" {
		t.Fatal("session cookie set after failed login")
	}

	resp := h.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "john@example.com", Password: "correct"})
	expectStatus(t, resp, http.StatusOK)
	got := decode[SessionResponse](t, resp)
	if !got.Authenticated || got.User == nil || got.User.Email != "john@example.com" || got.User.FirstName != "John" {
		t.Fatalf("login response = %+v", got)
	}
	if h.cookie(SessionCookie) == "" {
		t.Fatal("session cookie not set")
	}

	resp = h.do(http.MethodGet, "/api/v1/auth/session", nil)
	expectStatus(t, resp, http.StatusOK)
	if s := decode[SessionResponse](t, resp); !s.Authenticated || s.User.UserID != "user-1" {
		t.Errorf("session = %+v", s)
	}

	expectStatus(t, h.do(http.MethodPost, "/api/v1/auth/logout", nil), http.StatusOK)
	if h.cookie(SessionCookie) != "" {
		t.Error("session cookie survived logout")
	}
	resp = h.do(http.MethodGet, "/api/v1/auth/session", nil)
	if s := decode[SessionResponse](t, resp); s.Authenticated {
		t.Error("still authenticated after logout")
	}
}

func TestTamperedSessionCookieIsCleared(t *testing.T) {
	h := newHarness(t)

	req, _ := http.NewRequest(http.MethodGet, h.ts.URL+"/api/v1/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "not-a-token"})
	resp := h.send(req)
	expectStatus(t, resp, http.StatusOK)

	cleared := false
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("invalid session cookie was not cleared")
	}
}

func TestSignupNeedsConfirmation(t *testing.T) {
	h := newHarness(t)

	e := expectError(t, h.do(http.MethodPost, "/api/v1/auth/signup", auth.SignupRequest{
		Email: "jane@example.com", Password: "pw", FirstName: "Jane", LastName: "Smith",
	}), http.StatusBadRequest, ErrTypeValidation)
	if e.Context["title"] != "Terms Agreement Required" {
		t.Errorf("context = %v", e.Context)
	}

	resp := h.do(http.MethodPost, "/api/v1/auth/signup", auth.SignupRequest{
		Email: "jane@example.com", Password: "pw", FirstName: "Jane", LastName: "Smith", AcceptTerms: true,
	})
	expectStatus(t, resp, http.StatusAccepted)
	got := decode[SignupResponse](t, resp)
	if !got.NeedsConfirmation || got.Title != "Registration Initiated" || got.User != nil {
		t.Errorf("signup = %+v", got)
	}
	if h.cookie(SessionCookie) != "" {
		t.Error("unconfirmed signup started a session")
	}
}

func TestOTPFlow(t *testing.T) {
	h := newHarness(t)

	expectError(t, h.do(http.MethodPost, "/api/v1/auth/otp/send", OTPSendRequest{Phone: "12"}), http.StatusBadRequest, ErrTypeValidation)

	resp := h.do(http.MethodPost, "/api/v1/auth/otp/send", OTPSendRequest{Phone: "+1 555 010 9999"})
	expectStatus(t, resp, http.StatusOK)
	if m := decode[map[string]any](t, resp); m["title"] != "Verification code sent" {
		t.Errorf("send = %v", m)
	}

	expectError(t, h.do(http.MethodPost, "/api/v1/auth/otp/send", OTPSendRequest{Phone: "+1 555 010 9999"}), http.StatusTooManyRequests, ErrTypeRateLimit)

	verify := auth.VerifyOTPRequest{
		Phone: "+1 555 010 9999", Code: "000000",
		FirstName: "Pat", LastName: "Lee", Password: "pw", AcceptTerms: true,
	}
	expectError(t, h.do(http.MethodPost, "/api/v1/auth/otp/verify", verify), http.StatusBadRequest, ErrTypeInvalidOTP)

	verify.Code = "123456"
	resp = h.do(http.MethodPost, "/api/v1/auth/otp/verify", verify)
	expectStatus(t, resp, http.StatusAccepted)
	if got := decode[SignupResponse](t, resp); got.Title != "Registration Successful" {
		t.Errorf("verify = %+v", got)
	}

	expectError(t, h.do(http.MethodPost, "/api/v1/auth/otp/verify", verify), http.StatusBadRequest, ErrTypeInvalidOTP)
}

func TestOAuthFlow(t *testing.T) {
	h := newHarness(t)

	expectError(t, h.do(http.MethodGet, "/api/v1/auth/oauth/myspace", nil), http.StatusBadRequest, ErrTypeValidation)

	resp := h.do(http.MethodGet, "/api/v1/auth/oauth/google?next=%2Fgames", nil)
	expectStatus(t, resp, http.StatusFound)
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Path != "/auth/v1/authorize" || loc.Query().Get("provider") != "google" {
		t.Errorf("authorize redirect = %s", loc)
	}
	if loc.Query().Get("code_challenge") == "" || loc.Query().Get("redirect_to") != testSiteURL+"/api/v1/auth/callback" {
		t.Errorf("authorize query = %v", loc.Query())
	}

	resp = h.do(http.MethodGet, "/api/v1/auth/callback?code=good-code", nil)
	expectStatus(t, resp, http.StatusFound)
	if got := resp.Header.Get("Location"); got != "/games" {
		t.Errorf("callback redirect = %q, want /games", got)
	}
	if h.cookie(SessionCookie) == "" {
		t.Fatal("session cookie not set after callback")
	}

	resp = h.do(http.MethodGet, "/api/v1/auth/session", nil)
	if s := decode[SessionResponse](t, resp); !s.Authenticated || s.User.Provider != "google" {
		t.Errorf("session = %+v", s)
	}
}

func TestOAuthCallbackFailures(t *testing.T) {
	tests := []struct {
		name  string
		start bool
		query string
		want  string
	}{
		{"denied", true, "error=access_denied&error_description=User+cancelled", "/login?error=oauth_denied"},
		{"bad code", true, "code=bad-code", "/login?error=oauth_failed"},
		{"no verifier", false, "code=good-code", "/login?error=oauth_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.start {
				expectStatus(t, h.do(http.MethodGet, "/api/v1/auth/oauth/github", nil), http.StatusFound)
			}
			resp := h.do(http.MethodGet, "/api/v1/auth/callback?"+tt.query, nil)
			expectStatus(t, resp, http.StatusFound)
			if got := resp.Header.Get("Location"); got != tt.want {
				t.Errorf("redirect = %q, want %q", got, tt.want)
			}
			if h.cookie(SessionCookie) != "" {
				t.Error("session cookie set")
			}
		})
	}
}

func TestDownloadGate(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/download/apk", nil)
	expectStatus(t, resp, http.StatusFound)
	if got := resp.Header.Get("Location"); got != "/login?next=%2Fdownload" {
		t.Errorf("anonymous apk redirect = %q", got)
	}

	resp = h.do(http.MethodGet, "/download", nil)
	expectStatus(t, resp, http.StatusFound)
	if got := resp.Header.Get("Location"); got != "/login?next=%2Fdownload" {
		t.Errorf("anonymous page redirect = %q", got)
	}

	h.login()

	resp = h.do(http.MethodGet, "/download/apk", nil)
	expectStatus(t, resp, http.StatusFound)
	if got := resp.Header.Get("Location"); got != testAPKURL {
		t.Errorf("apk redirect = %q, want %q", got, testAPKURL)
	}

	resp = h.do(http.MethodGet, "/download", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "46 MiB") {
		t.Errorf("download page lacks APK size")
	}
}

func TestDownloadQR(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/download/qr.png", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("QR code is not a PNG")
	}
	if got := h.api.downloadLink(); got != testSiteURL+"/download/apk" {
		t.Errorf("QR link = %q", got)
	}
}

func TestProfile(t *testing.T) {
	h := newHarness(t)

	expectError(t, h.do(http.MethodGet, "/api/v1/profile", nil), http.StatusUnauthorized, ErrTypeUnauthenticated)

	h.login()

	resp := h.do(http.MethodGet, "/api/v1/profile", nil)
	expectStatus(t, resp, http.StatusOK)
	if p := decode[supa.Profile](t, resp); p.FirstName != "John" {
		t.Errorf("profile = %+v", p)
	}

	resp = h.do(http.MethodPut, "/api/v1/profile", profile.Update{FirstName: " Johnny ", LastName: "Doe"})
	expectStatus(t, resp, http.StatusOK)
	updated := decode[struct {
		Title   string       `json:"title"`
		Profile supa.Profile `json:"profile"`
	}](t, resp)
	if updated.Profile.FirstName != "Johnny" || updated.Title != "Profile updated" {
		t.Errorf("update = %+v", updated)
	}
}

func avatarRequest(t *testing.T, base string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="avatar"; filename="me.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, base+"/api/v1/profile/avatar", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAvatarUpload(t *testing.T) {
	h := newHarness(t)
	h.login()

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	resp := h.send(avatarRequest(t, h.ts.URL, png))
	expectStatus(t, resp, http.StatusOK)
	got := decode[struct {
		Profile supa.Profile `json:"profile"`
	}](t, resp)
	if got.Profile.AvatarURL == nil || !strings.Contains(*got.Profile.AvatarURL, "/storage/v1/object/public/avatars/user-1-") {
		t.Errorf("avatar url = %v", got.Profile.AvatarURL)
	}
	if uploads := h.backend.uploaded(); len(uploads) != 1 || !strings.HasSuffix(uploads[0], ".png") {
		t.Errorf("uploads = %v", uploads)
	}

	resp = h.send(avatarRequest(t, h.ts.URL, []byte("plain text, not an image")))
	expectError(t, resp, http.StatusBadRequest, ErrTypeValidation)
}

func TestFeedback(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/api/v1/feedback/questions", nil)
	expectStatus(t, resp, http.StatusOK)
	qs := decode[struct {
		Questions []feedback.Question `json:"questions"`
	}](t, resp)
	if len(qs.Questions) != len(feedback.Questions) {
		t.Fatalf("questions = %d", len(qs.Questions))
	}

	sub := feedback.Submission{Name: "Jane", Email: "jane@example.com", Message: "Love it", Ratings: map[int]int{1: 5}}
	e := expectError(t, h.do(http.MethodPost, "/api/v1/feedback", sub), http.StatusBadRequest, ErrTypeValidation)
	if e.Context["title"] != "Ratings Required" {
		t.Errorf("context = %v", e.Context)
	}

	sub.Ratings = map[int]int{}
	for _, q := range feedback.Questions {
		sub.Ratings[q.ID] = 4
	}
	resp = h.do(http.MethodPost, "/api/v1/feedback", sub)
	expectStatus(t, resp, http.StatusCreated)
	if m := decode[MessageResponse](t, resp); m.Title != "Thank you for your feedback!" {
		t.Errorf("title = %q", m.Title)
	}
	if rows := h.backend.feedbackRows(); len(rows) != 1 || rows[0].Rating != 4 || rows[0].UserID != nil {
		t.Errorf("stored = %+v", rows)
	}

	h.backend.setFailFeedback(true)
	expectError(t, h.do(http.MethodPost, "/api/v1/feedback", sub), http.StatusBadGateway, ErrTypeBackend)
}

func TestAdminDashboard(t *testing.T) {
	h := newHarness(t)

	expectError(t, h.do(http.MethodGet, "/api/v1/admin/dashboard", nil), http.StatusUnauthorized, ErrTypeUnauthenticated)
	resp := h.do(http.MethodGet, "/admin", nil)
	expectStatus(t, resp, http.StatusFound)

	h.login()

	req, _ := http.NewRequest(http.MethodGet, h.ts.URL+"/api/v1/admin/dashboard", nil)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	resp = h.send(req)
	expectStatus(t, resp, http.StatusOK)
	d := decode[struct {
		Users []struct {
			Email   string `json:"email"`
			Current bool   `json:"current"`
		} `json:"users"`
		Downloads struct {
			TotalLabel string `json:"total_label"`
		} `json:"downloads"`
	}](t, resp)
	if len(d.Users) != 4 {
		t.Fatalf("users = %d, want 4", len(d.Users))
	}
	if last := d.Users[3]; !last.Current || last.Email != "john@example.com" {
		t.Errorf("viewer row = %+v", last)
	}
	if d.Downloads.TotalLabel != "12.480" {
		t.Errorf("total label = %q", d.Downloads.TotalLabel)
	}
}

func TestPages(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/", "/login", "/signup", "/games", "/feedback"} {
		resp := h.do(http.MethodGet, path, nil)
		expectStatus(t, resp, http.StatusOK)
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s content type = %q", path, ct)
		}
	}

	resp := h.do(http.MethodGet, "/nope", nil)
	expectStatus(t, resp, http.StatusNotFound)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("404 page content type = %q", ct)
	}

	expectError(t, h.do(http.MethodGet, "/api/v1/nope", nil), http.StatusNotFound, ErrTypeNotFound)

	h.login()
	resp = h.do(http.MethodGet, "/login?next=%2Fprofile", nil)
	expectStatus(t, resp, http.StatusFound)
	if got := resp.Header.Get("Location"); got != "/profile" {
		t.Errorf("signed-in login redirect = %q", got)
	}
	expectStatus(t, h.do(http.MethodGet, "/profile", nil), http.StatusOK)
}

func TestCORS(t *testing.T) {
	h := newHarness(t)

	req, _ := http.NewRequest(http.MethodOptions, h.ts.URL+"/api/v1/games", nil)
	req.Header.Set("Origin", testSiteURL)
	resp := h.send(req)
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != testSiteURL {
		t.Errorf("allow origin = %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, h.ts.URL+"/api/v1/games", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp = h.send(req)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestRecoveryHandler(t *testing.T) {
	eh := NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	handler := eh.RecoveryHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Type != ErrTypeInternal {
		t.Errorf("type = %q", resp.Type)
	}
}

func TestLocalPath(t *testing.T) {
	tests := map[string]string{
		"/games":               "/games",
		"":                     "/",
		"games":                "/",
		"//evil.example":       "/",
		"/\\evil.example":      "/",
		"https://evil.example": "/",
	}
	for in, want := range tests {
		if got := localPath(in); got != want {
			t.Errorf("localPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAuthEventsFeed(t *testing.T) {
	h := newHarness(t)
	h.login()

	u, _ := url.Parse(h.ts.URL)
	dialer := websocket.Dialer{Jar: h.client.Jar, HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial("ws://"+u.Host+"/api/v1/auth/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev auth.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if ev.Type != EventInitialSession || ev.UserID != "user-1" {
		t.Fatalf("initial event = %+v", ev)
	}

	// The feed subscribes before sending the initial event.
	visitor := h.cookie(VisitorCookie)
	h.authSvc.Hub().Publish(visitor, auth.Event{Type: auth.EventUserUpdated, UserID: "user-1"})
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if ev.Type != auth.EventUserUpdated {
		t.Errorf("event = %+v", ev)
	}
}
