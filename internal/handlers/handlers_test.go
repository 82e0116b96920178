package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dermassist/client/internal/backend"
	"dermassist/client/internal/capture"
	"dermassist/client/internal/config"
	"dermassist/client/internal/models"
	"dermassist/client/internal/service"
	"dermassist/client/internal/storage"
)

var pngHead = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

type testEnv struct {
	router   *gin.Engine
	store    storage.Store
	sessions *service.SessionService
	runner   *service.Runner
}

func newTestEnv(t *testing.T, api http.Handler) *testEnv {
	t.Helper()
	env := newUnverifiedEnv(t, api, "")
	env.sessions.Initialize(context.Background())
	return env
}

// newUnverifiedEnv seeds the stored token and leaves the session loading.
func newUnverifiedEnv(t *testing.T, api http.Handler, storedToken string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(api)
	t.Cleanup(upstream.Close)

	cfg := &config.AppConfig{
		Environment: "test",
		Storage:     config.StorageConfig{Driver: "memory", TokenKey: "dermassist_token", ThemeKey: "dermassist_theme"},
		Analysis:    config.AnalysisConfig{StageInterval: time.Second, MaxUploadBytes: 1 << 20},
	}
	log := zerolog.Nop()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if storedToken != "" {
		if err := store.Set(ctx, cfg.Storage.TokenKey, storedToken); err != nil {
			t.Fatal(err)
		}
	}

	client := backend.New(backend.Options{BaseURL: upstream.URL, Timeout: 5 * time.Second}, log)
	sessions := service.NewSessionService(ctx, client, store, cfg.Storage.TokenKey, log)

	runner := service.NewRunner(service.NewAnalysisService(client, 0, log), cfg.Analysis.StageInterval, log)
	component := capture.NewComponent(nil, capture.Options{
		OnSelect: func(*models.CapturedImage) { runner.Reset() },
	}, log)

	set := NewHandlerSet(Deps{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Sessions: sessions,
		Theme:    service.NewThemeService(ctx, store, cfg.Storage.ThemeKey, log),
		Accounts: client,
		History:  service.NewHistoryService(client, log),
		Capture:  component,
		Runner:   runner,
	})

	router := gin.New()
	tmpl, err := Templates()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	router.SetHTMLTemplate(tmpl)
	set.Register(router)

	return &testEnv{router: router, store: store, sessions: sessions, runner: runner}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/capture/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUnknownRouteRedirectsToRegister(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	for _, path := range []string{"/nope", "/"} {
		w := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/register" {
			t.Errorf("GET %s = %d %q", path, w.Code, w.Header().Get("Location"))
		}
	}
}

func TestRegisterPageRendersForGuests(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	w := env.do(httptest.NewRequest(http.MethodGet, "/register", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Create Account") {
		t.Error("register page missing title")
	}
}

func TestUploadIgnoresUnsupportedTypes(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	w := env.do(uploadRequest(t, "anim.gif", []byte("GIF89a......")))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp uploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Accepted || resp.Capture.State != capture.StateIdle || resp.Capture.Preview != "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestUploadAcceptsPNG(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	w := env.do(uploadRequest(t, "mole.png", pngHead))
	var resp uploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Accepted || resp.Capture.State != capture.StatePreviewing || resp.Capture.ContentType != "image/png" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAnalyzeWithoutImage(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	w := env.do(httptest.NewRequest(http.MethodPost, "/api/analyze", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), service.MsgNoImage) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAnalyzeReportsResult(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.Prediction{
			Diagnosis:  "nv",
			Confidence: 0.88,
			RiskLevel:  "Low Risk",
			AllScores:  map[string]float64{"nv": 0.88, "mel": 0.06, "bkl": 0.06},
		})
	}))

	env.do(uploadRequest(t, "mole.png", pngHead))
	if w := env.do(httptest.NewRequest(http.MethodPost, "/api/analyze", nil)); w.Code != http.StatusAccepted {
		t.Fatalf("analyze status = %d", w.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.runner.Status().Analyzing {
		if time.Now().After(deadline) {
			t.Fatal("analysis did not settle")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/analysis", nil))
	var resp struct {
		Error  string      `json:"error"`
		Result *resultJSON `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "" || resp.Result == nil {
		t.Fatalf("resp = %s", w.Body.String())
	}
	if resp.Result.Name != "Melanocytic Nevus" || resp.Result.RiskLevel != "Low Risk" || resp.Result.RiskColor != "green" {
		t.Errorf("result = %+v", resp.Result)
	}
	if len(resp.Result.Differential) != 2 || resp.Result.Differential[0].Code != "mel" {
		t.Errorf("differential = %+v", resp.Result.Differential)
	}
}

func TestAnalyzeBackendDown(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	env.do(uploadRequest(t, "mole.png", pngHead))
	env.do(httptest.NewRequest(http.MethodPost, "/api/analyze", nil))

	deadline := time.Now().Add(2 * time.Second)
	for env.runner.Status().Analyzing {
		if time.Now().After(deadline) {
			t.Fatal("analysis did not settle")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := env.runner.Status().Error; got != service.MsgAnalyzeFailure {
		t.Errorf("error = %q", got)
	}

	env.do(httptest.NewRequest(http.MethodPost, "/api/analysis/dismiss", nil))
	if got := env.runner.Status().Error; got != "" {
		t.Errorf("error after dismiss = %q", got)
	}
}

func TestHistoryRequiresSession(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	w := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Storage != "ok" || resp.Session != "anonymous" {
		t.Errorf("resp = %+v", resp)
	}
}

func authBackend(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("login content type = %q", ct)
		}
		r.ParseForm()
		if r.PostForm.Get("password") != "Password1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"full_name":"Ada Lovelace","username":"ada","email":"ada@example.com","role":"user"}`))
	})
	return mux
}

func loginRequest(password string) *http.Request {
	form := url.Values{"username": {"ada"}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t, authBackend(t))

	w := env.do(loginRequest("Password1"))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("login = %d %q", w.Code, w.Header().Get("Location"))
	}
	if !env.sessions.Snapshot().IsLoggedIn {
		t.Fatal("session not established")
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/login", nil))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Errorf("guest-only page for signed in user = %d %q", w.Code, w.Header().Get("Location"))
	}

	w = env.do(httptest.NewRequest(http.MethodPost, "/logout", nil))
	if w.Header().Get("Location") != "/login" || env.sessions.Snapshot().Token != "" {
		t.Errorf("logout left session %+v", env.sessions.Snapshot())
	}
}

func TestLoginShowsBackendDetail(t *testing.T) {
	env := newTestEnv(t, authBackend(t))

	w := env.do(loginRequest("wrong"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Incorrect username or password") {
		t.Error("backend detail not shown")
	}
	if env.sessions.Snapshot().Token != "" {
		t.Error("failed login stored a token")
	}
}

func TestToggleThemeJSON(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodPost, "/theme/toggle", nil)
	req.Header.Set("Accept", "application/json")
	w := env.do(req)
	if w.Body.String() != `{"dark":true}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestProtectedPageShowsPlaceholderWhileVerifying(t *testing.T) {
	env := newUnverifiedEnv(t, authBackend(t), "tok")

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Cache-Control") != "no-store" || !strings.Contains(w.Body.String(), `http-equiv="refresh"`) {
		t.Errorf("expected loading placeholder, got %s", w.Body.String())
	}
}

func TestRejectedTokenOnLoadRedirectsToRegister(t *testing.T) {
	env := newUnverifiedEnv(t, authBackend(t), "revoked")
	go env.sessions.Initialize(context.Background())

	select {
	case <-env.sessions.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("session verification did not finish")
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/register" {
		t.Errorf("GET / = %d %q", w.Code, w.Header().Get("Location"))
	}
	if _, ok, _ := env.store.Get(context.Background(), "dermassist_token"); ok {
		t.Error("rejected token left in storage")
	}
}

func TestLoginSubmittedWhileVerifying(t *testing.T) {
	env := newUnverifiedEnv(t, authBackend(t), "revoked")

	w := env.do(loginRequest("Password1"))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("login = %d %q", w.Code, w.Header().Get("Location"))
	}

	env.sessions.Initialize(context.Background())
	if snap := env.sessions.Snapshot(); !snap.IsLoggedIn || snap.Token != "tok" {
		t.Errorf("verification after login dropped the session: %+v", snap)
	}
}

func TestSignUpValidatesForm(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	form := url.Values{
		"full_name":        {"Ada Lovelace"},
		"username":         {"ab"},
		"email":            {"ada@example.com"},
		"password":         {"Password1"},
		"confirm_password": {"Password1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := env.do(req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Username must be at least 3 characters.") {
		t.Error("validation message not shown")
	}
}
