package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/ai-navigator/navigator/internal/catalog"
	"github.com/ai-navigator/navigator/internal/config"
	"github.com/ai-navigator/navigator/internal/storage"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// minimal storage.Storage mock for readiness tests
// ---------------------------------------------------------------------------

type readinessMockStorage struct{ existsErr error }

func (m *readinessMockStorage) Upload(_ context.Context, _ string, _ io.Reader, _ int64) (*storage.UploadResult, error) {
	return nil, nil
}
func (m *readinessMockStorage) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, storage.ErrNotFound
}
func (m *readinessMockStorage) Delete(_ context.Context, _ string) error { return nil }
func (m *readinessMockStorage) GetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", storage.ErrNoURL
}
func (m *readinessMockStorage) Exists(_ context.Context, _ string) (bool, error) {
	return false, m.existsErr
}

type noopVisits struct{}

func (noopVisits) Record(string) bool { return true }

// ---------------------------------------------------------------------------
// healthCheckHandler
// ---------------------------------------------------------------------------

func newHealthDB(t *testing.T, pingOK bool) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if pingOK {
		mock.ExpectPing()
	} else {
		mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	}
	return db
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return body
}

func TestHealthCheckHandler(t *testing.T) {
	tests := []struct {
		name       string
		db         func(t *testing.T) *sql.DB
		wantCode   int
		wantStatus string
	}{
		{"file catalog has no db", func(*testing.T) *sql.DB { return nil }, http.StatusOK, "healthy"},
		{"db reachable", func(t *testing.T) *sql.DB { return newHealthDB(t, true) }, http.StatusOK, "healthy"},
		{"db down", func(t *testing.T) *sql.DB { return newHealthDB(t, false) }, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/healthz", healthCheckHandler(tt.db(t)))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if got := decodeBody(t, w)["status"]; got != tt.wantStatus {
				t.Errorf("status = %v, want %s", got, tt.wantStatus)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// readinessHandler
// ---------------------------------------------------------------------------

func TestReadinessHandler_Ready(t *testing.T) {
	db := newHealthDB(t, true)

	r := gin.New()
	r.GET("/ready", readinessHandler(db, &readinessMockStorage{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["ready"] != true {
		t.Errorf("ready = %v, want true", body["ready"])
	}
	checks, _ := body["checks"].(map[string]interface{})
	if checks["database"] != "healthy" || checks["storage"] != "healthy" {
		t.Errorf("checks = %v, want database and storage healthy", checks)
	}
}

func TestReadinessHandler_NoDependencies(t *testing.T) {
	r := gin.New()
	r.GET("/ready", readinessHandler(nil, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	checks, _ := body["checks"].(map[string]interface{})
	if len(checks) != 0 {
		t.Errorf("checks = %v, want none", checks)
	}
}

func TestReadinessHandler_DatabaseDown(t *testing.T) {
	db := newHealthDB(t, false)

	r := gin.New()
	r.GET("/ready", readinessHandler(db, &readinessMockStorage{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if body := decodeBody(t, w); body["ready"] != false {
		t.Errorf("ready = %v, want false", body["ready"])
	}
}

func TestReadinessHandler_StorageDown(t *testing.T) {
	r := gin.New()
	r.GET("/ready", readinessHandler(nil, &readinessMockStorage{existsErr: errors.New("403 forbidden")}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "storage backend not ready" {
		t.Errorf("error = %v, want storage backend not ready", body["error"])
	}
}

// ---------------------------------------------------------------------------
// versionHandler
// ---------------------------------------------------------------------------

func TestVersionHandler(t *testing.T) {
	r := gin.New()
	r.GET("/version", versionHandler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["version"] != Version {
		t.Errorf("version = %v, want %s", body["version"], Version)
	}
	if body["api_version"] != "v1" {
		t.Errorf("api_version = %v, want v1", body["api_version"])
	}
}

// ---------------------------------------------------------------------------
// NewRouter
// ---------------------------------------------------------------------------

func newTestConfig(withAdmin bool) *config.Config {
	cfg := &config.Config{}
	cfg.Server.BaseURL = "http://localhost:8080"
	cfg.Site.Title = "AI Navigator"
	cfg.Site.Copyright = "Example"
	cfg.Avatar.Size = 40
	cfg.Admin.SessionTTL = time.Hour
	cfg.Admin.LoginAttemptsPerMinute = 10
	if withAdmin {
		cfg.Admin.Username = "admin"
		cfg.Admin.Password = "s3cret-password"
		cfg.Admin.SessionSecret = "test-admin-session-secret-that-is-32chars"
	}
	return cfg
}

func newTestDeps(t *testing.T) Dependencies {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sites.json")
	data := `[{"id": "chatgpt", "name": "ChatGPT", "url": "https://chat.openai.com", "description": "Conversational assistant", "tags": ["Chat"]}]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	dir, err := catalog.NewDirectory(context.Background(), catalog.NewFileRepository(path))
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	return Dependencies{Directory: dir, Visits: noopVisits{}}
}

func TestNewRouter_RequiresDirectory(t *testing.T) {
	if _, _, err := NewRouter(newTestConfig(false), Dependencies{}); err == nil {
		t.Error("expected error without a directory")
	}
}

func TestNewRouter_Routes(t *testing.T) {
	tests := []struct {
		name       string
		withAdmin  bool
		path       string
		wantCode   int
		wantHeader string
	}{
		{"home", false, "/", http.StatusOK, "default-src 'self'"},
		{"search", false, "/search?q=chat", http.StatusOK, "default-src 'self'"},
		{"visit", false, "/go/chatgpt", http.StatusFound, ""},
		{"avatar", false, "/avatar/ChatGPT.svg", http.StatusOK, ""},
		{"static", false, "/static/css/site.css", http.StatusOK, ""},
		{"logos without storage", false, "/logos/x.png", http.StatusNotFound, ""},
		{"api sites", false, "/api/v1/sites", http.StatusOK, "default-src 'none'"},
		{"api categories", false, "/api/v1/categories", http.StatusOK, "default-src 'none'"},
		{"health", false, "/healthz", http.StatusOK, ""},
		{"ready", false, "/ready", http.StatusOK, ""},
		{"admin disabled", false, "/admin/login", http.StatusNotFound, ""},
		{"admin login page", true, "/admin/login", http.StatusOK, "default-src 'self'"},
		{"admin captcha", true, "/admin/captcha", http.StatusOK, ""},
		{"admin protected", true, "/admin/sites", http.StatusFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, bg, err := NewRouter(newTestConfig(tt.withAdmin), newTestDeps(t))
			if err != nil {
				t.Fatalf("NewRouter: %v", err)
			}
			t.Cleanup(bg.Shutdown)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantCode {
				t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.wantCode)
			}
			if tt.wantHeader != "" && !strings.Contains(w.Header().Get("Content-Security-Policy"), tt.wantHeader) {
				t.Errorf("CSP = %q, want it to contain %q", w.Header().Get("Content-Security-Policy"), tt.wantHeader)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}
}

func TestNewRouter_ProtectedRedirectKeepsPath(t *testing.T) {
	router, bg, err := NewRouter(newTestConfig(true), newTestDeps(t))
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	t.Cleanup(bg.Shutdown)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/sites/add", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/admin/login?next=%2Fadmin%2Fsites%2Fadd" {
		t.Errorf("Location = %q", loc)
	}
}

func TestBackgroundServices_Shutdown(t *testing.T) {
	_, bg, err := NewRouter(newTestConfig(true), newTestDeps(t))
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	if len(bg.rateLimiters) != 2 {
		t.Errorf("rate limiters = %d, want 2", len(bg.rateLimiters))
	}
	bg.Shutdown()
}
