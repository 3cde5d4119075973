package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditrepository "github.com/smallbiznis/macrolog/internal/audit/repository"
	auditservice "github.com/smallbiznis/macrolog/internal/audit/service"
	"github.com/smallbiznis/macrolog/internal/auth/oauth"
	backupdomain "github.com/smallbiznis/macrolog/internal/backup/domain"
	backupservice "github.com/smallbiznis/macrolog/internal/backup/service"
	catalogservice "github.com/smallbiznis/macrolog/internal/catalog/service"
	"github.com/smallbiznis/macrolog/internal/clock"
	"github.com/smallbiznis/macrolog/internal/config"
	"github.com/smallbiznis/macrolog/internal/providers/pdf"
	"github.com/smallbiznis/macrolog/internal/session"
	"github.com/smallbiznis/macrolog/internal/tracker"
	"github.com/smallbiznis/macrolog/pkg/db"
	"go.uber.org/zap/zaptest"
)

const testCatalogCSV = "name,calories,fat (g),protein (g),carbohydrate (g)\n" +
	"Apple,52,0.2,0.3,14\n" +
	"Rice,130,0.3,2.7,28\n"

type memoryObjectStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memoryObjectStore) Provider() string { return "memory" }

func (m *memoryObjectStore) Find(ctx context.Context, cred backupdomain.Credential, name string) (backupdomain.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return backupdomain.Object{}, backupdomain.ErrObjectNotFound
	}
	return backupdomain.Object{ID: name, Name: name}, nil
}

func (m *memoryObjectStore) Create(ctx context.Context, cred backupdomain.Credential, name string, content io.Reader) (backupdomain.Object, error) {
	return m.put(name, content)
}

func (m *memoryObjectStore) Update(ctx context.Context, cred backupdomain.Credential, obj backupdomain.Object, content io.Reader) (backupdomain.Object, error) {
	return m.put(obj.Name, content)
}

func (m *memoryObjectStore) Download(ctx context.Context, cred backupdomain.Credential, obj backupdomain.Object) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(m.files[obj.Name])), nil
}

func (m *memoryObjectStore) put(name string, content io.Reader) (backupdomain.Object, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return backupdomain.Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	return backupdomain.Object{ID: name, Name: name}, nil
}

func (m *memoryObjectStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "Bad Request",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testServer struct {
	router *gin.Engine
	store  *memoryObjectStore
	cookie *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	source := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(source, []byte(testCatalogCSV), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	tokenSrv := newTokenServer(t)
	cfg := config.Config{
		AppName:  "macrolog",
		Timezone: "UTC",
		OAuth: config.OAuthConfig{
			ClientID:    "client-1",
			AuthURL:     "https://accounts.example.com/o/oauth2/auth",
			TokenURL:    tokenSrv.URL,
			RedirectURL: "http://localhost:8080/auth/callback",
			Scopes:      []string{"https://www.googleapis.com/auth/drive.file"},
		},
		Backup:  config.BackupConfig{ScratchDir: t.TempDir()},
		Session: config.SessionConfig{TTL: time.Hour},
	}

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := auditrepository.Migrate(dbConn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    dbConn,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
		Clock: clk,
	})

	store := &memoryObjectStore{files: map[string][]byte{}}
	catalogSvc := catalogservice.NewWithClient(source, nil, log)
	oauthSvc := oauth.NewService(oauth.Params{Cfg: cfg, Log: log})
	trackerSvc := tracker.New(tracker.Params{
		Cfg:       cfg,
		Log:       log,
		Clock:     clk,
		Catalog:   catalogSvc,
		Auth:      oauthSvc,
		Backup:    backupservice.NewService(backupservice.Params{Cfg: cfg, Log: log, Store: store, AuditSvc: auditSvc}),
		Filenames: backupdomain.Filenames{},
		PDF:       pdf.New(),
	})

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	NewServer(ServerParams{
		Gin:        router,
		Cfg:        cfg,
		Clock:      clk,
		Sessions:   session.NewManager(session.NewMemoryStore(cfg.Session.TTL, clk), clk, log, session.ManagerOptions{TTL: cfg.Session.TTL}),
		OAuthsvc:   oauthSvc,
		CatalogSvc: catalogSvc,
		Tracker:    trackerSvc,
		AuditSvc:   auditSvc,
	})

	return &testServer{router: router, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func (ts *testServer) login(t *testing.T, email string) {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/session", `{"email":"`+email+`"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	for _, c := range resp.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			ts.cookie = c
		}
	}
	if ts.cookie == nil {
		t.Fatal("expected session cookie")
	}
}

// authorize walks the consent flow against the fake token server.
func (ts *testServer) authorize(t *testing.T) {
	t.Helper()
	resp := ts.do(t, http.MethodGet, "/auth/authorize", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Data struct {
			AuthorizationURL string `json:"authorization_url"`
		} `json:"data"`
	}
	decode(t, resp, &body)
	state := queryParam(t, body.Data.AuthorizationURL, "state")

	resp = ts.do(t, http.MethodGet, "/auth/callback?code=good-code&state="+state, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected callback status 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
}

func errorType(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	decode(t, resp, &body)
	return body.Error.Type
}
