package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fleetwake/fleetwake/internal/agent"
	"github.com/fleetwake/fleetwake/internal/audit"
	"github.com/fleetwake/fleetwake/internal/auth"
	"github.com/fleetwake/fleetwake/internal/device"
	"github.com/fleetwake/fleetwake/internal/infrastructure/config"
	"github.com/fleetwake/fleetwake/internal/infrastructure/logging"
)

const testSchema = `
CREATE TABLE users (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    username              TEXT NOT NULL UNIQUE,
    password_hash         TEXT NOT NULL,
    role                  TEXT NOT NULL DEFAULT 'user',
    failed_login_attempts INTEGER NOT NULL DEFAULT 0,
    last_login_at         TEXT,
    force_password_change INTEGER NOT NULL DEFAULT 0,
    is_disabled           INTEGER NOT NULL DEFAULT 0,
    created_at            TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
    updated_at            TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);

CREATE TABLE refresh_tokens (
    token_hash TEXT PRIMARY KEY,
    user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    expires_at TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);

CREATE TABLE devices (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    name           TEXT NOT NULL,
    mac_address    TEXT NOT NULL,
    ip_address     TEXT,
    broadcast_addr TEXT NOT NULL DEFAULT '255.255.255.255',
    icon           TEXT,
    is_online      INTEGER NOT NULL DEFAULT 0,
    last_seen_at   TEXT,
    created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
    updated_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);

CREATE TABLE audit_logs (
    id          TEXT PRIMARY KEY,
    action      TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id   TEXT,
    username    TEXT,
    details     TEXT,
    created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
`

// testJWTSecret is deliberately long enough to pass config validation.
const testJWTSecret = "test-secret-test-secret-test-secret!"

// commandRecorder captures command events published by handlers.
type commandRecorder struct {
	mu       sync.Mutex
	commands []string
}

func (c *commandRecorder) PublishCommand(deviceID int64, command, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, fmt.Sprintf("%d/%s/%s", deviceID, command, username))
	return nil
}

func (c *commandRecorder) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// testAPI bundles a server under test with direct repository access.
type testAPI struct {
	t      *testing.T
	db     *sql.DB
	srv    *Server
	ts     *httptest.Server
	events *commandRecorder
}

// newTestAPI builds a full server over an in-memory database. Options
// may adjust dependencies before the server is constructed.
func newTestAPI(t *testing.T, opts ...func(*Deps)) *testAPI {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:      "127.0.0.1",
			Port:      0,
			StaticDir: t.TempDir(),
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:          testJWTSecret,
				AccessTokenTTL:  15,
				RefreshTokenTTL: 43200,
				RefreshShortTTL: 1440,
			},
		},
	}

	logger := logging.Default()
	issuer, err := auth.NewTokenIssuer(cfg.Security.JWT.Secret, logger.Logger)
	if err != nil {
		t.Fatalf("creating token issuer: %v", err)
	}

	events := &commandRecorder{}
	deps := Deps{
		Config:  cfg,
		Logger:  logger,
		Users:   auth.NewUserRepository(db),
		Tokens:  auth.NewTokenRepository(db),
		Issuer:  issuer,
		Devices: device.NewRepository(db),
		Audit:   audit.NewRepository(db),
		Agent:   agent.NewClient(agent.Config{Port: 1, Timeout: 1}),
		Events:  events,
		Version: "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &testAPI{t: t, db: db, srv: srv, ts: ts, events: events}
}

// createUser inserts an account directly through the repository.
func (a *testAPI) createUser(username, password string, role auth.Role) *auth.User {
	a.t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		a.t.Fatalf("hashing password: %v", err)
	}
	u := &auth.User{Username: username, PasswordHash: hash, Role: role}
	if err := auth.NewUserRepository(a.db).Create(context.Background(), u); err != nil {
		a.t.Fatalf("creating test user: %v", err)
	}
	return u
}

// do sends a JSON request and decodes the JSON response body.
func (a *testAPI) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encoding request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, a.ts.URL+path, &buf)
	if err != nil {
		a.t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.ts.Client().Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		a.t.Fatalf("decoding response from %s %s: %v", method, path, err)
	}
	return resp.StatusCode, decoded
}

// login authenticates and returns the access and refresh tokens.
func (a *testAPI) login(username, password string) (string, string) {
	a.t.Helper()

	status, body := a.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": username,
		"password": password,
	})
	if status != http.StatusOK {
		a.t.Fatalf("login as %q: status %d, body %v", username, status, body)
	}

	access, _ := body["access_token"].(string)
	refresh, _ := body["refresh_token"].(string)
	if access == "" || refresh == "" {
		a.t.Fatalf("login as %q: missing tokens in %v", username, body)
	}
	return access, refresh
}

// errMessage extracts the error field from a response body.
func errMessage(body map[string]any) string {
	msg, _ := body["error"].(string)
	return msg
}

// mustContain fails unless substr occurs in s.
func mustContain(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%q does not contain %q", s, substr)
	}
}
