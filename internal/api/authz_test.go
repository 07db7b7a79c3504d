package api

import (
	"net/http"
	"testing"
)

func TestRequireAuth_MissingHeader(t *testing.T) {
	a := newTestAPI(t)

	status, body := a.do(http.MethodGet, "/api/me", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
	if errMessage(body) != "Missing credentials" {
		t.Errorf("error = %q, want Missing credentials", errMessage(body))
	}
}

func TestRequireAuth_GarbageToken(t *testing.T) {
	a := newTestAPI(t)

	status, body := a.do(http.MethodGet, "/api/me", "not.a.jwt", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
	if errMessage(body) != "Invalid token" {
		t.Errorf("error = %q, want Invalid token", errMessage(body))
	}
}

func TestRequireAuth_DisabledMidSession(t *testing.T) {
	a := newTestAPI(t)
	u := a.createUser("alice", "secret123", "user")
	access, _ := a.login("alice", "secret123")

	// The token works until the account is disabled.
	if status, _ := a.do(http.MethodGet, "/api/me", access, nil); status != http.StatusOK {
		t.Fatalf("status before disable = %d, want 200", status)
	}

	if _, err := a.db.Exec("UPDATE users SET is_disabled = 1 WHERE id = ?", u.ID); err != nil {
		t.Fatalf("disabling user: %v", err)
	}

	// The unexpired token is rejected on the very next request.
	status, body := a.do(http.MethodGet, "/api/me", access, nil)
	if status != http.StatusForbidden {
		t.Errorf("status after disable = %d, want 403", status)
	}
	if errMessage(body) != "Account disabled" {
		t.Errorf("error = %q, want Account disabled", errMessage(body))
	}
}

func TestRequireAuth_DeletedAccount(t *testing.T) {
	a := newTestAPI(t)
	u := a.createUser("alice", "secret123", "user")
	access, _ := a.login("alice", "secret123")

	if _, err := a.db.Exec("DELETE FROM users WHERE id = ?", u.ID); err != nil {
		t.Fatalf("deleting user: %v", err)
	}

	status, body := a.do(http.MethodGet, "/api/me", access, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for a token over a deleted account", status)
	}
	if errMessage(body) != "Invalid token" {
		t.Errorf("error = %q, want Invalid token", errMessage(body))
	}
}

func TestRequireAdmin_RejectsUserRole(t *testing.T) {
	a := newTestAPI(t)
	a.createUser("bob", "secret123", "user")
	access, _ := a.login("bob", "secret123")

	status, body := a.do(http.MethodGet, "/api/users", access, nil)
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}
	if errMessage(body) != "Access denied" {
		t.Errorf("error = %q, want Access denied", errMessage(body))
	}
}

func TestRequireAdmin_AllowsAdmin(t *testing.T) {
	a := newTestAPI(t)
	a.createUser("root", "secret123", "admin")
	access, _ := a.login("root", "secret123")

	status, _ := a.do(http.MethodGet, "/api/users", access, nil)
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
}
