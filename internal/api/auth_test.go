package api

import (
	"net/http"
	"testing"
	"time"
)

func TestLogin_Success(t *testing.T) {
	a := newTestAPI(t)
	a.createUser("alice", "secret123", "user")

	status, body := a.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": "alice",
		"password": "secret123",
	})

	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %v)", status, body)
	}
	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Error("response should carry both tokens")
	}
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("response user = %v, want object", body["user"])
	}
	if user["username"] != "alice" {
		t.Errorf("user.username = %v, want alice", user["username"])
	}
	if user["last_login_at"] == nil {
		t.Error("last_login_at should be stamped on login")
	}
}

func TestLogin_NormalizesUsername(t *testing.T) {
	a := newTestAPI(t)
	a.createUser("alice", "secret123", "user")

	status, _ := a.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": "  ALICE  ",
		"password": "secret123",
	})
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200 for case-insensitive username", status)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	a := newTestAPI(t)
	u := a.createUser("alice", "secret123", "user")

	for i := 1; i <= 3; i++ {
		status, body := a.do(http.MethodPost, "/api/login", "", map[string]any{
			"username": "alice",
			"password": "wrong",
		})
		if status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i, status)
		}
		if errMessage(body) != "Invalid credentials" {
			t.Errorf("attempt %d: error = %q, want Invalid credentials", i, errMessage(body))
		}
	}

	var attempts int
	if err := a.db.QueryRow(
		"SELECT failed_login_attempts FROM users WHERE id = ?", u.ID).Scan(&attempts); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	if attempts != 3 {
		t.Errorf("failed_login_attempts = %d, want 3", attempts)
	}

	// A successful login resets the counter.
	a.login("alice", "secret123")
	if err := a.db.QueryRow(
		"SELECT failed_login_attempts FROM users WHERE id = ?", u.ID).Scan(&attempts); err != nil {
		t.Fatalf("re-reading counter: %v", err)
	}
	if attempts != 0 {
		t.Errorf("failed_login_attempts after success = %d, want 0", attempts)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	a := newTestAPI(t)

	status, body := a.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": "ghost",
		"password": "whatever",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
	if errMessage(body) != "Invalid credentials" {
		t.Errorf("error = %q, unknown users must look like wrong passwords", errMessage(body))
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	a := newTestAPI(t)
	u := a.createUser("alice", "secret123", "user")
	if _, err := a.db.Exec("UPDATE users SET is_disabled = 1 WHERE id = ?", u.ID); err != nil {
		t.Fatalf("disabling user: %v", err)
	}

	status, body := a.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": "alice",
		"password": "secret123",
	})
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}
	if errMessage(body) != "Account disabled" {
		t.Errorf("error = %q, want Account disabled", errMessage(body))
	}

	// The rejection happens before the password check, so the counter
	// must not move even on a wrong password.
	status, _ = a.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": "alice",
		"password": "wrong",
	})
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403 regardless of password", status)
	}
	var attempts int
	if err := a.db.QueryRow(
		"SELECT failed_login_attempts FROM users WHERE id = ?", u.ID).Scan(&attempts); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	if attempts != 0 {
		t.Errorf("failed_login_attempts = %d, want 0 for disabled account", attempts)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	a := newTestAPI(t)

	status, _ := a.do(http.MethodPost, "/api/login", "", map[string]any{"username": "alice"})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing password", status)
	}
}

func TestLogin_RememberMeSelectsRefreshLifetime(t *testing.T) {
	a := newTestAPI(t)
	a.createUser("alice", "secret123", "user")

	expiryAfterLogin := func(remember bool) time.Time {
		t.Helper()
		if _, err := a.db.Exec("DELETE FROM refresh_tokens"); err != nil {
			t.Fatalf("clearing tokens: %v", err)
		}
		status, body := a.do(http.MethodPost, "/api/login", "", map[string]any{
			"username":    "alice",
			"password":    "secret123",
			"remember_me": remember,
		})
		if status != http.StatusOK {
			t.Fatalf("login: status %d, body %v", status, body)
		}

		var expiresAt string
		if err := a.db.QueryRow("SELECT expires_at FROM refresh_tokens").Scan(&expiresAt); err != nil {
			t.Fatalf("reading token expiry: %v", err)
		}
		expiry, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			t.Fatalf("parsing expiry %q: %v", expiresAt, err)
		}
		return expiry
	}

	shortExpiry := expiryAfterLogin(false)
	longExpiry := expiryAfterLogin(true)

	twoDays := time.Now().Add(48 * time.Hour)
	if !shortExpiry.Before(twoDays) {
		t.Errorf("short-session expiry %v should be within two days", shortExpiry)
	}
	if !longExpiry.After(twoDays) {
		t.Errorf("remember-me expiry %v should be far beyond two days", longExpiry)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	a := newTestAPI(t)
	a.createUser("alice", "secret123", "user")
	_, refresh := a.login("alice", "secret123")

	status, body := a.do(http.MethodPost, "/api/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %v)", status, body)
	}
	newRefresh, _ := body["refresh_token"].(string)
	if newRefresh == "" || newRefresh == refresh {
		t.Error("refresh should mint a different refresh token")
	}

	// The redeemed token is single use.
	status, body = a.do(http.MethodPost, "/api/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	if status != http.StatusUnauthorized {
		t.Errorf("replay status = %d, want 401", status)
	}
	if errMessage(body) != "Invalid token" {
		t.Errorf("replay error = %q, want Invalid token", errMessage(body))
	}

	// The rotated token still works.
	status, _ = a.do(http.MethodPost, "/api/refresh", "", map[string]any{
		"refresh_token": newRefresh,
	})
	if status != http.StatusOK {
		t.Errorf("rotated token status = %d, want 200", status)
	}
}

func TestRefresh_UnknownToken(t *testing.T) {
	a := newTestAPI(t)

	status, body := a.do(http.MethodPost, "/api/refresh", "", map[string]any{
		"refresh_token": "not-a-real-token",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
	if errMessage(body) != "Invalid token" {
		t.Errorf("error = %q, want Invalid token", errMessage(body))
	}
}

func TestRefresh_DisabledAccountConsumesToken(t *testing.T) {
	a := newTestAPI(t)
	u := a.createUser("alice", "secret123", "user")
	_, refresh := a.login("alice", "secret123")

	if _, err := a.db.Exec("UPDATE users SET is_disabled = 1 WHERE id = ?", u.ID); err != nil {
		t.Fatalf("disabling user: %v", err)
	}

	status, body := a.do(http.MethodPost, "/api/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}
	if errMessage(body) != "Account disabled" {
		t.Errorf("error = %q, want Account disabled", errMessage(body))
	}

	// Re-enabling does not revive the burned token.
	if _, err := a.db.Exec("UPDATE users SET is_disabled = 0 WHERE id = ?", u.ID); err != nil {
		t.Fatalf("re-enabling user: %v", err)
	}
	status, _ = a.do(http.MethodPost, "/api/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	if status != http.StatusUnauthorized {
		t.Errorf("replay after re-enable status = %d, want 401", status)
	}
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	a := newTestAPI(t)
	a.createUser("alice", "secret123", "user")
	_, refresh := a.login("alice", "secret123")

	status, _ := a.do(http.MethodPost, "/api/logout", "", map[string]any{
		"refresh_token": refresh,
	})
	if status != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", status)
	}

	status, _ = a.do(http.MethodPost, "/api/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	if status != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d, want 401", status)
	}

	// Logout is idempotent.
	status, _ = a.do(http.MethodPost, "/api/logout", "", map[string]any{
		"refresh_token": refresh,
	})
	if status != http.StatusOK {
		t.Errorf("repeat logout status = %d, want 200", status)
	}
}

func TestMe_ReturnsIdentity(t *testing.T) {
	a := newTestAPI(t)
	a.createUser("alice", "secret123", "admin")
	access, _ := a.login("alice", "secret123")

	status, body := a.do(http.MethodGet, "/api/me", access, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	user, _ := body["user"].(map[string]any)
	if user["username"] != "alice" || user["role"] != "admin" {
		t.Errorf("user = %v, want alice/admin", user)
	}
}

func TestChangePassword(t *testing.T) {
	a := newTestAPI(t)
	u := a.createUser("alice", "oldpass1", "user")
	if _, err := a.db.Exec("UPDATE users SET force_password_change = 1 WHERE id = ?", u.ID); err != nil {
		t.Fatalf("setting force flag: %v", err)
	}
	access, _ := a.login("alice", "oldpass1")

	status, body := a.do(http.MethodPost, "/api/change-password", access, map[string]any{
		"old_password": "wrong",
		"new_password": "newpass1",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("wrong current password: status = %d, want 401", status)
	}
	if errMessage(body) != "Invalid credentials" {
		t.Errorf("error = %q, want Invalid credentials", errMessage(body))
	}

	status, _ = a.do(http.MethodPost, "/api/change-password", access, map[string]any{
		"old_password": "oldpass1",
		"new_password": "newpass1",
	})
	if status != http.StatusOK {
		t.Fatalf("change password status = %d, want 200", status)
	}

	// New password works, old does not, and the force flag is cleared.
	status, _ = a.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": "alice", "password": "oldpass1",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("old password status = %d, want 401", status)
	}
	_, loginBody := a.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": "alice", "password": "newpass1",
	})
	user, _ := loginBody["user"].(map[string]any)
	if user["force_password_change"] != false {
		t.Errorf("force_password_change = %v, want false after change", user["force_password_change"])
	}
}

func TestChangePassword_EmptyNewPassword(t *testing.T) {
	a := newTestAPI(t)
	a.createUser("alice", "secret123", "user")
	access, _ := a.login("alice", "secret123")

	status, _ := a.do(http.MethodPost, "/api/change-password", access, map[string]any{
		"old_password": "secret123",
		"new_password": "",
	})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}
