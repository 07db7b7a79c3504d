package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetwake/fleetwake/internal/audit"
	"github.com/fleetwake/fleetwake/internal/auth"
)

// userView is the account projection returned to clients. Sensitive
// and bookkeeping columns stay out of session responses.
type userView struct {
	ID                  int64      `json:"id"`
	Username            string     `json:"username"`
	Role                auth.Role  `json:"role"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	ForcePasswordChange bool       `json:"force_password_change"`
}

func viewOf(u *auth.User) userView {
	return userView{
		ID:                  u.ID,
		Username:            u.Username,
		Role:                u.Role,
		LastLoginAt:         u.LastLoginAt,
		ForcePasswordChange: u.ForcePasswordChange,
	}
}

// sessionResponse is returned by login and refresh.
type sessionResponse struct {
	Message      string   `json:"message"`
	User         userView `json:"user"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// handleLogin authenticates a username and password and mints a token
// pair. RememberMe selects the long refresh lifetime.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	username := auth.NormalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		writeBadRequest(w, "Username and password are required")
		return
	}

	ctx := r.Context()
	user, err := s.deps.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			// Unknown accounts and wrong passwords look identical.
			s.recordAudit(ctx, &audit.Entry{
				Action:     audit.ActionLoginFailed,
				EntityType: audit.EntityUser,
				Username:   username,
				Details:    map[string]any{"reason": "unknown_user"},
			})
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		writeDatabaseError(w)
		return
	}

	// A disabled account is rejected before the password is checked, so
	// the failure counter cannot grow while the account is locked out.
	if user.IsDisabled {
		writeError(w, http.StatusForbidden, msgAccountDisabled)
		return
	}

	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		if err := s.deps.Users.IncrementFailedAttempts(ctx, user.ID); err != nil {
			s.logger.Error("incrementing failed attempts", "user_id", user.ID, "error", err)
		}
		s.recordAudit(ctx, &audit.Entry{
			Action:     audit.ActionLoginFailed,
			EntityType: audit.EntityUser,
			EntityID:   itoa(user.ID),
			Username:   username,
			Details:    map[string]any{"reason": "wrong_password"},
		})
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	if err := s.deps.Users.RecordLoginSuccess(ctx, user.ID); err != nil {
		writeDatabaseError(w)
		return
	}
	now := time.Now().UTC()
	user.FailedLoginAttempts = 0
	user.LastLoginAt = &now

	jwtCfg := s.deps.Config.Security.JWT
	accessToken, err := s.deps.Issuer.Issue(user, jwtCfg.AccessTokenDuration())
	if err != nil {
		s.logger.Error("issuing access token", "user_id", user.ID, "error", err)
		writeDatabaseError(w)
		return
	}

	refreshTTL := jwtCfg.RefreshShortDuration()
	if req.RememberMe {
		refreshTTL = jwtCfg.RefreshTokenDuration()
	}
	refreshToken, err := s.deps.Tokens.Issue(ctx, user.ID, refreshTTL)
	if err != nil {
		writeDatabaseError(w)
		return
	}

	s.recordAudit(ctx, &audit.Entry{
		Action:     audit.ActionLogin,
		EntityType: audit.EntityUser,
		EntityID:   itoa(user.ID),
		Username:   user.Username,
	})

	writeJSON(w, http.StatusOK, sessionResponse{
		Message:      "Login successful",
		User:         viewOf(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh redeems a refresh token for a new token pair.
//
// Redemption consumes the token before anything else is checked, so a
// token presented for a disabled account is burned rather than left
// usable for a retry after re-enabling.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "Refresh token is required")
		return
	}

	ctx := r.Context()
	userID, err := s.deps.Tokens.Redeem(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) || errors.Is(err, auth.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, msgInvalidToken)
			return
		}
		writeDatabaseError(w)
		return
	}

	user, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, msgInvalidToken)
			return
		}
		writeDatabaseError(w)
		return
	}

	if user.IsDisabled {
		writeError(w, http.StatusForbidden, msgAccountDisabled)
		return
	}

	jwtCfg := s.deps.Config.Security.JWT
	accessToken, err := s.deps.Issuer.Issue(user, jwtCfg.AccessTokenDuration())
	if err != nil {
		s.logger.Error("issuing access token", "user_id", user.ID, "error", err)
		writeDatabaseError(w)
		return
	}

	// Rotation always uses the long lifetime; remember-me only shapes
	// the first token of a session.
	refreshToken, err := s.deps.Tokens.Issue(ctx, user.ID, jwtCfg.RefreshTokenDuration())
	if err != nil {
		writeDatabaseError(w)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Message:      "Token refreshed",
		User:         viewOf(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// handleLogout revokes a refresh token. It always succeeds: revoking an
// unknown or already-revoked token is a no-op.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err == nil && req.RefreshToken != "" {
		if err := s.deps.Tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
			s.logger.Warn("revoking refresh token", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// handleMe returns the authenticated account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]userView{"user": viewOf(userFrom(r.Context()))})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// handleChangePassword lets an account change its own password. A
// successful change clears the force-password-change flag.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.NewPassword == "" {
		writeBadRequest(w, "New password is required")
		return
	}

	user := userFrom(r.Context())
	if !auth.VerifyPassword(req.OldPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error("hashing password", "user_id", user.ID, "error", err)
		writeDatabaseError(w)
		return
	}

	if err := s.deps.Users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		writeDatabaseError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

// recordAudit writes an audit entry, logging instead of failing the
// request if the write does not succeed.
func (s *Server) recordAudit(ctx context.Context, entry *audit.Entry) {
	if err := s.deps.Audit.Record(ctx, entry); err != nil {
		s.logger.Warn("recording audit entry", "action", entry.Action, "error", err)
	}
}

// itoa formats a row ID for audit entity references.
func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
