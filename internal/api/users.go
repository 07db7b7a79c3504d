package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fleetwake/fleetwake/internal/audit"
	"github.com/fleetwake/fleetwake/internal/auth"
)

// idParam parses the {id} route parameter.
func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// handleListUsers returns every account. Admin only.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Users.List(r.Context())
	if err != nil {
		writeDatabaseError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type createUserRequest struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

// createUserResponse carries the generated password back to the admin
// exactly once; it is never retrievable again.
type createUserResponse struct {
	Message  string     `json:"message"`
	User     *auth.User `json:"user"`
	Password string     `json:"password,omitempty"`
}

// handleCreateUser creates an account. When no password is supplied a
// temporary one is generated and returned; either way the account must
// change it at first login.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	username := auth.NormalizeUsername(req.Username)
	if !auth.IsValidUsername(username) {
		writeBadRequest(w, "Invalid username")
		return
	}

	role := req.Role
	if role == "" {
		role = auth.RoleUser
	}
	if !auth.IsValidRole(role) {
		writeBadRequest(w, "Invalid role")
		return
	}

	password := req.Password
	generated := false
	if password == "" {
		var err error
		password, err = auth.GeneratePassword()
		if err != nil {
			s.logger.Error("generating password", "error", err)
			writeDatabaseError(w)
			return
		}
		generated = true
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		writeDatabaseError(w)
		return
	}

	user := &auth.User{
		Username:            username,
		PasswordHash:        hash,
		Role:                role,
		ForcePasswordChange: true,
	}
	if err := s.deps.Users.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrUsernameExists) {
			writeError(w, http.StatusConflict, "Username already exists")
			return
		}
		writeDatabaseError(w)
		return
	}

	s.recordAudit(r.Context(), &audit.Entry{
		Action:     audit.ActionUserCreated,
		EntityType: audit.EntityUser,
		EntityID:   itoa(user.ID),
		Username:   userFrom(r.Context()).Username,
		Details:    map[string]any{"created_username": username, "role": string(role)},
	})

	resp := createUserResponse{Message: "User created", User: user}
	if generated {
		resp.Password = password
	}
	writeJSON(w, http.StatusCreated, resp)
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type resetPasswordResponse struct {
	Message  string `json:"message"`
	Password string `json:"password,omitempty"`
}

// handleResetPassword sets a new password on an account. The failure
// counter resets, the last login clears, and the account must change
// the password at next login.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid user ID")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil && r.ContentLength > 0 {
		writeBadRequest(w, "Invalid request body")
		return
	}

	password := req.NewPassword
	generated := false
	if password == "" {
		password, err = auth.GeneratePassword()
		if err != nil {
			s.logger.Error("generating password", "error", err)
			writeDatabaseError(w)
			return
		}
		generated = true
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		writeDatabaseError(w)
		return
	}

	if err := s.deps.Users.AdminResetPassword(r.Context(), id, hash); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		writeDatabaseError(w)
		return
	}

	s.recordAudit(r.Context(), &audit.Entry{
		Action:     audit.ActionPasswordReset,
		EntityType: audit.EntityUser,
		EntityID:   itoa(id),
		Username:   userFrom(r.Context()).Username,
	})

	resp := resetPasswordResponse{Message: "Password reset"}
	if generated {
		resp.Password = password
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateRoleRequest struct {
	Role auth.Role `json:"role"`
}

// handleUpdateRole changes an account's role. Admins cannot change
// their own role, so the last admin cannot lock everyone out.
func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid user ID")
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if !auth.IsValidRole(req.Role) {
		writeBadRequest(w, "Invalid role")
		return
	}

	actor := userFrom(r.Context())
	if actor.ID == id {
		writeError(w, http.StatusForbidden, msgAccessDenied)
		return
	}

	if err := s.deps.Users.UpdateRole(r.Context(), id, req.Role); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		writeDatabaseError(w)
		return
	}

	s.recordAudit(r.Context(), &audit.Entry{
		Action:     audit.ActionUserRole,
		EntityType: audit.EntityUser,
		EntityID:   itoa(id),
		Username:   actor.Username,
		Details:    map[string]any{"role": string(req.Role)},
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Role updated"})
}

type updateStatusRequest struct {
	IsDisabled bool `json:"is_disabled"`
}

// handleUpdateStatus enables or disables an account. Admins cannot
// disable themselves. Disabling takes effect on the account's next
// request through the live account check.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid user ID")
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	actor := userFrom(r.Context())
	if actor.ID == id {
		writeError(w, http.StatusForbidden, msgAccessDenied)
		return
	}

	if err := s.deps.Users.SetDisabled(r.Context(), id, req.IsDisabled); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		writeDatabaseError(w)
		return
	}

	s.recordAudit(r.Context(), &audit.Entry{
		Action:     audit.ActionUserStatus,
		EntityType: audit.EntityUser,
		EntityID:   itoa(id),
		Username:   actor.Username,
		Details:    map[string]any{"is_disabled": req.IsDisabled},
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Status updated"})
}

// handleDeleteUser removes an account and, via the foreign key cascade,
// its refresh tokens. Admins cannot delete themselves.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid user ID")
		return
	}

	actor := userFrom(r.Context())
	if actor.ID == id {
		writeError(w, http.StatusForbidden, msgAccessDenied)
		return
	}

	if err := s.deps.Users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		writeDatabaseError(w)
		return
	}

	s.recordAudit(r.Context(), &audit.Entry{
		Action:     audit.ActionUserDeleted,
		EntityType: audit.EntityUser,
		EntityID:   itoa(id),
		Username:   actor.Username,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}
