package auth

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// NormalizeUsername lowercases and trims a username. Every read and
// write of a username goes through this so "Alice" and "alice" are the
// same account.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// IsValidUsername checks a normalised username against the format
// requirements: 1-64 characters, lowercase alphanumeric with dots,
// hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents an authorisation tier.
type Role string

const (
	// RoleUser can view devices and send wake/shutdown commands.
	RoleUser Role = "user"

	// RoleAdmin additionally manages accounts, the device registry,
	// and the audit trail.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of assignable roles.
var ValidRoles = []Role{RoleUser, RoleAdmin}

// IsValidRole returns true if the role is assignable to an account.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User represents an account.
type User struct {
	ID                  int64      `json:"id"`
	Username            string     `json:"username"`
	PasswordHash        string     `json:"-"` // never serialised
	Role                Role       `json:"role"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	ForcePasswordChange bool       `json:"force_password_change"`
	IsDisabled          bool       `json:"is_disabled"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// RefreshToken represents a stored refresh token. Only the SHA-256
// hash of the raw token is ever persisted.
type RefreshToken struct {
	TokenHash string    `json:"-"` // never serialised
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserDisabled       = errors.New("user account is disabled")
	ErrUsernameExists     = errors.New("username already exists")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrSelfAction         = errors.New("cannot perform this action on own account")
)
