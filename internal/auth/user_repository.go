package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UserRepository defines the interface for account persistence.
//
// Usernames are normalised to lowercase on every read and write.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateRole(ctx context.Context, id int64, role Role) error
	SetDisabled(ctx context.Context, id int64, disabled bool) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	AdminResetPassword(ctx context.Context, id int64, passwordHash string) error
	RecordLoginSuccess(ctx context.Context, id int64) error
	IncrementFailedAttempts(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `id, username, password_hash, role, failed_login_attempts,
	last_login_at, force_password_change, is_disabled, created_at, updated_at`

// Create inserts a new account and fills in the assigned ID.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	user.Username = NormalizeUsername(user.Username)
	if user.Role == "" {
		user.Role = RoleUser
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	user.UpdatedAt = user.CreatedAt

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, failed_login_attempts,
		 force_password_change, is_disabled, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?, ?)`,
		user.Username, user.PasswordHash, string(user.Role),
		boolToInt(user.ForcePasswordChange), boolToInt(user.IsDisabled),
		now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	user.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new user id: %w", err)
	}
	user.FailedLoginAttempts = 0
	return nil
}

// GetByID retrieves a user by row ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByUsername retrieves a user by normalised username.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?",
		NormalizeUsername(username))
}

// List returns all accounts ordered by username.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY username ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	if users == nil {
		users = []User{}
	}
	return users, nil
}

// UpdateRole changes an account's role.
func (r *SQLiteUserRepository) UpdateRole(ctx context.Context, id int64, role Role) error {
	return r.exec(ctx,
		"UPDATE users SET role = ?, updated_at = ? WHERE id = ?",
		string(role), nowRFC3339(), id)
}

// SetDisabled enables or disables an account.
func (r *SQLiteUserRepository) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	return r.exec(ctx,
		"UPDATE users SET is_disabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(disabled), nowRFC3339(), id)
}

// UpdatePassword replaces the password hash after a self-service
// change and clears the force-change flag.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = ?, force_password_change = 0, updated_at = ?
		 WHERE id = ?`,
		passwordHash, nowRFC3339(), id)
}

// AdminResetPassword replaces the password hash on an admin reset:
// the failure counter resets, last login clears, and the account must
// change its password at next login.
func (r *SQLiteUserRepository) AdminResetPassword(ctx context.Context, id int64, passwordHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = ?, failed_login_attempts = 0,
		 last_login_at = NULL, force_password_change = 1, updated_at = ?
		 WHERE id = ?`,
		passwordHash, nowRFC3339(), id)
}

// RecordLoginSuccess zeroes the failure counter and stamps the login time.
func (r *SQLiteUserRepository) RecordLoginSuccess(ctx context.Context, id int64) error {
	now := nowRFC3339()
	return r.exec(ctx,
		`UPDATE users SET failed_login_attempts = 0, last_login_at = ?, updated_at = ?
		 WHERE id = ?`,
		now, now, id)
}

// IncrementFailedAttempts bumps the failure counter by one. The
// increment happens in SQL so concurrent failures never lose updates.
func (r *SQLiteUserRepository) IncrementFailedAttempts(ctx context.Context, id int64) error {
	return r.exec(ctx,
		`UPDATE users SET failed_login_attempts = failed_login_attempts + 1, updated_at = ?
		 WHERE id = ?`,
		nowRFC3339(), id)
}

// Delete removes an account. Refresh tokens go with it via the
// foreign key cascade.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the total number of accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// exec runs an UPDATE that must touch exactly one user row.
func (r *SQLiteUserRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// getUser executes a query and scans a single user result.
func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, query, args...))
}

// scanner is an interface over sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanUserFrom scans a user from any scanner (Row or Rows).
func scanUserFrom(s scanner) (*User, error) {
	var u User
	var role string
	var lastLogin sql.NullString
	var forceChange, isDisabled int
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &role,
		&u.FailedLoginAttempts, &lastLogin, &forceChange, &isDisabled,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Role = Role(role)
	u.ForcePasswordChange = forceChange != 0
	u.IsDisabled = isDisabled != 0
	if lastLogin.Valid {
		t, _ := time.Parse(time.RFC3339, lastLogin.String) //nolint:errcheck // format is controlled
		u.LastLoginAt = &t
	}

	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &u, nil
}

// Helper functions.

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}
