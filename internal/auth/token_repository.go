package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// TokenRepository defines the interface for the refresh token ledger.
type TokenRepository interface {
	// Issue mints a fresh refresh token for a user and stores its hash.
	// The raw token is returned to the caller exactly once.
	Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error)

	// Redeem consumes a refresh token and returns the owning user ID.
	// A redeemed token is gone: concurrent redemptions of the same
	// token yield exactly one winner.
	Redeem(ctx context.Context, raw string) (int64, error)

	// Revoke deletes a token unconditionally. Unknown tokens are a no-op.
	Revoke(ctx context.Context, raw string) error

	// RevokeAllForUser deletes every token belonging to a user.
	RevokeAllForUser(ctx context.Context, userID int64) error

	// DeleteExpired removes expired rows and reports how many went.
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
// Raw tokens are never stored — only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Issue generates a raw token, stores its hash with the expiry, and
// returns the raw token.
func (r *SQLiteTokenRepository) Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	raw, err := GenerateRefreshToken()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?)`,
		HashToken(raw), userID,
		now.Add(ttl).Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("storing refresh token: %w", err)
	}

	return raw, nil
}

// Redeem consumes a refresh token.
//
// An unknown token returns ErrTokenInvalid. An expired token is deleted
// and returns ErrTokenExpired. A live token is deleted and its user ID
// returned; the DELETE's affected-row count is the race gate, so two
// concurrent redemptions of one token produce exactly one winner and
// one ErrTokenInvalid.
func (r *SQLiteTokenRepository) Redeem(ctx context.Context, raw string) (int64, error) {
	hash := HashToken(raw)

	var userID int64
	var expiresAt string
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM refresh_tokens WHERE token_hash = ?", hash,
	).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTokenInvalid
		}
		return 0, fmt.Errorf("looking up refresh token: %w", err)
	}

	expiry, _ := time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	if time.Now().After(expiry) {
		_, _ = r.db.ExecContext(ctx, //nolint:errcheck // best effort cleanup, token is rejected either way
			"DELETE FROM refresh_tokens WHERE token_hash = ?", hash)
		return 0, ErrTokenExpired
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash = ?", hash)
	if err != nil {
		return 0, fmt.Errorf("consuming refresh token: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		// Another request consumed it between lookup and delete.
		return 0, ErrTokenInvalid
	}

	return userID, nil
}

// Revoke deletes a token by raw value. Deleting an unknown token
// succeeds, so logout is idempotent.
func (r *SQLiteTokenRepository) Revoke(ctx context.Context, raw string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash = ?", HashToken(raw))
	if err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser deletes every refresh token for a user. Used on
// admin force-logout.
func (r *SQLiteTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("revoking tokens for user: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired refresh tokens.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?",
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows, nil
}
