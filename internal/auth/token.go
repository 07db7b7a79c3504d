package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims extends JWT standard claims with Fleetwake-specific fields.
// Subject carries the username; UserID is the database row ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
	Role   Role  `json:"role"`
}

// ephemeralSecretBytes is the size of the generated fallback secret.
const ephemeralSecretBytes = 32

// TokenIssuer signs and validates HS256 access tokens.
//
// It is constructed once at startup and shared; all methods are safe
// for concurrent use.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer creates a TokenIssuer from the configured secret.
//
// When no secret is configured a random per-process secret is generated
// and a warning logged: every token the process signs becomes
// unverifiable after a restart.
func NewTokenIssuer(secret string, logger *slog.Logger) (*TokenIssuer, error) {
	if secret != "" {
		return &TokenIssuer{secret: []byte(secret)}, nil
	}

	b := make([]byte, ephemeralSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating ephemeral JWT secret: %w", err)
	}

	logger.Warn("no JWT secret configured, generated an ephemeral one",
		"consequence", "all access tokens become invalid when this process restarts",
		"action_required", "set security.jwt.secret or FLEETWAKE_JWT_SECRET",
	)

	return &TokenIssuer{secret: b}, nil
}

// Issue creates a signed access token for a user with the given lifetime.
func (ti *TokenIssuer) Issue(user *User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: user.ID,
		Role:   user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies an access token, returning its claims.
//
// Every failure mode (expired, tampered, malformed, wrong algorithm)
// reports ErrTokenInvalid; callers cannot distinguish them and neither
// can clients.
func (ti *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}

	return claims, nil
}

// GenerateRefreshToken creates a cryptographically random refresh token
// (256-bit, hex encoded). The raw token is returned to the client; only
// its hash is stored.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, 32) //nolint:mnd // 256-bit token
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
