// Package auth implements Fleetwake's session and credential subsystem.
//
// This package manages:
//   - Password hashing and verification (Argon2id, PHC string format)
//   - Access token issuance and validation (HS256 JWT)
//   - The refresh token ledger (single-use, rotating, hashed at rest)
//   - Account persistence and login state transitions
//   - Startup admin seeding
//
// # Tokens
//
// Access tokens are short-lived JWTs validated by signature alone; no
// database hit on the hot path. Refresh tokens are opaque 256-bit
// values redeemed exactly once: every redemption deletes the row and
// mints a replacement, so a replayed token fails and a stolen token
// dies the moment its owner rotates.
//
// # Security
//
//   - Raw refresh tokens are never stored, only SHA-256 hashes
//   - Password verification is constant-time
//   - A malformed stored digest verifies as a plain mismatch, so a
//     corrupted row cannot leak its corruption to clients
//   - Usernames are lowercased at every boundary
package auth
