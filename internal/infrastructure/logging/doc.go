// Package logging provides structured logging for Fleetwake.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same format, level filtering, and default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 3000)
//	logger.Error("wake failed", "device_id", id, "error", err)
//
// # Security
//
// Never log passwords, password hashes, JWT secrets, or refresh tokens.
// Log token prefixes or usernames instead.
package logging
