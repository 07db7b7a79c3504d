// Package api implements the HTTP interface of Fleetwake.
//
// This package manages:
//   - Session endpoints: login, token refresh, logout, password change
//   - Account administration: create, list, reset, role, status, delete
//   - Device registry and commands: wake-on-LAN and agent shutdown
//   - The audit trail query endpoint
//   - Serving the web UI's static files
//
// # Security
//
// Every endpoint past login requires a bearer access token. The token's
// claims are never trusted on their own: each request re-reads the
// account row, so a disabled account is locked out immediately even
// while its tokens are still unexpired. Error bodies carry a single
// fixed message per failure class so responses do not leak which check
// failed.
//
// # Usage
//
//	server, err := api.New(api.Deps{...})
//	if err != nil {
//		return err
//	}
//	if err := server.Start(); err != nil {
//		return err
//	}
//	defer server.Close()
package api
