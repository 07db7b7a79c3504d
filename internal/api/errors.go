package api

import (
	"encoding/json"
	"net/http"
)

// Fixed error messages. Clients match on these strings, so they are
// deliberately coarse: "Invalid token" covers expired, tampered and
// unknown tokens alike.
const (
	msgMissingCredentials = "Missing credentials"
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidToken       = "Invalid token"
	msgAccessDenied       = "Access denied"
	msgAccountDisabled    = "Account disabled"
	msgDatabaseError      = "Database error"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // headers already sent, nothing to do
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

// writeDatabaseError reports a storage failure without detail.
func writeDatabaseError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, msgDatabaseError)
}

// decodeJSON decodes a request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
