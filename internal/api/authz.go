package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fleetwake/fleetwake/internal/auth"
)

// bearerPrefix is the expected Authorization scheme.
const bearerPrefix = "Bearer "

// requireAuth validates the bearer token and loads the account behind it.
//
// The account row is re-read on every request rather than trusted from
// the token claims: disabling or deleting an account takes effect on the
// very next request, regardless of token lifetimes.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			writeError(w, http.StatusUnauthorized, msgMissingCredentials)
			return
		}

		claims, err := s.deps.Issuer.Validate(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			writeError(w, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		user, err := s.deps.Users.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				// Valid signature over an account that no longer exists.
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

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects requests from non-admin accounts. It must run
// inside requireAuth.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		if user == nil || user.Role != auth.RoleAdmin {
			writeError(w, http.StatusForbidden, msgAccessDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userFrom returns the authenticated account, or nil outside requireAuth.
func userFrom(ctx context.Context) *auth.User {
	user, _ := ctx.Value(ctxKeyUser).(*auth.User)
	return user
}
