package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// buildRouter assembles the route tree.
//
// Three tiers: public (login, refresh, logout, health), authenticated
// (own session, device listing and commands), admin (accounts, device
// registry, audit trail). Anything outside /api falls through to the
// static file server hosting the web UI.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(corsMiddleware(
		s.deps.Config.Server.CORS.AllowedOrigins,
		s.deps.Config.Server.CORS.AllowedMethods,
		s.deps.Config.Server.CORS.AllowedHeaders,
	))
	r.Use(bodySizeLimitMiddleware)

	fileServer := http.FileServer(http.Dir(s.deps.Config.Server.StaticDir))
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/api/") {
			writeNotFound(w, "Not found")
			return
		}
		fileServer.ServeHTTP(w, req)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/me", s.handleMe)
			r.Post("/change-password", s.handleChangePassword)

			r.Get("/devices", s.handleListDevices)
			r.Post("/devices/{id}/wake", s.handleWake)
			r.Post("/devices/{id}/shutdown", s.handleShutdown)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Get("/users", s.handleListUsers)
				r.Post("/users", s.handleCreateUser)
				r.Post("/users/{id}/reset-password", s.handleResetPassword)
				r.Put("/users/{id}/role", s.handleUpdateRole)
				r.Put("/users/{id}/status", s.handleUpdateStatus)
				r.Delete("/users/{id}", s.handleDeleteUser)

				r.Post("/devices", s.handleCreateDevice)
				r.Put("/devices/{id}", s.handleUpdateDevice)
				r.Delete("/devices/{id}", s.handleDeleteDevice)

				r.Get("/audit", s.handleListAudit)
			})
		})
	})

	return r
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.deps.Version,
	})
}
