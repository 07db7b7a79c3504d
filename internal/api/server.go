package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetwake/fleetwake/internal/agent"
	"github.com/fleetwake/fleetwake/internal/audit"
	"github.com/fleetwake/fleetwake/internal/auth"
	"github.com/fleetwake/fleetwake/internal/device"
	"github.com/fleetwake/fleetwake/internal/infrastructure/config"
	"github.com/fleetwake/fleetwake/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight
// requests.
const gracefulShutdownTimeout = 10 * time.Second

// EventPublisher receives command events. Satisfied by the MQTT client;
// nil disables event publishing.
type EventPublisher interface {
	PublishCommand(deviceID int64, command, username string) error
}

// HistoryWriter receives command samples. Satisfied by the InfluxDB
// client; nil disables history.
type HistoryWriter interface {
	WriteCommandSample(deviceID int64, command string)
}

// Deps contains everything the API server needs. Events and History
// are optional; everything else is required.
type Deps struct {
	Config  *config.Config
	Logger  *logging.Logger
	Users   auth.UserRepository
	Tokens  auth.TokenRepository
	Issuer  *auth.TokenIssuer
	Devices device.Repository
	Audit   audit.Repository
	Agent   *agent.Client
	Events  EventPublisher
	History HistoryWriter
	Version string
}

// Server is the Fleetwake HTTP server.
type Server struct {
	deps       Deps
	logger     *logging.Logger
	httpServer *http.Server
}

// New creates an API server from its dependencies.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("api: config is required")
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.Users == nil:
		return nil, errors.New("api: user repository is required")
	case deps.Tokens == nil:
		return nil, errors.New("api: token repository is required")
	case deps.Issuer == nil:
		return nil, errors.New("api: token issuer is required")
	case deps.Devices == nil:
		return nil, errors.New("api: device repository is required")
	case deps.Audit == nil:
		return nil, errors.New("api: audit repository is required")
	case deps.Agent == nil:
		return nil, errors.New("api: agent client is required")
	}

	return &Server{
		deps:   deps,
		logger: deps.Logger.With("component", "api"),
	}, nil
}

// Start begins serving HTTP in a background goroutine.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.deps.Config.Server.Host, s.deps.Config.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.deps.Config.GetReadTimeout(),
		WriteTimeout: s.deps.Config.GetWriteTimeout(),
		IdleTimeout:  s.deps.Config.GetIdleTimeout(),
	}

	s.logger.Info("http server starting", "addr", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	return nil
}

// Close shuts the server down gracefully, waiting for in-flight
// requests up to gracefulShutdownTimeout.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("http server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
