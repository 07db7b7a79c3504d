// Fleetwake - fleet power management backend
//
// Fleetwake lets authenticated users wake registered machines over the
// network and shut them down again through a per-machine agent, with
// admin-managed accounts, an audit trail and optional MQTT/InfluxDB
// integrations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/fleetwake/fleetwake/migrations"

	"github.com/fleetwake/fleetwake/internal/agent"
	"github.com/fleetwake/fleetwake/internal/api"
	"github.com/fleetwake/fleetwake/internal/audit"
	"github.com/fleetwake/fleetwake/internal/auth"
	"github.com/fleetwake/fleetwake/internal/device"
	"github.com/fleetwake/fleetwake/internal/infrastructure/config"
	"github.com/fleetwake/fleetwake/internal/infrastructure/database"
	"github.com/fleetwake/fleetwake/internal/infrastructure/influxdb"
	"github.com/fleetwake/fleetwake/internal/infrastructure/logging"
	"github.com/fleetwake/fleetwake/internal/infrastructure/mqtt"
	"github.com/fleetwake/fleetwake/internal/presence"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// tokenSweepInterval is how often expired refresh tokens are purged.
const tokenSweepInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Fleetwake",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	userRepo := auth.NewUserRepository(db.DB)
	tokenRepo := auth.NewTokenRepository(db.DB)
	deviceRepo := device.NewRepository(db.DB)
	auditRepo := audit.NewRepository(db.DB)

	// Ensure an admin account exists before the API accepts logins.
	if _, err := auth.SeedAdmin(ctx, userRepo,
		cfg.Security.Bootstrap.AdminUsername,
		cfg.Security.Bootstrap.AdminPassword,
		log.Logger,
	); err != nil {
		return fmt.Errorf("seeding admin account: %w", err)
	}

	issuer, err := auth.NewTokenIssuer(cfg.Security.JWT.Secret, log.Logger)
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}

	// MQTT is optional: a broker outage must not keep the fleet
	// unmanageable, so connection failures log and continue.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, continuing without events", "error", err)
			mqttClient = nil
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB is optional in the same way.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, continuing without history", "error", err)
			influxClient = nil
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Background sweep of expired refresh tokens.
	go sweepExpiredTokens(ctx, tokenRepo, log)

	// Presence poller keeps the registry's online flags current.
	if cfg.Presence.Enabled {
		var events presence.EventPublisher
		if mqttClient != nil {
			events = mqttClient
		}
		var history presence.HistoryWriter
		if influxClient != nil {
			history = influxClient
		}

		poller := presence.New(deviceRepo, events, history, presence.Config{
			Interval:  cfg.Presence.Interval,
			Timeout:   cfg.Presence.Timeout,
			AgentPort: cfg.Agent.Port,
		}, log.Logger)
		go poller.Run(ctx)
	} else {
		log.Info("presence polling disabled")
	}

	deps := api.Deps{
		Config:  cfg,
		Logger:  log,
		Users:   userRepo,
		Tokens:  tokenRepo,
		Issuer:  issuer,
		Devices: deviceRepo,
		Audit:   auditRepo,
		Agent: agent.NewClient(agent.Config{
			Port:         cfg.Agent.Port,
			SharedSecret: cfg.Agent.SharedSecret,
			Timeout:      cfg.Agent.Timeout,
		}),
		Version: version,
	}
	if mqttClient != nil {
		deps.Events = mqttClient
	}
	if influxClient != nil {
		deps.History = influxClient
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// sweepExpiredTokens purges expired refresh tokens once at startup and
// then on an interval until the context is cancelled.
func sweepExpiredTokens(ctx context.Context, tokens auth.TokenRepository, log *logging.Logger) {
	sweep := func() {
		n, err := tokens.DeleteExpired(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("sweeping expired refresh tokens", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("swept expired refresh tokens", "count", n)
		}
	}

	sweep()

	ticker := time.NewTicker(tokenSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses FLEETWAKE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLEETWAKE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
