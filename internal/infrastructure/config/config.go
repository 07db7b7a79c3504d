package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Fleetwake.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Security SecurityConfig `yaml:"security"`
	Agent    AgentConfig    `yaml:"agent"`
	Presence PresenceConfig `yaml:"presence"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP API server settings.
type ServerConfig struct {
	Host      string              `yaml:"host"`
	Port      int                 `yaml:"port"`
	StaticDir string              `yaml:"static_dir"`
	Timeouts  ServerTimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig          `yaml:"cors"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// JWTConfig contains token settings. TTLs are in minutes.
type JWTConfig struct {
	// Secret signs access tokens. When empty, a random per-process secret
	// is generated at startup and tokens become unverifiable after restart.
	Secret          string `yaml:"secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"`
	// RefreshShortTTL is used at login when the client does not ask to be
	// remembered. Rotation on refresh always uses RefreshTokenTTL.
	RefreshShortTTL int `yaml:"refresh_short_ttl"`
}

// BootstrapConfig describes the startup admin account upsert.
// When AdminUsername is set, the account is created or its password reset
// to AdminPassword with a forced password change on next login.
type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

// AgentConfig contains shutdown-agent client settings.
type AgentConfig struct {
	Port         int    `yaml:"port"`
	SharedSecret string `yaml:"shared_secret"`
	Timeout      int    `yaml:"timeout"`
}

// PresenceConfig contains background presence-poller settings.
type PresenceConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"`
	Timeout  int  `yaml:"timeout"`
}

// MQTTConfig contains optional MQTT event publishing settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTReconnectConfig contains reconnection backoff settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InfluxDBConfig contains optional presence-history settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FLEETWAKE_SECTION_KEY
// For example: FLEETWAKE_DATABASE_PATH, FLEETWAKE_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      3000,
			StaticDir: "./static_files",
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/fleetwake.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL:  15,
				RefreshTokenTTL: 43200, // 30 days
				RefreshShortTTL: 1440,  // 1 day
			},
		},
		Agent: AgentConfig{
			Port:    3001,
			Timeout: 5,
		},
		Presence: PresenceConfig{
			Enabled:  true,
			Interval: 30,
			Timeout:  2,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fleetwake-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FLEETWAKE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLEETWAKE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FLEETWAKE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// The signing secret should come from the environment in production
	// rather than living in the config file.
	if v := os.Getenv("FLEETWAKE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("FLEETWAKE_BOOTSTRAP_ADMIN_USERNAME"); v != "" {
		cfg.Security.Bootstrap.AdminUsername = v
	}
	if v := os.Getenv("FLEETWAKE_BOOTSTRAP_ADMIN_PASSWORD"); v != "" {
		cfg.Security.Bootstrap.AdminPassword = v
	}
	if v := os.Getenv("FLEETWAKE_AGENT_SECRET"); v != "" {
		cfg.Agent.SharedSecret = v
	}

	// MQTT
	if v := os.Getenv("FLEETWAKE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FLEETWAKE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FLEETWAKE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("FLEETWAKE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// minJWTSecretLength is the minimum length for an operator-supplied secret.
const minJWTSecretLength = 32

// Validate checks the configuration for errors and security issues.
//
// An absent JWT secret is allowed: the token issuer generates an ephemeral
// one and logs a warning. A configured-but-weak secret is rejected, since
// it silently undermines every token the process signs.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters when set")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Presence.Enabled && c.Presence.Interval < 1 {
		errs = append(errs, "presence.interval must be at least 1 second")
	}

	if c.Agent.Port < 1 || c.Agent.Port > 65535 {
		errs = append(errs, "agent.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// AccessTokenDuration returns the access token lifetime as a Duration.
func (j JWTConfig) AccessTokenDuration() time.Duration {
	return time.Duration(j.AccessTokenTTL) * time.Minute
}

// RefreshTokenDuration returns the long refresh token lifetime as a Duration.
func (j JWTConfig) RefreshTokenDuration() time.Duration {
	return time.Duration(j.RefreshTokenTTL) * time.Minute
}

// RefreshShortDuration returns the short refresh token lifetime as a Duration.
func (j JWTConfig) RefreshShortDuration() time.Duration {
	return time.Duration(j.RefreshShortTTL) * time.Minute
}
