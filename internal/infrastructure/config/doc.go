// Package config handles loading and validating Fleetwake configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (FLEETWAKE_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (JWT secret, MQTT credentials, agent shared secret)
//     should be set via environment variables, not the config file
//   - A missing JWT secret is not fatal: the token issuer generates an
//     ephemeral per-process secret and logs a warning
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
