// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, session service) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the TreeAtlas API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// SessionSecret is the symmetric key used to sign and verify session JWTs.
	//
	// It is deliberately NOT marked required: when it is absent, session
	// verification fails closed (every request is anonymous) instead of the
	// process refusing to boot. Login will return an internal error until
	// the secret is configured.
	SessionSecret string `env:"SESSION_SECRET"`

	// SessionTTL is the lifetime of an issued session token.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// MFAEncryptionKey is a 64-character hex string (32 bytes) used as the
	// AES-256-GCM key for TOTP secrets at rest. It is independent from
	// SessionSecret so the two can be rotated separately.
	MFAEncryptionKey string `env:"MFA_ENCRYPTION_KEY,required"`

	// SecureCookies selects the __Secure- prefixed session cookie. Enable on
	// any TLS-terminated deployment.
	SecureCookies bool `env:"SECURE_COOKIES" envDefault:"false"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
