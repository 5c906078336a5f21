// Package config loads service configuration from config.yaml with
// environment variable overrides. Secrets only come from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/rowgate/rowgate/pkg/apperrors"
	"github.com/rowgate/rowgate/pkg/warehouse"
)

// Config holds all configuration for rowgate.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (DSNs, access tokens) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Warehouse connection configuration
	Warehouse WarehouseConfig `yaml:"warehouse"`

	// Warehouse audit log configuration
	AuditLog AuditLogConfig `yaml:"audit_log"`
}

// WarehouseConfig holds the connection settings for the external SQL
// warehouse. The warehouse itself is externally managed; rowgate only ever
// connects to it.
type WarehouseConfig struct {
	// Backend selects the connector implementation: databricks, postgres, or
	// sqlserver.
	Backend string `yaml:"backend" env:"WAREHOUSE_BACKEND" env-default:"databricks"`

	// ID identifies the SQL warehouse to execute against. For the databricks
	// backend it is embedded in the driver's HTTP path; for the others it
	// only keys the connection cache.
	ID string `yaml:"id" env:"WAREHOUSE_ID" env-default:""`

	// Host and Port locate the warehouse server (databricks backend).
	Host string `yaml:"host" env:"WAREHOUSE_HOST" env-default:""`
	Port int    `yaml:"port" env:"WAREHOUSE_PORT" env-default:"443"`

	// DSN is the full connection string for the postgres and sqlserver
	// backends.
	DSN string `yaml:"-" env:"WAREHOUSE_DSN"` // Secret - not in YAML

	// AccessToken authenticates against the warehouse (databricks backend).
	// TokenFile, when set, takes precedence and is re-read periodically so
	// rotated credentials are picked up without a restart.
	AccessToken         string `yaml:"-" env:"WAREHOUSE_ACCESS_TOKEN"` // Secret - not in YAML
	TokenFile           string `yaml:"token_file" env:"WAREHOUSE_TOKEN_FILE" env-default:""`
	TokenRefreshMinutes int    `yaml:"token_refresh_minutes" env:"WAREHOUSE_TOKEN_REFRESH_MINUTES" env-default:"30"`

	// DefaultCatalog and DefaultSchema fill in requests that omit them.
	DefaultCatalog string `yaml:"default_catalog" env:"WAREHOUSE_DEFAULT_CATALOG" env-default:""`
	DefaultSchema  string `yaml:"default_schema" env:"WAREHOUSE_DEFAULT_SCHEMA" env-default:""`

	// AuditUser is recorded in the audit envelope of every mutation.
	AuditUser string `yaml:"audit_user" env:"WAREHOUSE_AUDIT_USER" env-default:"rowgate"`

	// CommandTimeoutSeconds bounds each statement; 0 disables the bound.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds" env:"WAREHOUSE_COMMAND_TIMEOUT_SECONDS" env-default:"120"`

	// MaxConns caps open connections per warehouse.
	MaxConns int `yaml:"max_conns" env:"WAREHOUSE_MAX_CONNS" env-default:"10"`
}

// AuditLogConfig controls the best-effort api_log writer.
type AuditLogConfig struct {
	Enabled bool   `yaml:"enabled" env:"AUDIT_LOG_ENABLED" env-default:"false"`
	Table   string `yaml:"table" env:"AUDIT_LOG_TABLE" env-default:"api_log"`
}

// CommandTimeout returns the per-statement timeout as a duration.
func (c *WarehouseConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// TokenRefreshInterval returns the credential re-read interval.
func (c *WarehouseConfig) TokenRefreshInterval() time.Duration {
	return time.Duration(c.TokenRefreshMinutes) * time.Minute
}

// TokenSource picks the configured credential source: the token file when
// set, the static environment token otherwise.
func (c *WarehouseConfig) TokenSource() warehouse.TokenSource {
	if c.TokenFile != "" {
		return warehouse.FileTokenSource(c.TokenFile)
	}
	return warehouse.StaticTokenSource(c.AccessToken)
}

// Load reads configuration from config.yaml with environment variable
// overrides. A missing config.yaml is fine; everything then comes from the
// environment. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects configurations the server could never serve requests
// with. Target-level settings (warehouse id, default catalog) are checked at
// request time instead, so a partially configured server still starts and
// reports health.
func (c *Config) validate() error {
	switch c.Warehouse.Backend {
	case warehouse.BackendDatabricks:
		if c.Warehouse.Host == "" {
			return apperrors.Configuration("WAREHOUSE_HOST must be set for the databricks backend")
		}
		if c.Warehouse.AccessToken == "" && c.Warehouse.TokenFile == "" {
			return apperrors.Configuration("one of WAREHOUSE_ACCESS_TOKEN or WAREHOUSE_TOKEN_FILE must be set")
		}
	case warehouse.BackendPostgres, warehouse.BackendSQLServer:
		if c.Warehouse.DSN == "" {
			return apperrors.Configuration("WAREHOUSE_DSN must be set for the " + c.Warehouse.Backend + " backend")
		}
	default:
		return apperrors.Configuration("unsupported warehouse backend: " + c.Warehouse.Backend)
	}
	return nil
}
