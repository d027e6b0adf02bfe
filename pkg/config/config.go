package config

import (
	"errors"
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Logging struct {
	JSONFormat bool   `yaml:"json_format" env:"KEYTUNE_LOG_JSON"`
	Level      string `yaml:"level" env:"KEYTUNE_LOG_LEVEL" env-default:"trace"`
}

type Prometheus struct {
	Enabled bool `yaml:"enabled" env:"KEYTUNE_PROMETHEUS_ENABLED"`
	Port    int  `yaml:"port" env-default:"9090"`
}

type API struct {
	Enabled             bool    `yaml:"enabled" env:"KEYTUNE_API_ENABLED"`
	Port                int     `yaml:"port" env:"KEYTUNE_PORT" env-default:"3000"`
	BaseURL             string  `yaml:"base_url" env:"KEYTUNE_BASE_URL" env-default:"http://localhost:3000"`
	HealthCheckFailFile string  `yaml:"healthcheck_fail_file"`
	UploadRatePerSecond float64 `yaml:"upload_rate_per_second" env-default:"5"`
	UploadBurst         int     `yaml:"upload_burst" env-default:"10"`
}

type Workers struct {
	Enabled bool `yaml:"enabled" env:"KEYTUNE_WORKERS_ENABLED"`
	Count   int  `yaml:"count" env-default:"1"`
	// NodeID must differ between instances sharing a queue and database.
	NodeID int64 `yaml:"node_id" env:"KEYTUNE_WORKER_NODE_ID" env-default:"1"`
}

type Queue struct {
	Type     string         `yaml:"type" env-default:"memory"`
	Settings map[string]any `yaml:"settings"`
}

type Cache struct {
	Type     string         `yaml:"type" env-default:"memory"`
	Settings map[string]any `yaml:"settings"`
}

type Database struct {
	Type     string         `yaml:"type" env:"KEYTUNE_DATABASE_TYPE" env-default:"sqlite"`
	DSN      string         `yaml:"dsn" env:"KEYTUNE_DATABASE_DSN"`
	Settings map[string]any `yaml:"settings"`
}

type BlobStore struct {
	Type     string         `yaml:"type" env-default:"memory"`
	Settings map[string]any `yaml:"settings"`
}

// Auth points at the hosted auth provider. JWTSecret verifies the session
// tokens it issues.
type Auth struct {
	URL          string `yaml:"url" env:"SUPABASE_URL"`
	AnonKey      string `yaml:"anon_key" env:"SUPABASE_ANON_KEY"`
	JWTSecret    string `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
	CookieSecure bool   `yaml:"cookie_secure"`
}

type Payments struct {
	SecretKey      string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	PublishableKey string `yaml:"publishable_key" env:"STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret  string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	Currency       string `yaml:"currency" env-default:"usd"`
	UnitAmount     int64  `yaml:"unit_amount" env-default:"299"`
	ProductName    string `yaml:"product_name" env-default:"Premium Audio Access"`
}

// Enabled reports whether checkout sessions can be created.
func (p Payments) Enabled() bool {
	return p.SecretKey != ""
}

type DashboardConfig struct {
	Enabled    bool   `yaml:"enabled" env:"KEYTUNE_DASHBOARD_ENABLED"`
	LiveReload bool   `yaml:"live_reload"`
	CSRFSecret string `yaml:"csrf_secret" env:"KEYTUNE_CSRF_SECRET"`
}

type KeyTuneConfig struct {
	Logging    Logging         `yaml:"logging"`
	API        API             `yaml:"api"`
	Workers    Workers         `yaml:"workers"`
	Queue      Queue           `yaml:"queue"`
	Cache      Cache           `yaml:"cache"`
	Database   Database        `yaml:"database"`
	BlobStore  BlobStore       `yaml:"blob_store"`
	Auth       Auth            `yaml:"auth"`
	Payments   Payments        `yaml:"payments"`
	Prometheus Prometheus      `yaml:"prometheus"`
	Dashboard  DashboardConfig `yaml:"dashboard"`
}

// Load reads a yaml config file and applies environment overrides on top.
func Load(path string) (KeyTuneConfig, error) {
	var c KeyTuneConfig
	if err := cleanenv.ReadConfig(path, &c); err != nil {
		return c, fmt.Errorf("config.Load: %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config.Load: %s: %w", path, err)
	}
	return c, nil
}

func (c KeyTuneConfig) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Dashboard.Enabled && len(c.Dashboard.CSRFSecret) != 32 {
		return errors.New("dashboard.csrf_secret must be 32 bytes")
	}
	if c.Workers.Enabled && c.Workers.Count < 1 {
		return errors.New("workers.count must be at least 1")
	}
	if c.Workers.NodeID < 0 || c.Workers.NodeID > 1023 {
		return errors.New("workers.node_id must be between 0 and 1023")
	}
	if c.Payments.Enabled() && c.Payments.WebhookSecret == "" {
		return errors.New("payments.webhook_secret is required when payments are enabled")
	}
	return nil
}
