// Package container provides dependency injection and lifecycle management
// for the invoicing service.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/biller/internal/application/service"
	"github.com/garyjia/biller/internal/infrastructure/storage"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Recurring RecurringConfig
	PDF       PDFConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Lark      LarkConfig

	// Defaults are merged into newly created invoices
	Defaults service.Defaults
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Production switches session cookies to the secure __Host- form
	Production bool
}

// AuthConfig holds the owner credentials and WebAuthn relying party.
type AuthConfig struct {
	SessionSecret   string
	SessionTTL      time.Duration
	PINSalt         string
	PINHash         string
	PINMaxAttempts  int
	PINLockDuration time.Duration

	RPID    string
	RPName  string
	Origins []string

	Debug bool
}

// RecurringConfig holds recurring processing settings.
type RecurringConfig struct {
	CronSecret string

	// PollInterval starts the in-process poller when positive
	PollInterval time.Duration
	PassTimeout  time.Duration
}

// PDFConfig selects the PDF renderer.
type PDFConfig struct {
	// Provider is auto, invoicegen or local
	Provider  string
	APIKey    string
	Endpoint  string
	Timeout   time.Duration
	Validate  bool
	PublicDir string
}

// StorageConfig selects where generated PDFs are written.
type StorageConfig struct {
	// Backend is local or s3
	Backend  string
	LocalDir string
	S3       storage.S3Config
}

// RateLimitConfig selects the auth rate limiter backend.
type RateLimitConfig struct {
	// Backend is memory or redis
	Backend  string
	RedisURL string
}

// LarkConfig holds owner notification settings.
type LarkConfig struct {
	Enabled       bool
	AppID         string
	AppSecret     string
	BaseURL       string
	ReceiveIDType string
	ReceiveID     string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/biller.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Auth: AuthConfig{
			SessionTTL:      8 * time.Hour,
			PINMaxAttempts:  5,
			PINLockDuration: 15 * time.Minute,
			RPName:          "Biller",
		},
		Recurring: RecurringConfig{
			PassTimeout: 5 * time.Minute,
		},
		PDF: PDFConfig{
			Provider:  "auto",
			Timeout:   60 * time.Second,
			Validate:  true,
			PublicDir: "public",
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "public",
		},
		RateLimit: RateLimitConfig{
			Backend: "memory",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("auth.session_secret is required")
	}
	if c.Auth.RPID == "" || len(c.Auth.Origins) == 0 {
		return fmt.Errorf("auth.webauthn_rp_id and auth.webauthn_origin are required")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.RateLimit.Backend == "redis" && c.RateLimit.RedisURL == "" {
		return fmt.Errorf("ratelimit.redis_url is required")
	}

	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "" || c.Lark.ReceiveID == "") {
		return fmt.Errorf("notify.lark requires app_id, app_secret and receive_id")
	}

	return nil
}
