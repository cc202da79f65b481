package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Recurring RecurringConfig `mapstructure:"recurring"`
	PDF       PDFConfig       `mapstructure:"pdf"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Company   CompanyConfig   `mapstructure:"company"`
	Account   AccountConfig   `mapstructure:"account"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// IsProduction reports whether secure cookies should be issued
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// AuthConfig holds the owner credentials and session settings
type AuthConfig struct {
	SessionSecret     string `mapstructure:"session_secret"`
	SessionTTLSeconds int    `mapstructure:"session_ttl_seconds"`
	PINSalt           string `mapstructure:"pin_salt"`
	PINHash           string `mapstructure:"pin_hash"`
	PINMaxAttempts    int    `mapstructure:"pin_max_attempts"`
	PINLockMS         int    `mapstructure:"pin_lock_ms"`
	WebAuthnRPID      string `mapstructure:"webauthn_rp_id"`
	WebAuthnOrigin    string `mapstructure:"webauthn_origin"`
	WebAuthnRPName    string `mapstructure:"webauthn_rp_name"`
	Debug             bool   `mapstructure:"debug"`
}

// SessionTTL converts the configured seconds
func (a AuthConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLSeconds) * time.Second
}

// PINLockDuration converts the configured milliseconds
func (a AuthConfig) PINLockDuration() time.Duration {
	return time.Duration(a.PINLockMS) * time.Millisecond
}

// WebAuthnOrigins splits the comma separated origin list
func (a AuthConfig) WebAuthnOrigins() []string {
	var out []string
	for _, o := range strings.Split(a.WebAuthnOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RecurringConfig holds recurring processing configuration
type RecurringConfig struct {
	CronSecret string `mapstructure:"cron_secret"`
	// PollInterval enables the in-process poller when positive
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PassTimeout  time.Duration `mapstructure:"pass_timeout"`
}

// PDFConfig selects and configures the PDF renderer
type PDFConfig struct {
	// Provider is auto, invoicegen or local
	Provider  string        `mapstructure:"provider"`
	APIKey    string        `mapstructure:"api_key"`
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Validate  bool          `mapstructure:"validate"`
	PublicDir string        `mapstructure:"public_dir"`
}

// StorageConfig selects where generated files are written
type StorageConfig struct {
	// Backend is local or s3
	Backend  string   `mapstructure:"backend"`
	LocalDir string   `mapstructure:"local_dir"`
	S3       S3Config `mapstructure:"s3"`
}

// S3Config holds S3 bucket settings
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// RateLimitConfig selects the limiter backend
type RateLimitConfig struct {
	// Backend is memory or redis
	Backend  string `mapstructure:"backend"`
	RedisURL string `mapstructure:"redis_url"`
}

// NotifyConfig holds owner notification settings
type NotifyConfig struct {
	Lark LarkConfig `mapstructure:"lark"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	BaseURL       string `mapstructure:"base_url"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
	ReceiveID     string `mapstructure:"receive_id"`
}

// CompanyConfig is the default sender block of new invoices
type CompanyConfig struct {
	Name    string `mapstructure:"name"`
	Tagline string `mapstructure:"tagline"`
	Logo    string `mapstructure:"logo"`
	Phone   string `mapstructure:"phone"`
	Email   string `mapstructure:"email"`
	Address string `mapstructure:"address"`
	City    string `mapstructure:"city"`
	Country string `mapstructure:"country"`
	VatID   string `mapstructure:"vat_id"`
}

// AccountConfig is the default bank block of new invoices
type AccountConfig struct {
	BankName          string `mapstructure:"bank_name"`
	AccountHolderName string `mapstructure:"account_holder_name"`
	AccountNumber     string `mapstructure:"account_number"`
	IBAN              string `mapstructure:"iban"`
	SwiftBIC          string `mapstructure:"swift_bic"`
	BranchName        string `mapstructure:"branch_name"`
	BranchAddress     string `mapstructure:"branch_address"`
}

// Load reads envFile (if present) into the environment, then the optional
// YAML file at configPath, then environment overrides.
func Load(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := gotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load env file: %w", err)
			}
		}
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	v.SetEnvPrefix("BILLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.environment", "development")

	v.SetDefault("database.path", "data/biller.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("auth.session_ttl_seconds", 8*60*60)
	v.SetDefault("auth.pin_max_attempts", 5)
	v.SetDefault("auth.pin_lock_ms", 15*60*1000)
	v.SetDefault("auth.webauthn_rp_name", "Biller")
	v.SetDefault("auth.debug", false)

	v.SetDefault("recurring.poll_interval", 0)
	v.SetDefault("recurring.pass_timeout", 5*time.Minute)

	v.SetDefault("pdf.provider", "auto")
	v.SetDefault("pdf.endpoint", "https://invoice-generator.com")
	v.SetDefault("pdf.timeout", 60*time.Second)
	v.SetDefault("pdf.validate", true)
	v.SetDefault("pdf.public_dir", "public")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "public")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.prefix", "")

	v.SetDefault("ratelimit.backend", "memory")

	v.SetDefault("notify.lark.enabled", false)
	v.SetDefault("notify.lark.receive_id_type", "open_id")

	v.SetDefault("company.name", "Technioz")
	v.SetDefault("company.tagline", "Innovative Solutions Seamless Integration")
	v.SetDefault("company.logo", "logo.png")
	v.SetDefault("company.phone", "+91 9803683577")
	v.SetDefault("company.email", "info@technioz.com")
	v.SetDefault("company.address", "Jalandhar, Punjab")
	v.SetDefault("company.city", "Jalandhar")
	v.SetDefault("company.country", "India")
	v.SetDefault("company.vat_id", "")

	for _, key := range []string{"bank_name", "account_holder_name", "account_number", "iban", "swift_bic", "branch_name", "branch_address"} {
		v.SetDefault("account."+key, "")
	}
	for _, key := range []string{"bucket", "endpoint", "access_key", "secret_key"} {
		v.SetDefault("storage.s3."+key, "")
	}
	for _, key := range []string{"session_secret", "pin_salt", "pin_hash", "webauthn_rp_id", "webauthn_origin"} {
		v.SetDefault("auth."+key, "")
	}
	v.SetDefault("recurring.cron_secret", "")
	v.SetDefault("pdf.api_key", "")
	v.SetDefault("ratelimit.redis_url", "")
	for _, key := range []string{"app_id", "app_secret", "base_url", "receive_id"} {
		v.SetDefault("notify.lark."+key, "")
	}
}

// bindEnvVars binds the deployment environment variables to configuration keys
func bindEnvVars(v *viper.Viper) {
	bindings := map[string]string{
		"server.environment":       "APP_ENV",
		"server.port":              "PORT",
		"auth.session_secret":      "AUTH_SESSION_SECRET",
		"auth.session_ttl_seconds": "AUTH_SESSION_TTL_SECONDS",
		"auth.pin_salt":            "AUTH_PIN_SALT",
		"auth.pin_hash":            "AUTH_PIN_HASH",
		"auth.pin_max_attempts":    "AUTH_PIN_MAX_ATTEMPTS",
		"auth.pin_lock_ms":         "AUTH_PIN_LOCK_MS",
		"auth.webauthn_rp_id":      "AUTH_WEBAUTHN_RP_ID",
		"auth.webauthn_origin":     "AUTH_WEBAUTHN_ORIGIN",
		"auth.webauthn_rp_name":    "AUTH_WEBAUTHN_RP_NAME",
		"auth.debug":               "AUTH_DEBUG",
		"recurring.cron_secret":    "RECURRING_CRON_SECRET",
		"pdf.api_key":              "INVOICE_GENERATOR_API_KEY",
		"ratelimit.redis_url":      "REDIS_URL",
		"storage.s3.access_key":    "AWS_ACCESS_KEY_ID",
		"storage.s3.secret_key":    "AWS_SECRET_ACCESS_KEY",
		"notify.lark.app_id":       "LARK_APP_ID",
		"notify.lark.app_secret":   "LARK_APP_SECRET",
		"company.name":             "COMPANY_NAME",
		"company.tagline":          "COMPANY_TAGLINE",
		"company.logo":             "COMPANY_LOGO_URL",
		"company.phone":            "COMPANY_PHONE",
		"company.email":            "COMPANY_EMAIL",
		"company.address":          "COMPANY_ADDRESS",
		"company.city":             "COMPANY_CITY",
		"company.country":          "COMPANY_COUNTRY",
		"company.vat_id":           "COMPANY_VAT_ID",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if missing := c.Auth.Missing(); len(missing) > 0 {
		return fmt.Errorf("missing required auth configuration: %s", strings.Join(missing, ", "))
	}

	switch c.PDF.Provider {
	case "auto", "invoicegen", "local":
	default:
		return fmt.Errorf("pdf.provider must be auto, invoicegen or local, got %q", c.PDF.Provider)
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
		return fmt.Errorf("storage.backend must be local or s3, got %q", c.Storage.Backend)
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisURL == "" {
			return fmt.Errorf("ratelimit.redis_url is required")
		}
	default:
		return fmt.Errorf("ratelimit.backend must be memory or redis, got %q", c.RateLimit.Backend)
	}

	if c.Notify.Lark.Enabled && (c.Notify.Lark.AppID == "" || c.Notify.Lark.AppSecret == "" || c.Notify.Lark.ReceiveID == "") {
		return fmt.Errorf("notify.lark requires app_id, app_secret and receive_id")
	}

	if c.Recurring.PollInterval < 0 {
		return fmt.Errorf("recurring.poll_interval must not be negative")
	}

	return nil
}

// Missing lists the environment names of required auth values that are empty
func (a AuthConfig) Missing() []string {
	var missing []string
	for _, req := range []struct {
		env   string
		value string
	}{
		{"AUTH_SESSION_SECRET", a.SessionSecret},
		{"AUTH_PIN_SALT", a.PINSalt},
		{"AUTH_PIN_HASH", a.PINHash},
		{"AUTH_WEBAUTHN_RP_ID", a.WebAuthnRPID},
		{"AUTH_WEBAUTHN_ORIGIN", a.WebAuthnOrigin},
	} {
		if strings.TrimSpace(req.value) == "" {
			missing = append(missing, req.env)
		}
	}
	return missing
}
