// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Development fallbacks. Load refuses them when APP_ENV=production.
const (
	devJWTSecret      = "dev-jwt-secret-change-me"
	devEncryptionKey  = "dev-encryption-key-change-me"
	devIdentitySecret = "dev-identity-secret-change-me"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the REST API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC server listens on (e.g. :9090). Empty disables gRPC.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN; empty selects the in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBConnectRetries is how many times to try the initial database ping.
	DBConnectRetries int `mapstructure:"DB_CONNECT_RETRIES"`

	// JWTSecret is the HMAC signing secret for bearer credentials (HS256).
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is an optional PEM-encoded private key (RSA or ECDSA) or path to file. When set together
	// with JWTPublicKey, credentials are signed with RS256/ES256 instead of HS256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim on issued credentials.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim on issued credentials.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// EncryptionKey is the secret the transcript encryption key is derived from.
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`
	// VaultCipher selects the AEAD used for new envelopes: aes-256-gcm or xchacha20-poly1305.
	VaultCipher string `mapstructure:"VAULT_CIPHER"`

	// SessionTTLHours is the session and credential lifetime in hours.
	SessionTTLHours int `mapstructure:"SESSION_TTL_HOURS"`
	// SessionRenewThresholdHours is the remaining lifetime below which Authenticate renews the session.
	SessionRenewThresholdHours int `mapstructure:"SESSION_RENEW_THRESHOLD_HOURS"`
	// SessionSecretBytes is the number of random bytes in a new session secret (32–64).
	SessionSecretBytes int `mapstructure:"SESSION_SECRET_BYTES"`
	// SessionCleanupInterval is how often stale sessions are deleted (e.g. "1h").
	SessionCleanupInterval string `mapstructure:"SESSION_CLEANUP_INTERVAL"`

	// IdentityIssuer is the expected iss of upstream identity assertions.
	IdentityIssuer string `mapstructure:"IDENTITY_ISSUER"`
	// IdentityAudience is the expected aud of upstream identity assertions (the OAuth client id).
	IdentityAudience string `mapstructure:"IDENTITY_AUDIENCE"`
	// IdentitySecret is the shared HS256 secret for identity assertions. Ignored when IdentityPublicKey is set.
	IdentitySecret string `mapstructure:"IDENTITY_SECRET"`
	// IdentityPublicKey is the PEM public key (or path) of the upstream identity provider.
	IdentityPublicKey string `mapstructure:"IDENTITY_PUBLIC_KEY"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as service.name on telemetry.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "interview-analyzer")
	v.SetDefault("JWT_AUDIENCE", "interview-analyzer-web")
	v.SetDefault("ENCRYPTION_KEY", "")
	v.SetDefault("VAULT_CIPHER", "aes-256-gcm")
	v.SetDefault("SESSION_TTL_HOURS", 24)
	v.SetDefault("SESSION_RENEW_THRESHOLD_HOURS", 2)
	v.SetDefault("SESSION_SECRET_BYTES", 32)
	v.SetDefault("SESSION_CLEANUP_INTERVAL", "1h")
	v.SetDefault("IDENTITY_ISSUER", "https://accounts.google.com")
	v.SetDefault("IDENTITY_AUDIENCE", "interview-analyzer-web")
	v.SetDefault("IDENTITY_SECRET", "")
	v.SetDefault("IDENTITY_PUBLIC_KEY", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "interview-analyzer")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	production := cfg.Env == "production"
	asymmetric := cfg.JWTPrivateKey != "" || cfg.JWTPublicKey != ""
	if asymmetric && (cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if !asymmetric && cfg.JWTSecret == "" {
		if production {
			return nil, errors.New("config: JWT_SECRET must be set when APP_ENV=production")
		}
		cfg.JWTSecret = devJWTSecret
	}
	if cfg.EncryptionKey == "" {
		if production {
			return nil, errors.New("config: ENCRYPTION_KEY must be set when APP_ENV=production")
		}
		cfg.EncryptionKey = devEncryptionKey
	}
	if cfg.IdentityPublicKey == "" && cfg.IdentitySecret == "" {
		if production {
			return nil, errors.New("config: IDENTITY_PUBLIC_KEY or IDENTITY_SECRET must be set when APP_ENV=production")
		}
		cfg.IdentitySecret = devIdentitySecret
	}
	if production && (cfg.JWTSecret == devJWTSecret || cfg.EncryptionKey == devEncryptionKey || cfg.IdentitySecret == devIdentitySecret) {
		return nil, errors.New("config: development secrets must not be used when APP_ENV=production")
	}

	switch strings.ToLower(cfg.VaultCipher) {
	case "aes-256-gcm", "xchacha20-poly1305":
		cfg.VaultCipher = strings.ToLower(cfg.VaultCipher)
	default:
		return nil, errors.New("config: VAULT_CIPHER must be aes-256-gcm or xchacha20-poly1305")
	}

	if cfg.SessionTTLHours <= 0 {
		return nil, errors.New("config: SESSION_TTL_HOURS must be positive")
	}
	if cfg.SessionRenewThresholdHours < 0 || cfg.SessionRenewThresholdHours >= cfg.SessionTTLHours {
		return nil, errors.New("config: SESSION_RENEW_THRESHOLD_HOURS must be between 0 and SESSION_TTL_HOURS")
	}
	if cfg.SessionSecretBytes < 32 || cfg.SessionSecretBytes > 64 {
		return nil, errors.New("config: SESSION_SECRET_BYTES must be between 32 and 64")
	}
	if cfg.DBConnectRetries <= 0 {
		cfg.DBConnectRetries = 1
	}

	return &cfg, nil
}

// SessionTTL returns the configured session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// RenewThreshold returns the remaining-lifetime threshold for opportunistic renewal.
func (c *Config) RenewThreshold() time.Duration {
	return time.Duration(c.SessionRenewThresholdHours) * time.Hour
}

// CleanupInterval parses SessionCleanupInterval as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) CleanupInterval() time.Duration {
	d, err := time.ParseDuration(c.SessionCleanupInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// UsesIdentityPublicKey reports whether identity assertions are verified with a provider public key.
func (c *Config) UsesIdentityPublicKey() bool {
	return c != nil && c.IdentityPublicKey != ""
}

// UsesAsymmetricSigning reports whether credentials are signed with a PEM key pair.
func (c *Config) UsesAsymmetricSigning() bool {
	return c != nil && c.JWTPrivateKey != "" && c.JWTPublicKey != ""
}
