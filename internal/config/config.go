package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/chirpnet/chirp/pkg/config"
)

const devSecretPlaceholder = "change-this-to-a-secure-secret"

// Config holds all configuration for the chirp API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"chirp"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"chirp_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"chirp_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"60m"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// Redis (public profile cache)
	RedisHost       string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort       int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Token signing. Every flow signs with its own secret.
	JWTIssuer                 string        `env:"JWT_ISSUER" envDefault:"chirp-api"`
	JWTAccessSecret           string        `env:"JWT_SECRET_ACCESS_TOKEN" envDefault:"change-this-to-a-secure-secret"`
	JWTRefreshSecret          string        `env:"JWT_SECRET_REFRESH_TOKEN" envDefault:"change-this-to-a-secure-secret"`
	JWTEmailVerifySecret      string        `env:"JWT_SECRET_EMAIL_VERIFY_TOKEN" envDefault:"change-this-to-a-secure-secret"`
	JWTForgotPasswordSecret   string        `env:"JWT_SECRET_FORGOT_PASSWORD_TOKEN" envDefault:"change-this-to-a-secure-secret"`
	AccessTokenExpiry         time.Duration `env:"ACCESS_TOKEN_EXPIRES_IN" envDefault:"15m"`
	RefreshTokenExpiry        time.Duration `env:"REFRESH_TOKEN_EXPIRES_IN" envDefault:"2400h"`
	EmailVerifyTokenExpiry    time.Duration `env:"EMAIL_VERIFY_TOKEN_EXPIRES_IN" envDefault:"168h"`
	ForgotPasswordTokenExpiry time.Duration `env:"FORGOT_PASSWORD_TOKEN_EXPIRES_IN" envDefault:"168h"`

	// Session issuance policy on non-login flows.
	IssueSessionOnRegister bool `env:"ISSUE_SESSION_ON_REGISTER" envDefault:"false"`
	IssueSessionOnVerify   bool `env:"ISSUE_SESSION_ON_VERIFY" envDefault:"false"`

	// Google OAuth
	GoogleClientID          string `env:"GOOGLE_CLIENT_ID" envDefault:""`
	GoogleClientSecret      string `env:"GOOGLE_CLIENT_SECRET" envDefault:""`
	GoogleRedirectURI       string `env:"GOOGLE_REDIRECT_URI" envDefault:""`
	GoogleClientRedirectURI string `env:"GOOGLE_CLIENT_REDIRECT_URI" envDefault:""`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Tracing
	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint    string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampleRate float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	// Outside development every signing secret must be set explicitly and
	// be long enough to resist brute force.
	if cfg.Environment != "development" {
		secrets := map[string]string{
			"JWT_SECRET_ACCESS_TOKEN":          cfg.JWTAccessSecret,
			"JWT_SECRET_REFRESH_TOKEN":         cfg.JWTRefreshSecret,
			"JWT_SECRET_EMAIL_VERIFY_TOKEN":    cfg.JWTEmailVerifySecret,
			"JWT_SECRET_FORGOT_PASSWORD_TOKEN": cfg.JWTForgotPasswordSecret,
		}
		for name, secret := range secrets {
			if secret == devSecretPlaceholder {
				return nil, fmt.Errorf("%s must be explicitly set in %q mode", name, cfg.Environment)
			}
			if len(secret) < 32 {
				return nil, fmt.Errorf("%s must be at least 32 characters long, got %d", name, len(secret))
			}
		}
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RedisAddr returns the host:port address for the Redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// GoogleOAuthConfigured reports whether the Google sign-in flow can run.
func (c *Config) GoogleOAuthConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURI != ""
}
