package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minProductionSecretLen is the shortest signing secret accepted when ENV=production.
const minProductionSecretLen = 32

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
}

// TokenConfig holds the signing secrets for session and password-reset tokens.
// The two secrets must differ so that one token class can never be replayed as the other.
type TokenConfig struct {
	SessionSecret []byte
	ResetSecret   []byte
}

// RedisConfig holds the optional Redis connection used for token revocation
// and rate limiting. An empty URL disables both.
type RedisConfig struct {
	URL string
}

// RateLimitConfig configures the token bucket applied to login and password
// reset requests, per client IP.
type RateLimitConfig struct {
	Rate  float64 // tokens per second
	Burst float64
}

// KafkaConfig configures the optional domain event publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SMTPConfig configures outgoing mail for password reset links.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type Config struct {
	Port             string
	Environment      string
	LogLevel         string
	MigrationsPath   string
	ResetURL         string
	ExposeResetToken bool
	ShutdownTimeout  time.Duration
	TrustedProxies   []string // IPs or CIDRs whose X-Forwarded-For is honored
	Database         DatabaseConfig
	Tokens           TokenConfig
	Redis            RedisConfig
	RateLimit        RateLimitConfig
	Kafka            KafkaConfig
	SMTP             SMTPConfig
}

// Load reads configuration from environment variables (and, when CONFIG_FILE
// is set, from that file). It fails fast with clear errors for missing
// required values.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read CONFIG_FILE %q: %w", path, err)
		}
	}

	env := v.GetString("ENV")
	if env != "development" && env != "staging" && env != "production" {
		return nil, fmt.Errorf("invalid ENV value %q: must be development, staging, or production", env)
	}

	var missing []string

	databaseURL := v.GetString("DATABASE_URL")
	if databaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	sessionSecret := v.GetString("JWT_SECRET")
	if sessionSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	resetSecret := v.GetString("RESET_SECRET_KEY")
	if resetSecret == "" {
		missing = append(missing, "RESET_SECRET_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if err := validateDatabaseURL(databaseURL); err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	if err := validateSecrets(env, sessionSecret, resetSecret); err != nil {
		return nil, err
	}

	redisURL := strings.TrimSpace(v.GetString("REDIS_URL"))
	if redisURL != "" {
		if err := validateRedisURL(redisURL); err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
	}

	trustedProxies := splitList(v.GetString("TRUSTED_PROXIES"))
	if err := validateTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	logLevel := strings.ToLower(v.GetString("LOG_LEVEL"))
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: must be debug, info, warn, or error", logLevel)
	}

	exposeReset := env == "development"
	if v.IsSet("EXPOSE_RESET_TOKEN") {
		exposeReset = v.GetBool("EXPOSE_RESET_TOKEN")
	}

	return &Config{
		Port:             v.GetString("PORT"),
		Environment:      env,
		LogLevel:         logLevel,
		MigrationsPath:   v.GetString("MIGRATIONS_PATH"),
		ResetURL:         v.GetString("RESET_URL"),
		ExposeResetToken: exposeReset,
		ShutdownTimeout:  v.GetDuration("SHUTDOWN_TIMEOUT"),
		TrustedProxies:   trustedProxies,
		Database: DatabaseConfig{
			URL:             databaseURL,
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetInt("DB_CONN_MAX_LIFETIME"),
		},
		Tokens: TokenConfig{
			SessionSecret: []byte(sessionSecret),
			ResetSecret:   []byte(resetSecret),
		},
		Redis: RedisConfig{URL: redisURL},
		RateLimit: RateLimitConfig{
			Rate:  v.GetFloat64("RATE_LIMIT"),
			Burst: v.GetFloat64("RATE_BURST"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			User:     v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASS"),
			From:     v.GetString("SMTP_FROM"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 300)
	v.SetDefault("RATE_LIMIT", 1.0)
	v.SetDefault("RATE_BURST", 5.0)
	v.SetDefault("KAFKA_TOPIC", "sprintium.events")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("RESET_URL", "http://localhost:5173/reset-password")
}

// validateSecrets rejects token secrets that would let one token class stand
// in for the other, and short secrets in production.
func validateSecrets(env, session, reset string) error {
	if session == reset {
		return fmt.Errorf("JWT_SECRET and RESET_SECRET_KEY must be different")
	}
	if env == "production" {
		if len(session) < minProductionSecretLen {
			return fmt.Errorf("invalid JWT_SECRET: must be at least %d bytes in production", minProductionSecretLen)
		}
		if len(reset) < minProductionSecretLen {
			return fmt.Errorf("invalid RESET_SECRET_KEY: must be at least %d bytes in production", minProductionSecretLen)
		}
	}
	return nil
}

// validateDatabaseURL ensures the database URL is a valid PostgreSQL connection string.
func validateDatabaseURL(dbURL string) error {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("URL must use postgres:// or postgresql:// scheme, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

func validateRedisURL(redisURL string) error {
	parsed, err := url.Parse(redisURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if parsed.Scheme != "redis" && parsed.Scheme != "rediss" {
		return fmt.Errorf("URL must use redis:// or rediss:// scheme, got %q", parsed.Scheme)
	}
	return nil
}

// validateTrustedProxies accepts plain IP addresses and CIDR ranges.
func validateTrustedProxies(entries []string) error {
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			if _, err := netip.ParsePrefix(entry); err != nil {
				return fmt.Errorf("%q is not a CIDR range", entry)
			}
			continue
		}
		if _, err := netip.ParseAddr(entry); err != nil {
			return fmt.Errorf("%q is not an IP address", entry)
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
