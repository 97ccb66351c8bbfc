package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// devJWTSecret is used outside production when JWT_SECRET is not set, so a
// bare checkout can issue and verify service tokens.
const devJWTSecret = "dev-secret-do-not-use-in-production"

// ErrMissingDatabaseURL is returned by Load when DATABASE_URL is not set.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is not set")

// Config holds all application configuration.
type Config struct {
	Env              string // development | production
	DatabaseURL      string
	DatabaseSchema   string // optional search_path for all connections
	PoolMaxConns     int32
	PoolMinConns     int32
	JWTSecret        string
	JWTSecretIsDev   bool
	EncryptionKey    string
	EnableEncryption bool
	ServerHost       string
	ServerPort       int
	SentryDSN        string
	RequestTimeout   time.Duration
}

// Load reads configuration from environment variables. It returns an error
// for settings the process cannot run without; callers translate that into
// the configuration exit code.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseSchema:   os.Getenv("DATABASE_SCHEMA"),
		PoolMaxConns:     int32(getEnvAsInt("DATABASE_POOL_MAX_CONNS", 10)),
		PoolMinConns:     int32(getEnvAsInt("DATABASE_POOL_MIN_CONNS", 0)),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		EncryptionKey:    os.Getenv("ENCRYPTION_KEY"),
		EnableEncryption: getEnvAsBool("ENABLE_ENCRYPTION", false),
		ServerHost:       getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort:       getEnvAsInt("SERVER_PORT", 8000),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		RequestTimeout:   time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, ErrMissingDatabaseURL
	}
	if cfg.ServerPort < 1 || cfg.ServerPort > 65535 {
		return Config{}, fmt.Errorf("SERVER_PORT out of range: %d", cfg.ServerPort)
	}
	if cfg.PoolMaxConns < 1 {
		return Config{}, fmt.Errorf("DATABASE_POOL_MAX_CONNS must be positive, got %d", cfg.PoolMaxConns)
	}
	if cfg.EnableEncryption && cfg.EncryptionKey == "" {
		return Config{}, errors.New("ENABLE_ENCRYPTION is set but ENCRYPTION_KEY is empty")
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return Config{}, errors.New("JWT_SECRET environment variable is required in production")
		}
		cfg.JWTSecret = devJWTSecret
		cfg.JWTSecretIsDev = true
	}

	return cfg, nil
}

// Addr returns the host:port the HTTP server binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.ServerHost, strconv.Itoa(c.ServerPort))
}

// IsProduction reports whether the process runs with the production profile.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(name, defaultVal string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return defaultVal
}

// Helper to read boolean env vars
func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsInt(name string, defaultVal int) int {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}
