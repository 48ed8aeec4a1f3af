// Package config provides environment-based configuration for the envkeep server.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file named by CONFIG_FILE, a .env file in the working directory, and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/narvanalabs/envkeep/internal/secrets"
	"github.com/narvanalabs/envkeep/pkg/logger"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all configuration for the envkeep server.
type Config struct {
	// Storage
	StoreDriver string
	DatabaseDSN string

	// Server configuration
	APIHost         string
	APIPort         int
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	// Authentication
	JWTSecret         string
	JWTExpiry         time.Duration
	AuthorizedEmails  []string
	AuthorizedDomains []string

	// Encryption key material for secret values. Either EncryptionKey, or
	// EncryptionKeyFile together with EncryptionKeyAgeIdentity.
	EncryptionKey            string
	EncryptionKeyFile        string
	EncryptionKeyAgeIdentity string

	// Logging
	LogLevel  string
	LogFormat string

	// Paging
	DefaultPageSize int
	MaxPageSize     int
}

// Load reads configuration and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	cfg := src.load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (src source) load() *Config {
	return &Config{
		StoreDriver:              src.getEnv("STORE_DRIVER", StoreDriverPostgres),
		DatabaseDSN:              src.getEnv("DATABASE_URL", ""),
		APIHost:                  src.getEnv("API_HOST", "0.0.0.0"),
		APIPort:                  src.getIntEnv("API_PORT", 8080),
		ShutdownTimeout:          src.getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		RequestTimeout:           src.getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		JWTSecret:                src.getEnv("JWT_SECRET", ""),
		JWTExpiry:                src.getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		AuthorizedEmails:         splitList(src.getEnv("AUTHORIZED_EMAILS", "")),
		AuthorizedDomains:        splitList(src.getEnv("AUTHORIZED_DOMAINS", "")),
		EncryptionKey:            src.getEnv("ENCRYPTION_KEY", ""),
		EncryptionKeyFile:        src.getEnv("ENCRYPTION_KEY_FILE", ""),
		EncryptionKeyAgeIdentity: src.getEnv("ENCRYPTION_KEY_AGE_IDENTITY", ""),
		LogLevel:                 src.getEnv("LOG_LEVEL", "info"),
		LogFormat:                src.getEnv("LOG_FORMAT", "json"),
		DefaultPageSize:          src.getIntEnv("DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:              src.getIntEnv("MAX_PAGE_SIZE", 100),
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	if err := c.validateEncryption(); err != nil {
		return err
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if _, err := logger.ParseFormat(c.LogFormat); err != nil {
		return fmt.Errorf("LOG_FORMAT: %w", err)
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535")
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be positive and not exceed MAX_PAGE_SIZE")
	}
	return nil
}

// validateEncryption only checks presence; the key itself is parsed when the
// codec is built at startup.
func (c *Config) validateEncryption() error {
	if c.EncryptionKey != "" && c.EncryptionKeyFile != "" {
		return fmt.Errorf("set either ENCRYPTION_KEY or ENCRYPTION_KEY_FILE, not both")
	}
	if c.EncryptionKeyFile != "" && c.EncryptionKeyAgeIdentity == "" {
		return fmt.Errorf("ENCRYPTION_KEY_AGE_IDENTITY is required with ENCRYPTION_KEY_FILE")
	}
	if c.EncryptionKey == "" && c.EncryptionKeyFile == "" {
		return fmt.Errorf("ENCRYPTION_KEY or ENCRYPTION_KEY_FILE is required")
	}
	return nil
}

// KeySource returns the encryption key settings for secrets.LoadCodec.
func (c *Config) KeySource() secrets.KeySource {
	return secrets.KeySource{
		Key:         c.EncryptionKey,
		File:        c.EncryptionKeyFile,
		AgeIdentity: c.EncryptionKeyAgeIdentity,
	}
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() *logger.Logger {
	level, _ := logger.ParseLevel(c.LogLevel)
	format, _ := logger.ParseFormat(c.LogFormat)
	return logger.New(level, format)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

// source resolves a key from the environment, then the YAML file.
type source struct {
	file map[string]string
}

// readFile parses a flat YAML mapping. Keys match the environment variable
// names case-insensitively; sequences become comma lists.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(k)
		switch val := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return out, nil
}

func (src source) getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := src.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (src source) getIntEnv(key string, defaultValue int) int {
	if value := src.getEnv(key, ""); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (src source) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := src.getEnv(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
