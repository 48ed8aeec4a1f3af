package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("ab", 32))
	t.Setenv("CONFIG_FILE", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != 8080 || cfg.APIHost != "0.0.0.0" {
		t.Errorf("unexpected listen address %s", cfg.Addr())
	}
	if cfg.DefaultPageSize != 20 || cfg.MaxPageSize != 100 {
		t.Errorf("unexpected page sizes %d/%d", cfg.DefaultPageSize, cfg.MaxPageSize)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("unexpected shutdown timeout %v", cfg.ShutdownTimeout)
	}
	if cfg.KeySource().Key == "" {
		t.Error("key source should carry ENCRYPTION_KEY")
	}
}

func TestLoadFailsWithoutEncryptionKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ENCRYPTION_KEY", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "ENCRYPTION_KEY") {
		t.Fatalf("expected missing encryption key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver:     StoreDriverPostgres,
			DatabaseDSN:     "postgres://localhost/envkeep",
			APIPort:         8080,
			JWTSecret:       testJWTSecret,
			EncryptionKey:   "material",
			LogLevel:        "info",
			LogFormat:       "json",
			DefaultPageSize: 20,
			MaxPageSize:     100,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"short jwt", func(c *Config) { c.JWTSecret = "short" }, "at least 32"},
		{"no dsn", func(c *Config) { c.DatabaseDSN = "" }, "DATABASE_URL"},
		{"bad driver", func(c *Config) { c.StoreDriver = "sqlite" }, "STORE_DRIVER"},
		{"file without identity", func(c *Config) { c.EncryptionKey = ""; c.EncryptionKeyFile = "/k.age" }, "AGE_IDENTITY"},
		{"key and file", func(c *Config) { c.EncryptionKeyFile = "/k.age"; c.EncryptionKeyAgeIdentity = "id" }, "not both"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"page sizes", func(c *Config) { c.DefaultPageSize = 200 }, "PAGE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestYAMLFileIsOverriddenByEnvironment(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("API_PORT", "")
	t.Setenv("AUTHORIZED_DOMAINS", "")

	path := filepath.Join(t.TempDir(), "envkeep.yaml")
	content := "api_port: 9999\nlog_format: text\nauthorized_domains:\n  - example.org\n  - corp.io\nmax_page_size: 50\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_PAGE_SIZE", "40")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != 9999 {
		t.Errorf("APIPort = %d, want 9999 from file", cfg.APIPort)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.MaxPageSize != 40 {
		t.Errorf("MaxPageSize = %d, want 40 from environment", cfg.MaxPageSize)
	}
	if len(cfg.AuthorizedDomains) != 2 || cfg.AuthorizedDomains[1] != "corp.io" {
		t.Errorf("AuthorizedDomains = %v", cfg.AuthorizedDomains)
	}
}
