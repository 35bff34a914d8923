// Package config loads vault settings from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full runtime configuration of the vault host.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Session  Session  `yaml:"session"`
	Security Security `yaml:"security"`
}

// Storage selects and parameterizes the KV backend.
type Storage struct {
	// Backend is one of: file, postgres, memory.
	Backend string `yaml:"backend" env:"VAULT_STORAGE_BACKEND" env-default:"file"`
	// Path is the file backend's location; empty means the default under
	// the user config dir.
	Path string `yaml:"path" env:"VAULT_STORAGE_PATH"`
	// PostgresDSN is required by the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn" env:"VAULT_POSTGRES_DSN"`
}

// Session tunes session lifetime and snapshot signing.
type Session struct {
	MaxAge time.Duration `yaml:"max_age" env:"VAULT_SESSION_MAX_AGE" env-default:"24h"`
	// SigningKey signs persisted session snapshots; empty means one is
	// provisioned in the store on first use.
	SigningKey string `yaml:"signing_key" env:"VAULT_SESSION_SIGNING_KEY"`
}

// Security tunes hashing work factor, login lockout, and the audit cap.
type Security struct {
	PBKDF2Iterations   int           `yaml:"pbkdf2_iterations" env:"VAULT_PBKDF2_ITERATIONS" env-default:"120000"`
	LockoutMaxFailures int           `yaml:"lockout_max_failures" env:"VAULT_LOCKOUT_MAX_FAILURES" env-default:"5"`
	LockoutCooldown    time.Duration `yaml:"lockout_cooldown" env:"VAULT_LOCKOUT_COOLDOWN" env-default:"15m"`
	AuditCap           int           `yaml:"audit_cap" env:"VAULT_AUDIT_CAP" env-default:"100"`
}

// Load reads the config file at path (environment still overrides); an
// empty path reads environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return &cfg, nil
}

// MustLoad is Load that panics on failure; intended for process startup.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// DefaultStorePath is where the file backend lives when no path is
// configured: $XDG_CONFIG_HOME/admin-vault/vault.json or the equivalent
// under the home directory.
func DefaultStorePath() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "admin-vault", "vault.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "admin-vault", "vault.json")
}
