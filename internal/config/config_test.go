package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != "file" {
		t.Fatalf("backend=%q, want file", cfg.Storage.Backend)
	}
	if cfg.Session.MaxAge != 24*time.Hour {
		t.Fatalf("max_age=%v, want 24h", cfg.Session.MaxAge)
	}
	if cfg.Security.PBKDF2Iterations != 120000 {
		t.Fatalf("iterations=%d, want 120000", cfg.Security.PBKDF2Iterations)
	}
	if cfg.Security.AuditCap != 100 {
		t.Fatalf("audit_cap=%d, want 100", cfg.Security.AuditCap)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VAULT_STORAGE_BACKEND", "postgres")
	t.Setenv("VAULT_POSTGRES_DSN", "postgres://u:p@localhost/vault")
	t.Setenv("VAULT_SESSION_MAX_AGE", "1h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != "postgres" || cfg.Storage.PostgresDSN == "" {
		t.Fatalf("env not applied: %+v", cfg.Storage)
	}
	if cfg.Session.MaxAge != time.Hour {
		t.Fatalf("max_age=%v, want 1h", cfg.Session.MaxAge)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.yaml")
	body := `
storage:
  backend: memory
session:
  max_age: 2h
security:
  pbkdf2_iterations: 50000
  lockout_max_failures: 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("backend=%q, want memory", cfg.Storage.Backend)
	}
	if cfg.Session.MaxAge != 2*time.Hour {
		t.Fatalf("max_age=%v, want 2h", cfg.Session.MaxAge)
	}
	if cfg.Security.PBKDF2Iterations != 50000 || cfg.Security.LockoutMaxFailures != 3 {
		t.Fatalf("security not applied: %+v", cfg.Security)
	}
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("want error for missing config file")
	}
}
