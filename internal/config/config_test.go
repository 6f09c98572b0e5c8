package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// withoutConfigFile runs the test from an empty directory with no
// explicit config path, so only defaults and environment apply.
func withoutConfigFile(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, "")
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	withoutConfigFile(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080 got %d", cfg.Server.Port)
	}
	if cfg.Server.APIPrefix != "/api/v1" {
		t.Fatalf("unexpected api prefix %q", cfg.Server.APIPrefix)
	}
	if cfg.Auth.AccessTTL != 15*time.Minute || cfg.Auth.RefreshTTL != 240*time.Hour {
		t.Fatalf("unexpected ttls: access=%v refresh=%v", cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	}
	if !cfg.Auth.CookieSecure {
		t.Fatal("expected secure cookies by default")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	withoutConfigFile(t)
	t.Setenv("VIDHUB_PORT", "9090")
	t.Setenv("VIDHUB_API_PREFIX", "api/v2/")
	t.Setenv("VIDHUB_ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("VIDHUB_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("VIDHUB_COOKIE_SECURE", "false")
	t.Setenv("VIDHUB_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port override got %d", cfg.Server.Port)
	}
	if cfg.Server.APIPrefix != "/api/v2" {
		t.Fatalf("expected normalised prefix got %q", cfg.Server.APIPrefix)
	}
	if cfg.Auth.AccessSecret != "access-secret" || cfg.Auth.AccessTTL != 5*time.Minute {
		t.Fatalf("unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.Auth.CookieSecure {
		t.Fatal("expected cookie secure override to be false")
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected cors origins: %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "database:\n  url: postgres://file/db\nmedia:\n  probe_timeout: 10s\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("VIDHUB_PROBE_TIMEOUT", "20s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "postgres://file/db" {
		t.Fatalf("expected database url from file got %q", cfg.Database.URL)
	}
	if cfg.Media.ProbeTimeout != 20*time.Second {
		t.Fatalf("expected env to win over file got %v", cfg.Media.ProbeTimeout)
	}
}

func TestLoadRejectsMissingExplicitFile(t *testing.T) {
	withoutConfigFile(t)
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	t.Setenv(ConfigPathEnvVar, missing)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), missing) {
		t.Fatalf("expected error naming %s, got %v", missing, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoadFindsDefaultFile(t *testing.T) {
	withoutConfigFile(t)
	if err := os.WriteFile("config.yaml", []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected port from config.yaml, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Auth.AccessSecret = "access"
	valid.Auth.RefreshSecret = "refresh"

	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing access secret", func(c *Config) { c.Auth.AccessSecret = "" }, "access_secret is required"},
		{"missing refresh secret", func(c *Config) { c.Auth.RefreshSecret = " " }, "refresh_secret is required"},
		{"shared secret", func(c *Config) { c.Auth.RefreshSecret = c.Auth.AccessSecret }, "must differ"},
		{"inverted ttls", func(c *Config) { c.Auth.AccessTTL = c.Auth.RefreshTTL }, "shorter"},
		{"zero ttl", func(c *Config) { c.Auth.RefreshTTL = 0 }, "positive"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q got %v", tc.want, err)
			}
		})
	}
}
