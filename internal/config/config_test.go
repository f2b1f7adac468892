package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.AccessTokenExpiry != 15*time.Minute {
		t.Errorf("expected 15m access expiry, got %v", cfg.AccessTokenExpiry)
	}
	if cfg.MaxPhotos != 6 {
		t.Errorf("expected 6 max photos, got %d", cfg.MaxPhotos)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "2m")
	t.Setenv("MAX_PHOTOS", "3")
	t.Setenv("AUTH_RATE_LIMIT", "not-a-number")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.AccessTokenExpiry != 2*time.Minute {
		t.Errorf("expected 2m, got %v", cfg.AccessTokenExpiry)
	}
	if cfg.MaxPhotos != 3 {
		t.Errorf("expected 3, got %d", cfg.MaxPhotos)
	}
	if cfg.AuthRateLimit != 5 {
		t.Errorf("expected fallback 5 for invalid value, got %v", cfg.AuthRateLimit)
	}
}

func TestLoadClient_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("base_url: https://api.example.com:443/api/v1\ntimeout: 5s\ntoken_store: redis\nredis:\n  addr: cache:6379\n  db: 2\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient() unexpected error: %v", err)
	}
	if cfg.BaseURL != "https://api.example.com:443/api/v1" {
		t.Errorf("unexpected base url %q", cfg.BaseURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Timeout)
	}
	if cfg.TokenStore != "redis" || cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis settings %+v", cfg)
	}
	if cfg.Session != "default" {
		t.Errorf("expected default session, got %q", cfg.Session)
	}
}

func TestLoadClient_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("MATCHMATE_BASE_URL", "http://10.0.0.5:8080/api/v1")

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadClient() unexpected error: %v", err)
	}
	if cfg.BaseURL != "http://10.0.0.5:8080/api/v1" {
		t.Errorf("expected env override, got %q", cfg.BaseURL)
	}
	if cfg.TokenStore != "file" {
		t.Errorf("expected file token store, got %q", cfg.TokenStore)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected 30s default, got %v", cfg.Timeout)
	}
}
