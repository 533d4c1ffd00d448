package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.JWT.AccessTokenExpiry != time.Hour {
		t.Errorf("access expiry = %v, want 1h", cfg.JWT.AccessTokenExpiry)
	}
	if cfg.JWT.RefreshTokenExpiry != 10*time.Hour {
		t.Errorf("refresh expiry = %v, want 10h", cfg.JWT.RefreshTokenExpiry)
	}
	if cfg.Session.StoreBackend != "postgres" {
		t.Errorf("store backend = %q, want postgres", cfg.Session.StoreBackend)
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		t.Error("expected a default CORS allow-list")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_ACCESS_EXPIRY", "30m")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.JWT.AccessTokenExpiry != 30*time.Minute {
		t.Errorf("access expiry = %v, want 30m", cfg.JWT.AccessTokenExpiry)
	}
	if cfg.Session.StoreBackend != "redis" {
		t.Errorf("store backend = %q, want redis", cfg.Session.StoreBackend)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("allowed origins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadRejectsUnknownStoreBackend(t *testing.T) {
	t.Setenv("SESSION_STORE", "dynamo")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for unknown SESSION_STORE")
	}
}
