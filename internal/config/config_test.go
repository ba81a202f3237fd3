package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Port != "8080" {
		t.Fatalf("default port 8080, got %s", cfg.App.Port)
	}
	if cfg.Auth.SessionTTL() != 12*time.Hour {
		t.Fatalf("default session ttl 12h, got %v", cfg.Auth.SessionTTL())
	}
	if cfg.Realtime.SendBufferSize != 16 {
		t.Fatalf("default send buffer 16, got %d", cfg.Realtime.SendBufferSize)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("AUTH_SESSION_TTL_MINUTES", "60")
	t.Setenv("REALTIME_SEND_BUFFER_SIZE", "64")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Port != "9000" {
		t.Fatalf("port 9000, got %s", cfg.App.Port)
	}
	if cfg.Auth.SessionTTL() != time.Hour {
		t.Fatalf("session ttl 1h, got %v", cfg.Auth.SessionTTL())
	}
	if cfg.Realtime.SendBufferSize != 64 {
		t.Fatalf("send buffer 64, got %d", cfg.Realtime.SendBufferSize)
	}
	if cfg.Postgres.RunMigrations {
		t.Fatal("migrations disabled by env")
	}
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "soon")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.RequestTimeout() != 30*time.Second {
		t.Fatalf("expected 30s fallback, got %v", cfg.App.RequestTimeout())
	}
}

func TestRequestTimeout_ZeroDisables(t *testing.T) {
	app := AppConfig{RequestTimeoutSeconds: 0}
	if app.RequestTimeout() != 0 {
		t.Fatalf("expected 0, got %v", app.RequestTimeout())
	}
}
