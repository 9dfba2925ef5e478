package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "REDIS_ADDR", "REDIS_DB", "MAX_DELEGATION_WINDOW"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("expected default redis addr, got %s", cfg.RedisAddr)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("expected default redis db 0, got %d", cfg.RedisDB)
	}
	if cfg.MaxDelegationWindow != 30*24*time.Hour {
		t.Errorf("unexpected default delegation window: %s", cfg.MaxDelegationWindow)
	}
}

func TestLoadReadsRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "3")

	cfg := Load()
	if cfg.RedisDB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.RedisDB)
	}
}

func TestLoadIgnoresInvalidInt(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	if cfg.RedisDB != 0 {
		t.Errorf("expected fallback to default 0, got %d", cfg.RedisDB)
	}
}
