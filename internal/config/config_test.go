package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BEDROCK_MODEL_ID", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BedrockModelID != "" {
		t.Fatalf("expected default bedrock model empty, got %s", cfg.BedrockModelID)
	}
	if cfg.RetrievalCacheTTL != 4*time.Minute {
		t.Fatalf("expected default retrieval cache TTL, got %s", cfg.RetrievalCacheTTL)
	}
	if cfg.PersonalContextTTL != 2*time.Minute {
		t.Fatalf("expected default personal context TTL, got %s", cfg.PersonalContextTTL)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("expected default session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.ApprovalTTL != 2*time.Hour {
		t.Fatalf("expected default approval TTL, got %s", cfg.ApprovalTTL)
	}
	if cfg.GatewaySendTimeout != 10*time.Second {
		t.Fatalf("expected default gateway send timeout, got %s", cfg.GatewaySendTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("GATEWAY_BASE_URL", "https://gateway.example.com/")
	t.Setenv("SCHEDULING_SESSION_TTL", "45m")
	t.Setenv("APPROVAL_REQUEST_TTL", "3h")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.GatewayBaseURL != "https://gateway.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.GatewayBaseURL)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Fatalf("expected session TTL override, got %s", cfg.SessionTTL)
	}
	if cfg.ApprovalTTL != 3*time.Hour {
		t.Fatalf("expected approval TTL override, got %s", cfg.ApprovalTTL)
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("expected worker count override, got %d", cfg.WorkerCount)
	}
	if !cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue enabled")
	}
}
