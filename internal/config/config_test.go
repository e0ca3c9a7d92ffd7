package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var keys = []string{
	"CONFIG_FILE", "SERVER_PORT", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL", "RUN_MIGRATIONS",
	"MODEL_BUDGET", "AGENT_MAX_STEPS", "AGENT_BUDGET", "MODEL_CALL_TIMEOUT", "MODEL_MAX_ATTEMPTS",
	"MEMORY_TTL", "MEMORY_BACKEND", "HISTORY_TURNS", "FREE_TIER_LIMIT", "NATS_URL",
	"ALLOWED_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "OVERDUE_SWEEP_CRON",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "8080" || cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
	if cfg.AgentMaxSteps != 5 || cfg.AgentBudget != 24*time.Second {
		t.Fatalf("expected 5 steps within 24s, got %d within %s", cfg.AgentMaxSteps, cfg.AgentBudget)
	}
	if cfg.ModelCallTimeout != 10*time.Second || cfg.ModelMaxAttempts != 2 {
		t.Fatalf("expected 10s model timeout and 2 attempts, got %s and %d", cfg.ModelCallTimeout, cfg.ModelMaxAttempts)
	}
	if cfg.MemoryTTL != 30*time.Minute || cfg.MemoryBackend != MemoryBackendInProcess {
		t.Fatalf("unexpected memory defaults: %s %s", cfg.MemoryTTL, cfg.MemoryBackend)
	}
	if cfg.HistoryTurns != 10 || cfg.FreeTierLimit != 3 {
		t.Fatalf("unexpected limits: history %d free tier %d", cfg.HistoryTurns, cfg.FreeTierLimit)
	}
	if cfg.OverdueSweepCron != "@hourly" || !cfg.RunMigrations {
		t.Fatalf("unexpected job defaults: %q migrations=%v", cfg.OverdueSweepCron, cfg.RunMigrations)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENT_MAX_STEPS", "3")
	t.Setenv("AGENT_BUDGET", "12s")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("MEMORY_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/invoices")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, http://localhost:3000,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AgentMaxSteps != 3 || cfg.AgentBudget != 12*time.Second || cfg.RunMigrations {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RateLimitRPS != 0.5 || cfg.MemoryBackend != MemoryBackendPostgres {
		t.Fatalf("expected rps 0.5 and postgres memory, got %v %s", cfg.RateLimitRPS, cfg.MemoryBackend)
	}
	if got := cfg.Origins(); len(got) != 2 || got[1] != "http://localhost:3000" {
		t.Fatalf("unexpected origins: %v", got)
	}
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENT_MAX_STEPS", "five")
	t.Setenv("MEMORY_TTL", "half an hour")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AgentMaxSteps != 5 || cfg.MemoryTTL != 30*time.Minute {
		t.Fatalf("expected defaults for malformed values, got %d %s", cfg.AgentMaxSteps, cfg.MemoryTTL)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "agent.yaml")
	body := strings.Join([]string{
		"server_port: 9090",
		"AGENT_BUDGET: 30s",
		"FREE_TIER_LIMIT: 10",
		"LOG_LEVEL: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "9090" || cfg.AgentBudget != 30*time.Second || cfg.FreeTierLimit != 10 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("environment should win over the file, got %q", cfg.LogLevel)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing file", map[string]string{"CONFIG_FILE": filepath.Join(os.TempDir(), "does-not-exist.yaml")}},
		{"unknown memory backend", map[string]string{"MEMORY_BACKEND": "redis"}},
		{"postgres memory without database", map[string]string{"MEMORY_BACKEND": "postgres"}},
		{"non-positive steps", map[string]string{"AGENT_MAX_STEPS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
