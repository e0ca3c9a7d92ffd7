package bootstrap

import (
	"context"
	"testing"
	"time"

	"invoice-agent/internal/ai/aitest"
	"invoice-agent/internal/app"
	"invoice-agent/internal/config"
	"invoice-agent/internal/events"
)

func testConfig() config.Config {
	return config.Config{
		MemoryBackend:    config.MemoryBackendInProcess,
		MemoryTTL:        30 * time.Minute,
		AgentMaxSteps:    5,
		AgentBudget:      5 * time.Second,
		ModelBudget:      "gpt-4o-mini",
		ModelMid:         "gpt-4o",
		ModelPremium:     "gpt-4.1",
		ClassifierModel:  "gpt-4o-mini",
		FreeTierLimit:    3,
		HistoryTurns:     10,
		OverdueSweepCron: "@hourly",
	}
}

func TestNewInProcess(t *testing.T) {
	model := aitest.NewModel(aitest.Text("Hello! How can I help with your invoices?"))
	a, err := New(context.Background(), testConfig(), nil, Overrides{Model: model})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if got := a.Scheduler.Entries(); got != 2 {
		t.Errorf("scheduled jobs = %d, want 2", got)
	}

	resp, err := a.Service.HandleMessage(context.Background(), app.ChatRequest{Message: "hello there", UserID: "u1"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if n := len(resp.Messages); n != 2 || resp.Messages[1].Content != "Hello! How can I help with your invoices?" {
		t.Errorf("messages = %+v", resp.Messages)
	}
	if model.Calls() != 1 {
		t.Errorf("model calls = %d, want 1", model.Calls())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"postgres memory without database", func(c *config.Config) { c.MemoryBackend = config.MemoryBackendPostgres }},
		{"unknown backend", func(c *config.Config) { c.MemoryBackend = "redis" }},
		{"bad cron", func(c *config.Config) { c.OverdueSweepCron = "every tuesday" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			rec := &events.Recorder{}
			if _, err := New(context.Background(), cfg, nil, Overrides{Model: aitest.NewModel(), Events: rec}); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestCloseIsIdempotentWithoutResources(t *testing.T) {
	(&App{}).Close()
}
