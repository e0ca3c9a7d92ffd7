package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"invoice-agent/internal/adapters/web"
	"invoice-agent/internal/ai/aitest"
	"invoice-agent/internal/app"
	"invoice-agent/internal/bootstrap"
	"invoice-agent/internal/config"

	"go.uber.org/zap"
)

func testConfig() config.Config {
	return config.Config{
		MemoryBackend:    config.MemoryBackendInProcess,
		MemoryTTL:        30 * time.Minute,
		AgentMaxSteps:    5,
		AgentBudget:      5 * time.Second,
		ModelBudget:      "gpt-4o-mini",
		ClassifierModel:  "gpt-4o-mini",
		FreeTierLimit:    3,
		OverdueSweepCron: "@hourly",
		JWTSecret:        "s3cret",
	}
}

func execute(t *testing.T, model *aitest.Model, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), Options{
		Config: testConfig(),
		Build: func(ctx context.Context, cfg config.Config, log *zap.Logger) (*bootstrap.App, error) {
			return bootstrap.New(ctx, cfg, log, bootstrap.Overrides{Model: model})
		},
		Stdin:  strings.NewReader(stdin),
		Stdout: &out,
		Stderr: &errOut,
	}, args)
	return out.String(), err
}

func TestAskPrintsResponse(t *testing.T) {
	model := aitest.NewModel(aitest.Text("You have no invoices yet."))
	out, err := execute(t, model, "", "ask", "-u", "u7", "-m", "hello there")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	var resp app.ChatResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if resp.Thread.UserID != "u7" || len(resp.Messages) != 2 || resp.Messages[1].Content != "You have no invoices yet." {
		t.Errorf("response = %+v", resp)
	}
}

func TestAskRequiresMessage(t *testing.T) {
	if _, err := execute(t, aitest.NewModel(), "", "ask"); err == nil {
		t.Fatal("expected an error without --message")
	}
}

func TestNextNumber(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{[]string{"next-number"}, "INV-001", false},
		{[]string{"next-number", "--kind", "Estimate"}, "EST-001", false},
		{[]string{"next-number", "--kind", "receipt"}, "", true},
	}
	for _, tt := range tests {
		out, err := execute(t, aitest.NewModel(), "", tt.args...)
		if (err != nil) != tt.wantErr {
			t.Errorf("%v: err = %v", tt.args, err)
			continue
		}
		if strings.TrimSpace(out) != tt.want {
			t.Errorf("%v: out = %q, want %q", tt.args, out, tt.want)
		}
	}
}

func TestSweepOverdue(t *testing.T) {
	out, err := execute(t, aitest.NewModel(), "", "sweep-overdue")
	if err != nil {
		t.Fatalf("sweep-overdue: %v", err)
	}
	if strings.TrimSpace(out) != "0 invoice(s) marked overdue" {
		t.Errorf("out = %q", out)
	}
}

func TestChatRunsREPL(t *testing.T) {
	model := aitest.NewModel(aitest.Text("Hi! What would you like to invoice?"))
	out, err := execute(t, model, "hello\n/exit\n", "chat", "--user", "u9")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	for _, want := range []string{"User: u9", "[AI]: Hi! What would you like to invoice?", "Goodbye!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	out, err := execute(t, aitest.NewModel(), "", "token", "--user", "u3", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	sub, err := web.ParseToken("s3cret", strings.TrimSpace(out))
	if err != nil || sub != "u3" {
		t.Fatalf("ParseToken = %q, %v", sub, err)
	}
}

func TestMigrateRequiresDatabase(t *testing.T) {
	if _, err := execute(t, aitest.NewModel(), "", "migrate"); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("err = %v", err)
	}
}
