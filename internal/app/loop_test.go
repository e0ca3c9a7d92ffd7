package app_test

import (
	"context"
	"testing"
	"time"

	"invoice-agent/internal/ai"
	"invoice-agent/internal/ai/aitest"
	"invoice-agent/internal/app"
	"invoice-agent/internal/intent"
	"invoice-agent/internal/memory"
	"invoice-agent/internal/prompt"
	"invoice-agent/internal/resilience"
	"invoice-agent/internal/store"
	"invoice-agent/internal/tools"
)

func newLoop(t *testing.T, model ai.ModelClient, cfg app.LoopConfig) (*app.Loop, *tools.Engine) {
	t.Helper()
	clock := func() time.Time { return now }
	engine := tools.NewEngine(store.NewMemory().WithClock(clock), memory.NewInProcess(0, clock), nil, tools.Config{Now: clock}, nil)
	exec := resilience.NewExecutor(resilience.Config{MaxAttempts: 2}, nil)
	return app.NewLoop(model, engine, exec, nil, cfg, nil), engine
}

func assemble(engine *tools.Engine, groups ...intent.ToolGroup) prompt.Assembly {
	cls := intent.Classification{Intents: []intent.Intent{intent.General}, RequiredToolGroups: groups}
	return prompt.Assemble(cls, prompt.UserContext{}, engine.Specs())
}

func TestLoop_StepBudget(t *testing.T) {
	var steps []aitest.Step
	for i := 0; i < 6; i++ {
		steps = append(steps, aitest.Call("c", "search_invoices", `{}`))
	}
	model := aitest.NewModel(steps...)
	loop, engine := newLoop(t, model, app.LoopConfig{MaxSteps: 5})

	res := loop.Run(context.Background(), app.Run{
		UserID:   user,
		Message:  "list invoices forever",
		Assembly: assemble(engine, intent.GroupInvoiceCore),
	})

	if res.Termination != app.TerminationStepBudget {
		t.Fatalf("termination = %s", res.Termination)
	}
	if res.Steps != 5 || len(res.ToolCalls) != 5 || model.Calls() != 5 {
		t.Errorf("steps = %d, tool calls = %d, model calls = %d", res.Steps, len(res.ToolCalls), model.Calls())
	}
	if res.Answer != res.ToolCalls[4].Message {
		t.Errorf("answer = %q, want the last tool message", res.Answer)
	}
}

func TestLoop_TimeBudget(t *testing.T) {
	model := aitest.NewModel(aitest.Step{Wait: make(chan struct{})})
	loop, engine := newLoop(t, model, app.LoopConfig{Budget: 30 * time.Millisecond})

	start := time.Now()
	res := loop.Run(context.Background(), app.Run{
		UserID:   user,
		Message:  "hello",
		Assembly: assemble(engine, intent.GroupInvoiceCore),
	})

	if res.Termination != app.TerminationTimeBudget {
		t.Errorf("termination = %s", res.Termination)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("loop overran its budget: %s", time.Since(start))
	}
	if res.Answer == "" {
		t.Error("no fallback answer")
	}
}

func TestLoop_RejectsToolsOutsideSelection(t *testing.T) {
	model := aitest.NewModel(
		aitest.Call("c1", "delete_invoice", `{"invoice_identifier":"latest"}`),
		aitest.Text("I can't delete invoices here."),
	)
	loop, engine := newLoop(t, model, app.LoopConfig{})

	res := loop.Run(context.Background(), app.Run{
		UserID:   user,
		Message:  "how much do I have left?",
		Assembly: assemble(engine, intent.GroupUsage),
	})

	if len(res.ToolCalls) != 1 || res.ToolCalls[0].Success {
		t.Fatalf("tool calls = %+v", res.ToolCalls)
	}
	if res.Termination != app.TerminationFinalAnswer || res.Steps != 2 {
		t.Errorf("termination = %s after %d steps", res.Termination, res.Steps)
	}
	if names := ai.ToolNames(model.Requests[0].Tools); len(names) != 1 || names[0] != "check_usage" {
		t.Errorf("offered tools = %v", names)
	}
}

func TestLoop_EmptyResponseIsRetried(t *testing.T) {
	model := aitest.NewModel(aitest.Text("  "), aitest.Text("All set."))
	loop, engine := newLoop(t, model, app.LoopConfig{})

	res := loop.Run(context.Background(), app.Run{
		UserID:   user,
		Message:  "thanks",
		Assembly: assemble(engine),
	})

	if res.Answer != "All set." || res.Termination != app.TerminationFinalAnswer {
		t.Errorf("answer = %q, termination = %s", res.Answer, res.Termination)
	}
	if res.Steps != 1 || model.Calls() != 2 {
		t.Errorf("steps = %d, model calls = %d", res.Steps, model.Calls())
	}
}

func TestLoop_ForcesDominantIntent(t *testing.T) {
	model := aitest.NewModel(aitest.Call("c1", "check_usage", `{}`), aitest.Text("You have 3 documents left."))
	loop, engine := newLoop(t, model, app.LoopConfig{})
	cls := intent.Classification{
		Intents:            []intent.Intent{intent.UsageLimits},
		RequiredToolGroups: []intent.ToolGroup{intent.GroupUsage},
		Confidence:         0.95,
	}

	res := loop.Run(context.Background(), app.Run{
		UserID:         user,
		Message:        "how many invoices can I still make?",
		Assembly:       prompt.Assemble(cls, prompt.UserContext{}, engine.Specs()),
		Classification: cls,
	})

	if model.Requests[0].ForceTool != "check_usage" {
		t.Errorf("first step ForceTool = %q", model.Requests[0].ForceTool)
	}
	if len(model.Requests) > 1 && model.Requests[1].ForceTool != "" {
		t.Error("only the first step may be forced")
	}
	if res.Termination != app.TerminationFinalAnswer {
		t.Errorf("termination = %s", res.Termination)
	}
}
