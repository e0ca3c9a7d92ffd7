package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"invoice-agent/internal/ai"
	"invoice-agent/internal/ai/aitest"
	"invoice-agent/internal/app"
	"invoice-agent/internal/core"
	"invoice-agent/internal/events"
	"invoice-agent/internal/intent"
	"invoice-agent/internal/memory"
	"invoice-agent/internal/resilience"
	"invoice-agent/internal/store"
	"invoice-agent/internal/tools"

	"github.com/shopspring/decimal"
)

const user = "user-1"

var now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type harness struct {
	svc    app.ApplicationService
	model  *aitest.Model
	gw     *store.Memory
	mem    *memory.InProcess
	engine *tools.Engine
}

func newHarness(t *testing.T, model *aitest.Model, loopCfg app.LoopConfig) *harness {
	t.Helper()
	clock := func() time.Time { return now }
	gw := store.NewMemory().WithClock(clock)
	mem := memory.NewInProcess(0, clock)
	engine := tools.NewEngine(gw, mem, &events.Recorder{}, tools.Config{Now: clock}, nil)
	exec := resilience.NewExecutor(resilience.Config{MaxAttempts: 2}, nil)
	loop := app.NewLoop(model, engine, exec, nil, loopCfg, nil)
	svc := app.NewAppService(app.Deps{
		Gateway:    gw,
		Memory:     mem,
		Classifier: intent.NewClassifier(model, "classifier", exec, nil),
		Engine:     engine,
		Loop:       loop,
		Builder:    app.NewContextBuilder(gw, mem, 0, 0, nil),
		Models:     intent.Models{Budget: "small", Mid: "medium", Premium: "large"},
		Now:        clock,
	})
	return &harness{svc: svc, model: model, gw: gw, mem: mem, engine: engine}
}

func (h *harness) chat(t *testing.T, msg string, history ...app.Message) *app.ChatResponse {
	t.Helper()
	resp, err := h.svc.HandleMessage(context.Background(), app.ChatRequest{Message: msg, UserID: user, History: history})
	if err != nil {
		t.Fatalf("HandleMessage(%q): %v", msg, err)
	}
	return resp
}

func decimalOf(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assistant(resp *app.ChatResponse) string {
	return resp.Messages[len(resp.Messages)-1].Content
}

func TestHandleMessage_CreatesInvoiceWithForcedTool(t *testing.T) {
	model := aitest.NewModel(
		aitest.Call("c1", "create_invoice", `{"client_name":"Oliver","line_items":[{"name":"Web design","unit_price":500}]}`),
	)
	h := newHarness(t, model, app.LoopConfig{})

	resp := h.chat(t, "Create invoice for Oliver, web design for 500.")

	if !resp.Success {
		t.Fatalf("success = false: %s", assistant(resp))
	}
	if len(resp.Messages) != 2 || resp.Messages[0].Role != app.RoleUser || resp.Messages[1].Role != app.RoleAssistant {
		t.Fatalf("messages = %+v", resp.Messages)
	}
	if resp.Thread.ID == "" || resp.Thread.UserID != user {
		t.Errorf("thread = %+v", resp.Thread)
	}
	if len(resp.Attachments) != 1 || resp.Attachments[0].Invoice == nil {
		t.Fatalf("attachments = %+v", resp.Attachments)
	}
	inv := resp.Attachments[0].Invoice
	if inv.Number != "INV-001" || inv.Status != core.InvoiceDraft || !inv.Total.Equal(decimalOf(500)) {
		t.Errorf("invoice = %s %s total %s", inv.Number, inv.Status, inv.Total)
	}
	if !strings.Contains(assistant(resp), "INV-001") {
		t.Errorf("answer = %q", assistant(resp))
	}

	if model.Calls() != 1 {
		t.Fatalf("model calls = %d, want 1 (attachment short-circuit)", model.Calls())
	}
	req := model.Requests[0]
	if req.ForceTool != "create_invoice" {
		t.Errorf("ForceTool = %q", req.ForceTool)
	}
	if req.Model != "small" {
		t.Errorf("model = %q, want budget tier", req.Model)
	}
	if len(model.Structs) != 0 {
		t.Errorf("rule shortcut should skip the classifier model, got %d calls", len(model.Structs))
	}
}

func TestHandleMessage_ForcedFallbackWhenModelDeclines(t *testing.T) {
	model := aitest.NewModel(aitest.Text("Sure, what should the invoice contain?"))
	h := newHarness(t, model, app.LoopConfig{})

	resp := h.chat(t, "Create invoice for Oliver, web design for 500.")

	if len(resp.Attachments) != 1 {
		t.Fatalf("fallback did not create the invoice: %q", assistant(resp))
	}
	inv := resp.Attachments[0].Invoice
	if !inv.Total.Equal(decimalOf(500)) {
		t.Errorf("total = %s, want 500", inv.Total)
	}
	items := resp.Attachments[0].LineItems
	if len(items) != 1 || items[0].Name != "Web design" {
		t.Errorf("items = %+v", items)
	}
	if resp.Attachments[0].Client == nil || resp.Attachments[0].Client.Name != "Oliver" {
		t.Errorf("client = %+v", resp.Attachments[0].Client)
	}
}

func TestHandleMessage_FollowUpUsesConversationContext(t *testing.T) {
	model := aitest.NewModel(
		aitest.Call("c1", "create_invoice", `{"client_name":"Oliver","line_items":[{"name":"Web design","unit_price":500}]}`),
		aitest.Call("c2", "update_client_info", `{"address":"12 Ostern Way"}`),
	)
	h := newHarness(t, model, app.LoopConfig{})

	first := h.chat(t, "Create invoice for Oliver, web design for 500.")
	second := h.chat(t, "Add his address: 12 Ostern Way.", first.Messages...)

	if len(second.Attachments) != 1 {
		t.Fatalf("no attachment: %q", assistant(second))
	}
	att := second.Attachments[0]
	if att.Invoice.Number != "INV-001" {
		t.Errorf("invoice = %s, want INV-001", att.Invoice.Number)
	}
	if att.Client == nil || att.Client.Address != "12 Ostern Way" {
		t.Errorf("client = %+v", att.Client)
	}
	if !strings.Contains(model.Requests[1].Instructions, "INV-001") {
		t.Error("prompt does not mention the active invoice")
	}
}

func TestHandleMessage_AsksWhenPronounHasNoTarget(t *testing.T) {
	model := aitest.NewModel()
	h := newHarness(t, model, app.LoopConfig{})

	resp := h.chat(t, "mark it as paid")

	if model.Calls() != 0 {
		t.Errorf("loop ran %d model calls", model.Calls())
	}
	if !strings.Contains(assistant(resp), "Which invoice") {
		t.Errorf("answer = %q", assistant(resp))
	}
	if !resp.Success {
		t.Error("a clarifying question is not a failure")
	}
}

func TestHandleMessage_Validation(t *testing.T) {
	h := newHarness(t, aitest.NewModel(), app.LoopConfig{})
	for _, req := range []app.ChatRequest{
		{UserID: user},
		{Message: "   ", UserID: user},
		{Message: "hi"},
	} {
		if _, err := h.svc.HandleMessage(context.Background(), req); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("HandleMessage(%+v) err = %v", req, err)
		}
	}
}

func TestHandleMessage_ModelFailureDegrades(t *testing.T) {
	boom := errors.New("upstream 503")
	model := aitest.NewModel(aitest.Fail(boom), aitest.Fail(boom))
	h := newHarness(t, model, app.LoopConfig{})

	resp := h.chat(t, "what's the due date on INV-002?")

	if resp.Success {
		t.Error("success = true after model failure")
	}
	if model.Calls() != 2 {
		t.Errorf("model calls = %d, want one retry", model.Calls())
	}
	if strings.Contains(assistant(resp), "503") || assistant(resp) == "" {
		t.Errorf("answer leaks transport error or is empty: %q", assistant(resp))
	}
}

func TestClassify_ResolvesPronounFromHistory(t *testing.T) {
	h := newHarness(t, aitest.NewModel(), app.LoopConfig{})
	history := []app.Message{
		{Role: app.RoleUser, Content: "show my latest invoice"},
		{Role: app.RoleAssistant, Content: "Here is INV-009 for Acme. Total: $300.00."},
	}

	res, err := h.svc.Classify(context.Background(), app.ClassifyRequest{Message: "update it", UserID: user, History: history})
	if err != nil {
		t.Fatal(err)
	}
	if res.Classification.Targets.InvoiceNumber != "INV-009" {
		t.Errorf("target = %q, want INV-009", res.Classification.Targets.InvoiceNumber)
	}
	if !res.Classification.Has(intent.ContextAwareUpdate) {
		t.Errorf("intents = %v", res.Classification.Intents)
	}
	if res.Classification.NeedsContext {
		t.Error("needsContext set although the invoice is known")
	}
}

func TestNextNumberAndSweep(t *testing.T) {
	h := newHarness(t, aitest.NewModel(), app.LoopConfig{})
	ctx := context.Background()

	past := now.AddDate(0, 0, -1)
	for _, inv := range []*core.Invoice{
		{UserID: user, Number: "INV-007", Status: core.InvoiceSent, DueDate: &past},
		{UserID: user, Number: "INV-1716400000000", Status: core.InvoiceDraft},
	} {
		if err := h.gw.InsertInvoice(ctx, inv); err != nil {
			t.Fatal(err)
		}
	}

	got, err := h.svc.NextNumber(ctx, app.NextNumberRequest{UserID: user, Kind: core.KindEstimate})
	if err != nil || got != "EST-008" {
		t.Errorf("NextNumber = %q, %v; want EST-008", got, err)
	}
	if _, err := h.svc.NextNumber(ctx, app.NextNumberRequest{UserID: user, Kind: "receipt"}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("unknown kind err = %v", err)
	}

	n, err := h.svc.SweepOverdue(ctx)
	if err != nil || n != 1 {
		t.Errorf("SweepOverdue = %d, %v; want 1", n, err)
	}
}

func TestToolItemsReachTheModel(t *testing.T) {
	model := aitest.NewModel(
		aitest.Call("c1", "search_invoices", `{}`),
		aitest.Text("You have no invoices yet."),
	)
	h := newHarness(t, model, app.LoopConfig{})

	resp := h.chat(t, "show all invoices")

	if assistant(resp) != "You have no invoices yet." {
		t.Errorf("answer = %q", assistant(resp))
	}
	second := model.Requests[1].Input
	last := second[len(second)-1]
	if last.Kind != ai.ItemFunctionOutput || last.CallID != "c1" {
		t.Errorf("last input item = %+v", last)
	}
	if prev := second[len(second)-2]; prev.Kind != ai.ItemFunctionCall || prev.Name != "search_invoices" {
		t.Errorf("call echo = %+v", prev)
	}
}

func TestHandleMessage_PronounFollowsTheInvoiceLastShown(t *testing.T) {
	model := aitest.NewModel(
		aitest.Call("c1", "mark_invoice_paid", `{"invoice_identifier":"it"}`),
		aitest.Text("Done."),
	)
	h := newHarness(t, model, app.LoopConfig{})
	ctx := context.Background()

	for _, args := range []string{
		`{"client_name":"Alice","line_items":[{"name":"Design","unit_price":300}]}`,
		`{"client_name":"Bob","line_items":[{"name":"Hosting","unit_price":200}]}`,
	} {
		if res := h.engine.Execute(ctx, user, "create_invoice", args); !res.Success {
			t.Fatalf("create_invoice: %s", res.Message)
		}
	}
	if res := h.engine.Execute(ctx, user, "get_invoice_details", `{"invoice_identifier":"INV-001"}`); !res.Success {
		t.Fatalf("get_invoice_details: %s", res.Message)
	}

	history := []app.Message{
		{Role: app.RoleUser, Content: "show INV-001"},
		{Role: app.RoleAssistant, Content: "Here is INV-001 for Alice. Total: $300.00."},
	}
	h.chat(t, "mark it paid", history...)

	status := func(number string) core.InvoiceStatus {
		list, err := h.gw.FindInvoices(ctx, core.InvoiceFilter{UserID: user, Number: number, Limit: 1})
		if err != nil || len(list) != 1 {
			t.Fatalf("find %s: %v", number, err)
		}
		return list[0].Status
	}
	if got := status("INV-001"); got != core.InvoicePaid {
		t.Errorf("INV-001 status = %s, want paid", got)
	}
	if got := status("INV-002"); got == core.InvoicePaid {
		t.Error("INV-002 was marked paid instead of the invoice under discussion")
	}
}
