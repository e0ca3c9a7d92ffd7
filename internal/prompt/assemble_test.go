package prompt_test

import (
	"math/rand"
	"slices"
	"strings"
	"testing"
	"time"

	"invoice-agent/internal/ai"
	"invoice-agent/internal/intent"
	"invoice-agent/internal/prompt"
)

var catalog = []ai.ToolSpec{
	{Name: "create_invoice", Group: "invoice_core"},
	{Name: "add_line_item", Group: "line_items"},
	{Name: "update_client_info", Group: "clients"},
	{Name: "mark_invoice_paid", Group: "payments"},
	{Name: "update_payment_methods", Group: "payment_setup"},
	{Name: "update_business_settings", Group: "business"},
	{Name: "create_estimate", Group: "estimates"},
	{Name: "check_usage", Group: "usage"},
}

func classify(intents ...intent.Intent) intent.Classification {
	return intent.Finalize(intent.Classification{Intents: intents}, "", nil)
}

func TestAssemble_BaselineAlwaysPresent(t *testing.T) {
	a := prompt.Assemble(classify(intent.General), prompt.UserContext{}, catalog)
	if !slices.Equal(a.Modules, []string{prompt.ModCore, prompt.ModUsageLimits}) {
		t.Errorf("modules = %v", a.Modules)
	}
	if len(a.Tools) != 0 {
		t.Errorf("general request got tools %v", ai.ToolNames(a.Tools))
	}
	if !strings.Contains(a.SystemPrompt, "Currency: USD") {
		t.Error("user context defaults missing from prompt")
	}
}

func TestAssemble_ToolsLimitedToGroups(t *testing.T) {
	a := prompt.Assemble(classify(intent.RecordPayment), prompt.UserContext{}, catalog)
	got := ai.ToolNames(a.Tools)
	want := []string{"create_invoice", "mark_invoice_paid"}
	if !slices.Equal(got, want) {
		t.Errorf("tools = %v, want %v", got, want)
	}
	if slices.Contains(a.Modules, prompt.ModPaymentSetup) {
		t.Error("payment setup module included for a payment recording request")
	}
}

func TestAssemble_UserContextRendered(t *testing.T) {
	uc := prompt.UserContext{
		Currency:      "EUR",
		Locale:        "de-DE",
		Today:         time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		ActiveInvoice: "INV-009",
	}
	a := prompt.Assemble(classify(intent.UpdateInvoice), uc, catalog)
	for _, want := range []string{"Currency: EUR", "Locale: de-DE", "Today: 2026-03-04", "Active invoice: INV-009"} {
		if !strings.Contains(a.SystemPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAssemble_MonotonicInIntents(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		var base []intent.Intent
		for _, in := range intent.AllIntents {
			if rng.Intn(3) == 0 {
				base = append(base, in)
			}
		}
		extra := intent.AllIntents[rng.Intn(len(intent.AllIntents))]

		small := prompt.Assemble(intent.Classification{Intents: base}, prompt.UserContext{}, catalog)
		large := prompt.Assemble(intent.Classification{Intents: append(slices.Clone(base), extra)}, prompt.UserContext{}, catalog)

		for _, m := range small.Modules {
			if !slices.Contains(large.Modules, m) {
				t.Fatalf("adding %s to %v dropped module %s", extra, base, m)
			}
		}
		largeTools := ai.ToolNames(large.Tools)
		for _, name := range ai.ToolNames(small.Tools) {
			if !slices.Contains(largeTools, name) {
				t.Fatalf("adding %s to %v dropped tool %s", extra, base, name)
			}
		}
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	cls := classify(intent.PaymentSetup, intent.CreateInvoice)
	a := prompt.Assemble(cls, prompt.UserContext{}, catalog)
	b := prompt.Assemble(classify(intent.CreateInvoice, intent.PaymentSetup), prompt.UserContext{}, catalog)
	if a.SystemPrompt != b.SystemPrompt || !slices.Equal(a.Modules, b.Modules) {
		t.Error("intent order changed the assembled prompt")
	}
}
