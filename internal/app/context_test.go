package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoice-agent/internal/app"
	"invoice-agent/internal/core"
	"invoice-agent/internal/memory"
	"invoice-agent/internal/store"
)

func TestContextBuilder_DefaultsWhenLookupsFail(t *testing.T) {
	gw := store.NewMemory()
	down := errors.New("connection refused")
	for _, method := range []string{"GetUser", "GetBusinessSettings", "GetPaymentOptions", "CountDocuments", "FindInvoices"} {
		gw.FailOn(method, down)
	}
	b := app.NewContextBuilder(gw, memory.NewInProcess(0, nil), 3, 0, nil)

	pack := b.Build(context.Background(), user, nil, nil)

	if pack.Plan != core.PlanFree || pack.Currency != "USD" || pack.Locale != "en-US" {
		t.Errorf("defaults = plan %s currency %s locale %s", pack.Plan, pack.Currency, pack.Locale)
	}
	if pack.PaymentMethods.Stripe || pack.PaymentMethods.PayPal || pack.PaymentMethods.BankTransfer {
		t.Errorf("payment methods = %+v", pack.PaymentMethods)
	}
	if pack.Usage.Limit != 3 || pack.ActiveInvoice != "" {
		t.Errorf("usage = %+v, active = %q", pack.Usage, pack.ActiveInvoice)
	}
}

func TestContextBuilder_AccountState(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	gw.PutUser(core.User{ID: user, Plan: core.PlanPro, Locale: "de-DE", Currency: "eur"})
	_ = gw.UpsertPaymentOptions(ctx, &core.PaymentOptions{UserID: user, PayPalEnabled: true, PayPalEmail: "pay@acme.test", StripeEnabled: true})
	b := app.NewContextBuilder(gw, nil, 3, 0, nil)

	pack := b.Build(ctx, user, nil, &app.UserContext{Locale: "en-GB"})

	if pack.Plan != core.PlanPro || pack.Usage.Limit != 0 {
		t.Errorf("plan = %s, limit = %d", pack.Plan, pack.Usage.Limit)
	}
	if pack.Currency != "EUR" || pack.Locale != "en-GB" {
		t.Errorf("currency = %s, locale = %s", pack.Currency, pack.Locale)
	}
	if !pack.PaymentMethods.PayPal || pack.PaymentMethods.Stripe {
		t.Errorf("methods = %+v (stripe without an account is not usable)", pack.PaymentMethods)
	}
}

func TestContextBuilder_ActiveInvoicePrecedence(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		history []app.Message
		entry   *memory.Entry
		want    string
	}{
		{
			name: "latest mention in history wins",
			history: []app.Message{
				{Role: app.RoleAssistant, Content: "Created INV-003 for Acme."},
				{Role: app.RoleUser, Content: "and what about INV-004 and INV-005?"},
			},
			entry: &memory.Entry{Action: memory.ActionCreatedInvoice, InvoiceNumber: "INV-001", InvoiceID: "x"},
			want:  "INV-005",
		},
		{
			name:    "estimate numbers are not invoices",
			history: []app.Message{{Role: app.RoleAssistant, Content: "Created estimate EST-006."}},
			entry:   &memory.Entry{Action: memory.ActionAddedLineItem, InvoiceNumber: "INV-001", InvoiceID: "x"},
			want:    "INV-001",
		},
		{
			name:  "memory before persisted state",
			entry: &memory.Entry{Action: memory.ActionRecordedPayment, InvoiceNumber: "INV-001", InvoiceID: "x"},
			want:  "INV-001",
		},
		{
			name: "deleted invoice falls back to the newest persisted one",
			history: []app.Message{
				{Role: app.RoleAssistant, Content: "Deleted invoice INV-008."},
			},
			entry: &memory.Entry{Action: memory.ActionDeletedInvoice, InvoiceNumber: "INV-008"},
			want:  "INV-002",
		},
		{
			name: "newest persisted invoice",
			want: "INV-002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tick := now
			gw := store.NewMemory().WithClock(func() time.Time {
				tick = tick.Add(time.Minute)
				return tick
			})
			for _, n := range []string{"INV-001", "INV-002"} {
				if err := gw.InsertInvoice(ctx, &core.Invoice{UserID: user, Number: n}); err != nil {
					t.Fatal(err)
				}
			}
			mem := memory.NewInProcess(0, func() time.Time { return now })
			if tt.entry != nil {
				tt.entry.Timestamp = now
				_ = mem.Set(ctx, user, *tt.entry)
			}
			b := app.NewContextBuilder(gw, mem, 0, 0, nil)

			pack := b.Build(ctx, user, tt.history, nil)
			if pack.ActiveInvoice != tt.want {
				t.Errorf("active = %q, want %q", pack.ActiveInvoice, tt.want)
			}
		})
	}
}

func TestContextBuilder_RecentEntities(t *testing.T) {
	history := []app.Message{
		{Role: app.RoleUser, Content: "send INV-001 to ana@example.com"},
		{Role: app.RoleAssistant, Content: "Done. INV-002 is next."},
		{Role: app.RoleUser, Content: "cc Bob@Example.com please"},
	}
	b := app.NewContextBuilder(store.NewMemory(), nil, 0, 0, nil)

	pack := b.Build(context.Background(), user, history, nil)

	if got := pack.RecentInvoiceNumbers; len(got) != 2 || got[0] != "INV-002" || got[1] != "INV-001" {
		t.Errorf("numbers = %v, want newest first", got)
	}
	if got := pack.RecentEmails; len(got) != 2 || got[0] != "bob@example.com" {
		t.Errorf("emails = %v", got)
	}
	if pack.LastShownInvoice != "INV-002" || pack.ActiveInvoice != "INV-002" {
		t.Errorf("last shown = %q, active = %q", pack.LastShownInvoice, pack.ActiveInvoice)
	}
	if pack.Summary == "" {
		t.Error("empty summary")
	}
}

func TestContextBuilder_HistoryWindow(t *testing.T) {
	history := []app.Message{{Role: app.RoleAssistant, Content: "INV-001 created"}}
	for i := 0; i < 4; i++ {
		history = append(history, app.Message{Role: app.RoleUser, Content: "ok"})
	}
	b := app.NewContextBuilder(store.NewMemory(), nil, 0, 4, nil)

	pack := b.Build(context.Background(), user, history, nil)

	if len(pack.RecentInvoiceNumbers) != 0 {
		t.Errorf("turn outside the window was scanned: %v", pack.RecentInvoiceNumbers)
	}
}
