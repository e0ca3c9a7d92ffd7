package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"invoice-agent/internal/core"
	"invoice-agent/internal/store"
)

func TestMemory_InvoiceLifecycle(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	first := &core.Invoice{UserID: "u1", Number: "INV-001", Status: core.InvoiceDraft}
	second := &core.Invoice{UserID: "u1", Number: "INV-002", Status: core.InvoiceSent}
	other := &core.Invoice{UserID: "u2", Number: "INV-001"}
	for _, inv := range []*core.Invoice{first, second, other} {
		if err := m.InsertInvoice(ctx, inv); err != nil {
			t.Fatalf("InsertInvoice %s: %v", inv.Number, err)
		}
	}

	latest, err := m.FindInvoices(ctx, core.InvoiceFilter{UserID: "u1", Limit: 1})
	if err != nil || len(latest) != 1 || latest[0].Number != "INV-002" {
		t.Fatalf("latest = %+v, err %v", latest, err)
	}

	byNumber, _ := m.FindInvoices(ctx, core.InvoiceFilter{UserID: "u1", Number: "inv-001"})
	if len(byNumber) != 1 || byNumber[0].ID != first.ID {
		t.Errorf("case-insensitive number lookup returned %+v", byNumber)
	}

	dup := &core.Invoice{UserID: "u1", Number: "INV-002"}
	if err := m.InsertInvoice(ctx, dup); !errors.Is(err, core.ErrDuplicateNumber) {
		t.Errorf("duplicate insert err = %v", err)
	}

	if _, err := m.GetInvoice(ctx, "u2", first.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-user read err = %v, want ErrNotFound", err)
	}

	if err := m.DeleteInvoice(ctx, "u1", first.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}
	numbers, _ := m.ListDocumentNumbers(ctx, "u1")
	if len(numbers) != 1 || numbers[0] != "INV-002" {
		t.Errorf("numbers after delete = %v", numbers)
	}
}

func TestMemory_ClientSearch(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, c := range []*core.Client{
		{UserID: "u1", Name: "Oliver Twist", Email: "oliver@example.com"},
		{UserID: "u1", Name: "oliver"},
		{UserID: "u1", Name: "Acme Ltd", Email: "billing@acme.test"},
	} {
		if err := m.InsertClient(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	exact, _ := m.FindClients(ctx, core.ClientFilter{UserID: "u1", NameEquals: "OLIVER"})
	if len(exact) != 1 || exact[0].Name != "oliver" {
		t.Errorf("NameEquals returned %+v", exact)
	}
	fuzzy, _ := m.FindClients(ctx, core.ClientFilter{UserID: "u1", Query: "acme"})
	if len(fuzzy) != 1 || fuzzy[0].Name != "Acme Ltd" {
		t.Errorf("Query returned %+v", fuzzy)
	}
}

func TestMemory_LineItemsOrderedByPosition(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, pos := range []int{3, 1, 2} {
		it := &core.LineItem{DocumentKind: core.KindInvoice, DocumentID: "i1", Position: pos, Name: "item"}
		if err := m.InsertLineItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}
	items, _ := m.ListLineItems(ctx, core.KindInvoice, "i1")
	for i, it := range items {
		if it.Position != i+1 {
			t.Fatalf("items out of order: %+v", items)
		}
	}
	if err := m.DeleteLineItems(ctx, core.KindInvoice, "i1"); err != nil {
		t.Fatal(err)
	}
	if items, _ := m.ListLineItems(ctx, core.KindInvoice, "i1"); len(items) != 0 {
		t.Errorf("expected no items after bulk delete, got %d", len(items))
	}
}

func TestMemory_FaultInjection(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	boom := errors.New("connection reset")
	m.FailOn("InsertLineItem", boom)

	err := m.InsertLineItem(ctx, &core.LineItem{DocumentKind: core.KindInvoice, DocumentID: "i1"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want injected fault", err)
	}
	m.FailOn("InsertLineItem", nil)
	if err := m.InsertLineItem(ctx, &core.LineItem{DocumentKind: core.KindInvoice, DocumentID: "i1"}); err != nil {
		t.Fatalf("after clearing fault: %v", err)
	}
}

func TestMemory_ConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.InsertClient(ctx, &core.Client{UserID: "u1", Name: "client"})
		}()
	}
	wg.Wait()
	clients, _ := m.FindClients(ctx, core.ClientFilter{UserID: "u1"})
	if len(clients) != 50 {
		t.Errorf("got %d clients, want 50", len(clients))
	}
}

func TestMemory_MarkOverdue(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	today := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	past := today.AddDate(0, 0, -3)
	future := today.AddDate(0, 0, 3)

	invoices := []*core.Invoice{
		{UserID: "u1", Number: "INV-001", Status: core.InvoiceSent, DueDate: &past},
		{UserID: "u2", Number: "INV-001", Status: core.InvoicePartial, DueDate: &past},
		{UserID: "u1", Number: "INV-002", Status: core.InvoiceSent, DueDate: &future},
		{UserID: "u1", Number: "INV-003", Status: core.InvoiceDraft, DueDate: &past},
		{UserID: "u1", Number: "INV-004", Status: core.InvoicePaid, DueDate: &past},
	}
	for _, inv := range invoices {
		if err := m.InsertInvoice(ctx, inv); err != nil {
			t.Fatalf("InsertInvoice: %v", err)
		}
	}

	n, err := m.MarkOverdue(ctx, today)
	if err != nil {
		t.Fatalf("MarkOverdue: %v", err)
	}
	if n != 2 {
		t.Errorf("changed = %d, want 2", n)
	}
	want := []core.InvoiceStatus{core.InvoiceOverdue, core.InvoiceOverdue, core.InvoiceSent, core.InvoiceDraft, core.InvoicePaid}
	for i, inv := range invoices {
		got, _ := m.GetInvoice(ctx, inv.UserID, inv.ID)
		if got.Status != want[i] {
			t.Errorf("%s/%s status = %s, want %s", inv.UserID, inv.Number, got.Status, want[i])
		}
	}

	if n, _ := m.MarkOverdue(ctx, today); n != 0 {
		t.Errorf("second sweep changed %d", n)
	}
}
