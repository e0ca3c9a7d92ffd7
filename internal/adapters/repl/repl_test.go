package repl

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"invoice-agent/internal/app"
	"invoice-agent/internal/core"
	"invoice-agent/internal/tools"

	"github.com/shopspring/decimal"
)

type fakeService struct {
	app.ApplicationService
	requests []app.ChatRequest
}

func (f *fakeService) HandleMessage(_ context.Context, req app.ChatRequest) (*app.ChatResponse, error) {
	f.requests = append(f.requests, req)
	inv := &core.Invoice{Number: "INV-001", Status: core.InvoiceDraft, Currency: "USD"}
	inv.Subtotal = decimal.NewFromInt(450)
	inv.Total = decimal.NewFromInt(450)
	return &app.ChatResponse{
		Success: true,
		Messages: []app.Message{
			{Role: app.RoleUser, Content: req.Message},
			{Role: app.RoleAssistant, Content: "Created invoice INV-001."},
		},
		Thread: app.Thread{ID: "thread-1", UserID: req.UserID},
		Attachments: []tools.Attachment{{
			Type:    "invoice",
			Invoice: inv,
			Client:  &core.Client{Name: "Acme"},
			LineItems: []core.LineItem{{
				Position: 1, Name: "Logo design",
				Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(450), TotalPrice: decimal.NewFromInt(450),
			}},
		}},
	}, nil
}

func (f *fakeService) NextNumber(_ context.Context, req app.NextNumberRequest) (string, error) {
	return "EST-002", nil
}

func run(svc app.ApplicationService, input string) string {
	var out bytes.Buffer
	Run(context.Background(), svc, "u1", bufio.NewReader(strings.NewReader(input)), &out)
	return out.String()
}

func TestRunCarriesHistoryAndThread(t *testing.T) {
	svc := &fakeService{}
	out := run(svc, "Invoice Acme 450 for a logo\nadd his email a@acme.test\n/new\nhello\n/exit\n")

	if len(svc.requests) != 3 {
		t.Fatalf("requests = %d, want 3", len(svc.requests))
	}
	if got := svc.requests[1]; got.ThreadID != "thread-1" || len(got.History) != 2 {
		t.Errorf("second turn thread %q history %d", got.ThreadID, len(got.History))
	}
	if got := svc.requests[2]; got.ThreadID != "" || len(got.History) != 0 {
		t.Errorf("after /new: thread %q history %d", got.ThreadID, len(got.History))
	}
	for _, want := range []string{"[AI]: Created invoice INV-001.", "INVOICE INV-001", "Logo design", "450.00", "Goodbye!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
}

func TestRunStopsAtEOF(t *testing.T) {
	svc := &fakeService{}
	out := run(svc, "/next estimate\n/currency eur\nhi")
	if !strings.Contains(out, "EST-002") {
		t.Errorf("missing next number:\n%s", out)
	}
	if len(svc.requests) != 1 || svc.requests[0].UserContext == nil || svc.requests[0].UserContext.Currency != "EUR" {
		t.Fatalf("requests = %+v", svc.requests)
	}
}

func TestInvoiceWizard(t *testing.T) {
	svc := &fakeService{}
	run(svc, "/invoice\nAcme\nLogo design ; 450\nbad line\nConsulting ; 80 ; 6\ndone\n/q\n")

	if len(svc.requests) != 1 {
		t.Fatalf("requests = %d", len(svc.requests))
	}
	want := "Create an invoice for Acme with these items: Logo design for 450.00; 6 x Consulting at 80.00 each."
	if svc.requests[0].Message != want {
		t.Errorf("message = %q", svc.requests[0].Message)
	}
}

func TestParseWizardLine(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		qty     string
	}{
		{"Hosting ; 25", false, "1"},
		{"Hours ; 80 ; 2.5", false, "2.5"},
		{"Hosting", true, ""},
		{" ; 25", true, ""},
		{"Hosting ; -1", true, ""},
		{"Hosting ; 25 ; 0", true, ""},
	}
	for _, tt := range tests {
		line, err := parseWizardLine(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseWizardLine(%q) err = %v", tt.in, err)
			continue
		}
		if err == nil && line.qty.String() != tt.qty {
			t.Errorf("parseWizardLine(%q) qty = %s, want %s", tt.in, line.qty, tt.qty)
		}
	}
}
