package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoice-agent/internal/core"
	"invoice-agent/internal/store"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *store.Postgres) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, store.NewPostgres(mock)
}

func TestPostgres_GetUser_NotFound(t *testing.T) {
	mock, gw := newMock(t)
	mock.ExpectQuery(`FROM users`).WithArgs("u1").WillReturnError(pgx.ErrNoRows)

	_, err := gw.GetUser(context.Background(), "u1")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgres_InsertInvoice_DuplicateNumber(t *testing.T) {
	mock, gw := newMock(t)
	mock.ExpectExec(`INSERT INTO invoices`).
		WithArgs(anyArgs(26)...).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	inv := &core.Invoice{UserID: "u1", Number: "INV-001", Status: core.InvoiceDraft}
	err := gw.InsertInvoice(context.Background(), inv)
	if !errors.Is(err, core.ErrDuplicateNumber) {
		t.Fatalf("err = %v, want ErrDuplicateNumber", err)
	}
	if inv.ID == "" {
		t.Error("expected an id to be assigned before insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgres_FindInvoices_Filters(t *testing.T) {
	mock, gw := newMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	cols := []string{
		"id", "user_id", "client_id", "number", "status", "invoice_date", "due_date", "currency", "notes",
		"subtotal", "discount_type", "discount_value", "discount_amount", "tax_percentage", "tax_amount", "total",
		"paid_amount", "payment_date", "payment_notes", "stripe_active", "paypal_active", "bank_transfer_active",
		"design", "accent_color", "created_at", "updated_at",
	}
	rows := pgxmock.NewRows(cols).AddRow(
		"i1", "u1", "c1", "INV-042", "sent", created, nil, "USD", "",
		decimal.NewFromInt(300), "", decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.NewFromInt(300),
		decimal.Zero, nil, "", false, true, false,
		"classic", "#000000", created, created,
	)
	mock.ExpectQuery(`FROM invoices WHERE user_id = \$1 AND upper\(number\) = upper\(\$2\) AND status = ANY\(\$3\) ORDER BY created_at DESC LIMIT \$4`).
		WithArgs("u1", "inv-042", []string{"sent", "partial"}, 1).
		WillReturnRows(rows)

	got, err := gw.FindInvoices(context.Background(), core.InvoiceFilter{
		UserID:   "u1",
		Number:   " inv-042 ",
		Statuses: []core.InvoiceStatus{core.InvoiceSent, core.InvoicePartial},
		Limit:    1,
	})
	if err != nil {
		t.Fatalf("FindInvoices: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d invoices, want 1", len(got))
	}
	if got[0].Number != "INV-042" || got[0].Status != core.InvoiceSent || !got[0].Total.Equal(decimal.NewFromInt(300)) {
		t.Errorf("unexpected invoice %+v", got[0])
	}
	if !got[0].PayPalActive || got[0].DueDate != nil {
		t.Errorf("payment flags or due date not scanned: %+v", got[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgres_UpdateClient_NoRows(t *testing.T) {
	mock, gw := newMock(t)
	mock.ExpectExec(`UPDATE clients`).
		WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := gw.UpdateClient(context.Background(), &core.Client{ID: "c1", UserID: "u1", Name: "Oliver"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgres_ListDocumentNumbersAndCounts(t *testing.T) {
	mock, gw := newMock(t)
	mock.ExpectQuery(`UNION ALL`).WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"number"}).AddRow("INV-001").AddRow("EST-002"))
	mock.ExpectQuery(`SELECT \(SELECT count`).WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"invoices", "estimates"}).AddRow(1, 1))

	ctx := context.Background()
	numbers, err := gw.ListDocumentNumbers(ctx, "u1")
	if err != nil {
		t.Fatalf("ListDocumentNumbers: %v", err)
	}
	if len(numbers) != 2 || numbers[0] != "INV-001" || numbers[1] != "EST-002" {
		t.Errorf("numbers = %v", numbers)
	}
	counts, err := gw.CountDocuments(ctx, "u1")
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if counts.Total() != 2 {
		t.Errorf("counts = %+v", counts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgres_UpsertPaymentOptions(t *testing.T) {
	mock, gw := newMock(t)
	mock.ExpectExec(`ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs("u1", false, "", true, "pay@example.com", false, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := gw.UpsertPaymentOptions(context.Background(), &core.PaymentOptions{
		UserID: "u1", PayPalEnabled: true, PayPalEmail: "pay@example.com",
	})
	if err != nil {
		t.Fatalf("UpsertPaymentOptions: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgres_MarkOverdue(t *testing.T) {
	mock, gw := newMock(t)
	today := time.Date(2026, 3, 14, 15, 4, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE invoices SET status = 'overdue'`).
		WithArgs(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	n, err := gw.MarkOverdue(context.Background(), today)
	if err != nil {
		t.Fatalf("MarkOverdue: %v", err)
	}
	if n != 4 {
		t.Errorf("n = %d, want 4", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
