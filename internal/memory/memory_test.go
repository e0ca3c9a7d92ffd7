package memory_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"invoice-agent/internal/memory"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestInProcess_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	s := memory.NewInProcess(memory.DefaultTTL, clock.Now)

	if err := s.Set(ctx, "u1", memory.Entry{Action: memory.ActionCreatedInvoice, InvoiceNumber: "INV-009"}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(29 * time.Minute)
	e, ok, err := s.Get(ctx, "u1")
	if err != nil || !ok || e.InvoiceNumber != "INV-009" {
		t.Fatalf("at T+29m got (%+v, %v, %v), want entry", e, ok, err)
	}

	clock.Advance(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "u1"); ok {
		t.Fatal("at T+31m entry should be absent")
	}
}

func TestInProcess_LastWriterWinsAndPurge(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	s := memory.NewInProcess(10*time.Minute, clock.Now)

	_ = s.Set(ctx, "u1", memory.Entry{Action: memory.ActionCreatedInvoice, InvoiceNumber: "INV-001"})
	_ = s.Set(ctx, "u1", memory.Entry{Action: memory.ActionAddedLineItem, InvoiceNumber: "INV-002"})
	_ = s.Set(ctx, "u2", memory.Entry{Action: memory.ActionUpdatedClientInfo, ClientName: "Oliver"})

	e, _, _ := s.Get(ctx, "u1")
	if e.Action != memory.ActionAddedLineItem || e.InvoiceNumber != "INV-002" {
		t.Errorf("u1 entry = %+v, want the second write", e)
	}

	clock.Advance(5 * time.Minute)
	_ = s.Set(ctx, "u3", memory.Entry{Action: memory.ActionRecordedPayment})
	clock.Advance(6 * time.Minute)

	n, err := s.Purge(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Purge = (%d, %v), want 2 evictions", n, err)
	}
	if _, ok, _ := s.Get(ctx, "u3"); !ok {
		t.Error("u3 should survive the purge")
	}

	_ = s.Clear(ctx, "u3")
	if _, ok, _ := s.Get(ctx, "u3"); ok {
		t.Error("u3 should be gone after Clear")
	}
}

func TestPostgres_GetHonoursTTL(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	written := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: written.Add(31 * time.Minute)}
	raw, _ := json.Marshal(memory.Entry{Action: memory.ActionCreatedInvoice, InvoiceNumber: "INV-009", Timestamp: written})

	mock.ExpectQuery(`SELECT entry FROM conversation_memory`).WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"entry"}).AddRow(raw))
	mock.ExpectQuery(`SELECT entry FROM conversation_memory`).WithArgs("u2").
		WillReturnError(pgx.ErrNoRows)

	s := memory.NewPostgres(mock, memory.DefaultTTL, clock.Now)
	ctx := context.Background()
	if _, ok, err := s.Get(ctx, "u1"); err != nil || ok {
		t.Errorf("expired row: ok=%v err=%v, want absent", ok, err)
	}
	if _, ok, err := s.Get(ctx, "u2"); err != nil || ok {
		t.Errorf("missing row: ok=%v err=%v, want absent", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgres_SetAndPurge(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: now}

	mock.ExpectExec(`INSERT INTO conversation_memory`).
		WithArgs("u1", pgxmock.AnyArg(), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM conversation_memory WHERE written_at`).
		WithArgs(now.Add(-memory.DefaultTTL)).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	s := memory.NewPostgres(mock, 0, clock.Now)
	ctx := context.Background()
	if err := s.Set(ctx, "u1", memory.Entry{Action: memory.ActionUpdatedInvoice}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	n, err := s.Purge(ctx)
	if err != nil || n != 4 {
		t.Fatalf("Purge = (%d, %v)", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
