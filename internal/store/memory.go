package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"invoice-agent/internal/core"
)

// Memory is a concurrency-safe in-process core.Gateway. It backs the server when no
// DATABASE_URL is configured and every engine-level test.
type Memory struct {
	mu        sync.Mutex
	now       func() time.Time
	users     map[string]core.User
	clients   map[string]core.Client
	invoices  map[string]core.Invoice
	estimates map[string]core.Estimate
	items     map[string]core.LineItem
	payments  map[string]core.PaymentOptions
	business  map[string]core.BusinessSettings
	seq       int64
	faults    map[string]error
}

var _ core.Gateway = (*Memory)(nil)

// NewMemory constructs an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		now:       time.Now,
		users:     make(map[string]core.User),
		clients:   make(map[string]core.Client),
		invoices:  make(map[string]core.Invoice),
		estimates: make(map[string]core.Estimate),
		items:     make(map[string]core.LineItem),
		payments:  make(map[string]core.PaymentOptions),
		business:  make(map[string]core.BusinessSettings),
		faults:    make(map[string]error),
	}
}

// WithClock replaces the timestamp source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// FailOn makes the named gateway method (e.g. "InsertLineItem") return err until cleared
// with a nil error.
func (m *Memory) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, method)
		return
	}
	m.faults[method] = err
}

// PutUser seeds a user record.
func (m *Memory) PutUser(u core.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) fault(method string) error {
	if err, ok := m.faults[method]; ok {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// stamp returns a strictly increasing timestamp so newest-first ordering is stable
// even when the clock does not advance between inserts.
func (m *Memory) stamp() time.Time {
	m.seq++
	return m.now().UTC().Add(time.Duration(m.seq) * time.Microsecond)
}

func (m *Memory) GetUser(_ context.Context, userID string) (*core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("GetUser"); err != nil {
		return nil, err
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", userID, core.ErrNotFound)
	}
	return &u, nil
}

func (m *Memory) FindClients(_ context.Context, f core.ClientFilter) ([]core.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("FindClients"); err != nil {
		return nil, err
	}
	q := strings.ToLower(f.Query)
	var out []core.Client
	for _, c := range m.clients {
		if c.UserID != f.UserID {
			continue
		}
		if f.NameEquals != "" && !strings.EqualFold(c.Name, strings.TrimSpace(f.NameEquals)) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) && !strings.Contains(strings.ToLower(c.Email), q) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limit(out, f.Limit), nil
}

func (m *Memory) GetClient(_ context.Context, userID, clientID string) (*core.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("GetClient"); err != nil {
		return nil, err
	}
	c, ok := m.clients[clientID]
	if !ok || c.UserID != userID {
		return nil, fmt.Errorf("client %s: %w", clientID, core.ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) InsertClient(_ context.Context, c *core.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("InsertClient"); err != nil {
		return err
	}
	c.ID = newID(c.ID)
	c.CreatedAt = m.stamp()
	c.UpdatedAt = c.CreatedAt
	m.clients[c.ID] = *c
	return nil
}

func (m *Memory) UpdateClient(_ context.Context, c *core.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("UpdateClient"); err != nil {
		return err
	}
	prev, ok := m.clients[c.ID]
	if !ok || prev.UserID != c.UserID {
		return fmt.Errorf("update client %s: %w", c.ID, core.ErrNotFound)
	}
	c.CreatedAt = prev.CreatedAt
	c.UpdatedAt = m.stamp()
	m.clients[c.ID] = *c
	return nil
}

func (m *Memory) FindInvoices(_ context.Context, f core.InvoiceFilter) ([]core.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("FindInvoices"); err != nil {
		return nil, err
	}
	var out []core.Invoice
	for _, inv := range m.invoices {
		if inv.UserID != f.UserID {
			continue
		}
		if f.Number != "" && !strings.EqualFold(inv.Number, strings.TrimSpace(f.Number)) {
			continue
		}
		if f.ClientID != "" && inv.ClientID != f.ClientID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, inv.Status) {
			continue
		}
		if f.DueBefore != nil && (inv.DueDate == nil || !inv.DueDate.Before(*f.DueBefore)) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limit(out, f.Limit), nil
}

func (m *Memory) GetInvoice(_ context.Context, userID, invoiceID string) (*core.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("GetInvoice"); err != nil {
		return nil, err
	}
	inv, ok := m.invoices[invoiceID]
	if !ok || inv.UserID != userID {
		return nil, fmt.Errorf("invoice %s: %w", invoiceID, core.ErrNotFound)
	}
	return &inv, nil
}

func (m *Memory) InsertInvoice(_ context.Context, inv *core.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("InsertInvoice"); err != nil {
		return err
	}
	if m.numberTaken(inv.UserID, inv.Number) {
		return fmt.Errorf("insert invoice %s: %w", inv.Number, core.ErrDuplicateNumber)
	}
	inv.ID = newID(inv.ID)
	inv.CreatedAt = m.stamp()
	inv.UpdatedAt = inv.CreatedAt
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *Memory) UpdateInvoice(_ context.Context, inv *core.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("UpdateInvoice"); err != nil {
		return err
	}
	prev, ok := m.invoices[inv.ID]
	if !ok || prev.UserID != inv.UserID {
		return fmt.Errorf("update invoice %s: %w", inv.ID, core.ErrNotFound)
	}
	inv.CreatedAt = prev.CreatedAt
	inv.UpdatedAt = m.stamp()
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *Memory) DeleteInvoice(_ context.Context, userID, invoiceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("DeleteInvoice"); err != nil {
		return err
	}
	inv, ok := m.invoices[invoiceID]
	if !ok || inv.UserID != userID {
		return fmt.Errorf("delete invoice %s: %w", invoiceID, core.ErrNotFound)
	}
	delete(m.invoices, invoiceID)
	return nil
}

func (m *Memory) MarkOverdue(_ context.Context, today time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("MarkOverdue"); err != nil {
		return 0, err
	}
	n := 0
	for id, inv := range m.invoices {
		if core.IsOverdue(&inv, today) {
			inv.Status = core.InvoiceOverdue
			inv.UpdatedAt = m.stamp()
			m.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func (m *Memory) FindEstimates(_ context.Context, f core.EstimateFilter) ([]core.Estimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("FindEstimates"); err != nil {
		return nil, err
	}
	var out []core.Estimate
	for _, e := range m.estimates {
		if e.UserID != f.UserID {
			continue
		}
		if f.Number != "" && !strings.EqualFold(e.Number, strings.TrimSpace(f.Number)) {
			continue
		}
		if f.ClientID != "" && e.ClientID != f.ClientID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limit(out, f.Limit), nil
}

func (m *Memory) GetEstimate(_ context.Context, userID, estimateID string) (*core.Estimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("GetEstimate"); err != nil {
		return nil, err
	}
	e, ok := m.estimates[estimateID]
	if !ok || e.UserID != userID {
		return nil, fmt.Errorf("estimate %s: %w", estimateID, core.ErrNotFound)
	}
	return &e, nil
}

func (m *Memory) InsertEstimate(_ context.Context, e *core.Estimate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("InsertEstimate"); err != nil {
		return err
	}
	if m.numberTaken(e.UserID, e.Number) {
		return fmt.Errorf("insert estimate %s: %w", e.Number, core.ErrDuplicateNumber)
	}
	e.ID = newID(e.ID)
	e.CreatedAt = m.stamp()
	e.UpdatedAt = e.CreatedAt
	m.estimates[e.ID] = *e
	return nil
}

func (m *Memory) UpdateEstimate(_ context.Context, e *core.Estimate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("UpdateEstimate"); err != nil {
		return err
	}
	prev, ok := m.estimates[e.ID]
	if !ok || prev.UserID != e.UserID {
		return fmt.Errorf("update estimate %s: %w", e.ID, core.ErrNotFound)
	}
	e.CreatedAt = prev.CreatedAt
	e.UpdatedAt = m.stamp()
	m.estimates[e.ID] = *e
	return nil
}

func (m *Memory) DeleteEstimate(_ context.Context, userID, estimateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("DeleteEstimate"); err != nil {
		return err
	}
	e, ok := m.estimates[estimateID]
	if !ok || e.UserID != userID {
		return fmt.Errorf("delete estimate %s: %w", estimateID, core.ErrNotFound)
	}
	delete(m.estimates, estimateID)
	return nil
}

func (m *Memory) ListLineItems(_ context.Context, kind core.DocumentKind, documentID string) ([]core.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("ListLineItems"); err != nil {
		return nil, err
	}
	var out []core.LineItem
	for _, it := range m.items {
		if it.DocumentKind == kind && it.DocumentID == documentID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) InsertLineItem(_ context.Context, it *core.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("InsertLineItem"); err != nil {
		return err
	}
	it.ID = newID(it.ID)
	it.CreatedAt = m.stamp()
	m.items[it.ID] = *it
	return nil
}

func (m *Memory) UpdateLineItem(_ context.Context, it *core.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("UpdateLineItem"); err != nil {
		return err
	}
	prev, ok := m.items[it.ID]
	if !ok {
		return fmt.Errorf("update line item %s: %w", it.ID, core.ErrNotFound)
	}
	it.DocumentKind, it.DocumentID, it.CreatedAt = prev.DocumentKind, prev.DocumentID, prev.CreatedAt
	m.items[it.ID] = *it
	return nil
}

func (m *Memory) DeleteLineItem(_ context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("DeleteLineItem"); err != nil {
		return err
	}
	if _, ok := m.items[itemID]; !ok {
		return fmt.Errorf("delete line item %s: %w", itemID, core.ErrNotFound)
	}
	delete(m.items, itemID)
	return nil
}

func (m *Memory) DeleteLineItems(_ context.Context, kind core.DocumentKind, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("DeleteLineItems"); err != nil {
		return err
	}
	for id, it := range m.items {
		if it.DocumentKind == kind && it.DocumentID == documentID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *Memory) ListDocumentNumbers(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("ListDocumentNumbers"); err != nil {
		return nil, err
	}
	var out []string
	for _, inv := range m.invoices {
		if inv.UserID == userID {
			out = append(out, inv.Number)
		}
	}
	for _, e := range m.estimates {
		if e.UserID == userID {
			out = append(out, e.Number)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) CountDocuments(_ context.Context, userID string) (core.DocumentCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c core.DocumentCounts
	if err := m.fault("CountDocuments"); err != nil {
		return c, err
	}
	for _, inv := range m.invoices {
		if inv.UserID == userID {
			c.Invoices++
		}
	}
	for _, e := range m.estimates {
		if e.UserID == userID {
			c.Estimates++
		}
	}
	return c, nil
}

func (m *Memory) GetPaymentOptions(_ context.Context, userID string) (*core.PaymentOptions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("GetPaymentOptions"); err != nil {
		return nil, err
	}
	po, ok := m.payments[userID]
	if !ok {
		return nil, fmt.Errorf("payment options of %s: %w", userID, core.ErrNotFound)
	}
	return &po, nil
}

func (m *Memory) UpsertPaymentOptions(_ context.Context, po *core.PaymentOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("UpsertPaymentOptions"); err != nil {
		return err
	}
	m.payments[po.UserID] = *po
	return nil
}

func (m *Memory) GetBusinessSettings(_ context.Context, userID string) (*core.BusinessSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("GetBusinessSettings"); err != nil {
		return nil, err
	}
	bs, ok := m.business[userID]
	if !ok {
		return nil, fmt.Errorf("business settings of %s: %w", userID, core.ErrNotFound)
	}
	return &bs, nil
}

func (m *Memory) UpsertBusinessSettings(_ context.Context, bs *core.BusinessSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("UpsertBusinessSettings"); err != nil {
		return err
	}
	m.business[bs.UserID] = *bs
	return nil
}

func (m *Memory) numberTaken(userID, number string) bool {
	for _, inv := range m.invoices {
		if inv.UserID == userID && strings.EqualFold(inv.Number, number) {
			return true
		}
	}
	for _, e := range m.estimates {
		if e.UserID == userID && strings.EqualFold(e.Number, number) {
			return true
		}
	}
	return false
}

func hasStatus(set []core.InvoiceStatus, s core.InvoiceStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func limit[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
