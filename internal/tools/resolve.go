package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"invoice-agent/internal/core"
	"invoice-agent/internal/memory"
)

var (
	numberLike   = regexp.MustCompile(`^(?i)(?:[a-z]+[-#/ ]?)?#?\d+$`)
	letterPrefix = regexp.MustCompile(`^[A-Za-z]+`)
)

func isActiveRef(s string) bool {
	switch s {
	case "", "it", "this", "this invoice", "that invoice", "the invoice", "current", "active":
		return true
	}
	return false
}

func isLatestRef(s string) bool {
	switch s {
	case "latest", "last", "recent", "most recent", "newest", "last invoice", "latest invoice", "last one":
		return true
	}
	return false
}

// resolveInvoice accepts an explicit number, a bare numeric suffix, a client name,
// "latest", or nothing (the turn's active invoice, else the remembered one, else the latest).
func (e *Engine) resolveInvoice(ctx context.Context, userID, ident string) (*core.Invoice, error) {
	ident = strings.TrimSpace(ident)
	key := strings.ToLower(ident)

	if isActiveRef(key) {
		if number := ActiveInvoice(ctx); number != "" && !isActiveRef(strings.ToLower(number)) {
			if inv, err := e.resolveInvoice(ctx, userID, number); err == nil {
				return inv, nil
			}
		}
		if inv := e.rememberedInvoice(ctx, userID); inv != nil {
			return inv, nil
		}
	}
	if isActiveRef(key) || isLatestRef(key) {
		list, err := e.gw.FindInvoices(ctx, core.InvoiceFilter{UserID: userID, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("find latest invoice: %w", err)
		}
		if len(list) == 0 {
			return nil, notFoundf("You don't have any invoices yet.")
		}
		return &list[0], nil
	}

	list, err := e.gw.FindInvoices(ctx, core.InvoiceFilter{UserID: userID, Number: ident, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("find invoice %s: %w", ident, err)
	}
	if len(list) > 0 {
		return &list[0], nil
	}

	if numberLike.MatchString(ident) {
		if n, ok := core.NumberSuffix(ident); ok {
			all, err := e.gw.FindInvoices(ctx, core.InvoiceFilter{UserID: userID})
			if err != nil {
				return nil, fmt.Errorf("list invoices: %w", err)
			}
			prefix := strings.ToUpper(letterPrefix.FindString(ident))
			for i := range all {
				s, ok := core.NumberSuffix(all[i].Number)
				if ok && s == n && strings.HasPrefix(strings.ToUpper(all[i].Number), prefix) {
					return &all[i], nil
				}
			}
		}
		return nil, notFoundf("I couldn't find invoice %s.", ident)
	}

	clients, err := e.findClientsByName(ctx, userID, ident)
	if err != nil {
		return nil, err
	}
	for _, c := range clients {
		list, err := e.gw.FindInvoices(ctx, core.InvoiceFilter{UserID: userID, ClientID: c.ID, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("find invoices of client %s: %w", c.ID, err)
		}
		if len(list) > 0 {
			return &list[0], nil
		}
	}
	return nil, notFoundf("I couldn't find an invoice matching %q.", ident)
}

func (e *Engine) rememberedInvoice(ctx context.Context, userID string) *core.Invoice {
	if e.mem == nil {
		return nil
	}
	entry, ok, err := e.mem.Get(ctx, userID)
	if err != nil || !ok || entry.InvoiceID == "" || entry.Action == memory.ActionDeletedInvoice {
		return nil
	}
	inv, err := e.gw.GetInvoice(ctx, userID, entry.InvoiceID)
	if err != nil {
		return nil
	}
	return inv
}

func (e *Engine) resolveEstimate(ctx context.Context, userID, ident string) (*core.Estimate, error) {
	ident = strings.TrimSpace(ident)
	key := strings.ToLower(ident)

	if isActiveRef(key) || isLatestRef(key) || key == "estimate" || key == "quote" {
		if e.mem != nil {
			if entry, ok, err := e.mem.Get(ctx, userID); err == nil && ok && entry.EstimateID != "" {
				if est, err := e.gw.GetEstimate(ctx, userID, entry.EstimateID); err == nil {
					return est, nil
				}
			}
		}
		list, err := e.gw.FindEstimates(ctx, core.EstimateFilter{UserID: userID, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("find latest estimate: %w", err)
		}
		if len(list) == 0 {
			return nil, notFoundf("You don't have any estimates yet.")
		}
		return &list[0], nil
	}

	list, err := e.gw.FindEstimates(ctx, core.EstimateFilter{UserID: userID, Number: ident, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("find estimate %s: %w", ident, err)
	}
	if len(list) > 0 {
		return &list[0], nil
	}
	if numberLike.MatchString(ident) {
		if n, ok := core.NumberSuffix(ident); ok {
			all, err := e.gw.FindEstimates(ctx, core.EstimateFilter{UserID: userID})
			if err != nil {
				return nil, fmt.Errorf("list estimates: %w", err)
			}
			for i := range all {
				if s, ok := core.NumberSuffix(all[i].Number); ok && s == n {
					return &all[i], nil
				}
			}
		}
		return nil, notFoundf("I couldn't find estimate %s.", ident)
	}
	clients, err := e.findClientsByName(ctx, userID, ident)
	if err != nil {
		return nil, err
	}
	for _, c := range clients {
		list, err := e.gw.FindEstimates(ctx, core.EstimateFilter{UserID: userID, ClientID: c.ID, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("find estimates of client %s: %w", c.ID, err)
		}
		if len(list) > 0 {
			return &list[0], nil
		}
	}
	return nil, notFoundf("I couldn't find an estimate matching %q.", ident)
}

// findClientsByName prefers case-insensitive exact matches over substring matches.
func (e *Engine) findClientsByName(ctx context.Context, userID, name string) ([]core.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	exact, err := e.gw.FindClients(ctx, core.ClientFilter{UserID: userID, NameEquals: name})
	if err != nil {
		return nil, fmt.Errorf("find client %q: %w", name, err)
	}
	if len(exact) > 0 {
		return exact, nil
	}
	fuzzy, err := e.gw.FindClients(ctx, core.ClientFilter{UserID: userID, Query: name, Limit: 5})
	if err != nil {
		return nil, fmt.Errorf("search client %q: %w", name, err)
	}
	return fuzzy, nil
}

type clientFields struct {
	Name, Email, Phone, Address, TaxNumber string
}

// upsertClient returns the existing client with a case-insensitively equal name,
// merging any newly supplied contact fields, or creates a new one.
func (e *Engine) upsertClient(ctx context.Context, userID string, f clientFields) (*core.Client, error) {
	name := strings.Join(strings.Fields(f.Name), " ")
	if name == "" {
		return nil, invalidf("Who is this for? Please tell me the client's name.")
	}
	if f.Email != "" && !validEmail(f.Email) {
		return nil, invalidf("%q doesn't look like an email address.", f.Email)
	}

	existing, err := e.gw.FindClients(ctx, core.ClientFilter{UserID: userID, NameEquals: name, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("find client %q: %w", name, err)
	}
	if len(existing) > 0 {
		c := existing[0]
		if mergeClient(&c, f) {
			if err := e.gw.UpdateClient(ctx, &c); err != nil {
				return nil, fmt.Errorf("update client %s: %w", c.ID, err)
			}
		}
		return &c, nil
	}

	c := &core.Client{
		UserID:    userID,
		Name:      name,
		Email:     strings.TrimSpace(f.Email),
		Phone:     strings.TrimSpace(f.Phone),
		Address:   strings.TrimSpace(f.Address),
		TaxNumber: strings.TrimSpace(f.TaxNumber),
	}
	if err := e.gw.InsertClient(ctx, c); err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

// mergeClient copies non-empty fields of f onto c and reports whether anything changed.
// The name is left alone.
func mergeClient(c *core.Client, f clientFields) bool {
	changed := false
	set := func(dst *string, v string) {
		v = strings.TrimSpace(v)
		if v != "" && v != *dst {
			*dst = v
			changed = true
		}
	}
	set(&c.Email, f.Email)
	set(&c.Phone, f.Phone)
	set(&c.Address, f.Address)
	set(&c.TaxNumber, f.TaxNumber)
	return changed
}

func (e *Engine) clientOf(ctx context.Context, userID, clientID string) (*core.Client, error) {
	if clientID == "" {
		return nil, nil
	}
	c, err := e.gw.GetClient(ctx, userID, clientID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client %s: %w", clientID, err)
	}
	return c, nil
}

func clientName(c *core.Client) string {
	if c == nil {
		return ""
	}
	return c.Name
}

func (e *Engine) settings(ctx context.Context, userID string) (core.BusinessSettings, error) {
	bs, err := e.gw.GetBusinessSettings(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.DefaultBusinessSettings(userID), nil
	}
	if err != nil {
		return core.BusinessSettings{}, fmt.Errorf("get business settings: %w", err)
	}
	return *bs, nil
}

func (e *Engine) paymentOptions(ctx context.Context, userID string) (*core.PaymentOptions, error) {
	po, err := e.gw.GetPaymentOptions(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return &core.PaymentOptions{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment options: %w", err)
	}
	return po, nil
}

func (e *Engine) plan(ctx context.Context, userID string) (core.Plan, error) {
	u, err := e.gw.GetUser(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.PlanFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if u.Plan == "" {
		return core.PlanFree, nil
	}
	return u.Plan, nil
}

// ensureCapacity rejects document creation once a free plan used its allowance.
func (e *Engine) ensureCapacity(ctx context.Context, userID string) error {
	if e.freeTierLimit <= 0 {
		return nil
	}
	plan, err := e.plan(ctx, userID)
	if err != nil {
		return err
	}
	if plan != core.PlanFree {
		return nil
	}
	counts, err := e.gw.CountDocuments(ctx, userID)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if counts.Total() >= e.freeTierLimit {
		return limitf("You've used all %d documents included in the free plan. Upgrade to Pro to create more invoices and estimates.", e.freeTierLimit)
	}
	return nil
}

func (e *Engine) invoiceAttachment(ctx context.Context, inv *core.Invoice, items []core.LineItem) (Attachment, *core.Client, error) {
	if items == nil {
		var err error
		if items, err = e.gw.ListLineItems(ctx, core.KindInvoice, inv.ID); err != nil {
			return Attachment{}, nil, fmt.Errorf("list line items: %w", err)
		}
	}
	client, err := e.clientOf(ctx, inv.UserID, inv.ClientID)
	if err != nil {
		return Attachment{}, nil, err
	}
	snapshot := *inv
	return Attachment{
		Type:      AttachmentInvoice,
		InvoiceID: inv.ID,
		Invoice:   &snapshot,
		LineItems: nonNil(items),
		ClientID:  inv.ClientID,
		Client:    client,
	}, client, nil
}

// saveInvoiceTotals recomputes the money block from the stored line items, keeps
// payment fields consistent and persists the invoice.
func (e *Engine) saveInvoiceTotals(ctx context.Context, inv *core.Invoice) ([]core.LineItem, error) {
	items, err := e.gw.ListLineItems(ctx, core.KindInvoice, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	inv.Recompute(items)
	core.ReconcilePayment(inv)
	if err := e.gw.UpdateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice %s: %w", inv.Number, err)
	}
	return items, nil
}

// invoiceResult builds the standard successful mutation result.
func (e *Engine) invoiceResult(ctx context.Context, inv *core.Invoice, items []core.LineItem, action memory.Action, msg string) (Result, error) {
	att, client, err := e.invoiceAttachment(ctx, inv, items)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success:     true,
		Message:     msg,
		Data:        invoiceData(inv, client),
		Attachments: []Attachment{att},
		Effect: &Effect{
			Action:        action,
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			ClientID:      inv.ClientID,
			ClientName:    clientName(client),
		},
	}, nil
}

func invoiceData(inv *core.Invoice, client *core.Client) map[string]any {
	return map[string]any{
		"invoiceNumber": inv.Number,
		"status":        inv.Status,
		"client":        clientName(client),
		"subtotal":      inv.Subtotal.StringFixed(2),
		"taxAmount":     inv.TaxAmount.StringFixed(2),
		"total":         inv.Total.StringFixed(2),
		"paidAmount":    inv.PaidAmount.StringFixed(2),
		"currency":      inv.Currency,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
