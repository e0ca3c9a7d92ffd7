package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"invoice-agent/internal/core"
	"invoice-agent/internal/memory"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// numberAttempts bounds retries when a concurrent request took the same number.
const numberAttempts = 3

func (d DocumentDraft) client() clientFields {
	return clientFields{
		Name:      d.ClientName,
		Email:     d.ClientEmail,
		Phone:     d.ClientPhone,
		Address:   d.ClientAddress,
		TaxNumber: d.ClientTaxNumber,
	}
}

func (d DocumentDraft) financials(settings core.BusinessSettings) core.Financials {
	f := core.Financials{
		TaxPercentage: decOr(d.TaxPercentage, settings.DefaultTaxRate),
		DiscountType:  core.NormalizeDiscountType(d.DiscountType),
	}
	if f.DiscountType != core.DiscountNone {
		f.DiscountValue = decOr(d.DiscountValue, decimal.Zero)
	}
	return f
}

func (in LineItemInput) toItem(kind core.DocumentKind, position int) (core.LineItem, error) {
	name := itemName(in.Name)
	if name == "" {
		return core.LineItem{}, invalidf("Every item needs a name.")
	}
	qty := decOr(in.Quantity, decimal.NewFromInt(1))
	if !validQuantity(qty) {
		return core.LineItem{}, invalidf("The quantity of %s must be at least 1, or 0 for a placeholder.", name)
	}
	price := dec(in.UnitPrice)
	if price.IsNegative() {
		return core.LineItem{}, invalidf("The price of %s can't be negative.", name)
	}
	it := core.LineItem{
		DocumentKind: kind,
		Position:     position,
		Name:         name,
		Description:  trimmed(in.Description),
		Quantity:     qty,
		UnitPrice:    core.Round2(price),
		DiscountType: core.NormalizeDiscountType(in.DiscountType),
	}
	if it.DiscountType != core.DiscountNone {
		it.DiscountValue = decOr(in.DiscountValue, decimal.Zero)
	}
	it.TotalPrice = core.LineTotal(it)
	return it, nil
}

// validQuantity allows whole or fractional quantities from 1 up, and exactly 0
// for a placeholder line.
func validQuantity(q decimal.Decimal) bool {
	return q.IsZero() || q.GreaterThanOrEqual(decimal.NewFromInt(1))
}

func buildItems(kind core.DocumentKind, inputs []LineItemInput) ([]core.LineItem, error) {
	items := make([]core.LineItem, 0, len(inputs))
	for i, in := range inputs {
		it, err := in.toItem(kind, i+1)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (e *Engine) createInvoice(ctx context.Context, userID string, args CreateInvoiceArgs) (Result, error) {
	if trimmed(args.ClientName) == "" {
		return Result{}, invalidf("Who should this invoice be addressed to?")
	}
	items, err := buildItems(core.KindInvoice, args.LineItems)
	if err != nil {
		return Result{}, err
	}
	if err := e.ensureCapacity(ctx, userID); err != nil {
		return Result{}, err
	}
	settings, err := e.settings(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	today := dateOnly(e.now())
	inv := &core.Invoice{
		UserID:      userID,
		Status:      core.InvoiceDraft,
		InvoiceDate: today,
		Currency:    strings.ToUpper(firstNonEmpty(args.Currency, settings.Currency, "USD")),
		Notes:       trimmed(args.Notes),
		Financials:  args.financials(settings),
	}
	if args.InvoiceDate != "" {
		if inv.InvoiceDate, err = parseDate(args.InvoiceDate); err != nil {
			return Result{}, err
		}
	}
	switch {
	case args.DueDate != "":
		due, err := parseDate(args.DueDate)
		if err != nil {
			return Result{}, err
		}
		inv.DueDate = &due
	case args.DueInDays != nil && *args.DueInDays >= 0:
		due := inv.InvoiceDate.AddDate(0, 0, *args.DueInDays)
		inv.DueDate = &due
	}
	if err := e.enableConfiguredMethods(ctx, userID, inv); err != nil {
		return Result{}, err
	}

	client, err := e.upsertClient(ctx, userID, args.client())
	if err != nil {
		return Result{}, err
	}
	inv.ClientID = client.ID
	inv.Recompute(items)

	if err := e.insertNumbered(ctx, userID, core.KindInvoice, settings, func(number string) error {
		inv.ID, inv.Number = "", number
		return e.gw.InsertInvoice(ctx, inv)
	}); err != nil {
		return Result{}, err
	}
	if err := e.insertItems(ctx, core.KindInvoice, inv.ID, items); err != nil {
		e.compensateInvoice(ctx, inv)
		return Result{}, err
	}

	msg := fmt.Sprintf("Created invoice %s for %s with %s. Total: %s.",
		inv.Number, client.Name, plural(len(items), "item", "items"), money(inv.Currency, inv.Total))
	if inv.TaxPercentage.IsPositive() {
		msg += fmt.Sprintf(" Includes %s%% %s.", inv.TaxPercentage.String(), strings.ToLower(firstNonEmpty(settings.TaxName, "tax")))
	}
	if len(items) == 0 {
		msg += " What should I add as the first item?"
	}
	return e.invoiceResult(ctx, inv, items, memory.ActionCreatedInvoice, msg)
}

// insertNumbered assigns the next document number and inserts, retrying when a
// concurrent request took the same number.
func (e *Engine) insertNumbered(ctx context.Context, userID string, kind core.DocumentKind, settings core.BusinessSettings, insert func(number string) error) error {
	for attempt := 1; ; attempt++ {
		numbers, err := e.gw.ListDocumentNumbers(ctx, userID)
		if err != nil {
			return fmt.Errorf("list document numbers: %w", err)
		}
		number := core.NextNumber(kind, numbers, settings)
		err = insert(number)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrDuplicateNumber) || attempt == numberAttempts {
			return fmt.Errorf("insert %s %s: %w", kind, number, err)
		}
		e.log.Warn("document number taken, retrying", zap.String("number", number), zap.Int("attempt", attempt))
	}
}

// PreviewNumber returns the number the next document of kind would receive.
func (e *Engine) PreviewNumber(ctx context.Context, userID string, kind core.DocumentKind) (string, error) {
	settings, err := e.settings(ctx, userID)
	if err != nil {
		return "", err
	}
	numbers, err := e.gw.ListDocumentNumbers(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list document numbers: %w", err)
	}
	return core.NextNumber(kind, numbers, settings), nil
}

func (e *Engine) insertItems(ctx context.Context, kind core.DocumentKind, docID string, items []core.LineItem) error {
	for i := range items {
		items[i].DocumentKind = kind
		items[i].DocumentID = docID
		if err := e.gw.InsertLineItem(ctx, &items[i]); err != nil {
			return fmt.Errorf("insert line item %d: %w", i+1, err)
		}
	}
	return nil
}

// compensateInvoice removes a half-created invoice. Failures are only logged.
func (e *Engine) compensateInvoice(ctx context.Context, inv *core.Invoice) {
	if err := e.gw.DeleteLineItems(ctx, core.KindInvoice, inv.ID); err != nil {
		e.log.Error("compensating line item delete failed", zap.String("invoice_id", inv.ID), zap.Error(err))
	}
	if err := e.gw.DeleteInvoice(ctx, inv.UserID, inv.ID); err != nil {
		e.log.Error("compensating invoice delete failed", zap.String("invoice_id", inv.ID), zap.Error(err))
	}
}

// enableConfiguredMethods turns on every method the account has configured.
func (e *Engine) enableConfiguredMethods(ctx context.Context, userID string, inv *core.Invoice) error {
	po, err := e.paymentOptions(ctx, userID)
	if err != nil {
		return err
	}
	inv.StripeActive = po.StripeEnabled && po.StripeAccountID != ""
	inv.PayPalActive = po.PayPalEnabled && po.PayPalEmail != ""
	inv.BankTransferActive = po.BankTransferEnabled && po.BankDetails != ""
	return nil
}

func (e *Engine) getInvoiceDetails(ctx context.Context, userID string, args InvoiceRef) (Result, error) {
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	att, client, err := e.invoiceAttachment(ctx, inv, nil)
	if err != nil {
		return Result{}, err
	}
	var b strings.Builder
	b.WriteString(invoiceSummary(inv, clientName(client)))
	for i, it := range att.LineItems {
		fmt.Fprintf(&b, "\n%d. %s: %s x %s = %s", i+1, it.Name, it.Quantity.String(),
			money(inv.Currency, it.UnitPrice), money(inv.Currency, it.TotalPrice))
	}
	if inv.DueDate != nil {
		fmt.Fprintf(&b, "\nDue %s.", inv.DueDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "\nPayment methods: %s.", describeMethods(inv))
	return Result{
		Success:     true,
		Message:     b.String(),
		Data:        invoiceData(inv, client),
		Attachments: []Attachment{att},
	}, nil
}

func (e *Engine) searchInvoices(ctx context.Context, userID string, args SearchInvoicesArgs) (Result, error) {
	limit := 10
	if args.Limit != nil && *args.Limit > 0 && *args.Limit < limit {
		limit = *args.Limit
	}
	filter := core.InvoiceFilter{UserID: userID}
	switch s := strings.ToLower(trimmed(args.Status)); s {
	case "":
	case "unpaid", "open", "outstanding":
		filter.Statuses = []core.InvoiceStatus{core.InvoiceSent, core.InvoicePartial, core.InvoiceOverdue}
	default:
		st := core.InvoiceStatus(s)
		if !st.Valid() {
			return Result{}, invalidf("I don't know the status %q.", args.Status)
		}
		filter.Statuses = []core.InvoiceStatus{st}
	}

	var found []core.Invoice
	if name := trimmed(args.ClientName); name != "" {
		clients, err := e.findClientsByName(ctx, userID, name)
		if err != nil {
			return Result{}, err
		}
		if len(clients) == 0 {
			return Result{}, notFoundf("I couldn't find a client called %q.", name)
		}
		for _, c := range clients {
			f := filter
			f.ClientID = c.ID
			list, err := e.gw.FindInvoices(ctx, f)
			if err != nil {
				return Result{}, fmt.Errorf("find invoices: %w", err)
			}
			found = append(found, list...)
		}
	} else {
		list, err := e.gw.FindInvoices(ctx, filter)
		if err != nil {
			return Result{}, fmt.Errorf("find invoices: %w", err)
		}
		found = list
	}
	if len(found) == 0 {
		return Result{Success: true, Message: "No invoices match that.", Data: []any{}}, nil
	}

	names := map[string]string{}
	lines := make([]string, 0, limit)
	rows := make([]map[string]any, 0, limit)
	for i := range found {
		if i == limit {
			break
		}
		inv := &found[i]
		name, ok := names[inv.ClientID]
		if !ok {
			c, err := e.clientOf(ctx, userID, inv.ClientID)
			if err != nil {
				return Result{}, err
			}
			name = clientName(c)
			names[inv.ClientID] = name
		}
		lines = append(lines, "- "+invoiceSummary(inv, name))
		rows = append(rows, invoiceData(inv, &core.Client{Name: name}))
	}
	msg := fmt.Sprintf("Found %s:\n%s", plural(len(found), "invoice", "invoices"), strings.Join(lines, "\n"))
	if len(found) > limit {
		msg += fmt.Sprintf("\n…and %d more.", len(found)-limit)
	}
	return Result{Success: true, Message: msg, Data: rows}, nil
}

func (e *Engine) updateInvoiceDetails(ctx context.Context, userID string, args UpdateInvoiceArgs) (Result, error) {
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	var changes []string
	if args.InvoiceDate != "" {
		d, err := parseDate(args.InvoiceDate)
		if err != nil {
			return Result{}, err
		}
		inv.InvoiceDate = d
		changes = append(changes, "invoice date")
	}
	if args.DueDate != "" {
		d, err := parseDate(args.DueDate)
		if err != nil {
			return Result{}, err
		}
		inv.DueDate = &d
		changes = append(changes, "due date")
	}
	if args.Notes != "" {
		inv.Notes = trimmed(args.Notes)
		changes = append(changes, "notes")
	}
	if args.Currency != "" {
		inv.Currency = strings.ToUpper(trimmed(args.Currency))
		changes = append(changes, "currency")
	}
	if args.TaxPercentage != nil {
		if *args.TaxPercentage < 0 {
			return Result{}, invalidf("Tax can't be negative.")
		}
		inv.TaxPercentage = dec(*args.TaxPercentage)
		changes = append(changes, "tax")
	}
	if args.DiscountType != "" || args.DiscountValue != nil {
		kind := inv.DiscountType
		if args.DiscountType != "" {
			kind = core.NormalizeDiscountType(args.DiscountType)
		} else if kind == core.DiscountNone {
			kind = core.DiscountFixed
		}
		inv.DiscountType = kind
		inv.DiscountValue = decOr(args.DiscountValue, inv.DiscountValue)
		if kind == core.DiscountNone {
			inv.DiscountValue = decimal.Zero
		}
		changes = append(changes, "discount")
	}
	if args.Design != "" {
		inv.Design = strings.ToLower(trimmed(args.Design))
		changes = append(changes, "design")
	}
	if args.AccentColor != "" {
		inv.AccentColor = trimmed(args.AccentColor)
		changes = append(changes, "accent colour")
	}
	if len(changes) == 0 {
		return Result{}, invalidf("What would you like to change on %s?", inv.Number)
	}

	items, err := e.saveInvoiceTotals(ctx, inv)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Updated the %s on %s. Total: %s.", strings.Join(changes, ", "), inv.Number, money(inv.Currency, inv.Total))
	return e.invoiceResult(ctx, inv, items, memory.ActionUpdatedInvoice, msg)
}

func (e *Engine) deleteInvoice(ctx context.Context, userID string, args InvoiceRef) (Result, error) {
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	if err := e.gw.DeleteLineItems(ctx, core.KindInvoice, inv.ID); err != nil {
		return Result{}, fmt.Errorf("delete line items of %s: %w", inv.Number, err)
	}
	if err := e.gw.DeleteInvoice(ctx, userID, inv.ID); err != nil {
		return Result{}, fmt.Errorf("delete invoice %s: %w", inv.Number, err)
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Deleted invoice %s.", inv.Number),
		Effect: &Effect{
			Action:        memory.ActionDeletedInvoice,
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			ClientID:      inv.ClientID,
		},
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
