package tools

import (
	"context"
	"fmt"
	"strings"

	"invoice-agent/internal/core"
	"invoice-agent/internal/memory"

	"github.com/shopspring/decimal"
)

// pickItem selects one item by 1-based position or, failing that, by name.
func pickItem(items []core.LineItem, sel SelectLineItemArgs) (int, error) {
	if len(items) == 0 {
		return -1, invalidf("That invoice has no items yet.")
	}
	if sel.Position != nil {
		p := *sel.Position
		if p < 1 || p > len(items) {
			return -1, invalidf("There is no item %d. The invoice has %s.", p, plural(len(items), "item", "items"))
		}
		return p - 1, nil
	}
	name := strings.ToLower(trimmed(sel.ItemName))
	if name == "" {
		if len(items) == 1 {
			return 0, nil
		}
		return -1, invalidf("Which item do you mean? %s", listItems(items))
	}
	for i := range items {
		if strings.ToLower(items[i].Name) == name {
			return i, nil
		}
	}
	match := -1
	for i := range items {
		if strings.Contains(strings.ToLower(items[i].Name), name) {
			if match >= 0 {
				return -1, invalidf("More than one item matches %q. %s", sel.ItemName, listItems(items))
			}
			match = i
		}
	}
	if match < 0 {
		return -1, notFoundf("I couldn't find an item called %q. %s", sel.ItemName, listItems(items))
	}
	return match, nil
}

func listItems(items []core.LineItem) string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = fmt.Sprintf("%d. %s", i+1, it.Name)
	}
	return "Items: " + strings.Join(names, ", ") + "."
}

func nextPosition(items []core.LineItem) int {
	hi := 0
	for _, it := range items {
		if it.Position > hi {
			hi = it.Position
		}
	}
	return hi + 1
}

func (e *Engine) addLineItem(ctx context.Context, userID string, args AddLineItemArgs) (Result, error) {
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	existing, err := e.gw.ListLineItems(ctx, core.KindInvoice, inv.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list line items: %w", err)
	}
	it, err := args.LineItemInput.toItem(core.KindInvoice, nextPosition(existing))
	if err != nil {
		return Result{}, err
	}
	it.DocumentID = inv.ID
	if err := e.gw.InsertLineItem(ctx, &it); err != nil {
		return Result{}, fmt.Errorf("insert line item: %w", err)
	}
	items, err := e.saveInvoiceTotals(ctx, inv)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Added %s (%s) to %s. New total: %s.",
		it.Name, money(inv.Currency, it.TotalPrice), inv.Number, money(inv.Currency, inv.Total))
	return e.invoiceResult(ctx, inv, items, memory.ActionAddedLineItem, msg)
}

func (e *Engine) updateLineItem(ctx context.Context, userID string, args UpdateLineItemArgs) (Result, error) {
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	items, err := e.gw.ListLineItems(ctx, core.KindInvoice, inv.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list line items: %w", err)
	}
	idx, err := pickItem(items, args.SelectLineItemArgs)
	if err != nil {
		return Result{}, err
	}
	it := items[idx]
	changed := false
	if n := itemName(args.NewName); n != "" {
		it.Name, changed = n, true
	}
	if args.Description != nil {
		it.Description, changed = trimmed(*args.Description), true
	}
	if args.Quantity != nil {
		qty := dec(*args.Quantity)
		if !validQuantity(qty) {
			return Result{}, invalidf("The quantity must be at least 1, or 0 for a placeholder.")
		}
		it.Quantity, changed = qty, true
	}
	if args.UnitPrice != nil {
		if *args.UnitPrice < 0 {
			return Result{}, invalidf("The price can't be negative.")
		}
		it.UnitPrice, changed = core.Round2(dec(*args.UnitPrice)), true
	}
	if args.DiscountType != "" {
		it.DiscountType, changed = core.NormalizeDiscountType(args.DiscountType), true
		if it.DiscountType == core.DiscountNone {
			it.DiscountValue = decimal.Zero
		}
	}
	if args.DiscountValue != nil {
		if it.DiscountType == core.DiscountNone {
			it.DiscountType = core.DiscountFixed
		}
		it.DiscountValue, changed = dec(*args.DiscountValue), true
	}
	if !changed {
		return Result{}, invalidf("What should change on %s?", it.Name)
	}
	it.TotalPrice = core.LineTotal(it)
	if err := e.gw.UpdateLineItem(ctx, &it); err != nil {
		return Result{}, fmt.Errorf("update line item %s: %w", it.ID, err)
	}
	if items, err = e.saveInvoiceTotals(ctx, inv); err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Updated %s on %s: %s x %s = %s. New total: %s.", it.Name, inv.Number,
		it.Quantity.String(), money(inv.Currency, it.UnitPrice), money(inv.Currency, it.TotalPrice), money(inv.Currency, inv.Total))
	return e.invoiceResult(ctx, inv, items, memory.ActionUpdatedLineItem, msg)
}

func (e *Engine) removeLineItem(ctx context.Context, userID string, args SelectLineItemArgs) (Result, error) {
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	items, err := e.gw.ListLineItems(ctx, core.KindInvoice, inv.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list line items: %w", err)
	}
	idx, err := pickItem(items, args)
	if err != nil {
		return Result{}, err
	}
	removed := items[idx]
	if err := e.gw.DeleteLineItem(ctx, removed.ID); err != nil {
		return Result{}, fmt.Errorf("delete line item %s: %w", removed.ID, err)
	}
	if items, err = e.saveInvoiceTotals(ctx, inv); err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("Removed %s from %s. New total: %s.", removed.Name, inv.Number, money(inv.Currency, inv.Total))
	return e.invoiceResult(ctx, inv, items, memory.ActionRemovedLineItem, msg)
}

// replaceLineItems deletes every item and inserts the new list, so repeating
// the same call leaves the same invoice.
func (e *Engine) replaceLineItems(ctx context.Context, userID string, args ReplaceLineItemsArgs) (Result, error) {
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	fresh, err := buildItems(core.KindInvoice, args.LineItems)
	if err != nil {
		return Result{}, err
	}
	if err := e.gw.DeleteLineItems(ctx, core.KindInvoice, inv.ID); err != nil {
		return Result{}, fmt.Errorf("delete line items of %s: %w", inv.Number, err)
	}
	if err := e.insertItems(ctx, core.KindInvoice, inv.ID, fresh); err != nil {
		return Result{}, err
	}
	items, err := e.saveInvoiceTotals(ctx, inv)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("%s now has %s. New total: %s.", inv.Number, plural(len(items), "item", "items"), money(inv.Currency, inv.Total))
	return e.invoiceResult(ctx, inv, items, memory.ActionReplacedLineItems, msg)
}
