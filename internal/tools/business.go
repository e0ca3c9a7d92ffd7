package tools

import (
	"context"
	"fmt"
	"strings"

	"invoice-agent/internal/core"
	"invoice-agent/internal/memory"
)

func (e *Engine) updateBusinessSettings(ctx context.Context, userID string, args BusinessArgs) (Result, error) {
	bs, err := e.settings(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	var changes []string
	set := func(label string, dst *string, v string) {
		if v = trimmed(v); v != "" && v != *dst {
			*dst = v
			changes = append(changes, label)
		}
	}
	set("business name", &bs.BusinessName, args.BusinessName)
	if args.Email != "" && !validEmail(args.Email) {
		return Result{}, invalidf("%q doesn't look like an email address.", args.Email)
	}
	set("email", &bs.Email, args.Email)
	set("phone", &bs.Phone, args.Phone)
	set("address", &bs.Address, args.Address)
	set("currency", &bs.Currency, strings.ToUpper(args.Currency))
	set("tax name", &bs.TaxName, args.TaxName)
	set("invoice prefix", &bs.InvoicePrefix, args.InvoicePrefix)
	set("estimate prefix", &bs.EstimatePrefix, args.EstimatePrefix)
	if args.DefaultTaxRate != nil {
		if *args.DefaultTaxRate < 0 || *args.DefaultTaxRate > 100 {
			return Result{}, invalidf("The default tax rate must be between 0 and 100.")
		}
		bs.DefaultTaxRate = dec(*args.DefaultTaxRate)
		changes = append(changes, "default tax rate")
	}
	if args.NumberPadding != nil {
		if *args.NumberPadding < 1 || *args.NumberPadding > 8 {
			return Result{}, invalidf("Number padding must be between 1 and 8 digits.")
		}
		bs.NumberPadding = *args.NumberPadding
		changes = append(changes, "number padding")
	}
	if len(changes) == 0 {
		return Result{}, invalidf("Which business details would you like to change?")
	}
	bs.UserID = userID
	if err := e.gw.UpsertBusinessSettings(ctx, &bs); err != nil {
		return Result{}, fmt.Errorf("save business settings: %w", err)
	}

	msg := fmt.Sprintf("Updated your %s.", strings.Join(changes, ", "))
	if args.InvoicePrefix != "" || args.NumberPadding != nil {
		numbers, err := e.gw.ListDocumentNumbers(ctx, userID)
		if err != nil {
			return Result{}, fmt.Errorf("list document numbers: %w", err)
		}
		msg += fmt.Sprintf(" Your next invoice will be %s.", core.NextNumber(core.KindInvoice, numbers, bs))
	}
	return Result{
		Success: true,
		Message: msg,
		Data:    bs,
		Effect:  &Effect{Action: memory.ActionUpdatedBusinessSettings},
	}, nil
}

func (e *Engine) checkUsage(ctx context.Context, userID string, _ NoArgs) (Result, error) {
	plan, err := e.plan(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	counts, err := e.gw.CountDocuments(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("count documents: %w", err)
	}
	data := map[string]any{
		"plan":      plan,
		"invoices":  counts.Invoices,
		"estimates": counts.Estimates,
		"used":      counts.Total(),
	}
	if plan != core.PlanFree || e.freeTierLimit <= 0 {
		data["remaining"] = nil
		return Result{
			Success: true,
			Message: fmt.Sprintf("You're on the %s plan with unlimited documents. So far: %s and %s.", plan,
				plural(counts.Invoices, "invoice", "invoices"), plural(counts.Estimates, "estimate", "estimates")),
			Data: data,
		}, nil
	}
	remaining := e.freeTierLimit - counts.Total()
	if remaining < 0 {
		remaining = 0
	}
	data["limit"] = e.freeTierLimit
	data["remaining"] = remaining
	msg := fmt.Sprintf("You're on the free plan and have used %d of %d documents. %s left.",
		counts.Total(), e.freeTierLimit, plural(remaining, "document", "documents"))
	if remaining == 0 {
		msg += " Upgrade to Pro to keep creating invoices and estimates."
	}
	return Result{Success: true, Message: msg, Data: data}, nil
}
