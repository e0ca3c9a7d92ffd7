package tools

import (
	"context"
	"fmt"
	"strings"

	"invoice-agent/internal/core"
	"invoice-agent/internal/memory"
)

func (e *Engine) markInvoicePaid(ctx context.Context, userID string, args MarkPaidArgs) (Result, error) {
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	when := e.now()
	if args.PaymentDate != "" {
		if when, err = parseDate(args.PaymentDate); err != nil {
			return Result{}, err
		}
	}
	if inv.Status == core.InvoiceCancelled {
		return Result{}, invalidf("%s is cancelled. Change its status first if it was paid after all.", inv.Number)
	}

	if args.Amount == nil {
		if err := core.SetStatus(inv, core.InvoicePaid, when); err != nil {
			return Result{}, err
		}
		if n := trimmed(args.Notes); n != "" {
			inv.PaymentNotes = n
		}
	} else {
		if *args.Amount < 0 {
			return Result{}, invalidf("A payment amount can't be negative.")
		}
		core.ApplyPayment(inv, dec(*args.Amount), when, trimmed(args.Notes))
	}
	if err := e.gw.UpdateInvoice(ctx, inv); err != nil {
		return Result{}, fmt.Errorf("update invoice %s: %w", inv.Number, err)
	}

	var msg string
	switch inv.Status {
	case core.InvoicePaid:
		msg = fmt.Sprintf("Marked %s as paid (%s).", inv.Number, money(inv.Currency, inv.PaidAmount))
	case core.InvoicePartial:
		msg = fmt.Sprintf("Recorded %s paid on %s. %s is still due.", money(inv.Currency, inv.PaidAmount), inv.Number, money(inv.Currency, inv.BalanceDue()))
	default:
		msg = fmt.Sprintf("No payment is recorded on %s now.", inv.Number)
	}
	return e.invoiceResult(ctx, inv, nil, memory.ActionRecordedPayment, msg)
}

func (e *Engine) markInvoiceUnpaid(ctx context.Context, userID string, args InvoiceRef) (Result, error) {
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	core.MarkUnpaid(inv)
	if err := e.gw.UpdateInvoice(ctx, inv); err != nil {
		return Result{}, fmt.Errorf("update invoice %s: %w", inv.Number, err)
	}
	msg := fmt.Sprintf("Marked %s as unpaid. %s is due.", inv.Number, money(inv.Currency, inv.BalanceDue()))
	return e.invoiceResult(ctx, inv, nil, memory.ActionUpdatedStatus, msg)
}

func (e *Engine) setInvoiceStatus(ctx context.Context, userID string, args SetStatusArgs) (Result, error) {
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	status, unpaid, err := core.ParseInvoiceStatus(args.Status)
	if err != nil {
		return Result{}, err
	}
	if unpaid {
		core.MarkUnpaid(inv)
	} else if err := core.SetStatus(inv, status, e.now()); err != nil {
		return Result{}, err
	}
	if err := e.gw.UpdateInvoice(ctx, inv); err != nil {
		return Result{}, fmt.Errorf("update invoice %s: %w", inv.Number, err)
	}
	msg := fmt.Sprintf("%s is now %s.", inv.Number, inv.Status)
	return e.invoiceResult(ctx, inv, nil, memory.ActionUpdatedStatus, msg)
}

// methodGate describes one payment method and whether the account allows it.
type methodGate struct {
	label      string
	requested  *bool
	active     *bool
	configured bool
	question   string
}

func gates(inv *core.Invoice, po *core.PaymentOptions, args PaymentMethodsArgs) []methodGate {
	return []methodGate{
		{
			label: "Card payments (Stripe)", requested: args.Stripe, active: &inv.StripeActive,
			configured: po.StripeEnabled && po.StripeAccountID != "",
			question:   "Connect a Stripe account in payment settings first to accept card payments.",
		},
		{
			label: "PayPal", requested: args.PayPal, active: &inv.PayPalActive,
			configured: po.PayPalEnabled && po.PayPalEmail != "",
			question:   "What PayPal email should customers pay to?",
		},
		{
			label: "Bank transfer", requested: args.BankTransfer, active: &inv.BankTransferActive,
			configured: po.BankTransferEnabled && po.BankDetails != "",
			question:   "What bank details should appear on your invoices?",
		},
	}
}

// updatePaymentMethods toggles methods on one invoice. A method can only be
// enabled when it is configured on the account; others are skipped and reported.
func (e *Engine) updatePaymentMethods(ctx context.Context, userID string, args PaymentMethodsArgs) (Result, error) {
	if args.Stripe == nil && args.PayPal == nil && args.BankTransfer == nil {
		return Result{}, invalidf("Which payment methods should I turn on or off?")
	}
	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	po, err := e.paymentOptions(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	var enabled, disabled, skipped []string
	question := ""
	for _, g := range gates(inv, po, args) {
		if g.requested == nil {
			continue
		}
		switch {
		case !*g.requested:
			if *g.active {
				*g.active = false
				disabled = append(disabled, g.label)
			}
		case g.configured:
			if !*g.active {
				*g.active = true
				enabled = append(enabled, g.label)
			}
		default:
			skipped = append(skipped, g.label)
			if question == "" {
				question = g.question
			}
		}
	}

	var parts []string
	if len(enabled) > 0 {
		parts = append(parts, fmt.Sprintf("Enabled %s on %s.", strings.Join(enabled, " and "), inv.Number))
	}
	if len(disabled) > 0 {
		parts = append(parts, fmt.Sprintf("Disabled %s on %s.", strings.Join(disabled, " and "), inv.Number))
	}
	if len(skipped) > 0 {
		parts = append(parts, fmt.Sprintf("Skipped %s because it isn't set up on your account yet. %s",
			strings.Join(skipped, " and "), question))
	}

	if len(enabled) == 0 && len(disabled) == 0 {
		if len(parts) == 0 {
			parts = append(parts, fmt.Sprintf("Nothing changed. %s accepts: %s.", inv.Number, describeMethods(inv)))
		}
		return Result{Success: true, Message: strings.Join(parts, " "), Data: invoiceData(inv, nil)}, nil
	}
	if err := e.gw.UpdateInvoice(ctx, inv); err != nil {
		return Result{}, fmt.Errorf("update invoice %s: %w", inv.Number, err)
	}
	return e.invoiceResult(ctx, inv, nil, memory.ActionUpdatedPaymentMethods, strings.Join(parts, " "))
}

// configurePaymentOptions saves account-level payment details. With an invoice
// reference the invoice's methods are aligned with the account afterwards.
func (e *Engine) configurePaymentOptions(ctx context.Context, userID string, args ConfigurePaymentArgs) (Result, error) {
	po, err := e.paymentOptions(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	var notes []string
	if email := trimmed(args.PayPalEmail); email != "" {
		if !validEmail(email) {
			return Result{}, invalidf("%q doesn't look like a PayPal email address.", email)
		}
		po.PayPalEmail = strings.ToLower(email)
		po.PayPalEnabled = true
		notes = append(notes, "PayPal "+po.PayPalEmail)
	}
	if details := trimmed(args.BankDetails); details != "" {
		po.BankDetails = details
		po.BankTransferEnabled = true
		notes = append(notes, "bank transfer details")
	}
	if args.EnablePayPal != nil {
		if *args.EnablePayPal && po.PayPalEmail == "" {
			return Result{}, invalidf("What PayPal email should customers pay to?")
		}
		po.PayPalEnabled = *args.EnablePayPal
	}
	if args.EnableBankTransfer != nil {
		if *args.EnableBankTransfer && po.BankDetails == "" {
			return Result{}, invalidf("What bank details should appear on your invoices?")
		}
		po.BankTransferEnabled = *args.EnableBankTransfer
	}
	if args.EnableStripe != nil {
		if *args.EnableStripe && po.StripeAccountID == "" {
			return Result{}, invalidf("Card payments need a connected Stripe account. Connect one in payment settings first.")
		}
		po.StripeEnabled = *args.EnableStripe
	}
	if len(notes) == 0 && args.EnablePayPal == nil && args.EnableBankTransfer == nil && args.EnableStripe == nil {
		return Result{}, invalidf("Which payment details would you like to set up?")
	}
	if err := e.gw.UpsertPaymentOptions(ctx, po); err != nil {
		return Result{}, fmt.Errorf("save payment options: %w", err)
	}

	msg := "Saved your payment settings."
	if len(notes) > 0 {
		msg = fmt.Sprintf("Saved %s.", strings.Join(notes, " and "))
	}
	if args.InvoiceIdentifier == "" {
		return Result{
			Success: true,
			Message: msg + " Account methods: " + describeOptions(po) + ".",
			Data:    po,
			Effect:  &Effect{Action: memory.ActionConfiguredPaymentOptions},
		}, nil
	}

	inv, err := e.resolveInvoice(ctx, userID, args.InvoiceIdentifier)
	if err != nil {
		return Result{}, err
	}
	inv.StripeActive = po.StripeEnabled && po.StripeAccountID != ""
	inv.PayPalActive = po.PayPalEnabled && po.PayPalEmail != ""
	inv.BankTransferActive = po.BankTransferEnabled && po.BankDetails != ""
	if err := e.gw.UpdateInvoice(ctx, inv); err != nil {
		return Result{}, fmt.Errorf("update invoice %s: %w", inv.Number, err)
	}
	msg += fmt.Sprintf(" %s now accepts: %s.", inv.Number, describeMethods(inv))
	return e.invoiceResult(ctx, inv, nil, memory.ActionConfiguredPaymentOptions, msg)
}

func (e *Engine) getPaymentOptions(ctx context.Context, userID string, _ NoArgs) (Result, error) {
	po, err := e.paymentOptions(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: "Payment methods on your account: " + describeOptions(po) + ".",
		Data:    po,
	}, nil
}

func describeOptions(po *core.PaymentOptions) string {
	var on []string
	if po.StripeEnabled && po.StripeAccountID != "" {
		on = append(on, "card (Stripe)")
	}
	if po.PayPalEnabled && po.PayPalEmail != "" {
		on = append(on, "PayPal to "+po.PayPalEmail)
	}
	if po.BankTransferEnabled && po.BankDetails != "" {
		on = append(on, "bank transfer")
	}
	if len(on) == 0 {
		return "none configured yet"
	}
	return strings.Join(on, ", ")
}
