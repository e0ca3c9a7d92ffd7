package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DerivePaymentStatus maps a paid amount onto sent / partial / paid.
func DerivePaymentStatus(paid, total decimal.Decimal) InvoiceStatus {
	switch {
	case !paid.IsPositive():
		return InvoiceSent
	case paid.LessThan(total):
		return InvoicePartial
	default:
		return InvoicePaid
	}
}

// ApplyPayment records paid against inv and derives the status from it.
// Over-payment is clamped to the invoice total.
func ApplyPayment(inv *Invoice, paid decimal.Decimal, when time.Time, notes string) {
	if paid.IsNegative() {
		paid = decimal.Zero
	}
	if paid.GreaterThan(inv.Total) {
		paid = inv.Total
	}
	inv.PaidAmount = Round2(paid)
	inv.Status = DerivePaymentStatus(inv.PaidAmount, inv.Total)
	if inv.PaidAmount.IsPositive() {
		d := dateOnly(when)
		inv.PaymentDate = &d
	} else {
		inv.PaymentDate = nil
	}
	if notes != "" {
		inv.PaymentNotes = notes
	}
}

// ParseInvoiceStatus accepts the stored states plus "unpaid".
func ParseInvoiceStatus(s string) (InvoiceStatus, bool, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "unpaid" {
		return InvoiceSent, true, nil
	}
	st := InvoiceStatus(v)
	if !st.Valid() {
		return "", false, fmt.Errorf("%w: unknown invoice status %q", ErrInvalidInput, s)
	}
	return st, false, nil
}

// SetStatus applies an explicit status override and keeps paid/remaining amounts consistent.
func SetStatus(inv *Invoice, status InvoiceStatus, now time.Time) error {
	switch status {
	case InvoicePaid:
		ApplyPayment(inv, inv.Total, now, "")
		inv.Status = InvoicePaid
		if inv.PaymentDate == nil {
			d := dateOnly(now)
			inv.PaymentDate = &d
		}
	case InvoiceSent, InvoiceDraft:
		inv.PaidAmount = decimal.Zero
		inv.PaymentDate = nil
		inv.Status = status
	case InvoicePartial:
		if !inv.PaidAmount.IsPositive() || !inv.PaidAmount.LessThan(inv.Total) {
			return fmt.Errorf("%w: a partial status needs a paid amount between 0 and %s", ErrInvalidInput, inv.Total.StringFixed(2))
		}
		inv.Status = InvoicePartial
	case InvoiceOverdue, InvoiceCancelled:
		inv.Status = status
	default:
		return fmt.Errorf("%w: unknown invoice status %q", ErrInvalidInput, status)
	}
	return nil
}

// MarkUnpaid resets the payment fields and moves the invoice back to sent.
func MarkUnpaid(inv *Invoice) {
	inv.PaidAmount = decimal.Zero
	inv.PaymentDate = nil
	inv.Status = InvoiceSent
}

// ReconcilePayment keeps payment fields consistent after the total changed.
// The paid amount is clamped to the new total and a payment-derived status is
// re-derived; draft, overdue and cancelled invoices keep their status.
func ReconcilePayment(inv *Invoice) {
	if inv.PaidAmount.GreaterThan(inv.Total) {
		inv.PaidAmount = Round2(inv.Total)
	}
	switch inv.Status {
	case InvoiceSent, InvoicePartial, InvoicePaid:
		if inv.PaidAmount.IsPositive() {
			inv.Status = DerivePaymentStatus(inv.PaidAmount, inv.Total)
		}
	}
}

// IsOverdue reports whether an open invoice's due date is before today.
func IsOverdue(inv *Invoice, today time.Time) bool {
	if inv.DueDate == nil {
		return false
	}
	if inv.Status != InvoiceSent && inv.Status != InvoicePartial {
		return false
	}
	return inv.DueDate.Before(dateOnly(today))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
