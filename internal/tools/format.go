package tools

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"invoice-agent/internal/core"

	"github.com/shopspring/decimal"
)

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

func validEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

func money(currency string, d decimal.Decimal) string {
	amount := d.StringFixed(2)
	switch strings.ToUpper(currency) {
	case "", "USD":
		return "$" + amount
	case "EUR":
		return "€" + amount
	case "GBP":
		return "£" + amount
	}
	return strings.ToUpper(currency) + " " + amount
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func decOr(f *float64, fallback decimal.Decimal) decimal.Decimal {
	if f == nil {
		return fallback
	}
	return decimal.NewFromFloat(*f)
}

var dateLayouts = []string{time.DateOnly, time.RFC3339, "2006/01/02", "Jan 2 2006", "January 2 2006", "2 Jan 2006", "2 January 2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), nil
		}
	}
	return time.Time{}, invalidf("I couldn't read the date %q. Please use a format like 2026-04-30.", s)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// itemName trims and capitalizes the first letter of a line item name.
func itemName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func describeMethods(inv *core.Invoice) string {
	var on []string
	if inv.StripeActive {
		on = append(on, "card (Stripe)")
	}
	if inv.PayPalActive {
		on = append(on, "PayPal")
	}
	if inv.BankTransferActive {
		on = append(on, "bank transfer")
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, ", ")
}

func invoiceSummary(inv *core.Invoice, clientName string) string {
	s := inv.Number
	if clientName != "" {
		s += " for " + clientName
	}
	s += fmt.Sprintf(": %s, %s", money(inv.Currency, inv.Total), inv.Status)
	if inv.Status == core.InvoicePartial {
		s += fmt.Sprintf(" (%s due)", money(inv.Currency, inv.BalanceDue()))
	}
	return s
}

func trimmed(s string) string { return strings.TrimSpace(s) }
