package intent

import (
	"fmt"
	"strings"

	"invoice-agent/internal/core"
	"invoice-agent/internal/memory"
)

// Usage is the document counter compared against the free-tier cap.
// Limit is 0 for plans without a cap.
type Usage struct {
	Documents int `json:"documents"`
	Limit     int `json:"limit"`
}

// Remaining returns how many documents can still be created, or -1 when unlimited.
func (u Usage) Remaining() int {
	if u.Limit <= 0 {
		return -1
	}
	if r := u.Limit - u.Documents; r > 0 {
		return r
	}
	return 0
}

// PaymentMethods is the account-level payment configuration as seen by the classifier.
type PaymentMethods struct {
	Stripe       bool   `json:"stripe"`
	PayPal       bool   `json:"paypal"`
	PayPalEmail  string `json:"paypalEmail,omitempty"`
	BankTransfer bool   `json:"bankTransfer"`
	BankDetails  string `json:"bankDetails,omitempty"`
}

// ContextPack is the per-request snapshot of account and conversation state.
// It is rebuilt on every request and never persisted.
type ContextPack struct {
	UserID   string
	Plan     core.Plan
	Locale   string
	Timezone string
	Currency string

	// ActiveInvoice is the number pronouns bind to: the latest number mentioned in
	// history, else the latest number from memory, else the newest persisted invoice.
	ActiveInvoice    string
	ActiveInvoiceID  string
	LastShownInvoice string
	ActiveClientName string

	PaymentMethods PaymentMethods
	Usage          Usage
	Summary        string

	RecentInvoiceNumbers []string
	RecentEmails         []string
	RecentIntents        []Intent

	LastAction *memory.Entry
}

func (p *ContextPack) HasActiveInvoice() bool {
	return p != nil && p.ActiveInvoice != ""
}

// Knows reports whether number was seen in this conversation or is the active invoice.
func (p *ContextPack) Knows(number string) bool {
	if p == nil || number == "" {
		return false
	}
	if strings.EqualFold(number, p.ActiveInvoice) || strings.EqualFold(number, p.LastShownInvoice) {
		return true
	}
	for _, n := range p.RecentInvoiceNumbers {
		if strings.EqualFold(n, number) {
			return true
		}
	}
	return false
}

// Render formats the pack as the compact text block given to the classifier.
func (p *ContextPack) Render() string {
	if p == nil {
		return "No context available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\n", p.Plan)
	if p.Usage.Limit > 0 {
		fmt.Fprintf(&b, "Usage: %d of %d documents\n", p.Usage.Documents, p.Usage.Limit)
	} else {
		fmt.Fprintf(&b, "Usage: %d documents (unlimited)\n", p.Usage.Documents)
	}
	fmt.Fprintf(&b, "Currency: %s, locale: %s\n", p.Currency, p.Locale)
	if p.ActiveInvoice != "" {
		fmt.Fprintf(&b, "Active invoice: %s\n", p.ActiveInvoice)
	} else {
		b.WriteString("Active invoice: none\n")
	}
	if p.LastShownInvoice != "" && p.LastShownInvoice != p.ActiveInvoice {
		fmt.Fprintf(&b, "Last shown invoice: %s\n", p.LastShownInvoice)
	}
	if p.ActiveClientName != "" {
		fmt.Fprintf(&b, "Active client: %s\n", p.ActiveClientName)
	}
	fmt.Fprintf(&b, "Payment methods: %s\n", p.PaymentMethods.summary())
	if len(p.RecentInvoiceNumbers) > 0 {
		fmt.Fprintf(&b, "Recently mentioned documents: %s\n", strings.Join(p.RecentInvoiceNumbers, ", "))
	}
	if len(p.RecentEmails) > 0 {
		fmt.Fprintf(&b, "Recently mentioned emails: %s\n", strings.Join(p.RecentEmails, ", "))
	}
	if p.LastAction != nil {
		fmt.Fprintf(&b, "Last action: %s", p.LastAction.Action)
		if p.LastAction.InvoiceNumber != "" {
			fmt.Fprintf(&b, " on %s", p.LastAction.InvoiceNumber)
		}
		if p.LastAction.ClientName != "" {
			fmt.Fprintf(&b, " for %s", p.LastAction.ClientName)
		}
		b.WriteString("\n")
	}
	if p.Summary != "" {
		fmt.Fprintf(&b, "Conversation: %s\n", p.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m PaymentMethods) summary() string {
	var on []string
	if m.Stripe {
		on = append(on, "stripe")
	}
	if m.PayPal {
		on = append(on, "paypal")
	}
	if m.BankTransfer {
		on = append(on, "bank transfer")
	}
	if len(on) == 0 {
		return "none configured"
	}
	return strings.Join(on, ", ")
}
