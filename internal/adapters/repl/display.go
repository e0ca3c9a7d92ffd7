package repl

import (
	"fmt"
	"io"
	"strings"

	"invoice-agent/internal/app"
	"invoice-agent/internal/core"
	"invoice-agent/internal/tools"
)

func printAttachment(out io.Writer, a tools.Attachment) {
	var (
		title, number, status, currency string
		fin                             core.Financials
	)
	switch {
	case a.Invoice != nil:
		title, number, status, currency = "INVOICE", a.Invoice.Number, string(a.Invoice.Status), a.Invoice.Currency
		fin = a.Invoice.Financials
	case a.Estimate != nil:
		title, number, status, currency = "ESTIMATE", a.Estimate.Number, string(a.Estimate.Status), a.Estimate.Currency
		fin = a.Estimate.Financials
	default:
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %s %s  [%s]\n", title, number, strings.ToUpper(status))
	if a.Client != nil {
		fmt.Fprintf(out, "  Client   : %s", a.Client.Name)
		if a.Client.Email != "" {
			fmt.Fprintf(out, " <%s>", a.Client.Email)
		}
		fmt.Fprintln(out)
		if a.Client.Address != "" {
			fmt.Fprintf(out, "  Address  : %s\n", a.Client.Address)
		}
	}
	if a.Invoice != nil && a.Invoice.DueDate != nil {
		fmt.Fprintf(out, "  Due      : %s\n", a.Invoice.DueDate.Format("2006-01-02"))
	}
	fmt.Fprintf(out, "  Currency : %s\n", currency)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-3s %-28s %8s %10s %10s\n", "#", "ITEM", "QTY", "PRICE", "TOTAL")
	fmt.Fprintln(out, strings.Repeat("-", 62))
	for _, it := range a.LineItems {
		fmt.Fprintf(out, "  %-3d %-28s %8s %10s %10s\n",
			it.Position, truncate(it.Name, 28), it.Quantity.String(), it.UnitPrice.StringFixed(2), it.TotalPrice.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("-", 62))
	fmt.Fprintf(out, "  %-40s %19s\n", "Subtotal", fin.Subtotal.StringFixed(2))
	if !fin.DiscountAmount.IsZero() {
		fmt.Fprintf(out, "  %-40s %19s\n", "Discount", "-"+fin.DiscountAmount.StringFixed(2))
	}
	if !fin.TaxAmount.IsZero() {
		fmt.Fprintf(out, "  %-40s %19s\n", "Tax ("+fin.TaxPercentage.String()+"%)", fin.TaxAmount.StringFixed(2))
	}
	fmt.Fprintf(out, "  %-40s %19s\n", "TOTAL", fin.Total.StringFixed(2))
	if a.Invoice != nil && !a.Invoice.PaidAmount.IsZero() {
		fmt.Fprintf(out, "  %-40s %19s\n", "Paid", a.Invoice.PaidAmount.StringFixed(2))
		fmt.Fprintf(out, "  %-40s %19s\n", "Balance due", a.Invoice.BalanceDue().StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("=", 62))
}

func printClassification(out io.Writer, res *app.ClassifyResult) {
	c := res.Classification
	intents := make([]string, len(c.Intents))
	for i, in := range c.Intents {
		intents[i] = string(in)
	}
	groups := make([]string, len(c.RequiredToolGroups))
	for i, g := range c.RequiredToolGroups {
		groups[i] = string(g)
	}
	fmt.Fprintf(out, "\nINTENTS:    %s\n", strings.Join(intents, ", "))
	fmt.Fprintf(out, "SOURCE:     %s (confidence %.2f)\n", c.Source, c.Confidence)
	fmt.Fprintf(out, "COMPLEXITY: %s -> %s\n", c.Complexity, res.Model)
	fmt.Fprintf(out, "GROUPS:     %s\n", strings.Join(groups, ", "))
	if c.Targets.InvoiceNumber != "" {
		fmt.Fprintf(out, "TARGET:     %s\n", c.Targets.InvoiceNumber)
	}
	if len(c.MissingFields) > 0 {
		fmt.Fprintf(out, "MISSING:    %s\n", strings.Join(c.MissingFields, ", "))
	}
	fmt.Fprintf(out, "MODULES:    %s\n", strings.Join(res.Modules, ", "))
	fmt.Fprintf(out, "TOOLS:      %s\n", strings.Join(res.Tools, ", "))
	fmt.Fprintln(out, "CONTEXT:")
	for _, line := range strings.Split(strings.TrimSpace(res.Context), "\n") {
		fmt.Fprintf(out, "  %s\n", line)
	}
}

func printHistory(out io.Writer, history []app.Message) {
	if len(history) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return
	}
	for _, m := range history {
		who := "You"
		if m.Role == app.RoleAssistant {
			who = "AI"
		}
		fmt.Fprintf(out, "[%s] %s\n", who, m.Content)
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `
Commands:
  /invoice              Step-by-step invoice entry, then sent to the agent
  /classify <message>   Show how a message would be classified and routed
  /next [kind]          Preview the next invoice or estimate number
  /currency <code>      Override the currency for this session
  /history              Show this conversation
  /new                  Start a new conversation
  /sweep                Mark past-due invoices overdue now
  /help                 Show this help
  /exit                 Quit

Anything else is sent to the agent, e.g.
  Invoice Acme for 3 hours of design at 80
  add a line for hosting, 25
  mark it as paid`)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
