package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

type wizardLine struct {
	name  string
	qty   decimal.Decimal
	price decimal.Decimal
}

// invoiceWizard collects a client and line items interactively and renders them
// as one chat message. ok is false when the user cancels or enters nothing.
func invoiceWizard(reader *bufio.Reader, out io.Writer) (message string, ok bool) {
	fmt.Fprint(out, "Client name: ")
	client, _ := reader.ReadString('\n')
	client = strings.TrimSpace(client)
	if client == "" || strings.EqualFold(client, "cancel") {
		fmt.Fprintln(out, "Invoice entry cancelled.")
		return "", false
	}

	fmt.Fprintln(out, "Enter line items. Type 'done' when finished, 'cancel' to abort.")
	fmt.Fprintln(out, "Format per line: <description> ; <unit price> [; <quantity>]")
	fmt.Fprintln(out, "  Example: Logo design ; 450")
	fmt.Fprintln(out, "  Example: Consulting hours ; 80 ; 6")

	var lines []wizardLine
	for n := 1; ; {
		fmt.Fprintf(out, "  Line %d: ", n)
		raw, err := reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		switch {
		case strings.EqualFold(raw, "cancel"):
			fmt.Fprintln(out, "Invoice entry cancelled.")
			return "", false
		case strings.EqualFold(raw, "done"):
			return composeInvoice(client, lines, out)
		case raw != "":
			line, perr := parseWizardLine(raw)
			if perr != nil {
				fmt.Fprintf(out, "  %v\n", perr)
			} else {
				lines = append(lines, line)
				n++
			}
		}
		if err != nil {
			return composeInvoice(client, lines, out)
		}
	}
}

func parseWizardLine(raw string) (wizardLine, error) {
	parts := strings.Split(raw, ";")
	if len(parts) < 2 || len(parts) > 3 {
		return wizardLine{}, fmt.Errorf("expected '<description> ; <unit price> [; <quantity>]'")
	}
	line := wizardLine{name: strings.TrimSpace(parts[0]), qty: decimal.NewFromInt(1)}
	if line.name == "" {
		return wizardLine{}, fmt.Errorf("description is required")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil || price.IsNegative() {
		return wizardLine{}, fmt.Errorf("invalid unit price: %s", strings.TrimSpace(parts[1]))
	}
	line.price = price
	if len(parts) == 3 {
		qty, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil || !qty.IsPositive() {
			return wizardLine{}, fmt.Errorf("invalid quantity: %s", strings.TrimSpace(parts[2]))
		}
		line.qty = qty
	}
	return line, nil
}

func composeInvoice(client string, lines []wizardLine, out io.Writer) (string, bool) {
	if len(lines) == 0 {
		fmt.Fprintln(out, "No line items entered. Invoice entry cancelled.")
		return "", false
	}
	items := make([]string, len(lines))
	for i, l := range lines {
		if l.qty.Equal(decimal.NewFromInt(1)) {
			items[i] = fmt.Sprintf("%s for %s", l.name, l.price.StringFixed(2))
		} else {
			items[i] = fmt.Sprintf("%s x %s at %s each", l.qty.String(), l.name, l.price.StringFixed(2))
		}
	}
	return fmt.Sprintf("Create an invoice for %s with these items: %s.", client, strings.Join(items, "; ")), true
}
