package tools

import (
	"context"
	"strings"
	"sync"

	"invoice-agent/internal/memory"
)

type activeKey struct{}

// activeRef is the invoice a turn's pronouns point at. Operations in the same
// turn move it, so "create ... then add a line to it" lands on the new invoice.
type activeRef struct {
	mu     sync.Mutex
	number string
}

// WithActiveInvoice binds "it" and "this invoice" to number for the operations
// executed with the returned context. An empty number leaves resolution to
// conversation memory and the latest invoice.
func WithActiveInvoice(ctx context.Context, number string) context.Context {
	return context.WithValue(ctx, activeKey{}, &activeRef{number: strings.TrimSpace(number)})
}

// ActiveInvoice returns the number bound by WithActiveInvoice as moved by the
// operations executed so far.
func ActiveInvoice(ctx context.Context) string {
	ref, ok := ctx.Value(activeKey{}).(*activeRef)
	if !ok {
		return ""
	}
	ref.mu.Lock()
	defer ref.mu.Unlock()
	return ref.number
}

// track moves the turn's active invoice to whatever a successful operation touched.
func track(ctx context.Context, res Result) {
	ref, ok := ctx.Value(activeKey{}).(*activeRef)
	if !ok || !res.Success {
		return
	}
	number, set := "", false
	switch {
	case res.Effect != nil && res.Effect.Action == memory.ActionDeletedInvoice:
		set = true
	case res.Effect != nil && res.Effect.InvoiceNumber != "":
		number, set = res.Effect.InvoiceNumber, true
	default:
		for _, a := range res.Attachments {
			if a.Invoice != nil {
				number, set = a.Invoice.Number, true
				break
			}
		}
	}
	if !set {
		return
	}
	ref.mu.Lock()
	ref.number = number
	ref.mu.Unlock()
}
