package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"invoice-agent/internal/ai"
	"invoice-agent/internal/core"
	"invoice-agent/internal/events"
	"invoice-agent/internal/intent"
	"invoice-agent/internal/memory"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultFreeTierLimit is the number of documents a free plan may create.
const DefaultFreeTierLimit = 3

type Config struct {
	// FreeTierLimit caps invoices plus estimates on the free plan. Zero disables the cap.
	FreeTierLimit int
	Now           func() time.Time
}

// operation is one entry of the dispatch table.
type operation struct {
	spec     ai.ToolSpec
	mutating bool
	run      func(ctx context.Context, userID string, raw []byte) (Result, error)
}

// Engine executes operations against the persistence gateway.
type Engine struct {
	gw            core.Gateway
	mem           memory.Store
	pub           events.Publisher
	log           *zap.Logger
	now           func() time.Time
	freeTierLimit int

	ops   map[Name]operation
	specs []ai.ToolSpec
}

func NewEngine(gw core.Gateway, mem memory.Store, pub events.Publisher, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	e := &Engine{
		gw:            gw,
		mem:           mem,
		pub:           pub,
		log:           log.Named("tools"),
		now:           cfg.Now,
		freeTierLimit: cfg.FreeTierLimit,
		ops:           make(map[Name]operation),
	}
	for _, o := range e.table() {
		name := Name(o.spec.Name)
		if _, dup := e.ops[name]; dup {
			panic(fmt.Sprintf("tools: duplicate operation %s", name))
		}
		e.ops[name] = o
		e.specs = append(e.specs, o.spec)
	}
	return e
}

func (e *Engine) table() []operation {
	invoices, items, clients := intent.GroupInvoiceCore, intent.GroupLineItems, intent.GroupClients
	payments, setup := intent.GroupPayments, intent.GroupPaymentSetup
	return []operation{
		op(CreateInvoice, invoices, true, "Create a new invoice for a client with its line items.", e.createInvoice),
		op(GetInvoiceDetails, invoices, false, "Show an invoice with its items, client and payment state.", e.getInvoiceDetails),
		op(SearchInvoices, invoices, false, "List invoices filtered by client or status.", e.searchInvoices),
		op(UpdateInvoiceDetails, invoices, true, "Change dates, notes, currency, tax, discount, design or accent colour of an invoice.", e.updateInvoiceDetails),
		op(DeleteInvoice, invoices, true, "Delete an invoice and its items. Only when the user explicitly asks.", e.deleteInvoice),

		op(AddLineItem, items, true, "Add one line item to an invoice.", e.addLineItem),
		op(UpdateLineItem, items, true, "Change one line item selected by position or name.", e.updateLineItem),
		op(RemoveLineItem, items, true, "Remove one line item selected by position or name.", e.removeLineItem),
		op(ReplaceLineItems, items, true, "Replace every line item of an invoice with a new list.", e.replaceLineItems),

		op(UpdateClientInfo, clients, true, "Add or change the name, email, phone, address or tax number of a client.", e.updateClientInfo),
		op(SearchClients, clients, false, "Find clients by name or email.", e.searchClients),

		op(MarkInvoicePaid, payments, true, "Record a payment. Without an amount the invoice is paid in full.", e.markInvoicePaid),
		op(MarkInvoiceUnpaid, payments, true, "Reset payments and mark an invoice unpaid.", e.markInvoiceUnpaid),
		op(SetInvoiceStatus, payments, true, "Set an invoice status explicitly.", e.setInvoiceStatus),

		op(UpdatePaymentMethods, setup, true, "Turn Stripe, PayPal or bank transfer on or off for an invoice.", e.updatePaymentMethods),
		op(ConfigurePaymentOptions, setup, true, "Save account payment details such as the PayPal email or bank details.", e.configurePaymentOptions),
		op(GetPaymentOptions, setup, false, "Show which payment methods are configured on the account.", e.getPaymentOptions),

		op(UpdateBusinessSettings, intent.GroupBusiness, true, "Update business name, contact details, currency, default tax and number prefixes.", e.updateBusinessSettings),

		op(CreateEstimate, intent.GroupEstimates, true, "Create a new estimate (quote) for a client.", e.createEstimate),
		op(ConvertEstimate, intent.GroupEstimates, true, "Turn an accepted estimate into an invoice.", e.convertEstimate),

		op(CheckUsage, intent.GroupUsage, false, "Show the plan and how many documents can still be created.", e.checkUsage),
	}
}

func op[T any](name Name, group intent.ToolGroup, mutating bool, desc string, fn func(context.Context, string, T) (Result, error)) operation {
	schema := ai.MustSchema(new(T))
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return operation{
		spec: ai.ToolSpec{
			Name:        string(name),
			Description: desc,
			Group:       string(group),
			Parameters:  schema,
		},
		mutating: mutating,
		run: func(ctx context.Context, userID string, raw []byte) (Result, error) {
			var args T
			if err := json.Unmarshal(raw, &args); err != nil {
				return Result{}, invalidf("I couldn't read the details for that action.")
			}
			return fn(ctx, userID, args)
		},
	}
}

// Specs returns every operation declaration in catalog order.
func (e *Engine) Specs() []ai.ToolSpec {
	return e.specs
}

// Has reports whether name is a known operation.
func (e *Engine) Has(name string) bool {
	_, ok := e.ops[Name(name)]
	return ok
}

// Mutating reports whether name changes state.
func (e *Engine) Mutating(name string) bool {
	return e.ops[Name(name)].mutating
}

// Execute runs one operation. It never returns an error: every failure is a
// Result with Success false and a message fit for the user.
func (e *Engine) Execute(ctx context.Context, userID, name, args string) Result {
	start := time.Now()
	raw := []byte(strings.TrimSpace(args))
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	log := e.log.With(
		zap.String("user_id", userID),
		zap.String("tool", name),
		zap.String("invoice_identifier", gjson.GetBytes(raw, "invoice_identifier").String()),
	)

	o, ok := e.ops[Name(name)]
	if !ok {
		log.Warn("unknown tool")
		return failed(fmt.Sprintf("I can't do %q here.", name))
	}
	if !gjson.ValidBytes(raw) {
		log.Warn("tool arguments are not json")
		return failed("I couldn't read the details for that action.")
	}
	if err := ai.ValidateJSON(o.spec.Parameters, string(raw)); err != nil {
		log.Warn("tool arguments rejected", zap.Error(err))
		return failed("Some details for that action were missing or invalid: " + err.Error())
	}

	res, err := o.run(ctx, userID, raw)
	if err != nil {
		res = e.failure(log, err)
	}
	if res.Success && o.mutating && res.Effect != nil {
		e.remember(ctx, userID, res.Effect)
		e.publish(ctx, userID, res.Effect)
	}
	track(ctx, res)
	log.Info("tool executed",
		zap.Bool("success", res.Success),
		zap.Int("attachments", len(res.Attachments)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return res
}

func (e *Engine) failure(log *zap.Logger, err error) Result {
	var ue *userError
	if errors.As(err, &ue) {
		return failed(ue.msg)
	}
	if errors.Is(err, core.ErrInvalidInput) {
		msg := strings.TrimPrefix(err.Error(), core.ErrInvalidInput.Error()+": ")
		return failed(itemName(msg) + ".")
	}
	if errors.Is(err, core.ErrNotFound) {
		return failed("I couldn't find that record. It may have been deleted.")
	}
	log.Error("tool failed", zap.Error(err))
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return failed("That took too long and was not completed. Please try again.")
	}
	return failed("I couldn't save that change right now. Please try again in a moment.")
}

// remember overwrites the user's memory entry. Invoice and client references of
// the previous entry are carried over when the new action has none. Estimate
// actions never inherit an invoice, so "it" after an estimate is not an older invoice.
func (e *Engine) remember(ctx context.Context, userID string, eff *Effect) {
	if e.mem == nil {
		return
	}
	entry := memory.Entry{
		Action:        eff.Action,
		InvoiceNumber: eff.InvoiceNumber,
		InvoiceID:     eff.InvoiceID,
		EstimateID:    eff.EstimateID,
		ClientName:    eff.ClientName,
		ClientID:      eff.ClientID,
		Timestamp:     e.now(),
	}
	if entry.InvoiceID == "" && entry.EstimateID == "" && eff.Action != memory.ActionDeletedInvoice {
		if prev, ok, err := e.mem.Get(ctx, userID); err == nil && ok {
			entry.InvoiceID, entry.InvoiceNumber = prev.InvoiceID, prev.InvoiceNumber
			if entry.ClientID == "" {
				entry.ClientID, entry.ClientName = prev.ClientID, prev.ClientName
			}
		}
	}
	if err := e.mem.Set(ctx, userID, entry); err != nil {
		e.log.Warn("memory write failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, userID string, eff *Effect) {
	ev := events.Event{
		Type:       eventType(eff.Action),
		UserID:     userID,
		InvoiceID:  eff.InvoiceID,
		EstimateID: eff.EstimateID,
		ClientID:   eff.ClientID,
		Number:     eff.InvoiceNumber,
		Action:     string(eff.Action),
		OccurredAt: e.now().UTC(),
	}
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.Warn("event publish failed", zap.String("action", ev.Action), zap.Error(err))
	}
}

func eventType(a memory.Action) string {
	switch a {
	case memory.ActionCreatedEstimate:
		return "estimate"
	case memory.ActionUpdatedClientInfo:
		return "client"
	case memory.ActionConfiguredPaymentOptions, memory.ActionUpdatedBusinessSettings:
		return "account"
	}
	return "invoice"
}
