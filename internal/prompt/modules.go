// Package prompt composes the system instructions and the tool set for one request
// from named instruction modules selected by the classified intents.
package prompt

import "invoice-agent/internal/intent"

// Module is one named, independently testable block of instructions.
type Module struct {
	Name string
	Text string
}

const (
	ModCore             = "core"
	ModUsageLimits      = "usage_limits"
	ModInvoiceCreation  = "invoice_creation"
	ModEstimates        = "estimates"
	ModInvoiceUpdates   = "invoice_updates"
	ModLineItems        = "line_items"
	ModClients          = "clients"
	ModPayments         = "payments"
	ModPaymentSetup     = "payment_setup"
	ModBusinessSettings = "business_settings"
	ModQueries          = "queries"
	ModContextAwareness = "context_awareness"
)

// Catalog lists every module in the order it appears in a prompt.
var Catalog = []Module{
	{ModCore, `You are an invoicing assistant inside a mobile app. Act first: when the request is clear, call the matching tool immediately instead of asking for confirmation.
Keep replies short and friendly. Never show internal ids, raw errors or JSON.
When one required detail is missing, ask exactly one specific question.
Use tool results as the source of truth for amounts, numbers and statuses.`},
	{ModUsageLimits, `Free plans can create a limited number of documents. If a tool reports the limit is reached, say so plainly and mention that upgrading removes the limit. Do not retry the creation.`},
	{ModInvoiceCreation, `To create an invoice call create_invoice once with the client name and every line item you can read from the message.
A bare price belongs to a single item with quantity 1. Capitalize item names.
Do not invent email addresses, quantities or prices. Missing client details can be added later.`},
	{ModEstimates, `Estimates (quotes) work like invoices and share the same number sequence.
Use create_estimate for new quotes and convert_estimate_to_invoice when the user accepts one.`},
	{ModInvoiceUpdates, `Use update_invoice_details for dates, notes, tax, discount, design and colour changes.
Dates are YYYY-MM-DD. Discounts are "percentage" or "fixed". Totals are recalculated automatically; never compute them yourself.
Only delete an invoice when the user clearly asks for it.`},
	{ModLineItems, `Line items are addressed by their 1-based position or by name.
Use add_line_item, update_line_item and remove_line_item for single changes and replace_line_items to rewrite the whole list.`},
	{ModClients, `Clients are matched by name without regard to case. Use update_client_info to add an address, email, phone or tax number to the client of an invoice; only the fields given are changed.`},
	{ModPayments, `Use mark_invoice_paid to record payments. Without an amount the invoice is paid in full; a smaller amount makes it partial.
Use mark_invoice_unpaid to reset payments and set_invoice_status for other status changes.`},
	{ModPaymentSetup, `Payment methods can only be enabled on an invoice when they are configured on the account.
If a method is not configured, explain it and ask for the one missing detail (for PayPal, the PayPal email).
Use configure_payment_options to save account details and update_payment_methods to toggle methods on an invoice.`},
	{ModBusinessSettings, `Use update_business_settings for the business name, contact details, currency, default tax and number prefixes. Changes apply to new documents only.`},
	{ModQueries, `Use search_invoices and get_invoice_details to answer questions about existing invoices. Summarize results briefly; list at most ten.`},
	{ModContextAwareness, `Words like "it", "this invoice" or "his address" refer to the active invoice and its client shown in the context.
Pass that invoice number as invoice_identifier. If there is no active invoice, ask which invoice the user means.`},
}

// intentModules lists the modules each intent adds on top of the baseline.
var intentModules = map[intent.Intent][]string{
	intent.CreateInvoice:      {ModInvoiceCreation, ModLineItems, ModClients},
	intent.CreateEstimate:     {ModEstimates, ModLineItems, ModClients},
	intent.ConvertEstimate:    {ModEstimates},
	intent.UpdateInvoice:      {ModInvoiceUpdates, ModLineItems},
	intent.ManageLineItems:    {ModLineItems},
	intent.UpdateClient:       {ModClients},
	intent.RecordPayment:      {ModPayments},
	intent.PaymentSetup:       {ModPaymentSetup},
	intent.BusinessSettings:   {ModBusinessSettings},
	intent.QueryInvoices:      {ModQueries},
	intent.DeleteInvoice:      {ModInvoiceUpdates},
	intent.UsageLimits:        nil,
	intent.ContextAwareUpdate: {ModContextAwareness, ModInvoiceUpdates, ModLineItems, ModClients},
	intent.General:            nil,
}

var baseline = []string{ModCore, ModUsageLimits}
