// Package tools implements every operation the model may call. Operations are a
// closed set keyed by Name; each declares its argument struct, from which the
// JSON schema handed to the model is reflected.
package tools

import "invoice-agent/internal/intent"

// Name identifies one callable operation.
type Name string

const (
	CreateInvoice           Name = "create_invoice"
	GetInvoiceDetails       Name = "get_invoice_details"
	SearchInvoices          Name = "search_invoices"
	UpdateInvoiceDetails    Name = "update_invoice_details"
	DeleteInvoice           Name = "delete_invoice"
	AddLineItem             Name = "add_line_item"
	UpdateLineItem          Name = "update_line_item"
	RemoveLineItem          Name = "remove_line_item"
	ReplaceLineItems        Name = "replace_line_items"
	UpdateClientInfo        Name = "update_client_info"
	SearchClients           Name = "search_clients"
	MarkInvoicePaid         Name = "mark_invoice_paid"
	MarkInvoiceUnpaid       Name = "mark_invoice_unpaid"
	SetInvoiceStatus        Name = "set_invoice_status"
	UpdatePaymentMethods    Name = "update_payment_methods"
	ConfigurePaymentOptions Name = "configure_payment_options"
	GetPaymentOptions       Name = "get_payment_options"
	UpdateBusinessSettings  Name = "update_business_settings"
	CreateEstimate          Name = "create_estimate"
	ConvertEstimate         Name = "convert_estimate_to_invoice"
	CheckUsage              Name = "check_usage"
)

// AllNames is every operation in catalog order.
var AllNames = []Name{
	CreateInvoice, GetInvoiceDetails, SearchInvoices, UpdateInvoiceDetails, DeleteInvoice,
	AddLineItem, UpdateLineItem, RemoveLineItem, ReplaceLineItems,
	UpdateClientInfo, SearchClients,
	MarkInvoicePaid, MarkInvoiceUnpaid, SetInvoiceStatus,
	UpdatePaymentMethods, ConfigurePaymentOptions, GetPaymentOptions,
	UpdateBusinessSettings,
	CreateEstimate, ConvertEstimate,
	CheckUsage,
}

// ForcedTool returns the operation the loop may require on the first step when
// in is the single dominant intent.
func ForcedTool(in intent.Intent) (Name, bool) {
	switch in {
	case intent.CreateInvoice:
		return CreateInvoice, true
	case intent.CreateEstimate:
		return CreateEstimate, true
	case intent.ConvertEstimate:
		return ConvertEstimate, true
	case intent.UsageLimits:
		return CheckUsage, true
	}
	return "", false
}
