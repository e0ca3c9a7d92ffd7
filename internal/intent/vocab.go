// Package intent turns a user message plus a context snapshot into a bounded,
// validated classification: what the user wants, which tool groups may run,
// and how large a model the request deserves.
package intent

// Intent is a closed-vocabulary tag describing what the user wants done.
type Intent string

const (
	CreateInvoice      Intent = "create_invoice"
	CreateEstimate     Intent = "create_estimate"
	ConvertEstimate    Intent = "convert_estimate"
	UpdateInvoice      Intent = "update_invoice"
	ManageLineItems    Intent = "manage_line_items"
	UpdateClient       Intent = "update_client"
	RecordPayment      Intent = "record_payment"
	PaymentSetup       Intent = "payment_setup"
	BusinessSettings   Intent = "business_settings"
	QueryInvoices      Intent = "query_invoices"
	DeleteInvoice      Intent = "delete_invoice"
	UsageLimits        Intent = "usage_limits"
	ContextAwareUpdate Intent = "context_aware_update"
	General            Intent = "general"
)

// AllIntents is the vocabulary in canonical order.
var AllIntents = []Intent{
	CreateInvoice, CreateEstimate, ConvertEstimate, UpdateInvoice, ManageLineItems,
	UpdateClient, RecordPayment, PaymentSetup, BusinessSettings, QueryInvoices,
	DeleteInvoice, UsageLimits, ContextAwareUpdate, General,
}

func (i Intent) Valid() bool {
	for _, v := range AllIntents {
		if v == i {
			return true
		}
	}
	return false
}

// Mutating reports whether the intent implies a state change.
func (i Intent) Mutating() bool {
	switch i {
	case QueryInvoices, UsageLimits, General:
		return false
	}
	return true
}

// invoiceScoped intents operate on one existing invoice and therefore need a target.
func (i Intent) invoiceScoped() bool {
	switch i {
	case UpdateInvoice, ManageLineItems, UpdateClient, RecordPayment, PaymentSetup,
		DeleteInvoice, ContextAwareUpdate, QueryInvoices:
		return true
	}
	return false
}

// ToolGroup is a named bundle of operations gated together.
type ToolGroup string

const (
	GroupInvoiceCore  ToolGroup = "invoice_core"
	GroupLineItems    ToolGroup = "line_items"
	GroupClients      ToolGroup = "clients"
	GroupPayments     ToolGroup = "payments"
	GroupPaymentSetup ToolGroup = "payment_setup"
	GroupBusiness     ToolGroup = "business"
	GroupEstimates    ToolGroup = "estimates"
	GroupUsage        ToolGroup = "usage"
)

// AllGroups is the group vocabulary in canonical order.
var AllGroups = []ToolGroup{
	GroupInvoiceCore, GroupLineItems, GroupClients, GroupPayments,
	GroupPaymentSetup, GroupBusiness, GroupEstimates, GroupUsage,
}

func (g ToolGroup) Valid() bool {
	for _, v := range AllGroups {
		if v == g {
			return true
		}
	}
	return false
}

// impliedGroups lists the groups every intent needs at minimum.
var impliedGroups = map[Intent][]ToolGroup{
	CreateInvoice:      {GroupInvoiceCore, GroupLineItems, GroupClients},
	CreateEstimate:     {GroupEstimates, GroupLineItems, GroupClients},
	ConvertEstimate:    {GroupEstimates, GroupInvoiceCore},
	UpdateInvoice:      {GroupInvoiceCore, GroupLineItems},
	ManageLineItems:    {GroupLineItems, GroupInvoiceCore},
	UpdateClient:       {GroupClients, GroupInvoiceCore},
	RecordPayment:      {GroupPayments, GroupInvoiceCore},
	PaymentSetup:       {GroupPaymentSetup, GroupInvoiceCore},
	BusinessSettings:   {GroupBusiness},
	QueryInvoices:      {GroupInvoiceCore, GroupClients},
	DeleteInvoice:      {GroupInvoiceCore},
	UsageLimits:        {GroupUsage},
	ContextAwareUpdate: {GroupInvoiceCore, GroupLineItems, GroupClients},
	General:            nil,
}

// ImpliedGroups returns the groups intent needs at minimum.
func ImpliedGroups(i Intent) []ToolGroup {
	return impliedGroups[i]
}

type Complexity string

const (
	Simple   Complexity = "simple"
	Moderate Complexity = "moderate"
	Complex  Complexity = "complex"
)

// ModelTier is the size class of model suggested for a request.
type ModelTier string

const (
	TierBudget  ModelTier = "budget"
	TierMid     ModelTier = "mid"
	TierPremium ModelTier = "premium"
)

func (t ModelTier) rank() int {
	switch t {
	case TierBudget:
		return 0
	case TierMid:
		return 1
	}
	return 2
}

type Scope string

const (
	ScopeInvoice Scope = "invoice"
	ScopeGlobal  Scope = "global"
	ScopeBoth    Scope = "both"
	ScopeUnknown Scope = "unknown"
)

// MissingInvoiceReference is the missing-field name used when a pronoun has nothing to bind to.
const MissingInvoiceReference = "invoice_reference"

// Models maps tiers to configured model names.
type Models struct {
	Budget  string
	Mid     string
	Premium string
}

// For returns the model configured for tier, falling back upwards when a tier is unset.
func (m Models) For(tier ModelTier) string {
	switch tier {
	case TierBudget:
		if m.Budget != "" {
			return m.Budget
		}
		fallthrough
	case TierMid:
		if m.Mid != "" {
			return m.Mid
		}
	}
	return m.Premium
}

func intentStrings() []any {
	out := make([]any, len(AllIntents))
	for i, v := range AllIntents {
		out[i] = string(v)
	}
	return out
}

func groupStrings() []any {
	out := make([]any, len(AllGroups))
	for i, v := range AllGroups {
		out[i] = string(v)
	}
	return out
}
