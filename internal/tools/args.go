package tools

// Argument structs. Fields without omitempty are required in the reflected schema.

type InvoiceRef struct {
	InvoiceIdentifier string `json:"invoice_identifier,omitempty" jsonschema:"description=Invoice number (INV-003 or 3) or client name or 'latest'. Empty means the active invoice."`
}

type EstimateRef struct {
	EstimateIdentifier string `json:"estimate_identifier,omitempty" jsonschema:"description=Estimate number or client name or 'latest'. Empty means the most recent estimate."`
}

type LineItemInput struct {
	Name          string   `json:"name" jsonschema:"description=Short item name"`
	Description   string   `json:"description,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty" jsonschema:"description=Defaults to 1. At least 1, or 0 for a placeholder line"`
	UnitPrice     float64  `json:"unit_price" jsonschema:"description=Price of one unit"`
	DiscountType  string   `json:"discount_type,omitempty" jsonschema:"description=percentage or fixed"`
	DiscountValue *float64 `json:"discount_value,omitempty"`
}

// DocumentDraft is shared by invoice and estimate creation.
type DocumentDraft struct {
	ClientName      string          `json:"client_name" jsonschema:"description=Client name exactly as the user wrote it"`
	ClientEmail     string          `json:"client_email,omitempty"`
	ClientPhone     string          `json:"client_phone,omitempty"`
	ClientAddress   string          `json:"client_address,omitempty"`
	ClientTaxNumber string          `json:"client_tax_number,omitempty"`
	LineItems       []LineItemInput `json:"line_items,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Currency        string          `json:"currency,omitempty" jsonschema:"description=ISO currency code; defaults to the business currency"`
	TaxPercentage   *float64        `json:"tax_percentage,omitempty" jsonschema:"description=Defaults to the business default tax rate"`
	DiscountType    string          `json:"discount_type,omitempty" jsonschema:"description=percentage or fixed"`
	DiscountValue   *float64        `json:"discount_value,omitempty"`
}

type CreateInvoiceArgs struct {
	DocumentDraft
	InvoiceDate string `json:"invoice_date,omitempty" jsonschema:"description=YYYY-MM-DD; defaults to today"`
	DueDate     string `json:"due_date,omitempty" jsonschema:"description=YYYY-MM-DD"`
	DueInDays   *int   `json:"due_in_days,omitempty" jsonschema:"description=Payment terms in days from the invoice date"`
}

type CreateEstimateArgs struct {
	DocumentDraft
	ValidUntil string `json:"valid_until,omitempty" jsonschema:"description=YYYY-MM-DD"`
}

type SearchInvoicesArgs struct {
	ClientName string `json:"client_name,omitempty"`
	Status     string `json:"status,omitempty" jsonschema:"description=draft sent partial paid overdue cancelled or unpaid"`
	Limit      *int   `json:"limit,omitempty"`
}

type UpdateInvoiceArgs struct {
	InvoiceRef
	InvoiceDate   string   `json:"invoice_date,omitempty" jsonschema:"description=YYYY-MM-DD"`
	DueDate       string   `json:"due_date,omitempty" jsonschema:"description=YYYY-MM-DD"`
	Notes         string   `json:"notes,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	TaxPercentage *float64 `json:"tax_percentage,omitempty"`
	DiscountType  string   `json:"discount_type,omitempty" jsonschema:"description=percentage or fixed or none to remove"`
	DiscountValue *float64 `json:"discount_value,omitempty"`
	Design        string   `json:"design,omitempty"`
	AccentColor   string   `json:"accent_color,omitempty" jsonschema:"description=Hex colour such as #1A73E8"`
}

type AddLineItemArgs struct {
	InvoiceRef
	LineItemInput
}

type SelectLineItemArgs struct {
	InvoiceRef
	Position *int   `json:"position,omitempty" jsonschema:"description=1-based position of the item"`
	ItemName string `json:"item_name,omitempty" jsonschema:"description=Name of the item when no position is given"`
}

type UpdateLineItemArgs struct {
	SelectLineItemArgs
	NewName       string   `json:"new_name,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	UnitPrice     *float64 `json:"unit_price,omitempty"`
	DiscountType  string   `json:"discount_type,omitempty"`
	DiscountValue *float64 `json:"discount_value,omitempty"`
}

type ReplaceLineItemsArgs struct {
	InvoiceRef
	LineItems []LineItemInput `json:"line_items" jsonschema:"description=The complete new list of items"`
}

type UpdateClientArgs struct {
	InvoiceRef
	ClientName string `json:"client_name,omitempty" jsonschema:"description=Client to update when no invoice is meant"`
	NewName    string `json:"new_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	TaxNumber  string `json:"tax_number,omitempty"`
}

type SearchClientsArgs struct {
	Query string `json:"query,omitempty"`
	Limit *int   `json:"limit,omitempty"`
}

type MarkPaidArgs struct {
	InvoiceRef
	Amount      *float64 `json:"amount,omitempty" jsonschema:"description=Total amount paid so far; omit for payment in full"`
	PaymentDate string   `json:"payment_date,omitempty" jsonschema:"description=YYYY-MM-DD; defaults to today"`
	Notes       string   `json:"notes,omitempty"`
}

type SetStatusArgs struct {
	InvoiceRef
	Status string `json:"status" jsonschema:"enum=draft,enum=sent,enum=partial,enum=paid,enum=overdue,enum=cancelled,enum=unpaid"`
}

type PaymentMethodsArgs struct {
	InvoiceRef
	Stripe       *bool `json:"stripe,omitempty"`
	PayPal       *bool `json:"paypal,omitempty"`
	BankTransfer *bool `json:"bank_transfer,omitempty"`
}

type ConfigurePaymentArgs struct {
	InvoiceRef
	PayPalEmail        string `json:"paypal_email,omitempty"`
	BankDetails        string `json:"bank_details,omitempty"`
	EnablePayPal       *bool  `json:"enable_paypal,omitempty"`
	EnableBankTransfer *bool  `json:"enable_bank_transfer,omitempty"`
	EnableStripe       *bool  `json:"enable_stripe,omitempty"`
}

type BusinessArgs struct {
	BusinessName   string   `json:"business_name,omitempty"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Address        string   `json:"address,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	DefaultTaxRate *float64 `json:"default_tax_rate,omitempty"`
	TaxName        string   `json:"tax_name,omitempty"`
	InvoicePrefix  string   `json:"invoice_prefix,omitempty"`
	EstimatePrefix string   `json:"estimate_prefix,omitempty"`
	NumberPadding  *int     `json:"number_padding,omitempty"`
}

type NoArgs struct{}
