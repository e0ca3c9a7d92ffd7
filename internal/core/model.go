package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// User is the account owner. Everything else in the system is scoped to a user.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Plan     Plan   `json:"plan"`
	Locale   string `json:"locale"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
}

type Client struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	TaxNumber string    `json:"tax_number,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DiscountType string

const (
	DiscountNone       DiscountType = ""
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Financials is the derived money block shared by invoices and estimates.
// Every field except DiscountType, DiscountValue and TaxPercentage is computed by ComputeTotals.
type Financials struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountType   DiscountType    `json:"discount_type,omitempty"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxPercentage  decimal.Decimal `json:"tax_percentage"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
}

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePartial   InvoiceStatus = "partial"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is one of the persisted invoice states.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePartial, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// Invoice is the invoice header. Status transitions:
//
//	draft → sent → partial → paid
//	any   → overdue | cancelled
type Invoice struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	ClientID           string          `json:"client_id"`
	Number             string          `json:"number"`
	Status             InvoiceStatus   `json:"status"`
	InvoiceDate        time.Time       `json:"invoice_date"`
	DueDate            *time.Time      `json:"due_date,omitempty"`
	Currency           string          `json:"currency"`
	Notes              string          `json:"notes,omitempty"`
	Financials
	PaidAmount         decimal.Decimal `json:"paid_amount"`
	PaymentDate        *time.Time      `json:"payment_date,omitempty"`
	PaymentNotes       string          `json:"payment_notes,omitempty"`
	StripeActive       bool            `json:"stripe_active"`
	PayPalActive       bool            `json:"paypal_active"`
	BankTransferActive bool            `json:"bank_transfer_active"`
	Design             string          `json:"design,omitempty"`
	AccentColor        string          `json:"accent_color,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// BalanceDue is the unpaid remainder, never negative.
func (inv *Invoice) BalanceDue() decimal.Decimal {
	due := inv.Total.Sub(inv.PaidAmount)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

type EstimateStatus string

const (
	EstimateDraft     EstimateStatus = "draft"
	EstimateSent      EstimateStatus = "sent"
	EstimateAccepted  EstimateStatus = "accepted"
	EstimateDeclined  EstimateStatus = "declined"
	EstimateConverted EstimateStatus = "converted"
)

type Estimate struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"user_id"`
	ClientID           string         `json:"client_id"`
	Number             string         `json:"number"`
	Status             EstimateStatus `json:"status"`
	EstimateDate       time.Time      `json:"estimate_date"`
	ValidUntil         *time.Time     `json:"valid_until,omitempty"`
	Currency           string         `json:"currency"`
	Notes              string         `json:"notes,omitempty"`
	Financials
	ConvertedInvoiceID string    `json:"converted_invoice_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type DocumentKind string

const (
	KindInvoice  DocumentKind = "invoice"
	KindEstimate DocumentKind = "estimate"
)

// LineItem belongs to exactly one invoice or estimate.
type LineItem struct {
	ID            string          `json:"id"`
	DocumentKind  DocumentKind    `json:"document_kind"`
	DocumentID    string          `json:"document_id"`
	Position      int             `json:"position"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	DiscountType  DiscountType    `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PaymentOptions is the account-level payment configuration. One row per user.
// It gates which methods any invoice of that user may enable.
type PaymentOptions struct {
	UserID              string `json:"user_id"`
	StripeEnabled       bool   `json:"stripe_enabled"`
	StripeAccountID     string `json:"stripe_account_id,omitempty"`
	PayPalEnabled       bool   `json:"paypal_enabled"`
	PayPalEmail         string `json:"paypal_email,omitempty"`
	BankTransferEnabled bool   `json:"bank_transfer_enabled"`
	BankDetails         string `json:"bank_details,omitempty"`
}

type BusinessSettings struct {
	UserID         string          `json:"user_id"`
	BusinessName   string          `json:"business_name,omitempty"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Address        string          `json:"address,omitempty"`
	Currency       string          `json:"currency"`
	DefaultTaxRate decimal.Decimal `json:"default_tax_rate"`
	TaxName        string          `json:"tax_name,omitempty"`
	InvoicePrefix  string          `json:"invoice_prefix"`
	EstimatePrefix string          `json:"estimate_prefix"`
	NumberPadding  int             `json:"number_padding"`
}

// DefaultBusinessSettings is used when a user has never saved settings.
func DefaultBusinessSettings(userID string) BusinessSettings {
	return BusinessSettings{
		UserID:         userID,
		Currency:       "USD",
		DefaultTaxRate: decimal.Zero,
		TaxName:        "Tax",
		InvoicePrefix:  "INV-",
		EstimatePrefix: "EST-",
		NumberPadding:  3,
	}
}

// DocumentCounts is the per-user usage counter checked against the free-tier cap.
type DocumentCounts struct {
	Invoices  int `json:"invoices"`
	Estimates int `json:"estimates"`
}

func (c DocumentCounts) Total() int { return c.Invoices + c.Estimates }
