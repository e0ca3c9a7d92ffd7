package core

import (
	"context"
	"time"
)

// ClientFilter selects clients of one user. NameEquals matches case-insensitively;
// Query is a case-insensitive substring match on name or email.
type ClientFilter struct {
	UserID     string
	NameEquals string
	Query      string
	Limit      int
}

// InvoiceFilter selects invoices of one user, newest first.
type InvoiceFilter struct {
	UserID    string
	Number    string // case-insensitive exact match
	ClientID  string
	Statuses  []InvoiceStatus
	DueBefore *time.Time
	Limit     int
}

// EstimateFilter selects estimates of one user, newest first.
type EstimateFilter struct {
	UserID   string
	Number   string
	ClientID string
	Limit    int
}

// Gateway is the record-level persistence boundary. Each method is a single
// statement; callers compose multi-step consistency themselves.
// Reads of a missing record return ErrNotFound. A colliding document number on
// insert returns ErrDuplicateNumber.
type Gateway interface {
	GetUser(ctx context.Context, userID string) (*User, error)

	FindClients(ctx context.Context, f ClientFilter) ([]Client, error)
	GetClient(ctx context.Context, userID, clientID string) (*Client, error)
	InsertClient(ctx context.Context, c *Client) error
	UpdateClient(ctx context.Context, c *Client) error

	FindInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error)
	GetInvoice(ctx context.Context, userID, invoiceID string) (*Invoice, error)
	InsertInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	DeleteInvoice(ctx context.Context, userID, invoiceID string) error
	// MarkOverdue moves every sent or partial invoice of any user whose due date is
	// before today to overdue and returns how many changed.
	MarkOverdue(ctx context.Context, today time.Time) (int, error)

	FindEstimates(ctx context.Context, f EstimateFilter) ([]Estimate, error)
	GetEstimate(ctx context.Context, userID, estimateID string) (*Estimate, error)
	InsertEstimate(ctx context.Context, est *Estimate) error
	UpdateEstimate(ctx context.Context, est *Estimate) error
	DeleteEstimate(ctx context.Context, userID, estimateID string) error

	ListLineItems(ctx context.Context, kind DocumentKind, documentID string) ([]LineItem, error)
	InsertLineItem(ctx context.Context, item *LineItem) error
	UpdateLineItem(ctx context.Context, item *LineItem) error
	DeleteLineItem(ctx context.Context, itemID string) error
	DeleteLineItems(ctx context.Context, kind DocumentKind, documentID string) error

	// ListDocumentNumbers returns every invoice and estimate number of the user.
	ListDocumentNumbers(ctx context.Context, userID string) ([]string, error)
	CountDocuments(ctx context.Context, userID string) (DocumentCounts, error)

	GetPaymentOptions(ctx context.Context, userID string) (*PaymentOptions, error)
	UpsertPaymentOptions(ctx context.Context, po *PaymentOptions) error
	GetBusinessSettings(ctx context.Context, userID string) (*BusinessSettings, error)
	UpsertBusinessSettings(ctx context.Context, bs *BusinessSettings) error
}
