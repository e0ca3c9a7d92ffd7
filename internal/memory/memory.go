// Package memory remembers the last state-mutating action per user so that
// follow-up turns ("add his address", "mark it paid") resolve without asking again.
package memory

import (
	"context"
	"time"
)

// DefaultTTL is how long an entry stays readable after it was written.
const DefaultTTL = 30 * time.Minute

// Action tags the mutation that produced an Entry.
type Action string

const (
	ActionCreatedInvoice           Action = "created_invoice"
	ActionCreatedEstimate          Action = "created_estimate"
	ActionConvertedEstimate        Action = "converted_estimate"
	ActionAddedLineItem            Action = "added_line_item"
	ActionUpdatedLineItem          Action = "updated_line_item"
	ActionRemovedLineItem          Action = "removed_line_item"
	ActionReplacedLineItems        Action = "replaced_line_items"
	ActionUpdatedInvoice           Action = "updated_invoice"
	ActionUpdatedClientInfo        Action = "updated_client_info"
	ActionUpdatedPaymentMethods    Action = "updated_payment_methods"
	ActionConfiguredPaymentOptions Action = "configured_payment_options"
	ActionRecordedPayment          Action = "recorded_payment"
	ActionUpdatedStatus            Action = "updated_status"
	ActionUpdatedBusinessSettings  Action = "updated_business_settings"
	ActionDeletedInvoice           Action = "deleted_invoice"
)

// Entry is the last action taken for one user.
type Entry struct {
	Action        Action    `json:"action"`
	InvoiceNumber string    `json:"invoiceNumber,omitempty"`
	InvoiceID     string    `json:"invoiceId,omitempty"`
	EstimateID    string    `json:"estimateId,omitempty"`
	ClientName    string    `json:"clientName,omitempty"`
	ClientID      string    `json:"clientId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ExpiredAt reports whether e is older than ttl at now.
func (e Entry) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) > ttl
}

// Store is keyed by user id with last-writer-wins semantics per key.
// Get never returns an expired entry.
type Store interface {
	Get(ctx context.Context, userID string) (Entry, bool, error)
	Set(ctx context.Context, userID string, e Entry) error
	Clear(ctx context.Context, userID string) error
	// Purge evicts every expired entry and returns how many were removed.
	Purge(ctx context.Context) (int, error)
}
