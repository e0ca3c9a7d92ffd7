package tools

import (
	"encoding/json"
	"fmt"

	"invoice-agent/internal/core"
	"invoice-agent/internal/memory"
)

const (
	AttachmentInvoice  = "invoice"
	AttachmentEstimate = "estimate"
)

// Attachment is the up-to-date document an operation touched, ready for display.
type Attachment struct {
	Type       string          `json:"type"`
	InvoiceID  string          `json:"invoiceId,omitempty"`
	Invoice    *core.Invoice   `json:"invoice,omitempty"`
	EstimateID string          `json:"estimateId,omitempty"`
	Estimate   *core.Estimate  `json:"estimate,omitempty"`
	LineItems  []core.LineItem `json:"lineItems"`
	ClientID   string          `json:"clientId,omitempty"`
	Client     *core.Client    `json:"client,omitempty"`
}

// Effect describes what a successful mutation touched. The engine turns it into
// the conversation memory entry and the published event.
type Effect struct {
	Action        memory.Action
	InvoiceID     string
	InvoiceNumber string
	EstimateID    string
	ClientID      string
	ClientName    string
}

// Result is the outcome of one operation. Failures carry a user-facing Message
// and never an error.
type Result struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Data        any          `json:"data,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Effect      *Effect      `json:"-"`
}

// HasAttachment reports whether the caller can show a concrete artifact.
func (r Result) HasAttachment() bool {
	return r.Success && len(r.Attachments) > 0
}

// ModelOutput is the compact form of r handed back to the model.
func (r Result) ModelOutput() string {
	out := struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    any    `json:"data,omitempty"`
	}{r.Success, r.Message, r.Data}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"success":%t,"message":%q}`, r.Success, r.Message)
	}
	return string(b)
}

func failed(msg string) Result {
	return Result{Success: false, Message: msg}
}

// userError is an expected failure whose message is safe to show as is.
type userError struct {
	kind error
	msg  string
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.kind }

func notFoundf(format string, args ...any) error {
	return &userError{kind: core.ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

func invalidf(format string, args ...any) error {
	return &userError{kind: core.ErrInvalidInput, msg: fmt.Sprintf(format, args...)}
}

func limitf(format string, args ...any) error {
	return &userError{kind: core.ErrUsageLimit, msg: fmt.Sprintf(format, args...)}
}
