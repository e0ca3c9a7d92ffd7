// Package events publishes domain events after state-changing operations so
// downstream services (notifications, sync) can react.
package events

import (
	"context"
	"sync"
	"time"
)

// Event describes one completed mutation.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	InvoiceID  string    `json:"invoiceId,omitempty"`
	EstimateID string    `json:"estimateId,omitempty"`
	ClientID   string    `json:"clientId,omitempty"`
	Number     string    `json:"number,omitempty"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events. Callers log publish errors and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() {}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
