package app

import (
	"time"

	"invoice-agent/internal/core"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn as exchanged with callers.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// UserContext carries caller-side rendering preferences. Empty fields fall back
// to the account settings.
type UserContext struct {
	Currency string `json:"currency,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// ChatRequest is the single inbound request shape of the orchestrator.
type ChatRequest struct {
	Message     string       `json:"message"`
	UserID      string       `json:"userId"`
	ThreadID    string       `json:"threadId,omitempty"`
	History     []Message    `json:"history,omitempty"`
	UserContext *UserContext `json:"userContext,omitempty"`
}

// ClassifyRequest runs the context and classification stages only.
type ClassifyRequest struct {
	Message string
	UserID  string
	History []Message
}

// NextNumberRequest previews the next reference number for a user.
type NextNumberRequest struct {
	UserID string
	Kind   core.DocumentKind
}
