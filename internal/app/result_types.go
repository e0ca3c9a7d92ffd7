package app

import (
	"time"

	"invoice-agent/internal/intent"
	"invoice-agent/internal/tools"
)

// Thread identifies the conversation a response belongs to.
type Thread struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

// ChatResponse carries the user turn and the assistant turn plus any document
// the assistant touched.
type ChatResponse struct {
	Success     bool               `json:"success"`
	Messages    []Message          `json:"messages"`
	Thread      Thread             `json:"thread"`
	Attachments []tools.Attachment `json:"attachments,omitempty"`
}

// ClassifyResult exposes the routing decision for one message without running the loop.
type ClassifyResult struct {
	Context        string                `json:"context"`
	Classification intent.Classification `json:"classification"`
	Model          string                `json:"model"`
	Modules        []string              `json:"modules"`
	Tools          []string              `json:"tools"`
}

// ToolCallRecord is one operation executed by the loop.
type ToolCallRecord struct {
	Name      string        `json:"name"`
	Arguments string        `json:"arguments"`
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration"`
}

// LoopResult is the outcome of one tool-calling loop run.
type LoopResult struct {
	Answer      string
	Attachments []tools.Attachment
	Steps       int
	ToolCalls   []ToolCallRecord
	Termination Termination
}

// Termination records why the loop stopped.
type Termination string

const (
	TerminationFinalAnswer    Termination = "final_answer"
	TerminationAttachment     Termination = "attachment"
	TerminationStepBudget     Termination = "step_budget"
	TerminationTimeBudget     Termination = "time_budget"
	TerminationModelError     Termination = "model_error"
	TerminationForcedFallback Termination = "forced_fallback"
	TerminationClarify        Termination = "clarify"
)

// Degraded reports whether the loop ended without the model finishing its turn.
func (t Termination) Degraded() bool {
	switch t {
	case TerminationStepBudget, TerminationTimeBudget, TerminationModelError:
		return true
	}
	return false
}
