package app

import (
	"context"
)

// ApplicationService is the single interface all adapters (REPL, CLI, Web, jobs) call.
// It decouples presentation from orchestration. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// HandleMessage runs one conversational turn: context pack, classification,
	// prompt and tool assembly, then the tool-calling loop. It returns an error only
	// for invalid requests; every other failure becomes a natural-language answer.
	HandleMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Classify builds the context pack and classifies the message without calling
	// any tool.
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error)

	// NextNumber previews the next invoice or estimate number for a user.
	NextNumber(ctx context.Context, req NextNumberRequest) (string, error)

	// SweepOverdue moves open invoices past their due date to overdue.
	SweepOverdue(ctx context.Context) (int, error)

	// PurgeMemory evicts expired conversation memory entries.
	PurgeMemory(ctx context.Context) (int, error)
}
