// Package aitest provides a scripted ai.ModelClient for tests.
package aitest

import (
	"context"
	"errors"
	"sync"

	"invoice-agent/internal/ai"
)

// Step is one scripted outcome. Exactly one of Response or Err should be set;
// Wait, when non-nil, blocks until it is closed or the context ends.
type Step struct {
	Response *ai.Response
	Err      error
	Wait     chan struct{}
}

// Model replays Steps for Respond and Structured results for Structured.
type Model struct {
	mu         sync.Mutex
	steps      []Step
	structured []Structured
	Requests   []ai.Request
	Structs    []ai.StructuredRequest
}

// Structured is one scripted structured-output reply. Wait blocks like Step.Wait.
type Structured struct {
	Text string
	Err  error
	Wait chan struct{}
}

var _ ai.ModelClient = (*Model)(nil)

var ErrScriptExhausted = errors.New("aitest: script exhausted")

func NewModel(steps ...Step) *Model {
	return &Model{steps: steps}
}

// WithStructured queues structured-output replies.
func (m *Model) WithStructured(replies ...Structured) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structured = append(m.structured, replies...)
	return m
}

func Text(s string) Step {
	return Step{Response: &ai.Response{Text: s}}
}

func Call(callID, name, args string) Step {
	return Step{Response: &ai.Response{ToolCall: &ai.ToolCall{CallID: callID, Name: name, Arguments: args}}}
}

func Fail(err error) Step {
	return Step{Err: err}
}

func (m *Model) Respond(ctx context.Context, req ai.Request) (*ai.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	if len(m.steps) == 0 {
		m.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	m.mu.Unlock()

	if step.Wait != nil {
		select {
		case <-step.Wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

func (m *Model) Structured(ctx context.Context, req ai.StructuredRequest) (string, error) {
	m.mu.Lock()
	m.Structs = append(m.Structs, req)
	if len(m.structured) == 0 {
		m.mu.Unlock()
		return "", ErrScriptExhausted
	}
	r := m.structured[0]
	m.structured = m.structured[1:]
	m.mu.Unlock()

	if r.Wait != nil {
		select {
		case <-r.Wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.Text, r.Err
}

// StructuredCalls returns how many Structured calls were made.
func (m *Model) StructuredCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Structs)
}

// Calls returns how many Respond calls were made.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
