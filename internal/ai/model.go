package ai

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the model produced neither text nor a tool call.
var ErrEmptyResponse = errors.New("empty model response")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ItemKind string

const (
	ItemMessage        ItemKind = "message"
	ItemFunctionCall   ItemKind = "function_call"
	ItemFunctionOutput ItemKind = "function_call_output"
)

// Item is one entry of the conversation sent to the model.
type Item struct {
	Kind    ItemKind
	Role    Role
	Content string

	CallID    string
	Name      string
	Arguments string
	Output    string
}

func UserMessage(text string) Item {
	return Item{Kind: ItemMessage, Role: RoleUser, Content: text}
}

func AssistantMessage(text string) Item {
	return Item{Kind: ItemMessage, Role: RoleAssistant, Content: text}
}

// FunctionCallItem echoes a tool call the model made back into the input.
func FunctionCallItem(call ToolCall) Item {
	return Item{Kind: ItemFunctionCall, CallID: call.CallID, Name: call.Name, Arguments: call.Arguments}
}

// FunctionOutputItem carries a tool result for callID.
func FunctionOutputItem(callID, output string) Item {
	return Item{Kind: ItemFunctionOutput, CallID: callID, Output: output}
}

// ToolCall is a single requested operation invocation.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string
}

// Request is one turn of the tool-calling conversation.
type Request struct {
	Model        string
	Instructions string
	Input        []Item
	Tools        []ToolSpec
	// ForceTool, when set, requires the model to call the named tool.
	ForceTool string
}

// Response holds either a final text answer or exactly one tool call.
type Response struct {
	ID       string
	Text     string
	ToolCall *ToolCall
}

// StructuredRequest asks for text constrained to Schema.
type StructuredRequest struct {
	Model        string
	Instructions string
	Input        string
	SchemaName   string
	Description  string
	Schema       map[string]any
}

// ModelClient is the language-model boundary used by the classifier and the loop.
type ModelClient interface {
	Respond(ctx context.Context, req Request) (*Response, error)
	Structured(ctx context.Context, req StructuredRequest) (string, error)
}
