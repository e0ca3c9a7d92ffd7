package ai

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
)

// ToolSpec is the model-facing declaration of one callable operation.
type ToolSpec struct {
	Name        string
	Description string
	Group       string
	Parameters  map[string]any
}

// ToOpenAITools converts specs to the Responses API tool format. Strict mode is off
// so optional arguments may be omitted.
func ToOpenAITools(specs []ToolSpec) []responses.ToolUnionParam {
	out := make([]responses.ToolUnionParam, 0, len(specs))
	for _, t := range specs {
		out = append(out, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.Parameters,
				Strict:      openai.Bool(false),
			},
		})
	}
	return out
}

// ToolNames lists the names of specs in order.
func ToolNames(specs []ToolSpec) []string {
	names := make([]string, len(specs))
	for i, t := range specs {
		names[i] = t.Name
	}
	return names
}
