package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared/constant"
	"go.uber.org/zap"
)

// OpenAIConfig configures the Responses API client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// OpenAIClient implements ModelClient over the OpenAI Responses API.
// Retries and timeouts are applied by the caller, so the SDK's own retry is disabled.
type OpenAIClient struct {
	client *openai.Client
	log    *zap.Logger
}

var _ ModelClient = (*OpenAIClient)(nil)

// NewOpenAIClient builds the client; a nil log discards output.
func NewOpenAIClient(cfg OpenAIConfig, log *zap.Logger) *OpenAIClient {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client, log: log.Named("openai")}
}

func (c *OpenAIClient) Respond(ctx context.Context, req Request) (*Response, error) {
	params := responses.ResponseNewParams{
		Model:             req.Model,
		Instructions:      openai.String(req.Instructions),
		Input:             responses.ResponseNewParamsInputUnion{OfInputItemList: toInputItems(req.Input)},
		ParallelToolCalls: openai.Bool(false),
		Store:             openai.Bool(false),
	}
	if len(req.Tools) > 0 {
		params.Tools = ToOpenAITools(req.Tools)
		if req.ForceTool != "" {
			params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
				OfFunctionTool: &responses.ToolChoiceFunctionParam{Name: req.ForceTool},
			}
		} else {
			params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
				OfToolChoiceMode: param.NewOpt(responses.ToolChoiceOptionsAuto),
			}
		}
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	out := &Response{ID: resp.ID}
	for _, item := range resp.Output {
		if item.Type != "function_call" {
			continue
		}
		fc := item.AsFunctionCall()
		out.ToolCall = &ToolCall{CallID: fc.CallID, Name: fc.Name, Arguments: fc.Arguments}
		break
	}
	if out.ToolCall == nil {
		out.Text = resp.OutputText()
	}
	if out.ToolCall == nil && out.Text == "" {
		return nil, ErrEmptyResponse
	}
	c.log.Debug("model response",
		zap.String("model", req.Model),
		zap.String("response_id", resp.ID),
		zap.Bool("tool_call", out.ToolCall != nil),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)
	return out, nil
}

func (c *OpenAIClient) Structured(ctx context.Context, req StructuredRequest) (string, error) {
	params := responses.ResponseNewParams{
		Model:        req.Model,
		Instructions: openai.String(req.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(req.Input),
		},
		Store: openai.Bool(false),
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        req.SchemaName,
					Strict:      param.NewOpt(true),
					Schema:      req.Schema,
					Description: param.NewOpt(req.Description),
				},
			},
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai responses error: %w", err)
	}
	content := resp.OutputText()
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// IsClientError reports a 4xx rejection other than rate limiting. Retrying the same
// payload cannot succeed.
func IsClientError(err error) bool {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
}

func toInputItems(items []Item) responses.ResponseInputParam {
	out := make(responses.ResponseInputParam, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case ItemFunctionCall:
			out = append(out, responses.ResponseInputItemParamOfFunctionCall(it.Arguments, it.CallID, it.Name))
		case ItemFunctionOutput:
			out = append(out, responses.ResponseInputItemParamOfFunctionCallOutput(it.CallID, it.Output))
		default:
			role := responses.EasyInputMessageRoleUser
			if it.Role == RoleAssistant {
				role = responses.EasyInputMessageRoleAssistant
			}
			out = append(out, responses.ResponseInputItemParamOfMessage(it.Content, role))
		}
	}
	return out
}
