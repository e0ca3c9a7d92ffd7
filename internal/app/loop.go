package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"invoice-agent/internal/ai"
	"invoice-agent/internal/intent"
	"invoice-agent/internal/metrics"
	"invoice-agent/internal/prompt"
	"invoice-agent/internal/resilience"
	"invoice-agent/internal/tools"

	"go.uber.org/zap"
)

const (
	DefaultMaxSteps = 5
	DefaultBudget   = 24 * time.Second

	// DefaultForceConfidence is the classifier confidence above which a single
	// dominant intent forces its operation on the first step.
	DefaultForceConfidence = 0.7

	genericAck = "I've noted your request but couldn't finish it just now. Please try again in a moment."
)

type LoopConfig struct {
	MaxSteps        int
	Budget          time.Duration
	ForceConfidence float64
}

// Loop drives the bounded conversation between the model and the tool engine.
type Loop struct {
	model   ai.ModelClient
	engine  *tools.Engine
	exec    *resilience.Executor
	metrics *metrics.Metrics
	cfg     LoopConfig
	log     *zap.Logger
}

func NewLoop(model ai.ModelClient, engine *tools.Engine, exec *resilience.Executor, m *metrics.Metrics, cfg LoopConfig, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), log)
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.ForceConfidence <= 0 {
		cfg.ForceConfidence = DefaultForceConfidence
	}
	return &Loop{
		model:   model,
		engine:  engine,
		exec:    exec,
		metrics: m,
		cfg:     cfg,
		log:     log.Named("loop"),
	}
}

// Run is the input of one loop run.
type Run struct {
	UserID         string
	Message        string
	History        []ai.Item
	Model          string
	Assembly       prompt.Assembly
	Classification intent.Classification
}

type loopState int

const (
	awaitingModel loopState = iota
	toolRequested
	finalAnswer
	failed
)

// Run executes at most MaxSteps model round-trips within Budget. Exactly one
// operation runs per step and operations never overlap. Run never fails: model
// errors and exhausted budgets degrade to the best partial answer.
func (l *Loop) Run(ctx context.Context, run Run) LoopResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Budget)
	defer cancel()

	log := l.log.With(zap.String("user_id", run.UserID), zap.String("model", run.Model))
	offered := toolSet(run.Assembly.Tools)
	forced := l.forcedTool(run.Classification, offered)

	input := make([]ai.Item, 0, len(run.History)+1+2*l.cfg.MaxSteps)
	input = append(input, run.History...)
	input = append(input, ai.UserMessage(run.Message))

	var (
		res      LoopResult
		call     *ai.ToolCall
		lastOK   string
		lastTool string
	)
	state := awaitingModel

	for state != finalAnswer && state != failed {
		switch state {
		case awaitingModel:
			if res.Steps >= l.cfg.MaxSteps {
				res.Termination = TerminationStepBudget
				state = failed
				continue
			}
			if ctx.Err() != nil {
				res.Termination = TerminationTimeBudget
				state = failed
				continue
			}
			res.Steps++
			req := ai.Request{
				Model:        run.Model,
				Instructions: run.Assembly.SystemPrompt,
				Input:        input,
				Tools:        run.Assembly.Tools,
			}
			if res.Steps == 1 {
				req.ForceTool = forced
			}

			stepStart := time.Now()
			resp, err := l.respond(ctx, req)
			log.Info("model step",
				zap.Int("step", res.Steps),
				zap.String("tool", toolName(resp)),
				zap.Int64("elapsed_ms", time.Since(stepStart).Milliseconds()),
				zap.Error(err),
			)

			declined := err != nil || resp.ToolCall == nil
			if forced != "" && res.Steps == 1 && declined {
				if out, ok := l.forcedFallback(ctx, run, tools.Name(forced), &res); ok {
					res.Answer = out.Message
					res.Attachments = out.Attachments
					res.Termination = TerminationForcedFallback
					state = finalAnswer
					continue
				}
			}
			if err != nil {
				res.Termination = TerminationModelError
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
					res.Termination = TerminationTimeBudget
				}
				state = failed
				continue
			}
			if resp.ToolCall != nil {
				call = resp.ToolCall
				state = toolRequested
				continue
			}
			res.Answer = strings.TrimSpace(resp.Text)
			res.Termination = TerminationFinalAnswer
			state = finalAnswer

		case toolRequested:
			out := l.execute(ctx, run.UserID, *call, offered, &res)
			input = append(input, ai.FunctionCallItem(*call), ai.FunctionOutputItem(call.CallID, out.ModelOutput()))
			lastTool = out.Message
			if out.Success {
				lastOK = out.Message
			}
			if out.HasAttachment() {
				res.Answer = out.Message
				res.Attachments = out.Attachments
				res.Termination = TerminationAttachment
				state = finalAnswer
				continue
			}
			state = awaitingModel
		}
	}

	if state == failed {
		res.Answer = firstNonBlank(lastOK, lastTool, genericAck)
	}
	l.metrics.RecordLoop(res.Steps, string(res.Termination))
	log.Info("loop finished",
		zap.Int("step", res.Steps),
		zap.Int("tool_calls", len(res.ToolCalls)),
		zap.String("termination", string(res.Termination)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return res
}

// respond calls the model through the retry policy. An answer with neither text
// nor a tool call counts as a failed attempt.
func (l *Loop) respond(ctx context.Context, req ai.Request) (*ai.Response, error) {
	var resp *ai.Response
	err := l.exec.Execute(ctx, "model.respond", func(ctx context.Context) error {
		r, err := l.model.Respond(ctx, req)
		if err != nil {
			return err
		}
		if r == nil || (r.ToolCall == nil && strings.TrimSpace(r.Text) == "") {
			return ai.ErrEmptyResponse
		}
		resp = r
		return nil
	}, classifyModelError)
	return resp, err
}

// classifyModelError never retries caller cancellation or requests the API
// rejected as malformed.
func classifyModelError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || ai.IsClientError(err) {
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func (l *Loop) execute(ctx context.Context, userID string, call ai.ToolCall, offered map[string]bool, res *LoopResult) tools.Result {
	start := time.Now()
	var out tools.Result
	if !offered[call.Name] {
		l.log.Warn("model requested a tool outside the selected set",
			zap.String("user_id", userID), zap.String("tool", call.Name))
		out = tools.Result{Message: "That action isn't available for this request."}
	} else {
		out = l.engine.Execute(ctx, userID, call.Name, call.Arguments)
	}
	l.record(call.Name, call.Arguments, out, time.Since(start), res)
	return out
}

func (l *Loop) record(name, args string, out tools.Result, d time.Duration, res *LoopResult) {
	res.ToolCalls = append(res.ToolCalls, ToolCallRecord{
		Name:      name,
		Arguments: args,
		Success:   out.Success,
		Message:   out.Message,
		Duration:  d,
	})
	l.metrics.RecordToolCall(name, out.Success)
}

// forcedTool returns the operation to force on the first step, if any.
func (l *Loop) forcedTool(cls intent.Classification, offered map[string]bool) string {
	name, ok := tools.ForcedTool(cls.Dominant(l.cfg.ForceConfidence))
	if !ok || !offered[string(name)] {
		return ""
	}
	return string(name)
}

// forcedFallback performs the forced operation without the model when the model
// declined to call it. ok is false when the message holds too little to act on.
func (l *Loop) forcedFallback(ctx context.Context, run Run, name tools.Name, res *LoopResult) (tools.Result, bool) {
	var args any
	switch name {
	case tools.CreateInvoice:
		draft, ok := tools.ExtractDraft(run.Message)
		if !ok {
			return tools.Result{}, false
		}
		args = tools.CreateInvoiceArgs{DocumentDraft: draft}
	case tools.CreateEstimate:
		draft, ok := tools.ExtractDraft(run.Message)
		if !ok {
			return tools.Result{}, false
		}
		args = tools.CreateEstimateArgs{DocumentDraft: draft}
	case tools.CheckUsage:
		args = tools.NoArgs{}
	default:
		return tools.Result{}, false
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return tools.Result{}, false
	}
	l.log.Info("model declined the forced tool, executing directly",
		zap.String("user_id", run.UserID), zap.String("tool", string(name)))

	start := time.Now()
	out := l.engine.Execute(ctx, run.UserID, string(name), string(raw))
	l.record(string(name), string(raw), out, time.Since(start), res)
	return out, true
}

func toolSet(specs []ai.ToolSpec) map[string]bool {
	set := make(map[string]bool, len(specs))
	for _, s := range specs {
		set[s.Name] = true
	}
	return set
}

func toolName(resp *ai.Response) string {
	if resp == nil || resp.ToolCall == nil {
		return ""
	}
	return resp.ToolCall.Name
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
