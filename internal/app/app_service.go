package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"invoice-agent/internal/ai"
	"invoice-agent/internal/core"
	"invoice-agent/internal/intent"
	"invoice-agent/internal/memory"
	"invoice-agent/internal/metrics"
	"invoice-agent/internal/prompt"
	"invoice-agent/internal/tools"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const clarifyInvoice = "Which invoice do you mean? Tell me its number (for example INV-001) or the client's name."

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Gateway    core.Gateway
	Memory     memory.Store
	Classifier *intent.Classifier
	Engine     *tools.Engine
	Loop       *Loop
	Builder    *ContextBuilder
	Models     intent.Models
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

type appService struct {
	gw         core.Gateway
	mem        memory.Store
	classifier *intent.Classifier
	engine     *tools.Engine
	loop       *Loop
	builder    *ContextBuilder
	models     intent.Models
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(d Deps) ApplicationService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &appService{
		gw:         d.Gateway,
		mem:        d.Memory,
		classifier: d.Classifier,
		engine:     d.Engine,
		loop:       d.Loop,
		builder:    d.Builder,
		models:     d.Models,
		metrics:    d.Metrics,
		log:        d.Logger.Named("app"),
		now:        d.Now,
	}
}

// HandleMessage runs one conversational turn.
func (s *appService) HandleMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msg := strings.TrimSpace(req.Message)
	userID := strings.TrimSpace(req.UserID)
	if msg == "" {
		s.metrics.RecordChat("invalid")
		return nil, fmt.Errorf("%w: message is required", core.ErrInvalidInput)
	}
	if userID == "" {
		s.metrics.RecordChat("invalid")
		return nil, fmt.Errorf("%w: userId is required", core.ErrInvalidInput)
	}
	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}
	now := s.now()

	pack := s.builder.Build(ctx, userID, req.History, req.UserContext)
	cls := s.classifier.Classify(ctx, msg, pack)
	s.metrics.RecordClassification(string(cls.Source), string(cls.SuggestedModel))

	log := s.log.With(zap.String("user_id", userID), zap.String("thread_id", threadID))
	log.Info("message classified",
		zap.Strings("intents", intentStrings(cls.Intents)),
		zap.String("source", string(cls.Source)),
		zap.String("tier", string(cls.SuggestedModel)),
		zap.Float64("confidence", cls.Confidence),
		zap.String("target", cls.Targets.InvoiceNumber),
	)

	var res LoopResult
	if needsInvoiceReference(cls) {
		res = LoopResult{Answer: clarifyInvoice, Termination: TerminationClarify}
	} else {
		asm := prompt.Assemble(cls, s.userContext(pack, now), s.engine.Specs())
		model := s.models.For(cls.SuggestedModel)
		log.Debug("prompt assembled",
			zap.Strings("modules", asm.Modules),
			zap.Strings("tools", ai.ToolNames(asm.Tools)),
			zap.String("model", model),
		)
		res = s.loop.Run(tools.WithActiveInvoice(ctx, activeTarget(cls, pack)), Run{
			UserID:         userID,
			Message:        msg,
			History:        toItems(lastTurns(req.History, s.builder.historyTurns)),
			Model:          model,
			Assembly:       asm,
			Classification: cls,
		})
	}

	outcome := "ok"
	if res.Termination.Degraded() {
		outcome = "degraded"
	}
	s.metrics.RecordChat(outcome)

	return &ChatResponse{
		Success: !res.Termination.Degraded(),
		Messages: []Message{
			{ID: uuid.NewString(), Role: RoleUser, Content: msg, CreatedAt: now},
			{ID: uuid.NewString(), Role: RoleAssistant, Content: res.Answer, CreatedAt: s.now()},
		},
		Thread:      Thread{ID: threadID, UserID: userID},
		Attachments: res.Attachments,
	}, nil
}

func (s *appService) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" || strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: message and user id are required", core.ErrInvalidInput)
	}
	pack := s.builder.Build(ctx, req.UserID, req.History, nil)
	cls := s.classifier.Classify(ctx, msg, pack)
	asm := prompt.Assemble(cls, s.userContext(pack, s.now()), s.engine.Specs())
	return &ClassifyResult{
		Context:        pack.Render(),
		Classification: cls,
		Model:          s.models.For(cls.SuggestedModel),
		Modules:        asm.Modules,
		Tools:          ai.ToolNames(asm.Tools),
	}, nil
}

func (s *appService) NextNumber(ctx context.Context, req NextNumberRequest) (string, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", fmt.Errorf("%w: user id is required", core.ErrInvalidInput)
	}
	kind := req.Kind
	if kind == "" {
		kind = core.KindInvoice
	}
	if kind != core.KindInvoice && kind != core.KindEstimate {
		return "", fmt.Errorf("%w: unknown document kind %q", core.ErrInvalidInput, kind)
	}
	return s.engine.PreviewNumber(ctx, req.UserID, kind)
}

func (s *appService) SweepOverdue(ctx context.Context) (int, error) {
	n, err := s.gw.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep overdue: %w", err)
	}
	return n, nil
}

func (s *appService) PurgeMemory(ctx context.Context) (int, error) {
	if s.mem == nil {
		return 0, nil
	}
	n, err := s.mem.Purge(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge memory: %w", err)
	}
	return n, nil
}

func (s *appService) userContext(pack *intent.ContextPack, now time.Time) prompt.UserContext {
	return prompt.UserContext{
		Currency:      pack.Currency,
		Locale:        pack.Locale,
		Today:         now,
		ActiveInvoice: pack.ActiveInvoice,
		ClientName:    pack.ActiveClientName,
	}
}

// needsInvoiceReference is true when the request points at an invoice the context
// cannot resolve. The user is asked rather than a target guessed.
func needsInvoiceReference(cls intent.Classification) bool {
	if !cls.NeedsContext || cls.Targets.InvoiceNumber != "" {
		return false
	}
	if cls.Has(intent.CreateInvoice) || cls.Has(intent.CreateEstimate) {
		return false
	}
	return slices.Contains(cls.MissingFields, intent.MissingInvoiceReference)
}

// activeTarget is the invoice pronouns bind to for this turn: the classified
// target, else the pack's active invoice.
func activeTarget(cls intent.Classification, pack *intent.ContextPack) string {
	if cls.Targets.InvoiceNumber != "" {
		return cls.Targets.InvoiceNumber
	}
	if pack != nil {
		return pack.ActiveInvoice
	}
	return ""
}

func toItems(history []Message) []ai.Item {
	items := make([]ai.Item, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case RoleUser:
			items = append(items, ai.UserMessage(content))
		case RoleAssistant:
			items = append(items, ai.AssistantMessage(content))
		}
	}
	return items
}

func intentStrings(in []intent.Intent) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
