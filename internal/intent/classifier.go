package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"invoice-agent/internal/ai"
	"invoice-agent/internal/resilience"

	"go.uber.org/zap"
)

// Source records which path produced a classification.
type Source string

const (
	SourceRule     Source = "rule"
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Targets holds the entities a request points at. An empty InvoiceNumber means none.
type Targets struct {
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
}

// Classification is the validated classifier output.
type Classification struct {
	Intents            []Intent    `json:"intents"`
	Complexity         Complexity  `json:"complexity"`
	RequiredToolGroups []ToolGroup `json:"requiredToolGroups"`
	RequiresSequencing bool        `json:"requiresSequencing"`
	SuggestedModel     ModelTier   `json:"suggestedModel"`
	NeedsContext       bool        `json:"needsContext"`
	MissingFields      []string    `json:"missingFields"`
	Scope              Scope       `json:"scope"`
	Targets            Targets     `json:"targets"`
	Confidence         float64     `json:"confidence"`
	Source             Source      `json:"source"`
}

// Has reports whether in is among the classified intents.
func (c Classification) Has(in Intent) bool {
	return slices.Contains(c.Intents, in)
}

// Dominant returns the single intent the loop may force, or "" when the request
// is ambiguous or not confident enough.
func (c Classification) Dominant(minConfidence float64) Intent {
	if c.Confidence < minConfidence || c.RequiresSequencing || c.NeedsContext {
		return ""
	}
	var found Intent
	for _, in := range c.Intents {
		if in == ContextAwareUpdate || in == General {
			continue
		}
		if found != "" {
			return ""
		}
		found = in
	}
	return found
}

// Fallback is the conservative superset used whenever model output cannot be trusted.
func Fallback(message string) Classification {
	return Classification{
		Intents:            GuessIntents(message),
		Complexity:         Complex,
		RequiredToolGroups: slices.Clone(AllGroups),
		SuggestedModel:     TierPremium,
		Scope:              ScopeUnknown,
		Confidence:         0,
		Source:             SourceFallback,
	}
}

// wireClassification is the schema the model must fill. Every field is required
// so the schema is valid for strict structured output.
type wireClassification struct {
	Intents            []string    `json:"intents" jsonschema:"description=One or more intent tags"`
	Complexity         string      `json:"complexity"`
	RequiredToolGroups []string    `json:"requiredToolGroups" jsonschema:"description=Minimal tool groups needed"`
	RequiresSequencing bool        `json:"requiresSequencing"`
	SuggestedModel     string      `json:"suggestedModel"`
	NeedsContext       bool        `json:"needsContext"`
	MissingFields      []string    `json:"missingFields"`
	Scope              string      `json:"scope"`
	Targets            wireTargets `json:"targets"`
	Confidence         float64     `json:"confidence" jsonschema:"description=Confidence between 0 and 1"`
}

type wireTargets struct {
	InvoiceNumber string `json:"invoiceNumber" jsonschema:"description=Referenced invoice number or empty string"`
}

var classificationSchema = buildSchema()

func buildSchema() map[string]any {
	s := ai.MustSchema(&wireClassification{})
	props := s["properties"].(map[string]any)
	setItemEnum(props, "intents", intentStrings())
	setItemEnum(props, "requiredToolGroups", groupStrings())
	setEnum(props, "complexity", []any{string(Simple), string(Moderate), string(Complex)})
	setEnum(props, "suggestedModel", []any{string(TierBudget), string(TierMid), string(TierPremium)})
	setEnum(props, "scope", []any{string(ScopeInvoice), string(ScopeGlobal), string(ScopeBoth), string(ScopeUnknown)})
	return s
}

func setEnum(props map[string]any, name string, values []any) {
	if p, ok := props[name].(map[string]any); ok {
		p["enum"] = values
	}
}

func setItemEnum(props map[string]any, name string, values []any) {
	if p, ok := props[name].(map[string]any); ok {
		if items, ok := p["items"].(map[string]any); ok {
			items["enum"] = values
		}
	}
}

// ClassificationSchema returns the JSON schema sent to the model.
func ClassificationSchema() map[string]any {
	return classificationSchema
}

const instructions = `You classify messages sent to an invoicing assistant.
Return every intent the message expresses, the minimal tool groups needed, and how complex the request is.
Use "simple" and "budget" for a single clear action, "complex" and "premium" for multi-step or ambiguous requests.
Set requiresSequencing when one action depends on the result of another.
Set targets.invoiceNumber only to a number written in the message or listed in the context; otherwise use an empty string.
When the message refers to an invoice with a pronoun and the context has no active invoice, set needsContext and list "invoice_reference" in missingFields.
List any other required information the user left out in missingFields.`

// Classifier maps a message and context pack to a Classification.
type Classifier struct {
	model ai.ModelClient
	name  string
	exec  *resilience.Executor
	log   *zap.Logger
}

// NewClassifier uses modelName for the structured call, bounded by exec. A nil
// model disables the model path so only the rule shortcut and the fallback are
// used; a nil exec gets the default retry policy.
func NewClassifier(model ai.ModelClient, modelName string, exec *resilience.Executor, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), log)
	}
	return &Classifier{model: model, name: modelName, exec: exec, log: log.Named("classifier")}
}

// Classify never fails: a model or validation failure yields Fallback.
func (c *Classifier) Classify(ctx context.Context, message string, pack *ContextPack) Classification {
	if cls, ok := RuleClassify(message); ok {
		return Finalize(cls, message, pack)
	}
	cls, err := c.fromModel(ctx, message, pack)
	if err != nil {
		c.log.Warn("classification fell back", zap.Error(err))
		cls = Fallback(message)
	}
	return Finalize(cls, message, pack)
}

func (c *Classifier) fromModel(ctx context.Context, message string, pack *ContextPack) (Classification, error) {
	if c.model == nil {
		return Classification{}, fmt.Errorf("no classifier model configured")
	}
	req := ai.StructuredRequest{
		Model:        c.name,
		Instructions: instructions,
		Input:        "Context:\n" + pack.Render() + "\n\nMessage:\n" + message,
		SchemaName:   "intent_classification",
		Description:  "Classification of a user message",
		Schema:       classificationSchema,
	}
	var raw string
	err := c.exec.Execute(ctx, "model.classify", func(ctx context.Context) error {
		out, err := c.model.Structured(ctx, req)
		if err != nil {
			return err
		}
		raw = out
		return nil
	}, classifyModelError)
	if err != nil {
		return Classification{}, fmt.Errorf("classifier call: %w", err)
	}
	return ParseModelOutput(raw)
}

func classifyModelError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || ai.IsClientError(err) {
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

// ParseModelOutput validates raw against the classification schema and converts it.
func ParseModelOutput(raw string) (Classification, error) {
	if err := ai.ValidateJSON(classificationSchema, raw); err != nil {
		return Classification{}, err
	}
	var w wireClassification
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	cls := Classification{
		Complexity:         Complexity(w.Complexity),
		RequiresSequencing: w.RequiresSequencing,
		SuggestedModel:     ModelTier(w.SuggestedModel),
		NeedsContext:       w.NeedsContext,
		Scope:              Scope(w.Scope),
		Targets:            Targets{InvoiceNumber: strings.TrimSpace(w.Targets.InvoiceNumber)},
		Confidence:         min(max(w.Confidence, 0), 1),
		Source:             SourceModel,
	}
	for _, s := range w.Intents {
		if in := Intent(s); in.Valid() && !cls.Has(in) {
			cls.Intents = append(cls.Intents, in)
		}
	}
	if len(cls.Intents) == 0 {
		return Classification{}, fmt.Errorf("classification has no intents")
	}
	for _, s := range w.RequiredToolGroups {
		if g := ToolGroup(s); g.Valid() {
			cls.RequiredToolGroups = append(cls.RequiredToolGroups, g)
		}
	}
	for _, f := range w.MissingFields {
		if f = strings.TrimSpace(f); f != "" && !slices.Contains(cls.MissingFields, f) {
			cls.MissingFields = append(cls.MissingFields, f)
		}
	}
	return cls, nil
}

// Finalize applies the rules every classification must satisfy regardless of source:
// pronoun binding, the target invariant, implied groups and tier floors.
func Finalize(cls Classification, message string, pack *ContextPack) Classification {
	if len(cls.Intents) == 0 {
		cls.Intents = []Intent{General}
	}

	explicit := DocumentNumbers(message)
	switch {
	case len(explicit) > 0:
		cls.Targets.InvoiceNumber = explicit[0]
	case cls.Targets.InvoiceNumber != "" && !pack.Knows(cls.Targets.InvoiceNumber):
		cls.Targets.InvoiceNumber = ""
	}

	if len(explicit) == 0 && pronounWord.MatchString(message) && needsInvoice(cls.Intents) {
		if pack.HasActiveInvoice() {
			if cls.Targets.InvoiceNumber == "" {
				cls.Targets.InvoiceNumber = pack.ActiveInvoice
			}
			cls.addIntent(ContextAwareUpdate)
			cls.MissingFields = slices.DeleteFunc(cls.MissingFields, func(f string) bool { return f == MissingInvoiceReference })
		} else {
			cls.Targets.InvoiceNumber = ""
			cls.NeedsContext = true
			if !slices.Contains(cls.MissingFields, MissingInvoiceReference) {
				cls.MissingFields = append(cls.MissingFields, MissingInvoiceReference)
			}
		}
	}
	if slices.Contains(cls.MissingFields, MissingInvoiceReference) && cls.Targets.InvoiceNumber != "" {
		cls.MissingFields = slices.DeleteFunc(cls.MissingFields, func(f string) bool { return f == MissingInvoiceReference })
	}
	if len(cls.MissingFields) > 0 {
		cls.NeedsContext = true
	}

	for _, in := range cls.Intents {
		for _, g := range ImpliedGroups(in) {
			if !slices.Contains(cls.RequiredToolGroups, g) {
				cls.RequiredToolGroups = append(cls.RequiredToolGroups, g)
			}
		}
	}
	cls.RequiredToolGroups = canonicalGroups(cls.RequiredToolGroups)

	if cls.Complexity == "" {
		cls.Complexity = Moderate
	}
	if cls.SuggestedModel == "" {
		cls.SuggestedModel = TierMid
	}
	if cls.RequiresSequencing && cls.SuggestedModel.rank() < TierMid.rank() {
		cls.SuggestedModel = TierMid
	}
	if cls.Complexity == Complex && cls.SuggestedModel.rank() < TierMid.rank() {
		cls.SuggestedModel = TierMid
	}
	if cls.Scope == "" {
		cls.Scope = ScopeUnknown
	}
	return cls
}

func (c *Classification) addIntent(in Intent) {
	if !c.Has(in) {
		c.Intents = append(c.Intents, in)
	}
}

func needsInvoice(intents []Intent) bool {
	for _, in := range intents {
		if in.invoiceScoped() {
			return true
		}
	}
	return false
}

func canonicalGroups(groups []ToolGroup) []ToolGroup {
	out := make([]ToolGroup, 0, len(groups))
	for _, g := range AllGroups {
		if slices.Contains(groups, g) {
			out = append(out, g)
		}
	}
	return out
}
