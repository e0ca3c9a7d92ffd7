package prompt

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"invoice-agent/internal/ai"
	"invoice-agent/internal/intent"
)

// UserContext is the per-user rendering context appended to every prompt.
type UserContext struct {
	Currency      string
	Locale        string
	Today         time.Time
	ActiveInvoice string
	ClientName    string
}

// Assembly is the prompt and tool set for one request.
type Assembly struct {
	SystemPrompt string
	Modules      []string
	Tools        []ai.ToolSpec
}

// Assemble is pure and monotonic in cls.Intents: adding an intent never removes a
// module or a tool. A tool is included only when its group was selected.
func Assemble(cls intent.Classification, uc UserContext, catalog []ai.ToolSpec) Assembly {
	want := slices.Clone(baseline)
	for _, in := range cls.Intents {
		want = append(want, intentModules[in]...)
	}

	var (
		names []string
		parts []string
	)
	for _, m := range Catalog {
		if slices.Contains(want, m.Name) {
			names = append(names, m.Name)
			parts = append(parts, m.Text)
		}
	}
	parts = append(parts, renderUserContext(uc))

	groups := map[string]bool{}
	for _, g := range cls.RequiredToolGroups {
		groups[string(g)] = true
	}
	for _, in := range cls.Intents {
		for _, g := range intent.ImpliedGroups(in) {
			groups[string(g)] = true
		}
	}
	var tools []ai.ToolSpec
	for _, t := range catalog {
		if groups[t.Group] {
			tools = append(tools, t)
		}
	}

	return Assembly{
		SystemPrompt: strings.Join(parts, "\n\n"),
		Modules:      names,
		Tools:        tools,
	}
}

func renderUserContext(uc UserContext) string {
	currency := uc.Currency
	if currency == "" {
		currency = "USD"
	}
	locale := uc.Locale
	if locale == "" {
		locale = "en-US"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "User context:\n- Currency: %s\n- Locale: %s", currency, locale)
	if !uc.Today.IsZero() {
		fmt.Fprintf(&b, "\n- Today: %s", uc.Today.Format(time.DateOnly))
	}
	if uc.ActiveInvoice != "" {
		fmt.Fprintf(&b, "\n- Active invoice: %s", uc.ActiveInvoice)
	}
	if uc.ClientName != "" {
		fmt.Fprintf(&b, "\n- Active client: %s", uc.ClientName)
	}
	return b.String()
}
