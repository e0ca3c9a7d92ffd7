package intent

import (
	"regexp"
	"strings"
)

var (
	docNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:INV|EST|QUO)[-#]?\d+\b`),
		regexp.MustCompile(`(?i)\binvoice\s+(?:number\s+|no\.?\s*)?#?(\d+)\b`),
		regexp.MustCompile(`#(\d+)\b`),
	}
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	creationWord = regexp.MustCompile(`(?i)\b(create|make|new|generate|draft|prepare|raise|bill|issue|send)\b`)
	invoiceWord  = regexp.MustCompile(`(?i)\binvoices?\b`)
	estimateWord = regexp.MustCompile(`(?i)\b(estimates?|quotes?|quotations?)\b`)
	pricePattern = regexp.MustCompile(`(?i)(?:[$€£]\s*\d[\d,]*(?:\.\d+)?|\b\d[\d,]*(?:\.\d+)?\s*(?:\$|€|£|usd|eur|gbp|dollars?|euros?|pounds?)?)`)
	pronounWord  = regexp.MustCompile(`(?i)\b(it|this|that|its|his|her|their|them)\b`)
)

// DocumentNumbers returns the document references in text in order of appearance,
// upper-cased and de-duplicated. A bare "#12" or "invoice 12" yields "12".
func DocumentNumbers(text string) []string {
	type hit struct {
		at  int
		num string
	}
	var hits []hit
	taken := make([]bool, len(text)+1)
	for _, re := range docNumberPatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if taken[loc[0]] {
				continue
			}
			num := text[loc[0]:loc[1]]
			if len(loc) >= 4 && loc[2] >= 0 {
				num = text[loc[2]:loc[3]]
			}
			for i := loc[0]; i < loc[1]; i++ {
				taken[i] = true
			}
			hits = append(hits, hit{at: loc[0], num: strings.ToUpper(num)})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].at < hits[j-1].at; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	out := make([]string, 0, len(hits))
	seen := map[string]bool{}
	for _, h := range hits {
		if !seen[h.num] {
			seen[h.num] = true
			out = append(out, h.num)
		}
	}
	return out
}

// Emails returns the e-mail addresses in text, lower-cased and de-duplicated.
func Emails(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, e := range emailPattern.FindAllString(text, -1) {
		e = strings.ToLower(e)
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func hasPrice(message string) bool {
	for _, loc := range pricePattern.FindAllStringIndex(message, -1) {
		// digits glued to a document prefix are references, not prices
		if loc[0] > 0 && (message[loc[0]-1] == '-' || message[loc[0]-1] == '#') {
			continue
		}
		return true
	}
	return false
}

// RuleClassify handles unambiguous creation requests without a model call.
// It returns false when the message needs the model.
func RuleClassify(message string) (Classification, bool) {
	if !creationWord.MatchString(message) || !hasPrice(message) {
		return Classification{}, false
	}
	if len(DocumentNumbers(message)) > 0 || pronounWord.MatchString(message) {
		return Classification{}, false
	}
	var in Intent
	switch {
	case estimateWord.MatchString(message) && !invoiceWord.MatchString(message):
		in = CreateEstimate
	case invoiceWord.MatchString(message):
		in = CreateInvoice
	default:
		return Classification{}, false
	}
	return Classification{
		Intents:            []Intent{in},
		Complexity:         Simple,
		RequiredToolGroups: ImpliedGroups(in),
		SuggestedModel:     TierBudget,
		Scope:              ScopeInvoice,
		Confidence:         0.9,
		Source:             SourceRule,
	}, true
}

var keywordIntents = []struct {
	intent Intent
	re     *regexp.Regexp
}{
	{ConvertEstimate, regexp.MustCompile(`(?i)\bconvert\b|\bturn\b.*\binto an invoice\b`)},
	{CreateEstimate, regexp.MustCompile(`(?i)\b(create|make|new|draft|prepare)\b.*\b(estimate|quote|quotation)\b`)},
	{CreateInvoice, regexp.MustCompile(`(?i)\b(create|make|new|draft|generate|bill)\b.*\binvoice\b|\binvoice for\b`)},
	{DeleteInvoice, regexp.MustCompile(`(?i)\b(delete|remove|cancel)\b\s+(the\s+|this\s+|that\s+)?invoice\b`)},
	{ManageLineItems, regexp.MustCompile(`(?i)\b(line items?|items?|quantity|qty)\b`)},
	{UpdateClient, regexp.MustCompile(`(?i)\b(address|phone|client|customer|contact|tax number)\b`)},
	{RecordPayment, regexp.MustCompile(`(?i)\b(paid|unpaid|payment received|partial(ly)?|status)\b`)},
	{PaymentSetup, regexp.MustCompile(`(?i)\b(paypal|stripe|bank transfer|bank details|payment methods?)\b`)},
	{BusinessSettings, regexp.MustCompile(`(?i)\b(business|company|prefix|default tax|my details)\b`)},
	{UsageLimits, regexp.MustCompile(`(?i)\b(limit|usage|plan|upgrade|subscription)\b`)},
	{QueryInvoices, regexp.MustCompile(`(?i)\b(show|list|find|search|how many|which|overdue)\b`)},
	{UpdateInvoice, regexp.MustCompile(`(?i)\b(update|change|edit|set|due date|discount|tax|notes?|design|colou?r)\b`)},
}

// GuessIntents is the keyword reading of a message used when the model is unavailable.
func GuessIntents(message string) []Intent {
	var out []Intent
	for _, k := range keywordIntents {
		if k.re.MatchString(message) {
			out = append(out, k.intent)
		}
	}
	if len(out) == 0 {
		return []Intent{General}
	}
	return out
}
