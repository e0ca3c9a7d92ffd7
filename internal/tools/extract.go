package tools

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	draftClientPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:for|to)\s+(\p{Lu}[\p{L}'&.\-]*(?:\s+\p{Lu}[\p{L}'&.\-]*)*)`),
		regexp.MustCompile(`\b(?i:invoice|estimate|quote)\s+(\p{Lu}[\p{L}'&.\-]*(?:\s+\p{Lu}[\p{L}'&.\-]*)*)`),
	}
	draftPrice  = regexp.MustCompile(`([$€£]\s?)?(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{1,2}))?(?:\s*((?i:dollars|usd|eur|euros|gbp|pounds)))?`)
	connectors  = regexp.MustCompile(`(?i)^(?:for|of|at|to|with|-|:|,)\s+|\s+(?:for|of|at|to|with|-|:|,)$`)
	leadingVerb = regexp.MustCompile(`(?i)^(?:please\s+)?(?:(?:create|make|draft|generate|send|bill)\s+)?(?:me\s+)?(?:an?\s+)?(?:new\s+)?(?:invoice|estimate|quote)\b`)
)

// ExtractDraft pulls a client name, one priced item and a currency out of a
// creation request such as "invoice for Acme Corp for website design $1,500".
// ok is false when no client or no price can be found.
func ExtractDraft(message string) (DocumentDraft, bool) {
	msg := strings.Join(strings.Fields(message), " ")

	var client string
	var clientSpan [2]int
	for _, re := range draftClientPatterns {
		if m := re.FindStringSubmatchIndex(msg); m != nil {
			client = strings.TrimRight(msg[m[2]:m[3]], ".")
			clientSpan = [2]int{m[0], m[3]}
			break
		}
	}
	if client == "" {
		return DocumentDraft{}, false
	}

	// The last amount with a currency marker wins; a bare number is the fallback.
	var price, bare []int
	for _, m := range draftPrice.FindAllStringSubmatchIndex(msg, -1) {
		if m[0] > 0 && (msg[m[0]-1] == '-' || msg[m[0]-1] == '#' || isLetter(msg[m[0]-1])) {
			continue
		}
		if m[2] >= 0 || m[8] >= 0 {
			price = m
		} else {
			bare = m
		}
	}
	if price == nil {
		price = bare
	}
	if price == nil {
		return DocumentDraft{}, false
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(msg[price[4]:price[5]], ",", "")+fraction(msg, price), 64)
	if err != nil || amount <= 0 {
		return DocumentDraft{}, false
	}

	desc := "Services"
	for _, seg := range outside(msg, clientSpan, [2]int{price[0], price[1]}) {
		if seg = cleanDescription(seg); len(seg) > 0 && (desc == "Services" || len(seg) > len(desc)) {
			desc = seg
		}
	}

	return DocumentDraft{
		ClientName: client,
		Currency:   currencyOf(msg, price),
		LineItems:  []LineItemInput{{Name: itemName(desc), UnitPrice: amount}},
	}, true
}

// outside returns the parts of s not covered by the two spans.
func outside(s string, a, b [2]int) []string {
	if b[0] < a[0] {
		a, b = b, a
	}
	segs := []string{s[:a[0]]}
	if b[0] > a[1] {
		segs = append(segs, s[a[1]:b[0]])
	}
	return append(segs, s[max(a[1], b[1]):])
}

func cleanDescription(s string) string {
	s = strings.Trim(s, " .!?,")
	s = strings.TrimSpace(leadingVerb.ReplaceAllString(s, ""))
	for {
		next := strings.Trim(connectors.ReplaceAllString(s, ""), " .!?,")
		if next == s {
			return s
		}
		s = next
	}
}

func fraction(msg string, m []int) string {
	if m[6] < 0 {
		return ""
	}
	return "." + msg[m[6]:m[7]]
}

func currencyOf(msg string, m []int) string {
	if m[2] >= 0 {
		switch strings.TrimSpace(msg[m[2]:m[3]]) {
		case "€":
			return "EUR"
		case "£":
			return "GBP"
		}
		return ""
	}
	if m[8] < 0 {
		return ""
	}
	switch strings.ToLower(msg[m[8]:m[9]]) {
	case "eur", "euros":
		return "EUR"
	case "gbp", "pounds":
		return "GBP"
	}
	return ""
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
