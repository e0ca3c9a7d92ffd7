package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"invoice-agent/internal/core"
	"invoice-agent/internal/intent"
	"invoice-agent/internal/memory"

	"go.uber.org/zap"
)

const (
	defaultCurrency = "USD"
	defaultLocale   = "en-US"
	defaultTimezone = "UTC"

	// DefaultHistoryTurns bounds how much conversation the builder scans.
	DefaultHistoryTurns = 10

	summaryQuoteLen = 120
)

// ContextBuilder assembles the per-request ContextPack from conversation history,
// conversation memory and persisted account state. It never calls the model and
// never fails: every lookup error degrades to a default.
type ContextBuilder struct {
	gw            core.Gateway
	mem           memory.Store
	freeTierLimit int
	historyTurns  int
	log           *zap.Logger
}

func NewContextBuilder(gw core.Gateway, mem memory.Store, freeTierLimit, historyTurns int, log *zap.Logger) *ContextBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &ContextBuilder{
		gw:            gw,
		mem:           mem,
		freeTierLimit: freeTierLimit,
		historyTurns:  historyTurns,
		log:           log.Named("context"),
	}
}

// Build returns the pack for userID. uc overrides the account currency and locale.
func (b *ContextBuilder) Build(ctx context.Context, userID string, history []Message, uc *UserContext) *intent.ContextPack {
	pack := &intent.ContextPack{
		UserID:   userID,
		Plan:     core.PlanFree,
		Locale:   defaultLocale,
		Timezone: defaultTimezone,
		Currency: defaultCurrency,
	}
	log := b.log.With(zap.String("user_id", userID))

	b.account(ctx, log, pack)
	if uc != nil {
		if c := strings.TrimSpace(uc.Currency); c != "" {
			pack.Currency = strings.ToUpper(c)
		}
		if l := strings.TrimSpace(uc.Locale); l != "" {
			pack.Locale = l
		}
	}

	scanHistory(pack, lastTurns(history, b.historyTurns))
	b.recall(ctx, log, pack)
	if pack.ActiveInvoice == "" {
		b.latestInvoice(ctx, log, pack)
	}
	return pack
}

// account fills plan, locale, currency, payment methods and usage.
func (b *ContextBuilder) account(ctx context.Context, log *zap.Logger, pack *intent.ContextPack) {
	user, err := b.gw.GetUser(ctx, pack.UserID)
	switch {
	case err == nil:
		if user.Plan != "" {
			pack.Plan = user.Plan
		}
		pack.Locale = firstSet(user.Locale, pack.Locale)
		pack.Timezone = firstSet(user.Timezone, pack.Timezone)
		pack.Currency = strings.ToUpper(firstSet(user.Currency, pack.Currency))
	case !errors.Is(err, core.ErrNotFound):
		log.Warn("user lookup failed", zap.Error(err))
	}

	if bs, err := b.gw.GetBusinessSettings(ctx, pack.UserID); err == nil {
		pack.Currency = strings.ToUpper(firstSet(bs.Currency, pack.Currency))
	} else if !errors.Is(err, core.ErrNotFound) {
		log.Warn("business settings lookup failed", zap.Error(err))
	}

	if po, err := b.gw.GetPaymentOptions(ctx, pack.UserID); err == nil {
		pack.PaymentMethods = intent.PaymentMethods{
			Stripe:       po.StripeEnabled && po.StripeAccountID != "",
			PayPal:       po.PayPalEnabled && po.PayPalEmail != "",
			PayPalEmail:  po.PayPalEmail,
			BankTransfer: po.BankTransferEnabled && po.BankDetails != "",
			BankDetails:  po.BankDetails,
		}
	} else if !errors.Is(err, core.ErrNotFound) {
		log.Warn("payment options lookup failed", zap.Error(err))
	}

	counts, err := b.gw.CountDocuments(ctx, pack.UserID)
	if err != nil {
		log.Warn("document count failed", zap.Error(err))
	}
	pack.Usage = intent.Usage{Documents: counts.Total()}
	if pack.Plan == core.PlanFree {
		pack.Usage.Limit = b.freeTierLimit
	}
}

// scanHistory walks turns newest first. The active invoice is the most recently
// mentioned invoice number; the last shown one is the latest an assistant turn mentioned.
func scanHistory(pack *intent.ContextPack, turns []Message) {
	seenNum := map[string]bool{}
	seenMail := map[string]bool{}
	seenIntent := map[intent.Intent]bool{}

	for i := len(turns) - 1; i >= 0; i-- {
		m := turns[i]
		nums := intent.DocumentNumbers(m.Content)
		for j := len(nums) - 1; j >= 0; j-- {
			n := nums[j]
			if !seenNum[n] {
				seenNum[n] = true
				pack.RecentInvoiceNumbers = append(pack.RecentInvoiceNumbers, n)
			}
			if !isInvoiceNumber(n) {
				continue
			}
			if pack.ActiveInvoice == "" {
				pack.ActiveInvoice = n
			}
			if pack.LastShownInvoice == "" && m.Role == RoleAssistant {
				pack.LastShownInvoice = n
			}
		}
		for _, e := range intent.Emails(m.Content) {
			if !seenMail[e] {
				seenMail[e] = true
				pack.RecentEmails = append(pack.RecentEmails, e)
			}
		}
		if m.Role == RoleUser {
			for _, in := range intent.GuessIntents(m.Content) {
				if in != intent.General && !seenIntent[in] {
					seenIntent[in] = true
					pack.RecentIntents = append(pack.RecentIntents, in)
				}
			}
		}
	}
	pack.Summary = summarize(turns)
}

// recall applies the conversation memory entry. A deleted invoice is never active.
func (b *ContextBuilder) recall(ctx context.Context, log *zap.Logger, pack *intent.ContextPack) {
	if b.mem == nil {
		return
	}
	entry, ok, err := b.mem.Get(ctx, pack.UserID)
	if err != nil {
		log.Warn("memory lookup failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	pack.LastAction = &entry
	if entry.Action == memory.ActionDeletedInvoice {
		if strings.EqualFold(pack.ActiveInvoice, entry.InvoiceNumber) {
			pack.ActiveInvoice = ""
		}
		return
	}
	if pack.ActiveInvoice == "" && entry.InvoiceNumber != "" {
		pack.ActiveInvoice = entry.InvoiceNumber
		pack.ActiveInvoiceID = entry.InvoiceID
	}
	if strings.EqualFold(pack.ActiveInvoice, entry.InvoiceNumber) {
		pack.ActiveInvoiceID = entry.InvoiceID
	}
	pack.ActiveClientName = entry.ClientName
}

func (b *ContextBuilder) latestInvoice(ctx context.Context, log *zap.Logger, pack *intent.ContextPack) {
	invs, err := b.gw.FindInvoices(ctx, core.InvoiceFilter{UserID: pack.UserID, Limit: 1})
	if err != nil {
		log.Warn("latest invoice lookup failed", zap.Error(err))
		return
	}
	if len(invs) == 0 {
		return
	}
	pack.ActiveInvoice = invs[0].Number
	pack.ActiveInvoiceID = invs[0].ID
}

func isInvoiceNumber(n string) bool {
	return !strings.HasPrefix(n, "EST") && !strings.HasPrefix(n, "QUO")
}

func lastTurns(history []Message, n int) []Message {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func summarize(turns []Message) string {
	var users int
	var last string
	for _, m := range turns {
		if m.Role == RoleUser {
			users++
			last = m.Content
		}
	}
	if users == 0 {
		return ""
	}
	last = strings.Join(strings.Fields(last), " ")
	if r := []rune(last); len(r) > summaryQuoteLen {
		last = string(r[:summaryQuoteLen]) + "…"
	}
	return fmt.Sprintf("%d earlier user turns; the last one said %q", users, last)
}

func firstSet(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
