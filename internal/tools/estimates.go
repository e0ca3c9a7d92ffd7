package tools

import (
	"context"
	"fmt"
	"strings"

	"invoice-agent/internal/core"
	"invoice-agent/internal/memory"

	"go.uber.org/zap"
)

func (e *Engine) createEstimate(ctx context.Context, userID string, args CreateEstimateArgs) (Result, error) {
	if trimmed(args.ClientName) == "" {
		return Result{}, invalidf("Who should this estimate be addressed to?")
	}
	items, err := buildItems(core.KindEstimate, args.LineItems)
	if err != nil {
		return Result{}, err
	}
	if err := e.ensureCapacity(ctx, userID); err != nil {
		return Result{}, err
	}
	settings, err := e.settings(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	est := &core.Estimate{
		UserID:       userID,
		Status:       core.EstimateDraft,
		EstimateDate: dateOnly(e.now()),
		Currency:     strings.ToUpper(firstNonEmpty(args.Currency, settings.Currency, "USD")),
		Notes:        trimmed(args.Notes),
		Financials:   args.financials(settings),
	}
	if args.ValidUntil != "" {
		d, err := parseDate(args.ValidUntil)
		if err != nil {
			return Result{}, err
		}
		est.ValidUntil = &d
	}
	client, err := e.upsertClient(ctx, userID, args.client())
	if err != nil {
		return Result{}, err
	}
	est.ClientID = client.ID
	est.Recompute(items)

	if err := e.insertNumbered(ctx, userID, core.KindEstimate, settings, func(number string) error {
		est.ID, est.Number = "", number
		return e.gw.InsertEstimate(ctx, est)
	}); err != nil {
		return Result{}, err
	}
	if err := e.insertItems(ctx, core.KindEstimate, est.ID, items); err != nil {
		e.compensateEstimate(ctx, est)
		return Result{}, err
	}

	snapshot := *est
	return Result{
		Success: true,
		Message: fmt.Sprintf("Created estimate %s for %s with %s. Total: %s.",
			est.Number, client.Name, plural(len(items), "item", "items"), money(est.Currency, est.Total)),
		Data: estimateData(est, client),
		Attachments: []Attachment{{
			Type:       AttachmentEstimate,
			EstimateID: est.ID,
			Estimate:   &snapshot,
			LineItems:  nonNil(items),
			ClientID:   client.ID,
			Client:     client,
		}},
		Effect: &Effect{
			Action:     memory.ActionCreatedEstimate,
			EstimateID: est.ID,
			ClientID:   client.ID,
			ClientName: client.Name,
		},
	}, nil
}

func (e *Engine) compensateEstimate(ctx context.Context, est *core.Estimate) {
	if err := e.gw.DeleteLineItems(ctx, core.KindEstimate, est.ID); err != nil {
		e.log.Error("compensating line item delete failed", zap.String("estimate_id", est.ID), zap.Error(err))
	}
	if err := e.gw.DeleteEstimate(ctx, est.UserID, est.ID); err != nil {
		e.log.Error("compensating estimate delete failed", zap.String("estimate_id", est.ID), zap.Error(err))
	}
}

// convertEstimate copies an estimate into a new draft invoice and marks the
// estimate converted. A converted estimate cannot be converted again.
func (e *Engine) convertEstimate(ctx context.Context, userID string, args EstimateRef) (Result, error) {
	est, err := e.resolveEstimate(ctx, userID, args.EstimateIdentifier)
	if err != nil {
		return Result{}, err
	}
	if est.Status == core.EstimateConverted {
		if inv, err := e.gw.GetInvoice(ctx, userID, est.ConvertedInvoiceID); err == nil {
			return Result{}, invalidf("Estimate %s was already converted into %s.", est.Number, inv.Number)
		}
		return Result{}, invalidf("Estimate %s was already converted.", est.Number)
	}
	if est.Status == core.EstimateDeclined {
		return Result{}, invalidf("Estimate %s was declined. Create a new invoice instead.", est.Number)
	}
	if err := e.ensureCapacity(ctx, userID); err != nil {
		return Result{}, err
	}
	settings, err := e.settings(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	source, err := e.gw.ListLineItems(ctx, core.KindEstimate, est.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list estimate items: %w", err)
	}
	items := make([]core.LineItem, len(source))
	for i, it := range source {
		it.ID = ""
		it.DocumentKind = core.KindInvoice
		items[i] = it
	}

	inv := &core.Invoice{
		UserID:      userID,
		ClientID:    est.ClientID,
		Status:      core.InvoiceDraft,
		InvoiceDate: dateOnly(e.now()),
		Currency:    est.Currency,
		Notes:       est.Notes,
		Financials:  est.Financials,
	}
	if err := e.enableConfiguredMethods(ctx, userID, inv); err != nil {
		return Result{}, err
	}
	inv.Recompute(items)
	if err := e.insertNumbered(ctx, userID, core.KindInvoice, settings, func(number string) error {
		inv.ID, inv.Number = "", number
		return e.gw.InsertInvoice(ctx, inv)
	}); err != nil {
		return Result{}, err
	}
	if err := e.insertItems(ctx, core.KindInvoice, inv.ID, items); err != nil {
		e.compensateInvoice(ctx, inv)
		return Result{}, err
	}

	est.Status = core.EstimateConverted
	est.ConvertedInvoiceID = inv.ID
	if err := e.gw.UpdateEstimate(ctx, est); err != nil {
		e.compensateInvoice(ctx, inv)
		return Result{}, fmt.Errorf("mark estimate %s converted: %w", est.Number, err)
	}

	res, err := e.invoiceResult(ctx, inv, items, memory.ActionConvertedEstimate,
		fmt.Sprintf("Converted estimate %s into invoice %s. Total: %s.", est.Number, inv.Number, money(inv.Currency, inv.Total)))
	if err != nil {
		return Result{}, err
	}
	res.Effect.EstimateID = est.ID
	return res, nil
}

func estimateData(est *core.Estimate, client *core.Client) map[string]any {
	return map[string]any{
		"estimateNumber": est.Number,
		"status":         est.Status,
		"client":         clientName(client),
		"subtotal":       est.Subtotal.StringFixed(2),
		"taxAmount":      est.TaxAmount.StringFixed(2),
		"total":          est.Total.StringFixed(2),
		"currency":       est.Currency,
	}
}
