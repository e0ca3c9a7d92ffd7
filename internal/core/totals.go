package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds a money amount to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// NormalizeDiscountType maps the loose spellings the model produces onto the two stored types.
func NormalizeDiscountType(s string) DiscountType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percentage", "percent", "pct", "%":
		return DiscountPercentage
	case "fixed", "amount", "flat", "value":
		return DiscountFixed
	}
	return DiscountNone
}

// discountAmount returns the discount applied to base, clamped to [0, base].
func discountAmount(base decimal.Decimal, kind DiscountType, value decimal.Decimal) decimal.Decimal {
	var amt decimal.Decimal
	switch kind {
	case DiscountPercentage:
		amt = base.Mul(value).Div(hundred)
	case DiscountFixed:
		amt = value
	default:
		return decimal.Zero
	}
	if amt.IsNegative() {
		return decimal.Zero
	}
	if amt.GreaterThan(base) {
		return base
	}
	return Round2(amt)
}

// LineTotal is quantity × unit price less the optional per-item discount.
func LineTotal(item LineItem) decimal.Decimal {
	gross := item.Quantity.Mul(item.UnitPrice)
	return Round2(gross.Sub(discountAmount(gross, item.DiscountType, item.DiscountValue)))
}

// ComputeTotals derives every money field from the authoritative line items.
//
//	total = (subtotal − discount) × (1 + tax/100)
//
// Line item totals are recomputed from quantity and price rather than trusted.
func ComputeTotals(items []LineItem, kind DiscountType, value, taxPercentage decimal.Decimal) Financials {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(LineTotal(it))
	}
	subtotal = Round2(subtotal)

	discount := discountAmount(subtotal, kind, value)
	if kind == DiscountNone {
		value = decimal.Zero
	}
	taxable := subtotal.Sub(discount)
	tax := Round2(taxable.Mul(taxPercentage).Div(hundred))

	return Financials{
		Subtotal:       subtotal,
		DiscountType:   kind,
		DiscountValue:  value,
		DiscountAmount: discount,
		TaxPercentage:  taxPercentage,
		TaxAmount:      tax,
		Total:          taxable.Add(tax),
	}
}

// Recompute refreshes the financial block of f in place from items, keeping its
// discount and tax settings.
func (f *Financials) Recompute(items []LineItem) {
	*f = ComputeTotals(items, f.DiscountType, f.DiscountValue, f.TaxPercentage)
}
