// Package pricing computes line and document totals for purchase and sales
// documents. All monetary outputs are rounded to two decimal places.
package pricing

import "github.com/shopspring/decimal"

// TaxType controls whether a price already contains tax.
type TaxType string

const (
	// TaxExclusive adds tax on top of the discounted amount.
	TaxExclusive TaxType = "exclusive"
	// TaxInclusive carves tax out of the discounted amount; the total is unchanged.
	TaxInclusive TaxType = "inclusive"
)

// Normalize returns the tax type, defaulting to exclusive for unknown values.
func (t TaxType) Normalize() TaxType {
	if t == TaxInclusive {
		return TaxInclusive
	}
	return TaxExclusive
}

// LineInput describes one document line for total computation.
type LineInput struct {
	Quantity  float64
	UnitPrice float64
	Discount  float64
	TaxType   TaxType
	TaxRate   float64
}

// LineTotals holds the computed amounts for one line.
type LineTotals struct {
	Subtotal float64 // quantity * unit price, before discount
	Tax      float64
	Total    float64
}

// DocumentTotals aggregates line amounts across a document.
type DocumentTotals struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	TotalAmount    float64
}

// ComputeLine calculates subtotal, tax and total for a single line.
func ComputeLine(in LineInput) LineTotals {
	qty := decimal.NewFromFloat(in.Quantity)
	price := decimal.NewFromFloat(in.UnitPrice)
	discount := decimal.NewFromFloat(in.Discount)
	rate := decimal.NewFromFloat(in.TaxRate)

	subtotal := qty.Mul(price)
	afterDiscount := subtotal.Sub(discount)

	var tax, total decimal.Decimal
	if in.TaxType.Normalize() == TaxInclusive {
		if afterDiscount.IsPositive() && rate.IsPositive() {
			tax = afterDiscount.Sub(afterDiscount.Div(decimal.NewFromInt(1).Add(rate)))
		}
		total = afterDiscount
	} else {
		tax = afterDiscount.Mul(rate)
		total = afterDiscount.Add(tax)
	}

	return LineTotals{
		Subtotal: round2(subtotal),
		Tax:      round2(tax),
		Total:    round2(total),
	}
}

// ComputeDocument sums line totals into document totals. Inclusive-tax lines
// do not contribute to the document tax amount because their tax is already
// contained in the line total.
func ComputeDocument(lines []LineInput, roundingAdjustment float64) DocumentTotals {
	subtotal := decimal.Zero
	discountAmount := decimal.Zero
	taxAmount := decimal.Zero

	for _, line := range lines {
		qty := decimal.NewFromFloat(line.Quantity)
		price := decimal.NewFromFloat(line.UnitPrice)
		subtotal = subtotal.Add(qty.Mul(price))
		discountAmount = discountAmount.Add(decimal.NewFromFloat(line.Discount))
		if line.TaxType.Normalize() == TaxExclusive {
			computed := ComputeLine(line)
			taxAmount = taxAmount.Add(decimal.NewFromFloat(computed.Tax))
		}
	}

	total := subtotal.Sub(discountAmount).Add(taxAmount).Add(decimal.NewFromFloat(roundingAdjustment))

	return DocumentTotals{
		Subtotal:       round2(subtotal),
		DiscountAmount: round2(discountAmount),
		TaxAmount:      round2(taxAmount),
		TotalAmount:    round2(total),
	}
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
