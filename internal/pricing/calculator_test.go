package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeLineExclusive(t *testing.T) {
	got := ComputeLine(LineInput{Quantity: 2, UnitPrice: 50, Discount: 0, TaxType: TaxExclusive, TaxRate: 0.10})
	require.Equal(t, 100.00, got.Subtotal)
	require.Equal(t, 10.00, got.Tax)
	require.Equal(t, 110.00, got.Total)
}

func TestComputeLineInclusive(t *testing.T) {
	got := ComputeLine(LineInput{Quantity: 2, UnitPrice: 50, Discount: 0, TaxType: TaxInclusive, TaxRate: 0.10})
	require.Equal(t, 100.00, got.Subtotal)
	require.Equal(t, 9.09, got.Tax)
	require.Equal(t, 100.00, got.Total)
}

func TestComputeLineDiscountAppliedBeforeTax(t *testing.T) {
	got := ComputeLine(LineInput{Quantity: 3, UnitPrice: 40, Discount: 20, TaxType: TaxExclusive, TaxRate: 0.18})
	require.Equal(t, 120.00, got.Subtotal)
	require.Equal(t, 18.00, got.Tax)
	require.Equal(t, 118.00, got.Total)
}

func TestComputeLineInclusiveZeroRate(t *testing.T) {
	got := ComputeLine(LineInput{Quantity: 1, UnitPrice: 99.99, TaxType: TaxInclusive, TaxRate: 0})
	require.Equal(t, 0.00, got.Tax)
	require.Equal(t, 99.99, got.Total)
}

func TestComputeLineInclusiveNegativeAfterDiscount(t *testing.T) {
	// Discount exceeding the subtotal produces no carved-out tax.
	got := ComputeLine(LineInput{Quantity: 1, UnitPrice: 10, Discount: 15, TaxType: TaxInclusive, TaxRate: 0.10})
	require.Equal(t, 0.00, got.Tax)
	require.Equal(t, -5.00, got.Total)
}

func TestComputeLineUnknownTaxTypeDefaultsToExclusive(t *testing.T) {
	got := ComputeLine(LineInput{Quantity: 1, UnitPrice: 100, TaxType: "", TaxRate: 0.05})
	require.Equal(t, 5.00, got.Tax)
	require.Equal(t, 105.00, got.Total)
}

func TestComputeDocumentMixedTaxTypes(t *testing.T) {
	lines := []LineInput{
		{Quantity: 2, UnitPrice: 50, Discount: 0, TaxType: TaxExclusive, TaxRate: 0.10},
		{Quantity: 1, UnitPrice: 200, Discount: 10, TaxType: TaxInclusive, TaxRate: 0.10},
	}
	got := ComputeDocument(lines, 0)
	require.Equal(t, 300.00, got.Subtotal)
	require.Equal(t, 10.00, got.DiscountAmount)
	// Inclusive line tax stays inside its total and is excluded from the document tax.
	require.Equal(t, 10.00, got.TaxAmount)
	require.Equal(t, 300.00, got.TotalAmount)
}

func TestComputeDocumentRoundingAdjustment(t *testing.T) {
	lines := []LineInput{
		{Quantity: 1, UnitPrice: 99.50, TaxType: TaxExclusive, TaxRate: 0.18},
	}
	got := ComputeDocument(lines, 0.09)
	require.Equal(t, 99.50, got.Subtotal)
	require.Equal(t, 17.91, got.TaxAmount)
	require.Equal(t, 117.50, got.TotalAmount)
}

func TestComputeDocumentEmpty(t *testing.T) {
	got := ComputeDocument(nil, 0)
	require.Equal(t, DocumentTotals{}, got)
}
