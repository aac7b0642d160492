package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/modifier"
)

var hundred = decimal.NewFromInt(100)

// ComputeTotals applies the discount rule (may be nil) to the pre-discount
// subtotal and then taxes the result. Discount and tax amounts are rounded to
// two decimal places.
func ComputeTotals(subtotal decimal.Decimal, discount *modifier.DiscountRule, taxRate int) Totals {
	t := Totals{
		Discount: decimal.Zero,
		TaxRate:  taxRate,
	}

	if discount != nil {
		t.Discount = subtotal.Mul(discount.Percent).Div(hundred).Round(2)
		t.DiscountRuleID = discount.ID
	}

	t.Subtotal = subtotal.Sub(t.Discount)
	if t.Subtotal.IsNegative() {
		t.Subtotal = decimal.Zero
	}

	t.TaxAmount = t.Subtotal.Mul(decimal.NewFromInt(int64(taxRate))).Div(hundred).Round(2)
	t.Total = t.Subtotal.Add(t.TaxAmount)
	return t
}
