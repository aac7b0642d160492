// Package modifier supplies order-level tax and discount policy.
package modifier

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the percentage applied when no tax rule is active.
const DefaultTaxRate = 25

// TaxRule is a flat percentage applied to the post-discount subtotal.
type TaxRule struct {
	ID        string
	Name      string
	Rate      int
	Active    bool
	CreatedAt time.Time
}

// DiscountRule reduces the subtotal by Percent when the subtotal is strictly
// greater than Threshold.
type DiscountRule struct {
	ID        string
	Name      string
	Threshold decimal.Decimal
	Percent   decimal.Decimal
	Active    bool
}

// Applies reports whether the rule discounts an order with this subtotal.
func (d DiscountRule) Applies(subtotal decimal.Decimal) bool {
	return d.Active && subtotal.GreaterThan(d.Threshold)
}

// Rules is a snapshot of active policy.
type Rules struct {
	// Tax is nil when no tax rule is active.
	Tax       *TaxRule
	Discounts []DiscountRule
}

// Repository loads active rules.
type Repository interface {
	ActiveRules(ctx context.Context) (*Rules, error)
	UpsertTaxRule(ctx context.Context, r *TaxRule) error
	UpsertDiscountRule(ctx context.Context, r *DiscountRule) error
}

// Provider is what the order builder consumes.
type Provider interface {
	TaxRate(ctx context.Context) (int, error)
	Discount(ctx context.Context, subtotal decimal.Decimal) (*DiscountRule, error)
}
