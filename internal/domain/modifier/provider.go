package modifier

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var _ Provider = (*RepoProvider)(nil)

// RepoProvider implements Provider on top of a Repository.
type RepoProvider struct {
	repo Repository
}

// NewRepoProvider creates a RepoProvider backed by repo.
func NewRepoProvider(repo Repository) *RepoProvider {
	return &RepoProvider{repo: repo}
}

// TaxRate returns the active tax rule's rate, or DefaultTaxRate.
func (p *RepoProvider) TaxRate(ctx context.Context) (int, error) {
	rules, err := p.repo.ActiveRules(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "load rules")
	}
	return rules.TaxRate(), nil
}

// Discount returns the applicable discount rule for subtotal, or nil.
func (p *RepoProvider) Discount(ctx context.Context, subtotal decimal.Decimal) (*DiscountRule, error) {
	rules, err := p.repo.ActiveRules(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load rules")
	}
	return rules.Discount(subtotal), nil
}

// TaxRate returns the active rate or DefaultTaxRate.
func (r *Rules) TaxRate() int {
	if r == nil || r.Tax == nil || !r.Tax.Active {
		return DefaultTaxRate
	}
	return r.Tax.Rate
}

// Discount picks the applicable rule with the highest threshold. Equal
// thresholds fall back to the higher percent, then the lower id, so the
// choice does not depend on storage order.
func (r *Rules) Discount(subtotal decimal.Decimal) *DiscountRule {
	if r == nil {
		return nil
	}
	var best *DiscountRule
	for i := range r.Discounts {
		d := &r.Discounts[i]
		if !d.Applies(subtotal) {
			continue
		}
		if best == nil || better(d, best) {
			best = d
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func better(a, b *DiscountRule) bool {
	if c := a.Threshold.Cmp(b.Threshold); c != 0 {
		return c > 0
	}
	if c := a.Percent.Cmp(b.Percent); c != 0 {
		return c > 0
	}
	return a.ID < b.ID
}
