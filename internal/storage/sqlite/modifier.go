package sqlite

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/modifier"
)

const (
	activeTaxRuleSQL = `SELECT id, name, rate, active, created_at FROM tax_rules
		WHERE active = 1 ORDER BY created_at DESC, id LIMIT 1`

	activeDiscountRulesSQL = `SELECT id, name, threshold, percent, active FROM discount_rules
		WHERE active = 1 ORDER BY id`

	upsertTaxRuleSQL = `INSERT INTO tax_rules (id, name, rate, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			rate = excluded.rate,
			active = excluded.active`

	upsertDiscountRuleSQL = `INSERT INTO discount_rules (id, name, threshold, percent, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			threshold = excluded.threshold,
			percent = excluded.percent,
			active = excluded.active`
)

type taxRuleRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Rate      int       `db:"rate"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

type discountRuleRow struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Threshold decimal.Decimal `db:"threshold"`
	Percent   decimal.Decimal `db:"percent"`
	Active    bool            `db:"active"`
}

var _ modifier.Repository = (*ModifierRepository)(nil)

// ModifierRepository implements modifier.Repository backed by SQLite.
type ModifierRepository struct {
	db *DB
}

// NewModifierRepository returns a ModifierRepository that uses db.
func NewModifierRepository(db *DB) *ModifierRepository {
	return &ModifierRepository{db: db}
}

func (r *ModifierRepository) ActiveRules(ctx context.Context) (*modifier.Rules, error) {
	q := r.db.q(ctx)
	rules := &modifier.Rules{}

	var taxes []taxRuleRow
	if err := q.SelectContext(ctx, &taxes, activeTaxRuleSQL); err != nil {
		return nil, unavailable(err, "get active tax rule")
	}
	if len(taxes) > 0 {
		t := taxes[0]
		rules.Tax = &modifier.TaxRule{ID: t.ID, Name: t.Name, Rate: t.Rate, Active: t.Active, CreatedAt: t.CreatedAt}
	}

	var discounts []discountRuleRow
	if err := q.SelectContext(ctx, &discounts, activeDiscountRulesSQL); err != nil {
		return nil, unavailable(err, "list discount rules")
	}
	for _, d := range discounts {
		rules.Discounts = append(rules.Discounts, modifier.DiscountRule{
			ID:        d.ID,
			Name:      d.Name,
			Threshold: d.Threshold,
			Percent:   d.Percent,
			Active:    d.Active,
		})
	}
	return rules, nil
}

func (r *ModifierRepository) UpsertTaxRule(ctx context.Context, t *modifier.TaxRule) error {
	if _, err := r.db.q(ctx).ExecContext(ctx, upsertTaxRuleSQL,
		t.ID, t.Name, t.Rate, t.Active, t.CreatedAt.UTC(),
	); err != nil {
		return unavailable(err, "upsert tax rule %q", t.ID)
	}
	return nil
}

func (r *ModifierRepository) UpsertDiscountRule(ctx context.Context, d *modifier.DiscountRule) error {
	if _, err := r.db.q(ctx).ExecContext(ctx, upsertDiscountRuleSQL,
		d.ID, d.Name, d.Threshold, d.Percent, d.Active,
	); err != nil {
		return unavailable(err, "upsert discount rule %q", d.ID)
	}
	return nil
}
