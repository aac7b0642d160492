package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/modifier"
)

const (
	activeTaxRuleSQL = `SELECT id, name, rate, active, created_at FROM tax_rules
		WHERE active ORDER BY created_at DESC, id LIMIT 1`

	activeDiscountRulesSQL = `SELECT id, name, threshold, percent, active FROM discount_rules
		WHERE active ORDER BY threshold DESC, id`

	upsertTaxRuleSQL = `INSERT INTO tax_rules (id, name, rate, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			rate = EXCLUDED.rate,
			active = EXCLUDED.active`

	upsertDiscountRuleSQL = `INSERT INTO discount_rules (id, name, threshold, percent, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			threshold = EXCLUDED.threshold,
			percent = EXCLUDED.percent,
			active = EXCLUDED.active`
)

var _ modifier.Repository = (*ModifierRepository)(nil)

// ModifierRepository implements modifier.Repository backed by PostgreSQL.
type ModifierRepository struct {
	db *DB
}

// NewModifierRepository returns a ModifierRepository that uses db.
func NewModifierRepository(db *DB) *ModifierRepository {
	return &ModifierRepository{db: db}
}

// ActiveRules returns the newest active tax rule and all active discounts.
func (r *ModifierRepository) ActiveRules(ctx context.Context) (*modifier.Rules, error) {
	q := r.db.q(ctx)
	rules := &modifier.Rules{}

	var tax modifier.TaxRule
	err := q.QueryRow(ctx, activeTaxRuleSQL).Scan(&tax.ID, &tax.Name, &tax.Rate, &tax.Active, &tax.CreatedAt)
	switch {
	case err == nil:
		rules.Tax = &tax
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, unavailable(err, "get active tax rule")
	}

	rows, err := q.Query(ctx, activeDiscountRulesSQL)
	if err != nil {
		return nil, unavailable(err, "list discount rules")
	}
	rules.Discounts, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (modifier.DiscountRule, error) {
		var d modifier.DiscountRule
		err := row.Scan(&d.ID, &d.Name, &d.Threshold, &d.Percent, &d.Active)
		return d, err
	})
	if err != nil {
		return nil, unavailable(err, "list discount rules")
	}
	return rules, nil
}

func (r *ModifierRepository) UpsertTaxRule(ctx context.Context, t *modifier.TaxRule) error {
	if _, err := r.db.q(ctx).Exec(ctx, upsertTaxRuleSQL,
		t.ID, t.Name, t.Rate, t.Active, t.CreatedAt,
	); err != nil {
		return unavailable(err, "upsert tax rule %q", t.ID)
	}
	return nil
}

func (r *ModifierRepository) UpsertDiscountRule(ctx context.Context, d *modifier.DiscountRule) error {
	if _, err := r.db.q(ctx).Exec(ctx, upsertDiscountRuleSQL,
		d.ID, d.Name, d.Threshold, d.Percent, d.Active,
	); err != nil {
		return unavailable(err, "upsert discount rule %q", d.ID)
	}
	return nil
}
