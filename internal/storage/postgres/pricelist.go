package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/pricelist"
)

const (
	getPriceListSQL = `SELECT id, name, description, sku, active FROM price_lists WHERE id = $1`

	createPriceListSQL = `INSERT INTO price_lists (id, name, description, sku, active)
		VALUES ($1, $2, $3, $4, $5)`

	updatePriceListSQL = `UPDATE price_lists SET name = $2, description = $3, active = $4 WHERE id = $1`

	deletePriceListSQL = `DELETE FROM price_lists WHERE id = $1`

	getEntrySQL = `SELECT price_list_id, product_id, price FROM price_list_products
		WHERE price_list_id = $1 AND product_id = $2`

	getActiveEntrySQL = `SELECT e.price_list_id, e.product_id, e.price
		FROM price_list_products e
		JOIN price_lists l ON l.id = e.price_list_id
		WHERE e.price_list_id = $1 AND e.product_id = $2 AND l.active`

	createEntrySQL = `INSERT INTO price_list_products (price_list_id, product_id, price)
		VALUES ($1, $2, $3)`

	updateEntrySQL = `UPDATE price_list_products SET price = $3
		WHERE price_list_id = $1 AND product_id = $2`

	deleteEntrySQL = `DELETE FROM price_list_products WHERE price_list_id = $1 AND product_id = $2`
)

var _ pricelist.Repository = (*PriceListRepository)(nil)

// PriceListRepository implements pricelist.Repository backed by PostgreSQL.
type PriceListRepository struct {
	db *DB
}

// NewPriceListRepository returns a PriceListRepository that uses db.
func NewPriceListRepository(db *DB) *PriceListRepository {
	return &PriceListRepository{db: db}
}

func (r *PriceListRepository) GetByID(ctx context.Context, id string) (*pricelist.PriceList, error) {
	var pl pricelist.PriceList
	err := r.db.q(ctx).QueryRow(ctx, getPriceListSQL, id).Scan(
		&pl.ID, &pl.Name, &pl.Description, &pl.SKU, &pl.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pricelist.ErrNotFound
		}
		return nil, unavailable(err, "get price list %q", id)
	}
	return &pl, nil
}

func (r *PriceListRepository) Create(ctx context.Context, pl *pricelist.PriceList) error {
	if _, err := r.db.q(ctx).Exec(ctx, createPriceListSQL,
		pl.ID, pl.Name, pl.Description, pl.SKU, pl.Active,
	); err != nil {
		if isUniqueViolation(err) {
			return pricelist.ErrSKUTaken
		}
		return unavailable(err, "create price list")
	}
	return nil
}

func (r *PriceListRepository) Update(ctx context.Context, pl *pricelist.PriceList) error {
	tag, err := r.db.q(ctx).Exec(ctx, updatePriceListSQL, pl.ID, pl.Name, pl.Description, pl.Active)
	if err != nil {
		return unavailable(err, "update price list %q", pl.ID)
	}
	if tag.RowsAffected() == 0 {
		return pricelist.ErrNotFound
	}
	return nil
}

// Delete relies on the schema to cascade entries and detach users.
func (r *PriceListRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.q(ctx).Exec(ctx, deletePriceListSQL, id)
	if err != nil {
		return unavailable(err, "delete price list %q", id)
	}
	if tag.RowsAffected() == 0 {
		return pricelist.ErrNotFound
	}
	return nil
}

func (r *PriceListRepository) GetEntry(ctx context.Context, priceListID, productID string) (*pricelist.Entry, error) {
	return r.entry(ctx, getEntrySQL, priceListID, productID)
}

func (r *PriceListRepository) GetActiveEntry(ctx context.Context, priceListID, productID string) (*pricelist.Entry, error) {
	return r.entry(ctx, getActiveEntrySQL, priceListID, productID)
}

func (r *PriceListRepository) entry(ctx context.Context, query, priceListID, productID string) (*pricelist.Entry, error) {
	var e pricelist.Entry
	err := r.db.q(ctx).QueryRow(ctx, query, priceListID, productID).Scan(
		&e.PriceListID, &e.ProductID, &e.Price,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pricelist.ErrEntryNotFound
		}
		return nil, unavailable(err, "get price list entry")
	}
	return &e, nil
}

func (r *PriceListRepository) CreateEntry(ctx context.Context, e pricelist.Entry) error {
	_, err := r.db.q(ctx).Exec(ctx, createEntrySQL, e.PriceListID, e.ProductID, e.Price)
	if err != nil {
		if isUniqueViolation(err) {
			return pricelist.ErrEntryExists
		}
		return unavailable(err, "create price list entry")
	}
	return nil
}

func (r *PriceListRepository) UpdateEntry(ctx context.Context, e pricelist.Entry) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateEntrySQL, e.PriceListID, e.ProductID, e.Price)
	if err != nil {
		return unavailable(err, "update price list entry")
	}
	if tag.RowsAffected() == 0 {
		return pricelist.ErrEntryNotFound
	}
	return nil
}

func (r *PriceListRepository) DeleteEntry(ctx context.Context, priceListID, productID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, deleteEntrySQL, priceListID, productID)
	if err != nil {
		return unavailable(err, "delete price list entry")
	}
	if tag.RowsAffected() == 0 {
		return pricelist.ErrEntryNotFound
	}
	return nil
}
