package sqlite

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/pricelist"
)

const (
	getPriceListSQL = `SELECT id, name, description, sku, active FROM price_lists WHERE id = ?`

	createPriceListSQL = `INSERT INTO price_lists (id, name, description, sku, active) VALUES (?, ?, ?, ?, ?)`

	updatePriceListSQL = `UPDATE price_lists SET name = ?, description = ?, active = ? WHERE id = ?`

	deletePriceListSQL = `DELETE FROM price_lists WHERE id = ?`

	getEntrySQL = `SELECT price_list_id, product_id, price FROM price_list_products
		WHERE price_list_id = ? AND product_id = ?`

	getActiveEntrySQL = `SELECT e.price_list_id, e.product_id, e.price
		FROM price_list_products e
		JOIN price_lists l ON l.id = e.price_list_id
		WHERE e.price_list_id = ? AND e.product_id = ? AND l.active = 1`

	createEntrySQL = `INSERT INTO price_list_products (price_list_id, product_id, price) VALUES (?, ?, ?)`

	updateEntrySQL = `UPDATE price_list_products SET price = ? WHERE price_list_id = ? AND product_id = ?`

	deleteEntrySQL = `DELETE FROM price_list_products WHERE price_list_id = ? AND product_id = ?`
)

type priceListRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	SKU         string `db:"sku"`
	Active      bool   `db:"active"`
}

type entryRow struct {
	PriceListID string          `db:"price_list_id"`
	ProductID   string          `db:"product_id"`
	Price       decimal.Decimal `db:"price"`
}

var _ pricelist.Repository = (*PriceListRepository)(nil)

// PriceListRepository implements pricelist.Repository backed by SQLite.
type PriceListRepository struct {
	db *DB
}

// NewPriceListRepository returns a PriceListRepository that uses db.
func NewPriceListRepository(db *DB) *PriceListRepository {
	return &PriceListRepository{db: db}
}

func (r *PriceListRepository) GetByID(ctx context.Context, id string) (*pricelist.PriceList, error) {
	var row priceListRow
	if err := r.db.q(ctx).GetContext(ctx, &row, getPriceListSQL, id); err != nil {
		if isNoRows(err) {
			return nil, pricelist.ErrNotFound
		}
		return nil, unavailable(err, "get price list %q", id)
	}
	return &pricelist.PriceList{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		SKU:         row.SKU,
		Active:      row.Active,
	}, nil
}

func (r *PriceListRepository) Create(ctx context.Context, pl *pricelist.PriceList) error {
	if _, err := r.db.q(ctx).ExecContext(ctx, createPriceListSQL,
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
	res, err := r.db.q(ctx).ExecContext(ctx, updatePriceListSQL, pl.Name, pl.Description, pl.Active, pl.ID)
	if err != nil {
		return unavailable(err, "update price list %q", pl.ID)
	}
	if affected(res) == 0 {
		return pricelist.ErrNotFound
	}
	return nil
}

// Delete relies on the schema to cascade entries and detach users.
func (r *PriceListRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.q(ctx).ExecContext(ctx, deletePriceListSQL, id)
	if err != nil {
		return unavailable(err, "delete price list %q", id)
	}
	if affected(res) == 0 {
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
	var row entryRow
	if err := r.db.q(ctx).GetContext(ctx, &row, query, priceListID, productID); err != nil {
		if isNoRows(err) {
			return nil, pricelist.ErrEntryNotFound
		}
		return nil, unavailable(err, "get price list entry")
	}
	return &pricelist.Entry{PriceListID: row.PriceListID, ProductID: row.ProductID, Price: row.Price}, nil
}

func (r *PriceListRepository) CreateEntry(ctx context.Context, e pricelist.Entry) error {
	if _, err := r.db.q(ctx).ExecContext(ctx, createEntrySQL, e.PriceListID, e.ProductID, e.Price); err != nil {
		if isUniqueViolation(err) {
			return pricelist.ErrEntryExists
		}
		return unavailable(err, "create price list entry")
	}
	return nil
}

func (r *PriceListRepository) UpdateEntry(ctx context.Context, e pricelist.Entry) error {
	res, err := r.db.q(ctx).ExecContext(ctx, updateEntrySQL, e.Price, e.PriceListID, e.ProductID)
	if err != nil {
		return unavailable(err, "update price list entry")
	}
	if affected(res) == 0 {
		return pricelist.ErrEntryNotFound
	}
	return nil
}

func (r *PriceListRepository) DeleteEntry(ctx context.Context, priceListID, productID string) error {
	res, err := r.db.q(ctx).ExecContext(ctx, deleteEntrySQL, priceListID, productID)
	if err != nil {
		return unavailable(err, "delete price list entry")
	}
	if affected(res) == 0 {
		return pricelist.ErrEntryNotFound
	}
	return nil
}
