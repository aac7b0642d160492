package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	getProductSQL = `SELECT id, name, description, price, sku, published FROM products WHERE id = ?`

	getProductsSQL = `SELECT id, name, description, price, sku, published FROM products
		WHERE id IN (?) ORDER BY id`

	productCategoriesSQL = `SELECT category_id FROM product_category_product
		WHERE product_id = ? ORDER BY category_id`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, sku, published)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			price = excluded.price,
			sku = excluded.sku,
			published = excluded.published`

	clearProductCategoriesSQL = `DELETE FROM product_category_product WHERE product_id = ?`

	addProductCategorySQL = `INSERT OR IGNORE INTO product_category_product (product_id, category_id) VALUES (?, ?)`

	upsertCategorySQL = `INSERT INTO product_categories (id, name, description, parent_id)
		VALUES (?, ?, ?, NULLIF(?, ''))
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			parent_id = excluded.parent_id`
)

type productRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	SKU         string          `db:"sku"`
	Published   bool            `db:"published"`
}

func (r productRow) toDomain() product.Product {
	return product.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		SKU:         r.SKU,
		Published:   r.Published,
	}
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by SQLite.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository that uses db.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	q := r.db.q(ctx)

	var row productRow
	if err := q.GetContext(ctx, &row, getProductSQL, id); err != nil {
		if isNoRows(err) {
			return nil, product.ErrNotFound
		}
		return nil, unavailable(err, "get product %q", id)
	}

	p := row.toDomain()
	if err := q.SelectContext(ctx, &p.CategoryIDs, productCategoriesSQL, id); err != nil {
		return nil, unavailable(err, "get categories of %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of ids, ordered by id. Category
// ids are not loaded.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(getProductsSQL, ids)
	if err != nil {
		return nil, unavailable(err, "expand ids")
	}

	var rows []productRow
	if err := r.db.q(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, unavailable(err, "get products by ids")
	}
	products := make([]product.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toDomain())
	}
	return products, nil
}

func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.q(ctx)
		if _, err := q.ExecContext(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.SKU, p.Published,
		); err != nil {
			return unavailable(err, "upsert product %q", p.ID)
		}
		if _, err := q.ExecContext(ctx, clearProductCategoriesSQL, p.ID); err != nil {
			return unavailable(err, "clear categories of %q", p.ID)
		}
		for _, c := range p.CategoryIDs {
			if _, err := q.ExecContext(ctx, addProductCategorySQL, p.ID, c); err != nil {
				return unavailable(err, "link category %q", c)
			}
		}
		return nil
	})
}

// UpsertCategory inserts or replaces a category.
func (r *ProductRepository) UpsertCategory(ctx context.Context, c *product.Category) error {
	if _, err := r.db.q(ctx).ExecContext(ctx, upsertCategorySQL, c.ID, c.Name, c.Description, c.ParentID); err != nil {
		return unavailable(err, "upsert category %q", c.ID)
	}
	return nil
}
