package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `p.id, p.name, p.description, p.price, p.sku, p.published,
		COALESCE(ARRAY(SELECT c.category_id FROM product_category_product c
			WHERE c.product_id = p.id ORDER BY c.category_id), '{}')`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1) ORDER BY p.id`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, sku, published)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			sku = EXCLUDED.sku,
			published = EXCLUDED.published`

	clearProductCategoriesSQL = `DELETE FROM product_category_product WHERE product_id = $1`

	addProductCategorySQL = `INSERT INTO product_category_product (product_id, category_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`

	upsertCategorySQL = `INSERT INTO product_categories (id, name, description, parent_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			parent_id = EXCLUDED.parent_id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository that uses db.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, unavailable(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, unavailable(err, "get product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs, ordered by id.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, unavailable(err, "get products by ids")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, unavailable(err, "get products by ids")
	}
	return products, nil
}

// Upsert inserts or replaces a product and its category links.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.q(ctx)
		if _, err := q.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.SKU, p.Published,
		); err != nil {
			return unavailable(err, "upsert product %q", p.ID)
		}
		if _, err := q.Exec(ctx, clearProductCategoriesSQL, p.ID); err != nil {
			return unavailable(err, "clear categories of %q", p.ID)
		}
		for _, c := range p.CategoryIDs {
			if _, err := q.Exec(ctx, addProductCategorySQL, p.ID, c); err != nil {
				return unavailable(err, "link category %q", c)
			}
		}
		return nil
	})
}

// UpsertCategory inserts or replaces a category. Used by seeding.
func (r *ProductRepository) UpsertCategory(ctx context.Context, c *product.Category) error {
	if _, err := r.db.q(ctx).Exec(ctx, upsertCategorySQL, c.ID, c.Name, c.Description, c.ParentID); err != nil {
		return unavailable(err, "upsert category %q", c.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.SKU, &p.Published, &p.CategoryIDs)
	return p, err
}
