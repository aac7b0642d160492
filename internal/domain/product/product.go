package product

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = apperr.New(apperr.KindNotFound, "product not found")
	// ErrNotPublished is returned when a product exists but is hidden from
	// non-admin flows.
	ErrNotPublished = apperr.New(apperr.KindInvalidState, "product is not published")
)

// Product represents a catalog item. Pricing and order code reads it and
// never mutates it.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	SKU         string
	Published   bool
	CategoryIDs []string
}

// Category groups products. Categories may nest through ParentID.
type Category struct {
	ID          string
	Name        string
	Description string
	ParentID    string
}

// Repository defines catalog reads needed by pricing, ordering and admin
// validation, plus the upsert used by seeding.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Upsert(ctx context.Context, p *Product) error
}

// CategoryRepository writes catalog categories. Products reference
// categories by id, so categories are stored first.
type CategoryRepository interface {
	UpsertCategory(ctx context.Context, c *Category) error
}

// GetPublished fetches a product and rejects unpublished ones.
func GetPublished(ctx context.Context, repo Repository, id string) (*Product, error) {
	p, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Published {
		return nil, ErrNotPublished
	}
	return p, nil
}
