package pricelist

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	// ErrNotFound is returned when a price list does not exist.
	ErrNotFound = apperr.New(apperr.KindNotFound, "price list not found")
	// ErrInactive is returned when an inactive price list is referenced by an
	// operation that requires an active one.
	ErrInactive = apperr.New(apperr.KindInvalidState, "price list is not active")
	// ErrEntryNotFound is returned when the list has no entry for a product.
	ErrEntryNotFound = apperr.New(apperr.KindNotFound, "product is not in price list")
	// ErrEntryExists is returned when adding a product the list already holds.
	ErrEntryExists = apperr.New(apperr.KindConflict, "product is already in price list")
	// ErrSKUTaken is returned when another list already uses the SKU.
	ErrSKUTaken = apperr.New(apperr.KindConflict, "price list sku already taken")
	// ErrNegativePrice is returned for override prices below zero.
	ErrNegativePrice = apperr.New(apperr.KindInvalidState, "price must not be negative")
)

// PriceList is a named set of per-product override prices.
type PriceList struct {
	ID          string
	Name        string
	Description string
	SKU         string
	Active      bool
}

// Entry is one (product, override price) pair of a list.
type Entry struct {
	PriceListID string
	ProductID   string
	Price       decimal.Decimal
}

// Repository persists price lists and their entries.
type Repository interface {
	GetByID(ctx context.Context, id string) (*PriceList, error)
	Create(ctx context.Context, pl *PriceList) error
	// Update writes name, description and active flag. The SKU is immutable.
	Update(ctx context.Context, pl *PriceList) error
	// Delete removes the list with its entries and detaches assigned users.
	Delete(ctx context.Context, id string) error
	// GetEntry returns ErrEntryNotFound when the pair is absent. It does not
	// look at the list's active flag.
	GetEntry(ctx context.Context, priceListID, productID string) (*Entry, error)
	// GetActiveEntry returns ErrEntryNotFound when the pair is absent or the
	// list is inactive.
	GetActiveEntry(ctx context.Context, priceListID, productID string) (*Entry, error)
	CreateEntry(ctx context.Context, e Entry) error
	UpdateEntry(ctx context.Context, e Entry) error
	DeleteEntry(ctx context.Context, priceListID, productID string) error
}
