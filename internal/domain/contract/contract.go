package contract

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	// ErrNotFound is returned when no contract exists for a (user, product) pair.
	ErrNotFound = apperr.New(apperr.KindNotFound, "contract price not found")
	// ErrExists is returned when creating a contract for a pair that already has one.
	ErrExists = apperr.New(apperr.KindConflict, "contract price already exists")
	// ErrNegativePrice is returned for contract prices below zero.
	ErrNegativePrice = apperr.New(apperr.KindInvalidState, "price must not be negative")
)

// Price is a negotiated price for one user and one product. At most one
// exists per (UserID, ProductID).
type Price struct {
	ID        string
	UserID    string
	ProductID string
	Price     decimal.Decimal
}

// Repository persists contract prices. Create must return ErrExists when the
// pair is taken, including when a concurrent insert wins the race.
type Repository interface {
	Get(ctx context.Context, userID, productID string) (*Price, error)
	// LowestForProduct returns the minimum contract price any user has for
	// the product, and false when there is none.
	LowestForProduct(ctx context.Context, productID string) (decimal.Decimal, bool, error)
	Create(ctx context.Context, p *Price) error
	Update(ctx context.Context, p *Price) error
	Delete(ctx context.Context, userID, productID string) error
}
