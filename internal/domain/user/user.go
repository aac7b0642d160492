package user

import (
	"context"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = apperr.New(apperr.KindNotFound, "user not found")

// User is an account. Pricing only cares about PriceListID.
type User struct {
	ID    string
	Name  string
	Email string
	Admin bool
	// PriceListID is empty when no price list is assigned.
	PriceListID string
}

// Repository defines account reads and the price-list assignment write.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	SetPriceList(ctx context.Context, userID, priceListID string) error
	Upsert(ctx context.Context, u *User) error
}
