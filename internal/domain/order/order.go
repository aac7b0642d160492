package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = apperr.New(apperr.KindNotFound, "order not found")

// Contact is the buyer contact data captured at checkout. It is a snapshot,
// not a live reference to the user record.
type Contact struct {
	Name        string
	Email       string
	Phone       string
	Address     string
	CityCountry string
}

// Order is a placed order with its computed totals.
type Order struct {
	ID      string
	UserID  string
	Contact Contact
	Totals
	Lines     []Line
	CreatedAt time.Time
}

// Totals holds the money fields written once after all lines are stored.
// Subtotal is after discount; Total is Subtotal plus TaxAmount.
type Totals struct {
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	DiscountRuleID string
	TaxRate        int
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

// Line is one product entry of an order. Position is 1-based and follows the
// order of the requested product ids, skipped ids excluded.
type Line struct {
	ID         string
	OrderID    string
	ProductID  string
	Position   int
	BasePrice  decimal.Decimal
	FinalPrice decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	InsertLine(ctx context.Context, l *Line) error
	UpdateTotals(ctx context.Context, orderID string, t Totals) error
	// Get returns the order with its lines sorted by position.
	Get(ctx context.Context, id string) (*Order, error)
}

// Transactor runs fn inside one storage transaction. Repository calls made
// with the context passed to fn take part in that transaction; returning an
// error from fn rolls everything back.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
