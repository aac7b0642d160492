// Package pricing decides what a specific user pays for a specific product.
//
// Three candidate prices exist for a (user, product) pair: the user's own
// contract price, the override in the user's assigned price list (only when
// that list is active), and the product's base price. The default
// StrategyPrecedence takes the first that exists in that order.
// StrategyLowestContract instead takes the minimum of the user's contract,
// the base price and the lowest contract price any user holds for the
// product, ignoring price lists.
package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/contract"
	"github.com/xenking/storefront/internal/domain/pricelist"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// Strategy selects the resolution policy.
type Strategy string

const (
	// StrategyPrecedence picks contract, then active price-list entry, then base price.
	StrategyPrecedence Strategy = "precedence"
	// StrategyLowestContract picks the minimum of the user's contract, the
	// base price and the store-wide lowest contract for the product.
	StrategyLowestContract Strategy = "lowest_contract"
)

// ParseStrategy validates a configured strategy name. Empty means precedence.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyPrecedence:
		return StrategyPrecedence, nil
	case StrategyLowestContract:
		return StrategyLowestContract, nil
	default:
		return "", errors.Errorf("unknown pricing strategy %q", s)
	}
}

// Source names where a resolved price came from.
type Source string

const (
	SourceContract       Source = "contract"
	SourcePriceList      Source = "price_list"
	SourceBase           Source = "base"
	SourceLowestContract Source = "lowest_contract"
)

// Price is the outcome of resolving one product for one user.
type Price struct {
	ProductID string
	Base      decimal.Decimal
	Final     decimal.Decimal
	Source    Source
}

// Resolver computes effective unit prices. It has no side effects.
type Resolver struct {
	strategy  Strategy
	users     user.Repository
	products  product.Repository
	lists     pricelist.Repository
	contracts contract.Repository
}

// NewResolver creates a Resolver using the given strategy.
func NewResolver(
	strategy Strategy,
	users user.Repository,
	products product.Repository,
	lists pricelist.Repository,
	contracts contract.Repository,
) *Resolver {
	if strategy == "" {
		strategy = StrategyPrecedence
	}
	return &Resolver{
		strategy:  strategy,
		users:     users,
		products:  products,
		lists:     lists,
		contracts: contracts,
	}
}

// Strategy reports the configured policy.
func (r *Resolver) Strategy() Strategy { return r.strategy }

// Resolve loads the user and product and returns the price the user pays.
// It fails with user.ErrNotFound or product.ErrNotFound; an unpublished
// product is reported as not found.
func (r *Resolver) Resolve(ctx context.Context, userID, productID string) (*Price, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := r.publishedProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	price, err := r.ResolveFor(ctx, u, p)
	if err != nil {
		return nil, err
	}
	return &price, nil
}

// ResolveFor computes the price for records the caller already loaded. The
// caller is responsible for checking that p is published.
func (r *Resolver) ResolveFor(ctx context.Context, u *user.User, p *product.Product) (Price, error) {
	var (
		price Price
		err   error
	)
	switch r.strategy {
	case StrategyLowestContract:
		price, err = r.lowestContract(ctx, u, p)
	default:
		price, err = r.precedence(ctx, u, p)
	}
	if err != nil {
		return Price{}, err
	}

	zctx.From(ctx).Debug("Price resolved",
		zap.String("user_id", u.ID),
		zap.String("product_id", p.ID),
		zap.String("source", string(price.Source)),
		zap.Stringer("final", price.Final),
	)
	return price, nil
}

func (r *Resolver) precedence(ctx context.Context, u *user.User, p *product.Product) (Price, error) {
	price := Price{ProductID: p.ID, Base: p.Price, Final: p.Price, Source: SourceBase}

	c, ok, err := r.contractFor(ctx, u.ID, p.ID)
	if err != nil {
		return Price{}, err
	}
	if ok {
		price.Final, price.Source = c, SourceContract
		return price, nil
	}

	if u.PriceListID != "" {
		e, err := r.lists.GetActiveEntry(ctx, u.PriceListID, p.ID)
		switch {
		case err == nil:
			price.Final, price.Source = e.Price, SourcePriceList
			return price, nil
		case !errors.Is(err, pricelist.ErrEntryNotFound):
			return Price{}, errors.Wrap(err, "lookup price list entry")
		}
	}

	return price, nil
}

func (r *Resolver) lowestContract(ctx context.Context, u *user.User, p *product.Product) (Price, error) {
	own, hasOwn, err := r.contractFor(ctx, u.ID, p.ID)
	if err != nil {
		return Price{}, err
	}
	lowest, hasLowest, err := r.contracts.LowestForProduct(ctx, p.ID)
	if err != nil {
		return Price{}, errors.Wrap(err, "lookup lowest contract")
	}

	// On ties the user's own contract wins.
	price := Price{ProductID: p.ID, Base: p.Price, Final: p.Price, Source: SourceBase}
	if hasOwn && own.LessThanOrEqual(price.Final) {
		price.Final, price.Source = own, SourceContract
	}
	if hasLowest && lowest.LessThan(price.Final) {
		price.Final, price.Source = lowest, SourceLowestContract
	}
	return price, nil
}

func (r *Resolver) contractFor(ctx context.Context, userID, productID string) (decimal.Decimal, bool, error) {
	c, err := r.contracts.Get(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, errors.Wrap(err, "lookup contract")
	}
	return c.Price, true, nil
}

func (r *Resolver) publishedProduct(ctx context.Context, id string) (*product.Product, error) {
	p, err := product.GetPublished(ctx, r.products, id)
	if err != nil {
		if errors.Is(err, product.ErrNotPublished) {
			return nil, product.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}
