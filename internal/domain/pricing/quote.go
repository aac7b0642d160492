package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
)

// quoteConcurrency bounds parallel lookups for a single quote.
const quoteConcurrency = 8

// Quote lists resolved prices for a set of products.
type Quote struct {
	UserID string
	Prices []Price
	// Skipped holds requested ids that are missing or unpublished.
	Skipped []string
}

// Quote resolves several products for one user. Products are loaded in one
// batch and prices resolved concurrently; Prices keep the input order. It
// must not be called with a transaction-bound context since the lookups run
// on separate goroutines.
func (r *Resolver) Quote(ctx context.Context, userID string, productIDs []string) (*Quote, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	loaded, err := r.products.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]*product.Product, len(loaded))
	for i := range loaded {
		if loaded[i].Published {
			byID[loaded[i].ID] = &loaded[i]
		}
	}

	results := make([]*Price, len(productIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(quoteConcurrency)
	for i, id := range productIDs {
		p, ok := byID[id]
		if !ok {
			continue
		}
		g.Go(func() error {
			price, err := r.ResolveFor(gctx, u, p)
			if err != nil {
				return errors.Wrapf(err, "resolve product %s", id)
			}
			results[i] = &price
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	q := &Quote{UserID: u.ID, Prices: make([]Price, 0, len(productIDs))}
	for i, res := range results {
		if res == nil {
			q.Skipped = append(q.Skipped, productIDs[i])
			continue
		}
		q.Prices = append(q.Prices, *res)
	}
	return q, nil
}
