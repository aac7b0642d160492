package app

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/contract"
	"github.com/xenking/storefront/internal/domain/modifier"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricelist"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/sqlite"
)

// Store bundles one backend's repositories behind the domain interfaces.
type Store struct {
	Tx         order.Transactor
	Products   product.Repository
	Categories product.CategoryRepository
	Users      user.Repository
	Lists      pricelist.Repository
	Contracts  contract.Repository
	Modifiers  modifier.Repository
	Orders     order.Repository
	Tokens     auth.Repository

	Ping  func(ctx context.Context) error
	Close func()
}

// OpenStore connects to the configured backend and applies its schema.
func OpenStore(ctx context.Context, cfg DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.URL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		db := postgres.NewDB(pool)
		products := postgres.NewProductRepository(db)
		return &Store{
			Tx:         db,
			Products:   products,
			Categories: products,
			Users:      postgres.NewUserRepository(db),
			Lists:      postgres.NewPriceListRepository(db),
			Contracts:  postgres.NewContractRepository(db),
			Modifiers:  postgres.NewModifierRepository(db),
			Orders:     postgres.NewOrderRepository(db),
			Tokens:     postgres.NewTokenRepository(db),
			Ping:       db.Ping,
			Close:      pool.Close,
		}, nil
	case "sqlite":
		conn, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		db := sqlite.NewDB(conn)
		products := sqlite.NewProductRepository(db)
		return &Store{
			Tx:         db,
			Products:   products,
			Categories: products,
			Users:      sqlite.NewUserRepository(db),
			Lists:      sqlite.NewPriceListRepository(db),
			Contracts:  sqlite.NewContractRepository(db),
			Modifiers:  sqlite.NewModifierRepository(db),
			Orders:     sqlite.NewOrderRepository(db),
			Tokens:     sqlite.NewTokenRepository(db),
			Ping:       db.Ping,
			Close:      func() { _ = conn.Close() },
		}, nil
	default:
		return nil, errors.Errorf("unknown database driver %q", cfg.Driver)
	}
}
