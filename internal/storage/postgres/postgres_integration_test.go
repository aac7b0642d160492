//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/contract"
	"github.com/xenking/storefront/internal/domain/modifier"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricelist"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "storefront",
				"POSTGRES_PASSWORD": "storefront",
				"POSTGRES_DB":       "storefront",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := c.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := c.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://storefront:storefront@%s:%s/storefront?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	return m.Run()
}

type stores struct {
	db        *DB
	products  *ProductRepository
	users     *UserRepository
	lists     *PriceListRepository
	contracts *ContractRepository
	modifiers *ModifierRepository
	orders    *OrderRepository
	tokens    *TokenRepository
}

func newStores() stores {
	db := NewDB(testPool)
	return stores{
		db:        db,
		products:  NewProductRepository(db),
		users:     NewUserRepository(db),
		lists:     NewPriceListRepository(db),
		contracts: NewContractRepository(db),
		modifiers: NewModifierRepository(db),
		orders:    NewOrderRepository(db),
		tokens:    NewTokenRepository(db),
	}
}

// seed inserts a fresh user and product with ids unique to the test.
func seed(t *testing.T, s stores, price string) (*user.User, *product.Product) {
	t.Helper()
	ctx := context.Background()
	suffix := fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())

	u := &user.User{ID: "u-" + suffix, Name: "Test", Email: suffix + "@example.com"}
	require.NoError(t, s.users.Upsert(ctx, u))

	p := &product.Product{
		ID:        "p-" + suffix,
		Name:      "Widget",
		Price:     decimal.RequireFromString(price),
		SKU:       "SKU-" + suffix,
		Published: true,
	}
	require.NoError(t, s.products.Upsert(ctx, p))
	return u, p
}

func newOrderService(t *testing.T, s stores, orders order.Repository) *order.Service {
	t.Helper()
	resolver := pricing.NewResolver(pricing.StrategyPrecedence, s.users, s.products, s.lists, s.contracts)
	svc, err := order.NewService(s.db, s.users, s.products, resolver,
		modifier.NewRepoProvider(s.modifiers), orders,
		order.WithTracerProvider(tracenoop.NewTracerProvider()),
		order.WithMeterProvider(metricnoop.NewMeterProvider()),
	)
	require.NoError(t, err)
	return svc
}

func TestOrderRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStores()
	u, p := seed(t, s, "100.00")

	svc := newOrderService(t, s, s.orders)
	res, err := svc.CreateOrder(ctx, order.CreateRequest{
		UserID:     u.ID,
		Contact:    order.Contact{Phone: "555"},
		ProductIDs: []string{p.ID, "missing", p.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"missing"}, res.Skipped)

	got, err := s.orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, 1, got.Lines[0].Position)
	assert.Equal(t, 2, got.Lines[1].Position)
	assert.True(t, res.Order.Subtotal.Equal(got.Subtotal))
	assert.Equal(t, "Test", got.Contact.Name)
	assert.Equal(t, "555", got.Contact.Phone)
	assert.True(t, res.Order.Total.Equal(got.Total))
}

type failingTotals struct {
	*OrderRepository
}

func (failingTotals) UpdateTotals(context.Context, string, order.Totals) error {
	return apperr.Unavailable(errors.New("disk full"), "update totals")
}

func TestOrderRollback(t *testing.T) {
	ctx := context.Background()
	s := newStores()
	u, p := seed(t, s, "10.00")

	repo := failingTotals{s.orders}
	svc := newOrderService(t, s, repo)

	_, err := svc.CreateOrder(ctx, order.CreateRequest{UserID: u.ID, ProductIDs: []string{p.ID}})
	require.Error(t, err)

	var count int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, u.ID).Scan(&count))
	assert.Zero(t, count)
}

func TestContractRepository(t *testing.T) {
	ctx := context.Background()
	s := newStores()
	u, p := seed(t, s, "100.00")
	other, _ := seed(t, s, "1.00")

	_, ok, err := s.contracts.LowestForProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.contracts.Create(ctx, &contract.Price{
		ID: "c-" + u.ID, UserID: u.ID, ProductID: p.ID, Price: decimal.RequireFromString("80"),
	}))
	require.NoError(t, s.contracts.Create(ctx, &contract.Price{
		ID: "c-" + other.ID, UserID: other.ID, ProductID: p.ID, Price: decimal.RequireFromString("75.50"),
	}))

	err = s.contracts.Create(ctx, &contract.Price{
		ID: "dup-" + u.ID, UserID: u.ID, ProductID: p.ID, Price: decimal.RequireFromString("1"),
	})
	require.ErrorIs(t, err, contract.ErrExists)

	lowest, ok, err := s.contracts.LowestForProduct(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "75.5", lowest.String())

	require.NoError(t, s.contracts.Delete(ctx, u.ID, p.ID))
	require.ErrorIs(t, s.contracts.Delete(ctx, u.ID, p.ID), contract.ErrNotFound)
	require.ErrorIs(t, s.contracts.Update(ctx, &contract.Price{UserID: u.ID, ProductID: p.ID}), contract.ErrNotFound)
}

func TestPriceListRepository(t *testing.T) {
	ctx := context.Background()
	s := newStores()
	u, p := seed(t, s, "100.00")

	svc := pricelist.NewService(s.lists, s.products, s.users)
	pl, err := svc.Create(ctx, pricelist.CreateRequest{Name: "VIP", Active: true})
	require.NoError(t, err)

	require.NoError(t, svc.AssignProduct(ctx, pl.ID, p.ID, decimal.RequireFromString("90")))
	require.ErrorIs(t, s.lists.CreateEntry(ctx, pricelist.Entry{PriceListID: pl.ID, ProductID: p.ID}), pricelist.ErrEntryExists)
	require.NoError(t, svc.AssignUser(ctx, pl.ID, u.ID))

	resolver := pricing.NewResolver(pricing.StrategyPrecedence, s.users, s.products, s.lists, s.contracts)
	price, err := resolver.Resolve(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, pricing.SourcePriceList, price.Source)
	assert.Equal(t, "90", price.Final.String())

	dup := &pricelist.PriceList{ID: pl.ID + "-dup", Name: "Dup", SKU: pl.SKU}
	require.ErrorIs(t, s.lists.Create(ctx, dup), pricelist.ErrSKUTaken)

	_, err = svc.Update(ctx, pl.ID, pricelist.UpdateRequest{Name: "VIP paused"})
	require.NoError(t, err)

	_, err = s.lists.GetActiveEntry(ctx, pl.ID, p.ID)
	require.ErrorIs(t, err, pricelist.ErrEntryNotFound)

	price, err = resolver.Resolve(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, pricing.SourceBase, price.Source)

	require.NoError(t, svc.Delete(ctx, pl.ID))
	_, err = s.lists.GetEntry(ctx, pl.ID, p.ID)
	require.ErrorIs(t, err, pricelist.ErrEntryNotFound)
	got, err := s.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PriceListID)
	require.ErrorIs(t, svc.Delete(ctx, pl.ID), pricelist.ErrNotFound)
}

func TestModifierRepository(t *testing.T) {
	ctx := context.Background()
	s := newStores()

	now := time.Now().UTC()
	require.NoError(t, s.modifiers.UpsertTaxRule(ctx, &modifier.TaxRule{
		ID: "tax-old", Name: "Old", Rate: 20, Active: true, CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, s.modifiers.UpsertTaxRule(ctx, &modifier.TaxRule{
		ID: "tax-new", Name: "New", Rate: 21, Active: true, CreatedAt: now,
	}))
	require.NoError(t, s.modifiers.UpsertDiscountRule(ctx, &modifier.DiscountRule{
		ID: "d-150", Name: "Over 150", Threshold: decimal.NewFromInt(150), Percent: decimal.NewFromInt(10), Active: true,
	}))

	rules, err := s.modifiers.ActiveRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 21, rules.TaxRate())
	d := rules.Discount(decimal.NewFromInt(200))
	require.NotNil(t, d)
	assert.Equal(t, "d-150", d.ID)
}

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()
	s := newStores()
	u, _ := seed(t, s, "1.00")

	a := auth.NewAuthenticator(s.tokens, []byte("pepper"))
	require.NoError(t, s.tokens.Create(ctx, &auth.Token{ID: "t-" + u.ID, Hash: a.Hash(u.ID), UserID: u.ID}))

	p, err := a.Authenticate(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)

	_, err = s.tokens.FindByHash(ctx, "nope")
	require.ErrorIs(t, err, auth.ErrTokenNotFound)
}
