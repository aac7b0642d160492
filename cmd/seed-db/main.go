package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/app"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/contract"
	"github.com/xenking/storefront/internal/domain/modifier"
	"github.com/xenking/storefront/internal/domain/pricelist"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

type catalogJSON struct {
	Categories []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		ParentID    string `json:"parentId"`
	} `json:"categories"`
	Products []struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		SKU         string          `json:"sku"`
		Price       decimal.Decimal `json:"price"`
		Published   bool            `json:"published"`
		Categories  []string        `json:"categories"`
	} `json:"products"`
	PriceLists []struct {
		Name        string                     `json:"name"`
		Description string                     `json:"description"`
		Active      bool                       `json:"active"`
		Prices      map[string]decimal.Decimal `json:"prices"`
		Users       []string                   `json:"users"`
	} `json:"priceLists"`
	Users []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Admin bool   `json:"admin"`
	} `json:"users"`
	Contracts []struct {
		UserID    string          `json:"userId"`
		ProductID string          `json:"productId"`
		Price     decimal.Decimal `json:"price"`
	} `json:"contracts"`
	TaxRules []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Rate   int    `json:"rate"`
		Active bool   `json:"active"`
	} `json:"taxRules"`
	DiscountRules []struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Threshold decimal.Decimal `json:"threshold"`
		Percent   decimal.Decimal `json:"percent"`
		Active    bool            `json:"active"`
	} `json:"discountRules"`
}

func main() {
	var (
		driver      string
		databaseURL string
		catalogFile string
		seedToken   string
		tokenPepper string
	)

	flag.StringVar(&driver, "driver", "postgres", "storage driver: postgres or sqlite")
	flag.StringVar(&databaseURL, "database-url", "", "database URL or SQLite DSN (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&seedToken, "seed-token", "", "token secret; each user gets <secret>-<user id> (or STOREFRONT_SEED_TOKEN env)")
	flag.StringVar(&tokenPepper, "token-pepper", "", "HMAC pepper for token hashing (or STOREFRONT_TOKEN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if seedToken == "" {
		seedToken = os.Getenv("STOREFRONT_SEED_TOKEN")
	}
	if seedToken == "" {
		slog.Error("seed token is required: set --seed-token or STOREFRONT_SEED_TOKEN")
		os.Exit(1)
	}
	if tokenPepper == "" {
		tokenPepper = os.Getenv("STOREFRONT_TOKEN_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	db := app.DatabaseConfig{Driver: driver, URL: databaseURL}
	if err := run(ctx, db, catalogFile, seedToken, tokenPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, db app.DatabaseConfig, catalogFile, seedToken, pepper string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("opening store", slog.String("driver", db.Driver))

	st, err := app.OpenStore(ctx, db)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer st.Close()

	if err := seedCatalog(ctx, st, &catalog); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedUsers(ctx, st, &catalog, seedToken, pepper); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedPricing(ctx, st, &catalog); err != nil {
		return errors.Wrap(err, "seed pricing")
	}
	if err := seedRules(ctx, st, &catalog); err != nil {
		return errors.Wrap(err, "seed order rules")
	}
	return nil
}

func seedCatalog(ctx context.Context, st *app.Store, catalog *catalogJSON) error {
	for _, c := range catalog.Categories {
		if err := st.Categories.UpsertCategory(ctx, &product.Category{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			ParentID:    c.ParentID,
		}); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.ID)
		}
	}
	slog.Info("upserted categories", slog.Int("count", len(catalog.Categories)))

	for _, p := range catalog.Products {
		if err := st.Products.Upsert(ctx, &product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			SKU:         p.SKU,
			Published:   p.Published,
			CategoryIDs: p.Categories,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

func seedUsers(ctx context.Context, st *app.Store, catalog *catalogJSON, seedToken, pepper string) error {
	authn := auth.NewAuthenticator(st.Tokens, []byte(pepper))

	for _, u := range catalog.Users {
		if err := st.Users.Upsert(ctx, &user.User{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
			Admin: u.Admin,
		}); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.ID)
		}

		if err := st.Tokens.Create(ctx, &auth.Token{
			ID:     "seed-" + u.ID,
			Hash:   authn.Hash(seedToken + "-" + u.ID),
			UserID: u.ID,
			Name:   "Seed token",
		}); err != nil {
			return errors.Wrapf(err, "create token for %s", u.ID)
		}
		slog.Info("upserted user", slog.String("id", u.ID), slog.Bool("admin", u.Admin))
	}
	return nil
}

func seedPricing(ctx context.Context, st *app.Store, catalog *catalogJSON) error {
	lists := pricelist.NewService(st.Lists, st.Products, st.Users)
	contracts := contract.NewService(st.Contracts, st.Products, st.Users)

	stamp := time.Now().UTC().Format("20060102150405")
	for i, l := range catalog.PriceLists {
		// Derived ids keep reruns from creating duplicate lists.
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("storefront:price-list:"+l.Name)).String()
		_, err := st.Lists.GetByID(ctx, id)
		switch {
		case errors.Is(err, pricelist.ErrNotFound):
			if err := st.Lists.Create(ctx, &pricelist.PriceList{
				ID:          id,
				Name:        l.Name,
				Description: l.Description,
				SKU:         fmt.Sprintf("PL-%s-%04d", stamp, i),
				Active:      l.Active,
			}); err != nil {
				return errors.Wrapf(err, "create price list %q", l.Name)
			}
		case err != nil:
			return errors.Wrapf(err, "get price list %q", l.Name)
		default:
			if _, err := lists.Update(ctx, id, pricelist.UpdateRequest{
				Name:        l.Name,
				Description: l.Description,
				Active:      l.Active,
			}); err != nil {
				return errors.Wrapf(err, "update price list %q", l.Name)
			}
		}

		for productID, price := range l.Prices {
			err := lists.AssignProduct(ctx, id, productID, price)
			if errors.Is(err, pricelist.ErrEntryExists) {
				err = lists.UpdateProductPrice(ctx, id, productID, price)
			}
			if err != nil {
				return errors.Wrapf(err, "price %s in list %q", productID, l.Name)
			}
		}
		for _, userID := range l.Users {
			if err := lists.AssignUser(ctx, id, userID); err != nil {
				return errors.Wrapf(err, "assign %s to list %q", userID, l.Name)
			}
		}
		slog.Info("seeded price list",
			slog.String("id", id),
			slog.String("name", l.Name),
			slog.Int("prices", len(l.Prices)),
			slog.Int("users", len(l.Users)),
		)
	}

	for _, c := range catalog.Contracts {
		req := contract.Request{UserID: c.UserID, ProductID: c.ProductID, Price: c.Price}
		_, err := contracts.Create(ctx, req)
		if errors.Is(err, contract.ErrExists) {
			_, err = contracts.Update(ctx, req)
		}
		if err != nil {
			return errors.Wrapf(err, "contract %s/%s", c.UserID, c.ProductID)
		}
	}
	slog.Info("seeded contracts", slog.Int("count", len(catalog.Contracts)))
	return nil
}

func seedRules(ctx context.Context, st *app.Store, catalog *catalogJSON) error {
	for _, r := range catalog.TaxRules {
		if err := st.Modifiers.UpsertTaxRule(ctx, &modifier.TaxRule{
			ID:        r.ID,
			Name:      r.Name,
			Rate:      r.Rate,
			Active:    r.Active,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return errors.Wrapf(err, "upsert tax rule %s", r.ID)
		}
		slog.Info("upserted tax rule", slog.String("id", r.ID), slog.Int("rate", r.Rate))
	}
	for _, r := range catalog.DiscountRules {
		if err := st.Modifiers.UpsertDiscountRule(ctx, &modifier.DiscountRule{
			ID:        r.ID,
			Name:      r.Name,
			Threshold: r.Threshold,
			Percent:   r.Percent,
			Active:    r.Active,
		}); err != nil {
			return errors.Wrapf(err, "upsert discount rule %s", r.ID)
		}
		slog.Info("upserted discount rule", slog.String("id", r.ID), slog.String("threshold", r.Threshold.String()))
	}
	return nil
}
