package pricelist

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// Service implements price list administration.
type Service struct {
	lists    Repository
	products product.Repository
	users    user.Repository
	now      func() time.Time
}

// NewService creates a price list Service.
func NewService(lists Repository, products product.Repository, users user.Repository) *Service {
	return &Service{
		lists:    lists,
		products: products,
		users:    users,
		now:      time.Now,
	}
}

// CreateRequest holds the admin input for a new price list.
type CreateRequest struct {
	Name        string
	Description string
	Active      bool
}

// skuAttempts bounds regeneration when a SKU collides with an existing list.
const skuAttempts = 3

// Create stores a new price list with a generated SKU.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*PriceList, error) {
	pl := &PriceList{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
	}
	var err error
	for range skuAttempts {
		pl.SKU = generateSKU(s.now())
		if err = s.lists.Create(ctx, pl); !errors.Is(err, ErrSKUTaken) {
			break
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "create price list")
	}
	return pl, nil
}

// UpdateRequest holds the admin input for changing a price list.
type UpdateRequest struct {
	Name        string
	Description string
	Active      bool
}

// Update changes the list's descriptive fields and active flag. Users stay
// assigned to a deactivated list, but its entries stop affecting prices.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*PriceList, error) {
	pl, err := s.lists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pl.Name = req.Name
	pl.Description = req.Description
	pl.Active = req.Active
	if err := s.lists.Update(ctx, pl); err != nil {
		return nil, errors.Wrap(err, "update price list")
	}
	zctx.From(ctx).Info("Price list updated",
		zap.String("price_list_id", pl.ID),
		zap.Bool("active", pl.Active),
	)
	return pl, nil
}

// Delete removes a price list. Its entries go with it and assigned users
// fall back to contract or base prices.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.lists.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Wrap(err, "delete price list")
	}
	zctx.From(ctx).Info("Price list deleted", zap.String("price_list_id", id))
	return nil
}

// Get returns the price list or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*PriceList, error) {
	return s.lists.GetByID(ctx, id)
}

// AssignProduct adds a product to an active list at the given override price.
func (s *Service) AssignProduct(ctx context.Context, listID, productID string, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrNegativePrice
	}
	if err := s.checkPair(ctx, listID, productID); err != nil {
		return err
	}

	_, err := s.lists.GetEntry(ctx, listID, productID)
	switch {
	case err == nil:
		return ErrEntryExists
	case !errors.Is(err, ErrEntryNotFound):
		return errors.Wrap(err, "lookup entry")
	}

	if err := s.lists.CreateEntry(ctx, Entry{PriceListID: listID, ProductID: productID, Price: price}); err != nil {
		return errors.Wrap(err, "create entry")
	}
	zctx.From(ctx).Info("Product assigned to price list",
		zap.String("price_list_id", listID),
		zap.String("product_id", productID),
		zap.Stringer("price", price),
	)
	return nil
}

// UpdateProductPrice changes the override price of an existing entry.
func (s *Service) UpdateProductPrice(ctx context.Context, listID, productID string, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrNegativePrice
	}
	if err := s.checkPair(ctx, listID, productID); err != nil {
		return err
	}
	if _, err := s.lists.GetEntry(ctx, listID, productID); err != nil {
		return err
	}
	if err := s.lists.UpdateEntry(ctx, Entry{PriceListID: listID, ProductID: productID, Price: price}); err != nil {
		return errors.Wrap(err, "update entry")
	}
	return nil
}

// RemoveProduct deletes an entry from an active list.
func (s *Service) RemoveProduct(ctx context.Context, listID, productID string) error {
	if err := s.checkPair(ctx, listID, productID); err != nil {
		return err
	}
	if _, err := s.lists.GetEntry(ctx, listID, productID); err != nil {
		return err
	}
	if err := s.lists.DeleteEntry(ctx, listID, productID); err != nil {
		return errors.Wrap(err, "delete entry")
	}
	return nil
}

// AssignUser makes listID the user's price list, replacing any previous one.
func (s *Service) AssignUser(ctx context.Context, listID, userID string) error {
	if _, err := s.activeList(ctx, listID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.users.SetPriceList(ctx, userID, listID); err != nil {
		return errors.Wrap(err, "set user price list")
	}
	return nil
}

// UnassignUser clears the user's price list.
func (s *Service) UnassignUser(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.users.SetPriceList(ctx, userID, ""); err != nil {
		return errors.Wrap(err, "clear user price list")
	}
	return nil
}

func (s *Service) checkPair(ctx context.Context, listID, productID string) error {
	if _, err := s.activeList(ctx, listID); err != nil {
		return err
	}
	if _, err := product.GetPublished(ctx, s.products, productID); err != nil {
		return err
	}
	return nil
}

func (s *Service) activeList(ctx context.Context, id string) (*PriceList, error) {
	pl, err := s.lists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !pl.Active {
		return nil, ErrInactive
	}
	return pl, nil
}

// generateSKU yields identifiers like PL-20240325071700-4821.
func generateSKU(now time.Time) string {
	return fmt.Sprintf("PL-%s-%04d", now.UTC().Format("20060102150405"), 1000+rand.IntN(9000))
}
