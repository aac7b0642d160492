package contract

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// Service administers contract prices.
type Service struct {
	contracts Repository
	products  product.Repository
	users     user.Repository
}

// NewService creates a contract Service.
func NewService(contracts Repository, products product.Repository, users user.Repository) *Service {
	return &Service{
		contracts: contracts,
		products:  products,
		users:     users,
	}
}

// Request identifies a (user, product) pair and, for writes, a price.
type Request struct {
	UserID    string
	ProductID string
	Price     decimal.Decimal
}

// Get returns the contract for the pair or ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, productID string) (*Price, error) {
	if err := s.validatePair(ctx, userID, productID); err != nil {
		return nil, err
	}
	return s.contracts.Get(ctx, userID, productID)
}

// Create stores a contract. It fails with ErrExists if the pair already has one.
func (s *Service) Create(ctx context.Context, req Request) (*Price, error) {
	if req.Price.IsNegative() {
		return nil, ErrNegativePrice
	}
	existing, err := s.lookup(ctx, req.UserID, req.ProductID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrExists
	}

	p := &Price{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Price:     req.Price,
	}
	if err := s.contracts.Create(ctx, p); err != nil {
		if errors.Is(err, ErrExists) {
			return nil, ErrExists
		}
		return nil, errors.Wrap(err, "create contract")
	}

	zctx.From(ctx).Info("Contract price created",
		zap.String("user_id", p.UserID),
		zap.String("product_id", p.ProductID),
		zap.Stringer("price", p.Price),
	)
	return p, nil
}

// Update changes the price of an existing contract.
func (s *Service) Update(ctx context.Context, req Request) (*Price, error) {
	if req.Price.IsNegative() {
		return nil, ErrNegativePrice
	}
	existing, err := s.lookup(ctx, req.UserID, req.ProductID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	existing.Price = req.Price
	if err := s.contracts.Update(ctx, existing); err != nil {
		return nil, errors.Wrap(err, "update contract")
	}
	return existing, nil
}

// Delete removes an existing contract.
func (s *Service) Delete(ctx context.Context, userID, productID string) error {
	existing, err := s.lookup(ctx, userID, productID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	if err := s.contracts.Delete(ctx, userID, productID); err != nil {
		return errors.Wrap(err, "delete contract")
	}
	return nil
}

// lookup validates the pair and returns the current contract, or nil when
// there is none.
func (s *Service) lookup(ctx context.Context, userID, productID string) (*Price, error) {
	if err := s.validatePair(ctx, userID, productID); err != nil {
		return nil, err
	}
	p, err := s.contracts.Get(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "lookup contract")
	}
	return p, nil
}

func (s *Service) validatePair(ctx context.Context, userID, productID string) error {
	if _, err := product.GetPublished(ctx, s.products, productID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	return nil
}
