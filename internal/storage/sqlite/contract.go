package sqlite

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/contract"
)

const (
	getContractSQL = `SELECT id, user_id, product_id, price FROM contract_prices
		WHERE user_id = ? AND product_id = ?`

	productContractPricesSQL = `SELECT price FROM contract_prices WHERE product_id = ?`

	createContractSQL = `INSERT INTO contract_prices (id, user_id, product_id, price) VALUES (?, ?, ?, ?)`

	updateContractSQL = `UPDATE contract_prices SET price = ? WHERE user_id = ? AND product_id = ?`

	deleteContractSQL = `DELETE FROM contract_prices WHERE user_id = ? AND product_id = ?`
)

type contractRow struct {
	ID        string          `db:"id"`
	UserID    string          `db:"user_id"`
	ProductID string          `db:"product_id"`
	Price     decimal.Decimal `db:"price"`
}

var _ contract.Repository = (*ContractRepository)(nil)

// ContractRepository implements contract.Repository backed by SQLite.
type ContractRepository struct {
	db *DB
}

// NewContractRepository returns a ContractRepository that uses db.
func NewContractRepository(db *DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) Get(ctx context.Context, userID, productID string) (*contract.Price, error) {
	var row contractRow
	if err := r.db.q(ctx).GetContext(ctx, &row, getContractSQL, userID, productID); err != nil {
		if isNoRows(err) {
			return nil, contract.ErrNotFound
		}
		return nil, unavailable(err, "get contract")
	}
	return &contract.Price{ID: row.ID, UserID: row.UserID, ProductID: row.ProductID, Price: row.Price}, nil
}

// LowestForProduct compares in Go: prices are stored as text, which SQL
// MIN would order lexically.
func (r *ContractRepository) LowestForProduct(ctx context.Context, productID string) (decimal.Decimal, bool, error) {
	var prices []decimal.Decimal
	if err := r.db.q(ctx).SelectContext(ctx, &prices, productContractPricesSQL, productID); err != nil {
		return decimal.Zero, false, unavailable(err, "lowest contract for %q", productID)
	}
	if len(prices) == 0 {
		return decimal.Zero, false, nil
	}
	return decimal.Min(prices[0], prices[1:]...), true, nil
}

func (r *ContractRepository) Create(ctx context.Context, p *contract.Price) error {
	if _, err := r.db.q(ctx).ExecContext(ctx, createContractSQL, p.ID, p.UserID, p.ProductID, p.Price); err != nil {
		if isUniqueViolation(err) {
			return contract.ErrExists
		}
		return unavailable(err, "create contract")
	}
	return nil
}

func (r *ContractRepository) Update(ctx context.Context, p *contract.Price) error {
	res, err := r.db.q(ctx).ExecContext(ctx, updateContractSQL, p.Price, p.UserID, p.ProductID)
	if err != nil {
		return unavailable(err, "update contract")
	}
	if affected(res) == 0 {
		return contract.ErrNotFound
	}
	return nil
}

func (r *ContractRepository) Delete(ctx context.Context, userID, productID string) error {
	res, err := r.db.q(ctx).ExecContext(ctx, deleteContractSQL, userID, productID)
	if err != nil {
		return unavailable(err, "delete contract")
	}
	if affected(res) == 0 {
		return contract.ErrNotFound
	}
	return nil
}
