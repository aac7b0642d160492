package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/contract"
)

const (
	getContractSQL = `SELECT id, user_id, product_id, price FROM contract_prices
		WHERE user_id = $1 AND product_id = $2`

	lowestContractSQL = `SELECT MIN(price) FROM contract_prices WHERE product_id = $1`

	createContractSQL = `INSERT INTO contract_prices (id, user_id, product_id, price)
		VALUES ($1, $2, $3, $4)`

	updateContractSQL = `UPDATE contract_prices SET price = $3 WHERE user_id = $1 AND product_id = $2`

	deleteContractSQL = `DELETE FROM contract_prices WHERE user_id = $1 AND product_id = $2`
)

var _ contract.Repository = (*ContractRepository)(nil)

// ContractRepository implements contract.Repository backed by PostgreSQL.
type ContractRepository struct {
	db *DB
}

// NewContractRepository returns a ContractRepository that uses db.
func NewContractRepository(db *DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) Get(ctx context.Context, userID, productID string) (*contract.Price, error) {
	var p contract.Price
	err := r.db.q(ctx).QueryRow(ctx, getContractSQL, userID, productID).Scan(
		&p.ID, &p.UserID, &p.ProductID, &p.Price,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contract.ErrNotFound
		}
		return nil, unavailable(err, "get contract")
	}
	return &p, nil
}

func (r *ContractRepository) LowestForProduct(ctx context.Context, productID string) (decimal.Decimal, bool, error) {
	var lowest decimal.NullDecimal
	if err := r.db.q(ctx).QueryRow(ctx, lowestContractSQL, productID).Scan(&lowest); err != nil {
		return decimal.Zero, false, unavailable(err, "lowest contract for %q", productID)
	}
	return lowest.Decimal, lowest.Valid, nil
}

// Create inserts a contract. A unique violation from a concurrent insert is
// reported as contract.ErrExists.
func (r *ContractRepository) Create(ctx context.Context, p *contract.Price) error {
	_, err := r.db.q(ctx).Exec(ctx, createContractSQL, p.ID, p.UserID, p.ProductID, p.Price)
	if err != nil {
		if isUniqueViolation(err) {
			return contract.ErrExists
		}
		return unavailable(err, "create contract")
	}
	return nil
}

func (r *ContractRepository) Update(ctx context.Context, p *contract.Price) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateContractSQL, p.UserID, p.ProductID, p.Price)
	if err != nil {
		return unavailable(err, "update contract")
	}
	if tag.RowsAffected() == 0 {
		return contract.ErrNotFound
	}
	return nil
}

func (r *ContractRepository) Delete(ctx context.Context, userID, productID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, deleteContractSQL, userID, productID)
	if err != nil {
		return unavailable(err, "delete contract")
	}
	if tag.RowsAffected() == 0 {
		return contract.ErrNotFound
	}
	return nil
}
