package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, name, email, phone, address, city_country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertOrderLineSQL = `INSERT INTO order_lines (id, order_id, product_id, position, base_price, final_price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	updateOrderTotalsSQL = `UPDATE orders SET
			subtotal = $2, discount = $3, discount_rule_id = $4,
			tax_rate = $5, tax_amount = $6, total = $7
		WHERE id = $1`

	getOrderSQL = `SELECT id, user_id, name, email, phone, address, city_country,
			subtotal, discount, discount_rule_id, tax_rate, tax_amount, total, created_at
		FROM orders WHERE id = $1`

	listOrderLinesSQL = `SELECT id, order_id, product_id, position, base_price, final_price
		FROM order_lines WHERE order_id = $1 ORDER BY position`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository that uses db.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order shell with zero totals.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	c := o.Contact
	if _, err := r.db.q(ctx).Exec(ctx, createOrderSQL,
		o.ID, o.UserID, c.Name, c.Email, c.Phone, c.Address, c.CityCountry, o.CreatedAt,
	); err != nil {
		return unavailable(err, "create order %q", o.ID)
	}
	return nil
}

func (r *OrderRepository) InsertLine(ctx context.Context, l *order.Line) error {
	if _, err := r.db.q(ctx).Exec(ctx, insertOrderLineSQL,
		l.ID, l.OrderID, l.ProductID, l.Position, l.BasePrice, l.FinalPrice,
	); err != nil {
		return unavailable(err, "insert line %d of order %q", l.Position, l.OrderID)
	}
	return nil
}

func (r *OrderRepository) UpdateTotals(ctx context.Context, orderID string, t order.Totals) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateOrderTotalsSQL,
		orderID, t.Subtotal, t.Discount, t.DiscountRuleID, t.TaxRate, t.TaxAmount, t.Total,
	)
	if err != nil {
		return unavailable(err, "update totals of order %q", orderID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	q := r.db.q(ctx)

	var (
		o order.Order
		c = &o.Contact
		t = &o.Totals
	)
	err := q.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.UserID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CityCountry,
		&t.Subtotal, &t.Discount, &t.DiscountRuleID, &t.TaxRate, &t.TaxAmount, &t.Total,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, unavailable(err, "get order %q", id)
	}

	rows, err := q.Query(ctx, listOrderLinesSQL, id)
	if err != nil {
		return nil, unavailable(err, "list lines of order %q", id)
	}
	o.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var l order.Line
		err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Position, &l.BasePrice, &l.FinalPrice)
		return l, err
	})
	if err != nil {
		return nil, unavailable(err, "list lines of order %q", id)
	}
	return &o, nil
}
