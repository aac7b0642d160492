package sqlite

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, name, email, phone, address, city_country, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	insertOrderLineSQL = `INSERT INTO order_lines (id, order_id, product_id, position, base_price, final_price)
		VALUES (?, ?, ?, ?, ?, ?)`

	updateOrderTotalsSQL = `UPDATE orders SET
			subtotal = ?, discount = ?, discount_rule_id = ?,
			tax_rate = ?, tax_amount = ?, total = ?
		WHERE id = ?`

	getOrderSQL = `SELECT id, user_id, name, email, phone, address, city_country,
			subtotal, discount, discount_rule_id, tax_rate, tax_amount, total, created_at
		FROM orders WHERE id = ?`

	listOrderLinesSQL = `SELECT id, order_id, product_id, position, base_price, final_price
		FROM order_lines WHERE order_id = ? ORDER BY position`
)

type orderRow struct {
	ID             string          `db:"id"`
	UserID         string          `db:"user_id"`
	Name           string          `db:"name"`
	Email          string          `db:"email"`
	Phone          string          `db:"phone"`
	Address        string          `db:"address"`
	CityCountry    string          `db:"city_country"`
	Subtotal       decimal.Decimal `db:"subtotal"`
	Discount       decimal.Decimal `db:"discount"`
	DiscountRuleID string          `db:"discount_rule_id"`
	TaxRate        int             `db:"tax_rate"`
	TaxAmount      decimal.Decimal `db:"tax_amount"`
	Total          decimal.Decimal `db:"total"`
	CreatedAt      time.Time       `db:"created_at"`
}

type lineRow struct {
	ID         string          `db:"id"`
	OrderID    string          `db:"order_id"`
	ProductID  string          `db:"product_id"`
	Position   int             `db:"position"`
	BasePrice  decimal.Decimal `db:"base_price"`
	FinalPrice decimal.Decimal `db:"final_price"`
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by SQLite.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository that uses db.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	c := o.Contact
	if _, err := r.db.q(ctx).ExecContext(ctx, createOrderSQL,
		o.ID, o.UserID, c.Name, c.Email, c.Phone, c.Address, c.CityCountry, o.CreatedAt.UTC(),
	); err != nil {
		return unavailable(err, "create order %q", o.ID)
	}
	return nil
}

func (r *OrderRepository) InsertLine(ctx context.Context, l *order.Line) error {
	if _, err := r.db.q(ctx).ExecContext(ctx, insertOrderLineSQL,
		l.ID, l.OrderID, l.ProductID, l.Position, l.BasePrice, l.FinalPrice,
	); err != nil {
		return unavailable(err, "insert line %d of order %q", l.Position, l.OrderID)
	}
	return nil
}

func (r *OrderRepository) UpdateTotals(ctx context.Context, orderID string, t order.Totals) error {
	res, err := r.db.q(ctx).ExecContext(ctx, updateOrderTotalsSQL,
		t.Subtotal, t.Discount, t.DiscountRuleID, t.TaxRate, t.TaxAmount, t.Total, orderID,
	)
	if err != nil {
		return unavailable(err, "update totals of order %q", orderID)
	}
	if affected(res) == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	q := r.db.q(ctx)

	var row orderRow
	if err := q.GetContext(ctx, &row, getOrderSQL, id); err != nil {
		if isNoRows(err) {
			return nil, order.ErrNotFound
		}
		return nil, unavailable(err, "get order %q", id)
	}

	var lines []lineRow
	if err := q.SelectContext(ctx, &lines, listOrderLinesSQL, id); err != nil {
		return nil, unavailable(err, "list lines of order %q", id)
	}

	o := &order.Order{
		ID:     row.ID,
		UserID: row.UserID,
		Contact: order.Contact{
			Name:        row.Name,
			Email:       row.Email,
			Phone:       row.Phone,
			Address:     row.Address,
			CityCountry: row.CityCountry,
		},
		Totals: order.Totals{
			Subtotal:       row.Subtotal,
			Discount:       row.Discount,
			DiscountRuleID: row.DiscountRuleID,
			TaxRate:        row.TaxRate,
			TaxAmount:      row.TaxAmount,
			Total:          row.Total,
		},
		CreatedAt: row.CreatedAt,
	}
	for _, l := range lines {
		o.Lines = append(o.Lines, order.Line{
			ID:         l.ID,
			OrderID:    l.OrderID,
			ProductID:  l.ProductID,
			Position:   l.Position,
			BasePrice:  l.BasePrice,
			FinalPrice: l.FinalPrice,
		})
	}
	return o, nil
}
