package sqlite

import (
	"context"

	"github.com/xenking/storefront/internal/domain/user"
)

const (
	getUserSQL = `SELECT id, name, email, admin, COALESCE(price_list_id, '') AS price_list_id
		FROM users WHERE id = ?`

	setUserPriceListSQL = `UPDATE users SET price_list_id = NULLIF(?, '') WHERE id = ?`

	upsertUserSQL = `INSERT INTO users (id, name, email, admin, price_list_id)
		VALUES (?, ?, ?, ?, NULLIF(?, ''))
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			admin = excluded.admin,
			price_list_id = excluded.price_list_id`
)

type userRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Email       string `db:"email"`
	Admin       bool   `db:"admin"`
	PriceListID string `db:"price_list_id"`
}

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository returns a UserRepository that uses db.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var row userRow
	if err := r.db.q(ctx).GetContext(ctx, &row, getUserSQL, id); err != nil {
		if isNoRows(err) {
			return nil, user.ErrNotFound
		}
		return nil, unavailable(err, "get user %q", id)
	}
	return &user.User{
		ID:          row.ID,
		Name:        row.Name,
		Email:       row.Email,
		Admin:       row.Admin,
		PriceListID: row.PriceListID,
	}, nil
}

func (r *UserRepository) SetPriceList(ctx context.Context, userID, priceListID string) error {
	res, err := r.db.q(ctx).ExecContext(ctx, setUserPriceListSQL, priceListID, userID)
	if err != nil {
		return unavailable(err, "set price list of %q", userID)
	}
	if affected(res) == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	if _, err := r.db.q(ctx).ExecContext(ctx, upsertUserSQL,
		u.ID, u.Name, u.Email, u.Admin, u.PriceListID,
	); err != nil {
		return unavailable(err, "upsert user %q", u.ID)
	}
	return nil
}
