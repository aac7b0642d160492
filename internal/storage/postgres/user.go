package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/user"
)

const (
	getUserByIDSQL = `SELECT id, name, email, admin, COALESCE(price_list_id, '')
		FROM users WHERE id = $1`

	setUserPriceListSQL = `UPDATE users SET price_list_id = NULLIF($2, '') WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (id, name, email, admin, price_list_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			admin = EXCLUDED.admin,
			price_list_id = EXCLUDED.price_list_id`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	db *DB
}

// NewUserRepository returns a UserRepository that uses db.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns the user or user.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := r.db.q(ctx).QueryRow(ctx, getUserByIDSQL, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.Admin, &u.PriceListID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, unavailable(err, "get user %q", id)
	}
	return &u, nil
}

// SetPriceList assigns priceListID to the user; an empty id clears it.
func (r *UserRepository) SetPriceList(ctx context.Context, userID, priceListID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, setUserPriceListSQL, userID, priceListID)
	if err != nil {
		return unavailable(err, "set price list of %q", userID)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Upsert inserts or replaces a user.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	if _, err := r.db.q(ctx).Exec(ctx, upsertUserSQL,
		u.ID, u.Name, u.Email, u.Admin, u.PriceListID,
	); err != nil {
		return unavailable(err, "upsert user %q", u.ID)
	}
	return nil
}
