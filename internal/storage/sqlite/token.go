package sqlite

import (
	"context"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	getTokenByHashSQL = `SELECT t.id, t.token_hash, t.user_id, t.name, u.admin
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = ? AND t.active = 1`

	createTokenSQL = `INSERT OR IGNORE INTO api_tokens (id, token_hash, user_id, name) VALUES (?, ?, ?, ?)`
)

type tokenRow struct {
	ID     string `db:"id"`
	Hash   string `db:"token_hash"`
	UserID string `db:"user_id"`
	Name   string `db:"name"`
	Admin  bool   `db:"admin"`
}

var _ auth.Repository = (*TokenRepository)(nil)

// TokenRepository provides API token lookups backed by SQLite.
type TokenRepository struct {
	db *DB
}

// NewTokenRepository returns a TokenRepository that uses db.
func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) FindByHash(ctx context.Context, hash string) (*auth.Token, error) {
	var row tokenRow
	if err := r.db.q(ctx).GetContext(ctx, &row, getTokenByHashSQL, hash); err != nil {
		if isNoRows(err) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, unavailable(err, "find token by hash")
	}
	return &auth.Token{ID: row.ID, Hash: row.Hash, UserID: row.UserID, Name: row.Name, Admin: row.Admin}, nil
}

func (r *TokenRepository) Create(ctx context.Context, t *auth.Token) error {
	if _, err := r.db.q(ctx).ExecContext(ctx, createTokenSQL, t.ID, t.Hash, t.UserID, t.Name); err != nil {
		return unavailable(err, "create token")
	}
	return nil
}
