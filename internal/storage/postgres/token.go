package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	getTokenByHashSQL = `SELECT t.id, t.token_hash, t.user_id, t.name, u.admin
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1 AND t.active`

	createTokenSQL = `INSERT INTO api_tokens (id, token_hash, user_id, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO NOTHING`
)

var _ auth.Repository = (*TokenRepository)(nil)

// TokenRepository provides API token lookups backed by PostgreSQL.
type TokenRepository struct {
	db *DB
}

// NewTokenRepository returns a TokenRepository that uses db.
func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// FindByHash looks up an active token by its HMAC-SHA256 hash.
func (r *TokenRepository) FindByHash(ctx context.Context, hash string) (*auth.Token, error) {
	var t auth.Token
	err := r.db.q(ctx).QueryRow(ctx, getTokenByHashSQL, hash).Scan(
		&t.ID, &t.Hash, &t.UserID, &t.Name, &t.Admin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, unavailable(err, "find token by hash")
	}
	return &t, nil
}

// Create stores a token hash. Re-seeding the same token is a no-op.
func (r *TokenRepository) Create(ctx context.Context, t *auth.Token) error {
	if _, err := r.db.q(ctx).Exec(ctx, createTokenSQL, t.ID, t.Hash, t.UserID, t.Name); err != nil {
		return unavailable(err, "create token")
	}
	return nil
}
