// Package auth resolves bearer tokens to the account acting on a request.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

var (
	// ErrUnauthorized is returned for missing, unknown or revoked tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenNotFound is returned by repositories when no active token has
	// the given hash.
	ErrTokenNotFound = errors.New("token not found")
)

// Token is a stored API token. Only the HMAC of the raw value is kept.
type Token struct {
	ID     string
	Hash   string
	UserID string
	Name   string
	// Admin mirrors the owning user's admin flag.
	Admin bool
}

// Principal identifies the account behind an authenticated request.
type Principal struct {
	UserID string
	Admin  bool
}

// Repository provides lookup of active tokens by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Token, error)
	Create(ctx context.Context, t *Token) error
}

// Authenticator verifies raw bearer tokens.
type Authenticator struct {
	tokens Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator hashing tokens with pepper.
func NewAuthenticator(tokens Repository, pepper []byte) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		pepper: pepper,
	}
}

// Hash returns the hex HMAC-SHA256 of a raw token.
func (a *Authenticator) Hash(raw string) string {
	return hex.EncodeToString(a.mac(raw))
}

func (a *Authenticator) mac(raw string) []byte {
	m := hmac.New(sha256.New, a.pepper)
	m.Write([]byte(raw))
	return m.Sum(nil)
}

// Authenticate returns the principal owning raw. Lookup failures other than
// an unknown token are returned wrapped so callers can tell an outage from a
// bad credential.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	if raw == "" {
		return nil, ErrUnauthorized
	}
	sum := a.mac(raw)

	t, err := a.tokens.FindByHash(ctx, hex.EncodeToString(sum))
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "find token")
	}

	stored, err := hex.DecodeString(t.Hash)
	if err != nil || subtle.ConstantTimeCompare(sum, stored) != 1 {
		return nil, ErrUnauthorized
	}

	return &Principal{UserID: t.UserID, Admin: t.Admin}, nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
