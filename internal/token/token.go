// Package token holds the signed token model: a tagged access/refresh
// variant with a fixed claim set plus an open map of extension claims,
// and the JWT codec that serializes it.
package token

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidAlgorithm = errors.New("signing algorithm is not allowed")
	ErrInvalidToken     = errors.New("invalid token")
	ErrUnknownTokenType = errors.New("unknown token type")
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const defaultIssuer = "default"

// Claims is the decoded claim set of a token. Extra carries any claims
// beyond the registered ones; exp, iat and type never appear in Extra.
type Claims struct {
	Subject   string
	Issuer    string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// Token is a claim set tagged with its variant. Construct through
// NewAccess/NewRefresh so the expiry and type invariants hold.
type Token struct {
	Kind Kind
	Claims
}

func NewAccess(c Claims) (Token, error) {
	return newToken(KindAccess, c, true)
}

func NewRefresh(c Claims) (Token, error) {
	return newToken(KindRefresh, c, true)
}

func newToken(kind Kind, c Claims, enforceExpiry bool) (Token, error) {
	if c.Subject == "" {
		return Token{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	if c.IssuedAt.IsZero() {
		c.IssuedAt = time.Now()
	}
	if c.Issuer == "" {
		c.Issuer = defaultIssuer
	}

	if enforceExpiry && !c.ExpiresAt.After(time.Now()) {
		return Token{}, fmt.Errorf("%w: token has expired", ErrInvalidToken)
	}

	return Token{Kind: kind, Claims: c}, nil
}

// AccessToken derives a fresh access token from a refresh token: same
// subject, issuer and extension claims, new iat/exp/jti. exp, iat and
// type are never copied.
func (t Token) AccessToken(now time.Time, ttl time.Duration, jti string) (Token, error) {
	if t.Kind != KindRefresh {
		return Token{}, fmt.Errorf("%w: only refresh tokens derive access tokens", ErrInvalidToken)
	}

	var extra map[string]any
	if len(t.Extra) > 0 {
		extra = make(map[string]any, len(t.Extra))
		for k, v := range t.Extra {
			extra[k] = v
		}
	}

	if jti == "" {
		jti = t.ID
	}

	return NewAccess(Claims{
		Subject:   t.Subject,
		Issuer:    t.Issuer,
		ID:        jti,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Extra:     extra,
	})
}
