package token

import (
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var allowedAlgorithms = []string{"HS256", "HS384", "HS512"}

// reservedClaims are encoded from the Token fields and must never leak
// into or out of the Extra map.
var reservedClaims = map[string]struct{}{
	"sub":  {},
	"iss":  {},
	"jti":  {},
	"exp":  {},
	"iat":  {},
	"type": {},
}

// Codec signs and verifies tokens with a single configured algorithm.
// Tokens signed with any other algorithm are rejected on decode.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	alg    string
}

// NewCodec fails with ErrInvalidAlgorithm when the configured algorithm
// is not on the allow-list; misconfiguration must abort startup.
func NewCodec(secret, algorithm string) (*Codec, error) {
	if !slices.Contains(allowedAlgorithms, algorithm) {
		return nil, fmt.Errorf("%w: %s (allowed: %s)",
			ErrInvalidAlgorithm, algorithm, strings.Join(allowedAlgorithms, ", "))
	}

	return &Codec{
		secret: []byte(secret),
		method: jwt.GetSigningMethod(algorithm),
		alg:    algorithm,
	}, nil
}

// Encode serializes t as a signed compact JWT. Timestamp claims are
// seconds since epoch.
func (c *Codec) Encode(t Token) (string, error) {
	const op = "token.Encode"

	claims := jwt.MapClaims{
		"sub":  t.Subject,
		"iss":  t.Issuer,
		"type": string(t.Kind),
		"iat":  t.IssuedAt.Unix(),
		"exp":  t.ExpiresAt.Unix(),
	}
	if t.ID != "" {
		claims["jti"] = t.ID
	}
	for k, v := range t.Extra {
		if _, reserved := reservedClaims[k]; !reserved {
			claims[k] = v
		}
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Decode parses and signature-checks raw. With verify set, an expired
// token fails with ErrInvalidToken; without it only the signature and
// algorithm are checked. A type claim that is neither access nor refresh
// fails with ErrUnknownTokenType.
func (c *Codec) Decode(raw string, verify bool) (Token, error) {
	const op = "token.Decode"

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{c.alg})}
	if verify {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := jwt.MapClaims{}

	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Token{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	typ, _ := claims["type"].(string)

	kind := Kind(typ)
	if kind != KindAccess && kind != KindRefresh {
		return Token{}, fmt.Errorf("%s: %w: %q", op, ErrUnknownTokenType, typ)
	}

	tok, err := newToken(kind, claimsFromMap(claims), verify)
	if err != nil {
		return Token{}, fmt.Errorf("%s: %w", op, err)
	}

	return tok, nil
}

func claimsFromMap(m jwt.MapClaims) Claims {
	var c Claims

	c.Subject, _ = m.GetSubject()
	c.Issuer, _ = m.GetIssuer()
	c.ID, _ = m["jti"].(string)

	if iat, err := m.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}

	for k, v := range m {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[k] = v
	}

	return c
}
