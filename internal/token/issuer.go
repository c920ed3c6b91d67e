package token

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pair is the opaque credential pair handed to clients.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type IssuerConfig struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issuer mints encoded token pairs. It is pure: persisting the refresh
// token is the session store's job.
type Issuer struct {
	codec *Codec
	cfg   IssuerConfig
}

func NewIssuer(codec *Codec, cfg IssuerConfig) *Issuer {
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}

	return &Issuer{codec: codec, cfg: cfg}
}

// Mint builds a refresh token for userID and derives its access token,
// returning both encoded along with the refresh expiry.
func (i *Issuer) Mint(userID string) (Pair, time.Time, error) {
	const op = "token.Mint"

	now := time.Now()

	refresh, err := NewRefresh(Claims{
		Subject:   userID,
		Issuer:    i.cfg.Issuer,
		ID:        uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.cfg.RefreshTTL),
	})
	if err != nil {
		return Pair{}, time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	access, err := refresh.AccessToken(now, i.cfg.AccessTTL, uuid.NewString())
	if err != nil {
		return Pair{}, time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	accessStr, err := i.codec.Encode(access)
	if err != nil {
		return Pair{}, time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	refreshStr, err := i.codec.Encode(refresh)
	if err != nil {
		return Pair{}, time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return Pair{AccessToken: accessStr, RefreshToken: refreshStr}, refresh.ExpiresAt, nil
}
