// Package session tracks issued refresh tokens: persistence, validation,
// rotation and revocation. Records are an audit trail and are never
// deleted.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auth_backend/internal/models"
	"auth_backend/internal/storage"
	"auth_backend/internal/token"

	"github.com/google/uuid"
)

// All three validation errors are terminal: the caller must not retry
// with the same token.
var (
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")
)

type Repo interface {
	SaveRefreshToken(ctx context.Context, rec models.RefreshToken) error
	FindRefreshToken(ctx context.Context, tokenStr string) (models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenStr string) error

	// RotateRefreshToken revokes the old record and inserts the new one in
	// a single atomic unit. It fails with storage.ErrRefreshTokenRevoked
	// when the old record was already claimed by a concurrent rotation.
	RotateRefreshToken(ctx context.Context, oldTokenStr string, next models.RefreshToken) error
}

type Minter interface {
	Mint(userID string) (token.Pair, time.Time, error)
}

type Store struct {
	log    *slog.Logger
	repo   Repo
	minter Minter
	rotate bool
}

func New(log *slog.Logger, repo Repo, minter Minter, rotate bool) *Store {
	return &Store{
		log:    log,
		repo:   repo,
		minter: minter,
		rotate: rotate,
	}
}

// Issue mints a new pair for userID and persists the refresh record.
// Issuance is not successful until the record is stored.
func (s *Store) Issue(ctx context.Context, userID string) (token.Pair, error) {
	const op = "session.Issue"

	pair, expiresAt, err := s.minter.Mint(userID)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.SaveRefreshToken(ctx, s.newRecord(pair.RefreshToken, userID, expiresAt)); err != nil {
		return token.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// Validate looks up the presented refresh token and checks it is neither
// revoked nor expired.
func (s *Store) Validate(ctx context.Context, tokenStr string) (models.RefreshToken, error) {
	const op = "session.Validate"

	rec, err := s.repo.FindRefreshToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			return models.RefreshToken{}, ErrTokenNotFound
		}

		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	if rec.Revoked {
		return models.RefreshToken{}, ErrTokenRevoked
	}

	if rec.ExpiresAt.Before(time.Now()) {
		return models.RefreshToken{}, ErrTokenExpired
	}

	return rec, nil
}

// Rotate exchanges a validated refresh record for a new pair. With
// rotation enabled the old record is revoked atomically with the insert
// of the new one; concurrent rotations of the same token pick exactly
// one winner, the loser observes ErrTokenRevoked. With rotation disabled
// the old token stays valid alongside the new one.
func (s *Store) Rotate(ctx context.Context, old models.RefreshToken) (token.Pair, error) {
	const op = "session.Rotate"

	pair, expiresAt, err := s.minter.Mint(old.UserID)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	next := s.newRecord(pair.RefreshToken, old.UserID, expiresAt)

	if !s.rotate {
		if err := s.repo.SaveRefreshToken(ctx, next); err != nil {
			return token.Pair{}, fmt.Errorf("%s: %w", op, err)
		}

		return pair, nil
	}

	if err := s.repo.RotateRefreshToken(ctx, old.Token, next); err != nil {
		switch {
		case errors.Is(err, storage.ErrRefreshTokenRevoked):
			s.log.Warn("lost rotation race", slog.String("op", op), slog.String("user_id", old.UserID))
			return token.Pair{}, ErrTokenRevoked
		case errors.Is(err, storage.ErrRefreshTokenNotFound):
			return token.Pair{}, ErrTokenNotFound
		}

		return token.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// Revoke marks the record revoked. Revoking an already revoked token is
// a no-op; a missing record fails with ErrTokenNotFound.
func (s *Store) Revoke(ctx context.Context, tokenStr string) error {
	const op = "session.Revoke"

	if err := s.repo.RevokeRefreshToken(ctx, tokenStr); err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			return ErrTokenNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) newRecord(tokenStr, userID string, expiresAt time.Time) models.RefreshToken {
	return models.RefreshToken{
		ID:        uuid.NewString(),
		Token:     tokenStr,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
}
