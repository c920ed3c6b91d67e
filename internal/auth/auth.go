// Package auth composes the token, session and credential components
// into the user-facing flows: register, login, oauth login, refresh,
// logout, email verification and password reset.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auth_backend/internal/credentials"
	sl "auth_backend/internal/lib/logger"
	"auth_backend/internal/models"
	"auth_backend/internal/session"
	"auth_backend/internal/storage"
	"auth_backend/internal/token"

	"github.com/google/uuid"
)

var (
	ErrEmailTaken = errors.New("email already exists")
	ErrNotFound   = errors.New("user not found")
)

type UserStore interface {
	SaveUser(ctx context.Context, user models.User) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
}

type Sessions interface {
	Issue(ctx context.Context, userID string) (token.Pair, error)
	Validate(ctx context.Context, refreshToken string) (models.RefreshToken, error)
	Rotate(ctx context.Context, old models.RefreshToken) (token.Pair, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// Denylist blocks an access token's jti until its natural expiry, so a
// logged-out access token stops working before its TTL runs out.
type Denylist interface {
	Deny(ctx context.Context, jti string, until time.Time) error
}

// OAuthProfile is the identity handed back by an external provider's
// callback, already validated by the provider.
type OAuthProfile struct {
	Provider   models.Provider
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
}

type Auth struct {
	log      *slog.Logger
	users    UserStore
	verifier *credentials.Verifier
	sessions Sessions
	codec    *token.Codec
	denylist Denylist
}

func New(
	log *slog.Logger,
	users UserStore,
	verifier *credentials.Verifier,
	sessions Sessions,
	codec *token.Codec,
	denylist Denylist,
) *Auth {
	return &Auth{
		log:      log,
		users:    users,
		verifier: verifier,
		sessions: sessions,
		codec:    codec,
		denylist: denylist,
	}
}

// Register creates a local-provider account and logs it in.
func (a *Auth) Register(ctx context.Context, email, password, firstName, lastName string) (models.User, token.Pair, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	passHash, err := a.verifier.HashPassword(password)
	if err != nil {
		return models.User{}, token.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.users.SaveUser(ctx, models.User{
		ID:        uuid.NewString(),
		Email:     email,
		PassHash:  passHash,
		FirstName: firstName,
		LastName:  lastName,
		Provider:  models.ProviderDefault,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("email already taken")
			return models.User{}, token.Pair{}, ErrEmailTaken
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, token.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := a.sessions.Issue(ctx, user.ID)
	if err != nil {
		return models.User{}, token.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("user_id", user.ID))

	return user, pair, nil
}

// Login verifies the credentials and issues a token pair.
func (a *Auth) Login(ctx context.Context, email, password string) (models.User, token.Pair, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.verifier.VerifyPassword(ctx, email, password)
	if err != nil {
		return models.User{}, token.Pair{}, err
	}

	pair, err := a.sessions.Issue(ctx, user.ID)
	if err != nil {
		return models.User{}, token.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("user_id", user.ID))

	return user, pair, nil
}

// OAuthLogin logs in an externally authenticated identity, creating the
// account (pre-verified) on first login. An existing account bound to a
// different provider fails with ErrWrongProvider.
func (a *Auth) OAuthLogin(ctx context.Context, profile OAuthProfile) (models.User, token.Pair, error) {
	const op = "auth.OAuthLogin"

	log := a.log.With(slog.String("op", op), slog.String("provider", string(profile.Provider)))

	user, err := a.users.UserByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if user.Provider != profile.Provider {
			return models.User{}, token.Pair{}, fmt.Errorf("%w: this account was created with %s",
				credentials.ErrWrongProvider, user.Provider)
		}
	case errors.Is(err, storage.ErrUserNotFound):
		user, err = a.users.SaveUser(ctx, models.User{
			ID:            uuid.NewString(),
			Email:         profile.Email,
			FirstName:     profile.FirstName,
			LastName:      profile.LastName,
			Provider:      profile.Provider,
			ProviderID:    profile.ProviderID,
			EmailVerified: true,
		})
		if err != nil {
			log.Error("failed to create oauth user", sl.Err(err))
			return models.User{}, token.Pair{}, fmt.Errorf("%s: %w", op, err)
		}

		log.Info("oauth user created", slog.String("user_id", user.ID))
	default:
		log.Error("failed to get user", sl.Err(err))
		return models.User{}, token.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := a.sessions.Issue(ctx, user.ID)
	if err != nil {
		return models.User{}, token.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new pair, rotating the
// old one per the session store's policy.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	rec, err := a.sessions.Validate(ctx, refreshToken)
	if err != nil {
		return token.Pair{}, err
	}

	return a.sessions.Rotate(ctx, rec)
}

// Logout revokes the refresh token and denylists the presented access
// token until it would have expired. Revoking an already revoked or
// expired session is tolerated.
func (a *Auth) Logout(ctx context.Context, refreshToken, accessToken string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	_, err := a.sessions.Validate(ctx, refreshToken)
	if errors.Is(err, session.ErrTokenNotFound) {
		return err
	}

	if err := a.sessions.Revoke(ctx, refreshToken); err != nil {
		return err
	}

	if accessToken != "" {
		a.denyAccessToken(ctx, log, accessToken)
	}

	log.Info("logout successful")

	return nil
}

func (a *Auth) denyAccessToken(ctx context.Context, log *slog.Logger, accessToken string) {
	// Signature-checked only: an expired access token has nothing left to
	// deny.
	tok, err := a.codec.Decode(accessToken, false)
	if err != nil || tok.Kind != token.KindAccess || tok.ID == "" {
		return
	}

	if !tok.ExpiresAt.After(time.Now()) {
		return
	}

	if err := a.denylist.Deny(ctx, tok.ID, tok.ExpiresAt); err != nil {
		log.Error("failed to denylist access token", sl.Err(err))
	}
}

// RequestEmailVerification issues a verification OTP. An unknown email
// is a silent no-op so callers cannot probe which addresses exist.
func (a *Auth) RequestEmailVerification(ctx context.Context, email string) error {
	const op = "auth.RequestEmailVerification"

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			a.log.Info("verification requested for unknown email", slog.String("op", op))
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return a.verifier.IssueOTP(ctx, credentials.PurposeVerification, user)
}

// VerifyEmail consumes the verification OTP and marks the email
// verified.
func (a *Auth) VerifyEmail(ctx context.Context, email, code string) error {
	const op = "auth.VerifyEmail"

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return a.verifier.ConsumeVerificationOTP(ctx, user, code)
}

// RequestPasswordReset issues a reset OTP; unknown email is the same
// silent no-op as RequestEmailVerification.
func (a *Auth) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "auth.RequestPasswordReset"

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			a.log.Info("password reset requested for unknown email", slog.String("op", op))
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return a.verifier.IssueOTP(ctx, credentials.PurposePasswordReset, user)
}

// ResetPassword consumes the reset OTP and stores the new password in
// the same operation.
func (a *Auth) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	const op = "auth.ResetPassword"

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return a.verifier.ConsumeResetOTP(ctx, user, code, newPassword)
}

// ChangePassword updates the password of an authenticated user.
func (a *Auth) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	const op = "auth.ChangePassword"

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return a.verifier.ChangePassword(ctx, user, currentPassword, newPassword)
}

// User returns the account behind an authenticated session.
func (a *Auth) User(ctx context.Context, userID string) (models.User, error) {
	const op = "auth.User"

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}
