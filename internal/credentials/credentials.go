// Package credentials verifies stored secrets: passwords and the
// one-time codes used for email verification and password reset. The
// same one-way hash (bcrypt, configurable cost) covers both.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "auth_backend/internal/lib/logger"
	"auth_backend/internal/lib/otp"
	"auth_backend/internal/models"
	"auth_backend/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrWrongProvider      = errors.New("wrong provider")
	ErrAlreadyVerified    = errors.New("email already verified")

	// ErrInvalidOrExpiredOTP deliberately collapses "wrong code", "no code
	// issued" and "code expired" so callers cannot tell which failed.
	ErrInvalidOrExpiredOTP = errors.New("invalid or expired otp")
)

type Purpose string

const (
	PurposeVerification  Purpose = "email-verification"
	PurposePasswordReset Purpose = "password-reset"
)

const defaultOTPTTL = 10 * time.Minute

type UserRepo interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)

	// SetOTP stores the hash and expiry for the given purpose, replacing
	// any outstanding code for that purpose.
	SetOTP(ctx context.Context, userID string, purpose Purpose, hash []byte, expiresAt time.Time) error

	// MarkEmailVerified sets the verified flag and clears the verification
	// OTP in one update.
	MarkEmailVerified(ctx context.Context, userID string) error

	// ResetPassword stores the new hash and clears the reset OTP in one
	// update.
	ResetPassword(ctx context.Context, userID string, passHash []byte) error

	UpdatePassword(ctx context.Context, userID string, passHash []byte) error
}

type Notifier interface {
	SendOTPEmail(ctx context.Context, email, code, purpose string) error
}

type Verifier struct {
	log      *slog.Logger
	users    UserRepo
	notifier Notifier
	cost     int
	otpTTL   time.Duration
}

func New(log *slog.Logger, users UserRepo, notifier Notifier, cost int, otpTTL time.Duration) *Verifier {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if otpTTL == 0 {
		otpTTL = defaultOTPTTL
	}

	return &Verifier{
		log:      log,
		users:    users,
		notifier: notifier,
		cost:     cost,
		otpTTL:   otpTTL,
	}
}

// HashPassword hashes a plaintext password for storage.
func (v *Verifier) HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), v.cost)
}

// VerifyPassword checks email/password against the stored hash. Unknown
// email and wrong password are indistinguishable to the caller. Accounts
// created through an external provider fail with ErrWrongProvider naming
// that provider, before any hash comparison.
func (v *Verifier) VerifyPassword(ctx context.Context, email, password string) (models.User, error) {
	const op = "credentials.VerifyPassword"

	log := v.log.With(slog.String("op", op))

	user, err := v.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("login for unknown email")
			return models.User{}, ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if user.Provider != models.ProviderDefault {
		return models.User{}, fmt.Errorf("%w: this account was created with %s, log in with %s",
			ErrWrongProvider, user.Provider, user.Provider)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("password mismatch", slog.String("user_id", user.ID))
		return models.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// IssueOTP generates a 6-digit code, stores its hash with a fresh expiry
// for the purpose (replacing any outstanding code) and hands the
// plaintext to the notifier. A notifier failure is logged, never rolled
// back: the code is already committed.
func (v *Verifier) IssueOTP(ctx context.Context, purpose Purpose, user models.User) error {
	const op = "credentials.IssueOTP"

	log := v.log.With(slog.String("op", op), slog.String("user_id", user.ID))

	if purpose == PurposeVerification && user.EmailVerified {
		return ErrAlreadyVerified
	}

	code, err := otp.Generate()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), v.cost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := v.users.SetOTP(ctx, user.ID, purpose, hash, time.Now().Add(v.otpTTL)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := v.notifier.SendOTPEmail(ctx, user.Email, code, string(purpose)); err != nil {
		log.Error("failed to publish otp email", sl.Err(err))
	}

	return nil
}

// ConsumeVerificationOTP checks the supplied code against the stored
// verification OTP and, on success, marks the email verified and clears
// the code. A code is consumable exactly once.
func (v *Verifier) ConsumeVerificationOTP(ctx context.Context, user models.User, code string) error {
	const op = "credentials.ConsumeVerificationOTP"

	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	if err := checkOTP(user.VerificationOTPHash, user.VerificationOTPExpiresAt, code); err != nil {
		return err
	}

	if err := v.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ConsumeResetOTP checks the supplied code against the stored reset OTP
// and, on success, stores the new password hash atomically with clearing
// the code.
func (v *Verifier) ConsumeResetOTP(ctx context.Context, user models.User, code, newPassword string) error {
	const op = "credentials.ConsumeResetOTP"

	if err := checkOTP(user.PasswordResetOTPHash, user.PasswordResetOTPExpiresAt, code); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), v.cost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := v.users.ResetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ChangePassword re-hashes and stores the new password after checking
// the current one.
func (v *Verifier) ChangePassword(ctx context.Context, user models.User, currentPlain, newPlain string) error {
	const op = "credentials.ChangePassword"

	if user.Provider != models.ProviderDefault {
		return fmt.Errorf("%w: this account was created with %s", ErrWrongProvider, user.Provider)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(currentPlain)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPlain), v.cost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := v.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// checkOTP compares the code before checking expiry; the caller sees the
// same error either way.
func checkOTP(hash []byte, expiresAt *time.Time, code string) error {
	if len(hash) == 0 {
		return ErrInvalidOrExpiredOTP
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(code)); err != nil {
		return ErrInvalidOrExpiredOTP
	}

	if expiresAt == nil || time.Now().After(*expiresAt) {
		return ErrInvalidOrExpiredOTP
	}

	return nil
}
