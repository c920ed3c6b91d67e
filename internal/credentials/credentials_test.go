package credentials

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"auth_backend/internal/models"
	"auth_backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users map[string]*models.User // by email
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		r.users[u.Email] = u
	}
	return r
}

func (r *fakeUserRepo) UserByEmail(_ context.Context, email string) (models.User, error) {
	u, ok := r.users[email]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return *u, nil
}

func (r *fakeUserRepo) byID(id string) *models.User {
	for _, u := range r.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (r *fakeUserRepo) SetOTP(_ context.Context, userID string, purpose Purpose, hash []byte, expiresAt time.Time) error {
	u := r.byID(userID)
	switch purpose {
	case PurposeVerification:
		u.VerificationOTPHash = hash
		u.VerificationOTPExpiresAt = &expiresAt
	case PurposePasswordReset:
		u.PasswordResetOTPHash = hash
		u.PasswordResetOTPExpiresAt = &expiresAt
	}
	return nil
}

func (r *fakeUserRepo) MarkEmailVerified(_ context.Context, userID string) error {
	u := r.byID(userID)
	u.EmailVerified = true
	u.VerificationOTPHash = nil
	u.VerificationOTPExpiresAt = nil
	return nil
}

func (r *fakeUserRepo) ResetPassword(_ context.Context, userID string, passHash []byte) error {
	u := r.byID(userID)
	u.PassHash = passHash
	u.PasswordResetOTPHash = nil
	u.PasswordResetOTPExpiresAt = nil
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID string, passHash []byte) error {
	r.byID(userID).PassHash = passHash
	return nil
}

type fakeNotifier struct {
	sent []models.Message
}

func (n *fakeNotifier) SendOTPEmail(_ context.Context, email, code, purpose string) error {
	n.sent = append(n.sent, models.Message{To: email, Code: code, Purpose: purpose})
	return nil
}

func hash(t *testing.T, plain string) []byte {
	t.Helper()

	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func testVerifier(t *testing.T, users ...*models.User) (*Verifier, *fakeUserRepo, *fakeNotifier) {
	t.Helper()

	repo := newFakeUserRepo(users...)
	notifier := &fakeNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(log, repo, notifier, bcrypt.MinCost, 10*time.Minute), repo, notifier
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	user := &models.User{
		ID:       "user-1",
		Email:    "a@x.com",
		PassHash: hash(t, "secret1"),
		Provider: models.ProviderDefault,
	}
	v, _, _ := testVerifier(t, user)
	ctx := context.Background()

	got, err := v.VerifyPassword(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)

	_, err = v.VerifyPassword(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown email yields the same error as a wrong password.
	_, err = v.VerifyPassword(ctx, "nobody@x.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyPassword_WrongProvider(t *testing.T) {
	t.Parallel()

	// No password hash at all: a hash comparison would fail loudly, so
	// the provider check must short-circuit before it.
	user := &models.User{
		ID:       "user-2",
		Email:    "fb@x.com",
		Provider: models.ProviderFacebook,
	}
	v, _, _ := testVerifier(t, user)

	_, err := v.VerifyPassword(context.Background(), "fb@x.com", "anything")
	require.ErrorIs(t, err, ErrWrongProvider)
	assert.Contains(t, err.Error(), "FACEBOOK")
}

func TestOTP_RoundTrip(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: "user-1", Email: "a@x.com", Provider: models.ProviderDefault}
	v, repo, notifier := testVerifier(t, user)
	ctx := context.Background()

	require.NoError(t, v.IssueOTP(ctx, PurposeVerification, *user))

	require.Len(t, notifier.sent, 1)
	code := notifier.sent[0].Code
	require.Len(t, code, 6)
	assert.Equal(t, "a@x.com", notifier.sent[0].To)
	assert.Equal(t, string(PurposeVerification), notifier.sent[0].Purpose)

	// The stored value is a hash, never the plaintext.
	stored := repo.byID("user-1")
	require.NotEmpty(t, stored.VerificationOTPHash)
	assert.NotContains(t, string(stored.VerificationOTPHash), code)

	require.NoError(t, v.ConsumeVerificationOTP(ctx, *stored, code))
	assert.True(t, repo.byID("user-1").EmailVerified)

	// Consuming a second time fails: the code is gone and the email is
	// already verified.
	err := v.ConsumeVerificationOTP(ctx, *repo.byID("user-1"), code)
	require.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestConsumeVerificationOTP_WrongCode(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: "user-1", Email: "a@x.com"}
	v, repo, notifier := testVerifier(t, user)
	ctx := context.Background()

	require.NoError(t, v.IssueOTP(ctx, PurposeVerification, *user))
	require.Len(t, notifier.sent, 1)

	err := v.ConsumeVerificationOTP(ctx, *repo.byID("user-1"), "000000")
	require.ErrorIs(t, err, ErrInvalidOrExpiredOTP)

	// No code issued at all.
	other := models.User{ID: "user-9", Email: "b@x.com"}
	err = v.ConsumeVerificationOTP(ctx, other, "123456")
	require.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
}

func TestConsumeVerificationOTP_Expired(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Minute)
	user := &models.User{
		ID:                       "user-1",
		Email:                    "a@x.com",
		VerificationOTPHash:      hash(t, "123456"),
		VerificationOTPExpiresAt: &past,
	}
	v, _, _ := testVerifier(t, user)

	// Correct code, past the 10-minute window.
	err := v.ConsumeVerificationOTP(context.Background(), *user, "123456")
	require.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
}

func TestIssueOTP_AlreadyVerified(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: "user-1", Email: "a@x.com", EmailVerified: true}
	v, _, notifier := testVerifier(t, user)

	err := v.IssueOTP(context.Background(), PurposeVerification, *user)
	require.ErrorIs(t, err, ErrAlreadyVerified)
	assert.Empty(t, notifier.sent)

	// A reset OTP is still fine for a verified account.
	require.NoError(t, v.IssueOTP(context.Background(), PurposePasswordReset, *user))
	assert.Len(t, notifier.sent, 1)
}

func TestIssueOTP_ReplacesOutstandingCode(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: "user-1", Email: "a@x.com"}
	v, repo, notifier := testVerifier(t, user)
	ctx := context.Background()

	require.NoError(t, v.IssueOTP(ctx, PurposeVerification, *user))
	require.NoError(t, v.IssueOTP(ctx, PurposeVerification, *repo.byID("user-1")))
	require.Len(t, notifier.sent, 2)

	first, second := notifier.sent[0].Code, notifier.sent[1].Code
	if first == second {
		t.Skip("codes collided; nothing to assert")
	}

	// The last writer wins; the first code is unusable.
	err := v.ConsumeVerificationOTP(ctx, *repo.byID("user-1"), first)
	require.ErrorIs(t, err, ErrInvalidOrExpiredOTP)

	require.NoError(t, v.ConsumeVerificationOTP(ctx, *repo.byID("user-1"), second))
}

func TestConsumeResetOTP(t *testing.T) {
	t.Parallel()

	user := &models.User{
		ID:       "user-1",
		Email:    "a@x.com",
		PassHash: hash(t, "oldpass"),
	}
	v, repo, notifier := testVerifier(t, user)
	ctx := context.Background()

	require.NoError(t, v.IssueOTP(ctx, PurposePasswordReset, *user))
	require.Len(t, notifier.sent, 1)
	code := notifier.sent[0].Code

	require.NoError(t, v.ConsumeResetOTP(ctx, *repo.byID("user-1"), code, "newpass"))

	updated := repo.byID("user-1")
	require.NoError(t, bcrypt.CompareHashAndPassword(updated.PassHash, []byte("newpass")))
	assert.Empty(t, updated.PasswordResetOTPHash)

	// The code was consumed together with the password change.
	err := v.ConsumeResetOTP(ctx, *updated, code, "again")
	require.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: "user-1", Email: "a@x.com", PassHash: hash(t, "current"), Provider: models.ProviderDefault}
	v, repo, _ := testVerifier(t, user)
	ctx := context.Background()

	err := v.ChangePassword(ctx, *user, "wrong", "next")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, v.ChangePassword(ctx, *user, "current", "next"))
	require.NoError(t, bcrypt.CompareHashAndPassword(repo.byID("user-1").PassHash, []byte("next")))
}
