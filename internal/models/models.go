package models

import "time"

// Provider is the identity source an account was created with. Accounts
// created with an external provider have no usable password.
type Provider string

const (
	ProviderDefault  Provider = "DEFAULT"
	ProviderFacebook Provider = "FACEBOOK"
)

type User struct {
	ID            string
	Email         string
	PassHash      []byte
	FirstName     string
	LastName      string
	Provider      Provider
	ProviderID    string
	EmailVerified bool

	VerificationOTPHash       []byte
	VerificationOTPExpiresAt  *time.Time
	PasswordResetOTPHash      []byte
	PasswordResetOTPExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Public strips everything a caller must never see: the password hash and
// the outstanding OTP hashes.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Provider:      u.Provider,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

type PublicUser struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Provider      Provider  `json:"provider"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// RefreshToken is one persisted refresh token record. Records are never
// deleted; rotation and logout flip Revoked instead.
type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Message is the payload published to the mail queue for out-of-band OTP
// delivery.
type Message struct {
	To      string `json:"to"`
	Code    string `json:"otp"`
	Purpose string `json:"purpose"`
}
