// Package otp generates the short numeric codes sent to users for
// email verification and password reset.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	min  = 100000
	span = 900000
)

// Generate returns a uniformly random 6-digit code in [100000, 999999].
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return "", fmt.Errorf("otp.Generate: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()+min), nil
}
