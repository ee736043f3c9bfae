// Package identity talks to the external identity provider that owns
// accounts and passwords.
package identity

import (
	"context"
	"strings"

	"github.com/Noel-Mtf/yesshare/internal/failure"
)

// MinPasswordLength mirrors the provider's weakest accepted password.
const MinPasswordLength = 6

// Identity is a successfully authenticated account.
type Identity struct {
	UID      string
	Email    string
	Username string
	// RefreshToken is the provider session, handed back on Logout.
	RefreshToken string
	Claims       map[string]interface{}
}

// Provider registers, authenticates and signs out accounts.
type Provider interface {
	Register(ctx context.Context, username, email, password string) (uid string, err error)
	Login(ctx context.Context, email, password string) (*Identity, error)
	Logout(ctx context.Context, refreshToken string) error
}

// ValidateRegistration checks the input before it is sent to a provider.
func ValidateRegistration(username, email, password string) error {
	const op = "identity.Register"
	if strings.TrimSpace(username) == "" {
		return failure.Newf(failure.KindValidation, op, "username is required")
	}
	if !strings.Contains(email, "@") {
		return failure.Newf(failure.KindValidation, op, "a valid email is required")
	}
	if len(password) < MinPasswordLength {
		return failure.Newf(failure.KindValidation, op, "password should be at least %d characters", MinPasswordLength)
	}
	return nil
}

// FromClaims builds an Identity from verified id-token claims.
func FromClaims(claims map[string]interface{}) *Identity {
	id := &Identity{Claims: claims}
	id.UID, _ = claims["sub"].(string)
	id.Email, _ = claims["email"].(string)
	id.Username, _ = claims["preferred_username"].(string)
	if id.Username == "" {
		id.Username, _ = claims["name"].(string)
	}
	return id
}
