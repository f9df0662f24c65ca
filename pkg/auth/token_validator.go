package auth

import (
	"context"
	"errors"
)

// TokenValidator abstracts token validation to support multiple auth methods (JWT, OIDC, etc.)
type TokenValidator interface {
	// ValidateToken validates a token and returns claims.
	// Returns error if token is invalid, expired, or malformed.
	ValidateToken(ctx context.Context, token string) (*Claims, error)

	// Name returns the validator name for logging/debugging
	Name() string
}

// ErrNoValidatorMatched is returned when no validator can validate the token
var ErrNoValidatorMatched = errors.New("no validator could validate the token")

// CompositeTokenValidator chains multiple validators, trying each in order
type CompositeTokenValidator struct {
	validators []TokenValidator
}

// NewCompositeTokenValidator creates a validator that tries multiple validators in order
func NewCompositeTokenValidator(validators ...TokenValidator) *CompositeTokenValidator {
	return &CompositeTokenValidator{validators: validators}
}

// ValidateToken tries each validator in order until one succeeds
func (c *CompositeTokenValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if len(c.validators) == 0 {
		return nil, ErrNoValidatorMatched
	}

	var lastErr error
	for _, v := range c.validators {
		claims, err := v.ValidateToken(ctx, token)
		if err == nil {
			return claims, nil
		}
		lastErr = err
	}

	// Return the last error (most specific)
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoValidatorMatched
}

// Name returns a composite name of all validators
func (c *CompositeTokenValidator) Name() string {
	return "composite"
}

// AddValidator adds a validator to the chain
func (c *CompositeTokenValidator) AddValidator(v TokenValidator) {
	c.validators = append(c.validators, v)
}

// SharedSecretValidator authenticates a command by comparing its token
// directly against the bcrypt-hashed shared secret, bypassing the AUTH/
// TOKEN handshake JWTManager requires. It exists for scripted clients
// that would rather send the secret on every command than manage a
// short-lived bearer token. A CompositeTokenValidator tries JWTManager
// first so the common case never pays bcrypt's cost.
type SharedSecretValidator struct {
	secretHash string
}

// NewSharedSecretValidator wraps a bcrypt hash produced by HashSecret.
func NewSharedSecretValidator(secretHash string) *SharedSecretValidator {
	return &SharedSecretValidator{secretHash: secretHash}
}

// ValidateToken succeeds when token is the plaintext shared secret.
// Implements TokenValidator.
func (s *SharedSecretValidator) ValidateToken(_ context.Context, token string) (*Claims, error) {
	if err := VerifySecret(s.secretHash, token); err != nil {
		return nil, ErrInvalidToken
	}
	return &Claims{ClientID: "shared-secret"}, nil
}

// Name returns the validator name for logging/debugging. Implements
// TokenValidator.
func (s *SharedSecretValidator) Name() string {
	return "shared-secret"
}
