package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
	ErrEmptyClientID = errors.New("clientID cannot be empty")
	ErrShortSecret   = errors.New("secret must be at least 32 characters")
)

// Claims identifies the holder of a bearer token issued after a client
// proved knowledge of the transport's shared secret (see VerifySecret).
// There is no user store and no role: any valid token authorizes every
// command the transport exposes.
type Claims struct {
	ClientID  string    `json:"client_id"`
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// JWTManager issues and validates short-lived bearer tokens for the
// command socket (SPEC_FULL.md §6 transport). The signing key is the
// string passed to NewJWTManager; cmd/lsmserver derives it from the
// shared secret and that secret's freshly salted bcrypt hash, so changing
// the secret or restarting the server invalidates earlier tokens.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// NewJWTManager creates a new JWT manager. Returns an error if the
// signing secret is shorter than 32 characters.
func NewJWTManager(signingSecret string, tokenDuration time.Duration) (*JWTManager, error) {
	if len(signingSecret) < 32 {
		return nil, ErrShortSecret
	}
	return &JWTManager{secretKey: []byte(signingSecret), tokenDuration: tokenDuration}, nil
}

// IssueToken mints a bearer token for clientID, the label a client
// supplies alongside its shared-secret proof (a hostname or connection
// tag; it is not authenticated on its own).
func (m *JWTManager) IssueToken(clientID string) (string, error) {
	if clientID == "" {
		return "", ErrEmptyClientID
	}

	now := time.Now()
	expiresAt := now.Add(m.tokenDuration)

	claims := jwt.MapClaims{
		"client_id": clientID,
		"jti":       uuid.NewString(),
		"exp":       expiresAt.Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a bearer token and returns its claims.
// Implements TokenValidator.
func (m *JWTManager) ValidateToken(_ context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claimsMap, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	clientID, ok := claimsMap["client_id"].(string)
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing or invalid client_id", ErrInvalidClaims)
	}

	sessionID, _ := claimsMap["jti"].(string)

	expFloat, ok := claimsMap["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid exp", ErrInvalidClaims)
	}
	expiresAt := time.Unix(int64(expFloat), 0)

	iatFloat, ok := claimsMap["iat"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid iat", ErrInvalidClaims)
	}
	issuedAt := time.Unix(int64(iatFloat), 0)

	if time.Now().After(expiresAt) {
		return nil, ErrExpiredToken
	}

	return &Claims{ClientID: clientID, SessionID: sessionID, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// Name returns the validator name for logging/debugging. Implements
// TokenValidator.
func (m *JWTManager) Name() string {
	return "jwt-hs256"
}

// GetTokenDuration returns the configured token duration.
func (m *JWTManager) GetTokenDuration() time.Duration {
	return m.tokenDuration
}
