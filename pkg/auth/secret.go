package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrSecretMismatch = errors.New("shared secret does not match")

// HashSecret bcrypt-hashes the transport's pre-shared secret
// (SPEC_FULL.md §6: bearer-JWT auth backed by a bcrypt-hashed pre-shared
// secret). The config file holds the secret in plain text; cmd/lsmserver
// hashes it at startup and checks candidates against that hash.
func HashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifySecret checks candidate against a hash produced by HashSecret.
// A successful call is the only thing that authorizes IssueToken.
func VerifySecret(hash, candidate string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)); err != nil {
		return ErrSecretMismatch
	}
	return nil
}
