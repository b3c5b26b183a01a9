// Package auth gates the admin area behind a single shared secret.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrNoCredential = errors.New("no admin credential configured")

// Gate verifies the admin secret. It always holds a bcrypt hash: a plaintext
// password from the environment is hashed once at startup, so every login
// attempt goes through the same constant-time compare.
type Gate struct {
	hash []byte
}

// NewGate prefers a pre-computed bcrypt hash over a plaintext password.
func NewGate(hash, password string) (*Gate, error) {
	if hash != "" {
		return NewGateFromHash(hash)
	}
	return NewGateFromPassword(password)
}

// NewGateFromHash builds a gate around an existing bcrypt hash.
func NewGateFromHash(hash string) (*Gate, error) {
	if hash == "" {
		return nil, ErrNoCredential
	}
	// A broken hash would refuse every login; catch it at startup.
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid bcrypt hash: %w", err)
	}
	return &Gate{hash: []byte(hash)}, nil
}

// NewGateFromPassword hashes a plaintext password at startup.
func NewGateFromPassword(password string) (*Gate, error) {
	if password == "" {
		return nil, ErrNoCredential
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Gate{hash: hash}, nil
}

// Verify reports whether the candidate matches the admin secret.
func (g *Gate) Verify(candidate string) bool {
	return bcrypt.CompareHashAndPassword(g.hash, []byte(candidate)) == nil
}
