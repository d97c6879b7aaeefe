// ABOUTME: Single admin account login backed by a bcrypt password hash
// ABOUTME: Issues bearer tokens on successful login

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for a wrong username or password.
// Callers must not reveal which one was wrong.
var ErrInvalidCredentials = errors.New("incorrect username or password")

// HashPassword returns a bcrypt hash suitable for auth.admin_password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Authenticator checks admin credentials and hands out tokens.
type Authenticator struct {
	username     string
	passwordHash []byte
	tokens       *JWTVerifier
	ttl          time.Duration
}

// NewAuthenticator creates an Authenticator for a single admin account.
func NewAuthenticator(username, passwordHash string, tokens *JWTVerifier, ttl time.Duration) (*Authenticator, error) {
	if username == "" {
		return nil, errors.New("admin username must not be empty")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{
		username:     username,
		passwordHash: []byte(passwordHash),
		tokens:       tokens,
		ttl:          ttl,
	}, nil
}

// Username returns the admin username tokens are issued for.
func (a *Authenticator) Username() string { return a.username }

// Login verifies the credentials and returns a signed access token.
func (a *Authenticator) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return "", ErrInvalidCredentials
	}
	return a.tokens.Generate(a.username, a.ttl)
}

// Verify checks a token and that it was issued for the admin account.
func (a *Authenticator) Verify(token string) (string, error) {
	sub, err := a.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	if sub != a.username {
		return "", fmt.Errorf("%w: unknown subject", ErrInvalidToken)
	}
	return sub, nil
}

var _ TokenVerifier = (*Authenticator)(nil)
