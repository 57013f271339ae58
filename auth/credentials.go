// Package auth implements password hashing and identity tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTokenTTL is the default for Config.TokenTTL.
	DefaultTokenTTL = 24 * time.Hour

	// DefaultCost is the default for Config.BcryptCost.
	DefaultCost = bcrypt.DefaultCost
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
)

// Config holds Credentials configuration.
// Secret is required; zero values of the rest fall back to defaults.
type Config struct {
	Secret     []byte
	TokenTTL   time.Duration
	BcryptCost int
}

// Credentials hashes passwords and signs / verifies HS256 tokens whose
// subject is a user id. It's safe for concurrent use.
type Credentials struct {
	cfg Config
	now func() time.Time
}

// New creates Credentials. It panics if no secret is configured.
func New(cfg Config) *Credentials {
	if len(cfg.Secret) == 0 {
		panic("token secret must be provided")
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultCost
	}
	return &Credentials{cfg: cfg, now: time.Now}
}

// Hash returns the bcrypt hash of password.
func (c *Credentials) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cfg.BcryptCost)
	return string(hash), err
}

// Verify reports whether password matches hash.
func (c *Credentials) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SignToken issues a token for subject that expires after the configured TTL.
func (c *Credentials) SignToken(subject string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
}

// VerifyToken checks the signature and expiry of token and returns its subject.
// Failures are reported as ErrMalformedToken, ErrExpiredToken or ErrInvalidToken.
func (c *Credentials) VerifyToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "", ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredToken
	default:
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
