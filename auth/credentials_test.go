package auth

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestCredentials() *Credentials {
	return New(Config{Secret: []byte("test-secret"), BcryptCost: bcrypt.MinCost})
}

func TestNew(t *testing.T) {
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic for empty secret")
			}
		}()
		New(Config{})
	}()

	c := New(Config{Secret: []byte("s")})
	if c.cfg.TokenTTL != DefaultTokenTTL {
		t.Errorf("Expected %v, got: %v", DefaultTokenTTL, c.cfg.TokenTTL)
	}
	if c.cfg.BcryptCost != DefaultCost {
		t.Errorf("Expected %v, got: %v", DefaultCost, c.cfg.BcryptCost)
	}
}

func TestHashVerify(t *testing.T) {
	c := newTestCredentials()

	hash, err := c.Hash("correct horse")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hash == "correct horse" {
		t.Errorf("Expected the password to be hashed")
	}
	if !c.Verify("correct horse", hash) {
		t.Errorf("Expected password to verify")
	}
	if c.Verify("wrong horse", hash) {
		t.Errorf("Expected wrong password to fail")
	}
	if c.Verify("correct horse", "not-a-hash") {
		t.Errorf("Expected garbage hash to fail")
	}
}

func TestTokens(t *testing.T) {
	c := newTestCredentials()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	token, err := c.SignToken("5f1d7a0e2b3c4d5e6f708192")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sub, err := c.VerifyToken(token)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sub != "5f1d7a0e2b3c4d5e6f708192" {
		t.Errorf("Expected subject to round trip, got: %q", sub)
	}

	other := New(Config{Secret: []byte("other-secret")})
	other.now = c.now

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := []struct {
		title  string
		verify *Credentials
		token  string
		after  time.Duration
		expErr error
	}{
		{title: "garbage", verify: c, token: "garbage", expErr: ErrMalformedToken},
		{title: "empty", verify: c, token: "", expErr: ErrMalformedToken},
		{title: "wrong secret", verify: other, token: token, expErr: ErrInvalidToken},
		{title: "tampered signature", verify: c, token: tampered, expErr: ErrInvalidToken},
		{title: "expired", verify: c, token: token, after: DefaultTokenTTL + time.Minute, expErr: ErrExpiredToken},
	}

	for _, tc := range cases {
		at := now.Add(tc.after)
		tc.verify.now = func() time.Time { return at }
		if _, err := tc.verify.VerifyToken(tc.token); err != tc.expErr {
			t.Errorf("[%s] Expected error %v, got: %v", tc.title, tc.expErr, err)
		}
	}
}

func TestTokensAreUnique(t *testing.T) {
	c := newTestCredentials()
	a, _ := c.SignToken("sub")
	b, _ := c.SignToken("sub")
	if a == b {
		t.Errorf("Expected distinct tokens for the same subject")
	}
}
