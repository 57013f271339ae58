package utils

import (
	"crypto/rand"
	"encoding/base64"
	"unsafe"
)

// Key is the type used for values stored in a context.Context.
type Key string

// B2S converts a byte slice to a string without copying.
// The slice must not be modified afterwards.
func B2S(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// S2B converts a string to a byte slice without copying.
// The returned slice must not be modified.
func S2B(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// GenerateRandomBytes returns n securely generated random bytes.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateRandomString returns a URL-safe, base64 encoded random string
// built from n random bytes.
func GenerateRandomString(n int) (string, error) {
	b, err := GenerateRandomBytes(n)
	return base64.RawURLEncoding.EncodeToString(b), err
}
