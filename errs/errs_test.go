package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("register: %w", Invalid("email", "is required"))

	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected errors.Is(err, ErrValidation)")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected a *ValidationError in %v", err)
	}
	if ve.Field != "email" {
		t.Errorf("Expected field %q, got: %q", "email", ve.Field)
	}
	if exp := "invalid email: is required"; ve.Error() != exp {
		t.Errorf("Expected %q, got: %q", exp, ve.Error())
	}
}

func TestUnavailable(t *testing.T) {
	err := Unavailable("insert user", errors.New("connection refused"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected errors.Is(err, ErrStoreUnavailable), got: %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("Unexpected match with ErrNotFound")
	}
}
