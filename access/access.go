// Package access resolves caller identities and gates privileged operations.
package access

import (
	"context"
	"errors"
	"strings"

	"github.com/troydota/api.collections.komodohype.dev/auth"
	"github.com/troydota/api.collections.komodohype.dev/errs"
	"github.com/troydota/api.collections.komodohype.dev/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

type UserFinder interface {
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type Policy struct {
	tokens TokenVerifier
	users  UserFinder
}

func NewPolicy(tokens TokenVerifier, users UserFinder) *Policy {
	if tokens == nil || users == nil {
		panic("token verifier and user finder must be provided")
	}
	return &Policy{tokens: tokens, users: users}
}

// RequireAuthenticated resolves the user id carried by an Authorization
// header value. The "Bearer " prefix is optional. A missing or malformed
// credential is errs.ErrUnauthenticated; a well-formed one that fails
// verification is errs.ErrForbidden.
func (p *Policy) RequireAuthenticated(header string) (primitive.ObjectID, error) {
	token := strings.TrimSpace(header)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return primitive.NilObjectID, errs.ErrUnauthenticated
	}

	sub, err := p.tokens.VerifyToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrMalformedToken) {
			return primitive.NilObjectID, errs.ErrUnauthenticated
		}
		return primitive.NilObjectID, errs.ErrForbidden
	}

	id, err := primitive.ObjectIDFromHex(sub)
	if err != nil {
		return primitive.NilObjectID, errs.ErrForbidden
	}
	return id, nil
}

// RequireAdmin fails with errs.ErrForbidden unless userID belongs to an
// admin. The user is read from the store on every call.
func (p *Policy) RequireAdmin(ctx context.Context, userID primitive.ObjectID) error {
	user, err := p.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrForbidden
		}
		return err
	}
	if !user.IsAdmin() {
		return errs.ErrForbidden
	}
	return nil
}
