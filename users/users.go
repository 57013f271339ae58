// Package users is the account directory: signup, login and the admin seed.
package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.collections.komodohype.dev/errs"
	"github.com/troydota/api.collections.komodohype.dev/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxDisplayName = 64
	minPassword    = 8
	maxPassword    = 72 // bcrypt ignores anything longer
)

type Store interface {
	// InsertUser stores user, assigning an id when it has none. It fails
	// with errs.ErrDuplicateEmail if the email is taken.
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type Credentials interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	SignToken(subject string) (string, error)
}

type Service struct {
	store Store
	creds Credentials
	now   func() time.Time

	// compared against when the email is unknown so both failure paths
	// cost one bcrypt comparison
	dummyHash string
}

func NewService(store Store, creds Credentials) *Service {
	if store == nil {
		panic("store must be provided")
	}
	if creds == nil {
		panic("credentials must be provided")
	}
	dummy, err := creds.Hash("dummy password for unknown accounts")
	if err != nil {
		panic(err)
	}
	return &Service{
		store:     store,
		creds:     creds,
		now:       time.Now,
		dummyHash: dummy,
	}
}

// NormalizeEmail returns the lookup form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validate(displayName, email, password string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return errs.Invalid("displayName", "is required")
	}
	if utf8.RuneCountInString(displayName) > maxDisplayName {
		return errs.Invalid("displayName", "must be at most 64 characters")
	}
	if email == "" {
		return errs.Invalid("email", "is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return errs.Invalid("email", "is not a valid address")
	}
	if len(password) < minPassword || len(password) > maxPassword {
		return errs.Invalid("password", "must be between 8 and 72 bytes")
	}
	return nil
}

// Register creates a regular user account and returns its id.
func (s *Service) Register(ctx context.Context, displayName, email, password string) (primitive.ObjectID, error) {
	return s.register(ctx, displayName, email, password, models.LevelUser)
}

func (s *Service) register(ctx context.Context, displayName, email, password string, level models.UserLevel) (primitive.ObjectID, error) {
	email = NormalizeEmail(email)
	if err := validate(displayName, email, password); err != nil {
		return primitive.NilObjectID, err
	}

	_, err := s.store.FindUserByEmail(ctx, email)
	if err == nil {
		return primitive.NilObjectID, errs.ErrDuplicateEmail
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return primitive.NilObjectID, err
	}

	hash, err := s.creds.Hash(password)
	if err != nil {
		log.Errorf("bcrypt, err=%v", err)
		return primitive.NilObjectID, err
	}

	user := &models.User{
		ID:           primitive.NewObjectID(),
		DisplayName:  strings.TrimSpace(displayName),
		Email:        email,
		PasswordHash: hash,
		UserLevel:    level,
		CreationDate: s.now().UTC().Truncate(time.Millisecond),
	}
	// the unique index settles concurrent signups the lookup above let through
	if err = s.store.InsertUser(ctx, user); err != nil {
		return primitive.NilObjectID, err
	}

	return user.ID, nil
}

// Authenticate returns the id of the user owning email if password matches.
// An unknown email and a wrong password yield the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (primitive.ObjectID, error) {
	user, err := s.store.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			return primitive.NilObjectID, err
		}
		s.creds.Verify(password, s.dummyHash)
		return primitive.NilObjectID, errs.ErrInvalidCredentials
	}

	if !s.creds.Verify(password, user.PasswordHash) {
		return primitive.NilObjectID, errs.ErrInvalidCredentials
	}

	return user.ID, nil
}

// Login authenticates and issues a token for the user.
func (s *Service) Login(ctx context.Context, email, password string) (string, primitive.ObjectID, error) {
	id, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", primitive.NilObjectID, err
	}

	token, err := s.creds.SignToken(id.Hex())
	if err != nil {
		log.Errorf("jwt, err=%v", err)
		return "", primitive.NilObjectID, err
	}

	return token, id, nil
}

// EnsureAdmin creates an admin account for email unless one with that email
// already exists, in which case it is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, displayName, email, password string) error {
	_, err := s.register(ctx, displayName, email, password, models.LevelAdmin)
	if errors.Is(err, errs.ErrDuplicateEmail) {
		return nil
	}
	return err
}
