// Package api holds what the REST and GraphQL transports share: the
// services they call and how service errors become responses.
package api

import (
	"context"
	"errors"

	"github.com/davecgh/go-spew/spew"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.collections.komodohype.dev/access"
	"github.com/troydota/api.collections.komodohype.dev/content"
	"github.com/troydota/api.collections.komodohype.dev/errs"
	"github.com/troydota/api.collections.komodohype.dev/models"
	"github.com/troydota/api.collections.komodohype.dev/users"
	"github.com/troydota/api.collections.komodohype.dev/voting"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Watcher streams the vote events of a poll until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, pollID primitive.ObjectID) (<-chan models.VoteEvent, error)
}

type Services struct {
	Users   *users.Service
	Access  *access.Policy
	Content *content.Service
	Voting  *voting.Engine
	Events  Watcher
}

// Status maps err to an HTTP status and a message safe to show clients.
// ok is false for errors that aren't part of the service's vocabulary.
func Status(err error) (status int, message string, ok bool) {
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr):
		return fiber.StatusBadRequest, verr.Error(), true
	case errors.Is(err, errs.ErrValidation):
		return fiber.StatusBadRequest, err.Error(), true
	case errors.Is(err, errs.ErrDuplicateEmail):
		return fiber.StatusConflict, errs.ErrDuplicateEmail.Error(), true
	case errors.Is(err, errs.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, errs.ErrInvalidCredentials.Error(), true
	case errors.Is(err, errs.ErrUnauthenticated):
		return fiber.StatusUnauthorized, errs.ErrUnauthenticated.Error(), true
	case errors.Is(err, errs.ErrForbidden):
		return fiber.StatusForbidden, errs.ErrForbidden.Error(), true
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound, "We don't know what you're looking for.", true
	case errors.Is(err, errs.ErrNotEligible):
		return fiber.StatusConflict, errs.ErrNotEligible.Error(), true
	case errors.Is(err, errs.ErrStoreUnavailable):
		log.Errorf("store, err=%v", err)
		return fiber.StatusServiceUnavailable, "Service temporarily unavailable.", true
	}
	return fiber.StatusInternalServerError, "Internal server error.", false
}

func ErrorHandler(c *fiber.Ctx, err error) error {
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return c.Status(ferr.Code).JSON(fiber.Map{
			"status":  ferr.Code,
			"message": ferr.Message,
		})
	}

	status, message, ok := Status(err)
	if !ok {
		log.Errorf("internal err=%v", spew.Sdump(err))
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  status,
		"message": message,
	})
}
