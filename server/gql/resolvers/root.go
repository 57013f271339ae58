package resolvers

import (
	"context"
	"errors"
	"fmt"

	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/selection"
	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.collections.komodohype.dev/server/api"
	"github.com/troydota/api.collections.komodohype.dev/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	errInternalServer = fmt.Errorf("internal server error")
)

// AuthorizationKey is the context key of the caller's Authorization value.
const AuthorizationKey = utils.Key("authorization")

func New(svc *api.Services) *RootResolver {
	if svc == nil {
		panic("services must be provided")
	}
	return &RootResolver{svc}
}

type RootResolver struct {
	svc *api.Services
}

// userFromContext resolves the caller's identity.
func (r *RootResolver) userFromContext(ctx context.Context) (primitive.ObjectID, error) {
	header, _ := ctx.Value(AuthorizationKey).(string)
	return r.svc.Access.RequireAuthenticated(header)
}

// clientError turns a service error into one whose message is safe to
// return to clients.
func clientError(err error) error {
	_, message, ok := api.Status(err)
	if !ok {
		log.Errorf("gql, err=%v", err)
		return errInternalServer
	}
	return errors.New(message)
}

func parseID(s string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(s)
	return id, err == nil
}

type selectedField struct {
	name     string
	children map[string]*selectedField
}

func generateSelectedFieldMap(ctx context.Context) *selectedField {
	var loop func(fields []*selection.SelectedField) map[string]*selectedField
	loop = func(fields []*selection.SelectedField) map[string]*selectedField {
		if len(fields) == 0 {
			return nil
		}
		m := map[string]*selectedField{}
		for _, f := range fields {
			m[f.Name] = &selectedField{
				name:     f.Name,
				children: loop(f.SelectedFields),
			}
		}
		return m
	}
	children := loop(graphql.SelectedFieldsFromContext(ctx))
	return &selectedField{
		name:     "query",
		children: children,
	}
}

func (f *selectedField) has(names ...string) bool {
	if f == nil {
		return false
	}
	for _, n := range names {
		if _, ok := f.children[n]; ok {
			return true
		}
	}
	return false
}
