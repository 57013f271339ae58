package resolvers

import (
	"context"
	"errors"

	"github.com/troydota/api.collections.komodohype.dev/content"
	"github.com/troydota/api.collections.komodohype.dev/errs"
)

type newCollectionInput struct {
	Name        string
	Description *string
	ColorA      *string
	ColorB      *string
	Polls       []newPollInput
}

type newPollInput struct {
	Name    string
	ColorA  *string
	ColorB  *string
	Choices []string
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (in newCollectionInput) toContent() content.NewCollection {
	c := content.NewCollection{
		Name:        in.Name,
		Description: deref(in.Description),
		ColorA:      deref(in.ColorA),
		ColorB:      deref(in.ColorB),
		Polls:       make([]content.NewPoll, len(in.Polls)),
	}
	for i, p := range in.Polls {
		c.Polls[i] = content.NewPoll{
			Name:    p.Name,
			ColorA:  deref(p.ColorA),
			ColorB:  deref(p.ColorB),
			Choices: p.Choices,
		}
	}
	return c
}

func (r *RootResolver) Register(ctx context.Context, args struct {
	DisplayName string
	Email       string
	Password    string
}) (string, error) {
	id, err := r.svc.Users.Register(ctx, args.DisplayName, args.Email, args.Password)
	if err != nil {
		return "", clientError(err)
	}
	return id.Hex(), nil
}

type session struct {
	token  string
	userID string
}

func (s *session) Token() string {
	return s.token
}

func (s *session) UserID() string {
	return s.userID
}

func (r *RootResolver) Login(ctx context.Context, args struct {
	Email    string
	Password string
}) (*session, error) {
	token, id, err := r.svc.Users.Login(ctx, args.Email, args.Password)
	if err != nil {
		return nil, clientError(err)
	}
	return &session{token, id.Hex()}, nil
}

func (r *RootResolver) CreateCollection(ctx context.Context, args struct {
	Collection newCollectionInput
}) (string, error) {
	userID, err := r.userFromContext(ctx)
	if err != nil {
		return "", clientError(err)
	}
	if err = r.svc.Access.RequireAdmin(ctx, userID); err != nil {
		return "", clientError(err)
	}

	id, err := r.svc.Content.CreateCollection(ctx, args.Collection.toContent())
	if err != nil {
		return "", clientError(err)
	}
	return id.Hex(), nil
}

func (r *RootResolver) Vote(ctx context.Context, args struct {
	PollID   string
	ChoiceID string
}) (string, error) {
	userID, err := r.userFromContext(ctx)
	if err != nil {
		return "", clientError(err)
	}

	pollID, ok := parseID(args.PollID)
	if !ok {
		return "", clientError(errs.ErrNotFound)
	}
	choiceID, ok := parseID(args.ChoiceID)
	if !ok {
		return "", clientError(errs.ErrNotFound)
	}

	err = r.svc.Voting.CastVote(ctx, pollID, choiceID, userID)
	if errors.Is(err, errs.ErrNotEligible) {
		return "NOT_ELIGIBLE", nil
	}
	if err != nil {
		return "", clientError(err)
	}
	return "SUCCESS", nil
}
