package resolvers

import (
	"context"
	"errors"
	"time"

	"github.com/troydota/api.collections.komodohype.dev/errs"
	"github.com/troydota/api.collections.komodohype.dev/models"
)

func (r *RootResolver) Collections(ctx context.Context, args struct{ Limit *int32 }) ([]*collectionSummaryResolver, error) {
	limit := 0
	if args.Limit != nil {
		limit = int(*args.Limit)
	}

	list, err := r.svc.Content.ListCollections(ctx, limit)
	if err != nil {
		return nil, clientError(err)
	}

	result := make([]*collectionSummaryResolver, len(list))
	for i := range list {
		result[i] = &collectionSummaryResolver{&list[i]}
	}
	return result, nil
}

func (r *RootResolver) Collection(ctx context.Context, args struct{ ID string }) (*collectionResolver, error) {
	id, ok := parseID(args.ID)
	if !ok {
		return nil, nil
	}

	detail, err := r.svc.Content.GetCollectionDetail(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, clientError(err)
	}

	return &collectionResolver{collectionSummaryResolver{&detail.CollectionSummary}, detail.Polls}, nil
}

// Poll only assembles vote counts and eligibility when they are selected.
func (r *RootResolver) Poll(ctx context.Context, args struct{ ID string }) (*pollResolver, error) {
	field := generateSelectedFieldMap(ctx)

	userID, err := r.userFromContext(ctx)
	if err != nil {
		return nil, clientError(err)
	}

	id, ok := parseID(args.ID)
	if !ok {
		return nil, nil
	}

	resolver := &pollResolver{}
	if field.has("choices", "canVote") {
		resolver.detail, err = r.svc.Content.GetPollDetail(ctx, id, userID)
		if err == nil {
			resolver.summary = &resolver.detail.PollSummary
		}
	} else {
		resolver.summary, err = r.svc.Content.GetPollSummary(ctx, id)
	}
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, clientError(err)
	}

	return resolver, nil
}

type collectionSummaryResolver struct {
	c *models.CollectionSummary
}

func (r *collectionSummaryResolver) ID() string {
	return r.c.ID.Hex()
}

func (r *collectionSummaryResolver) Name() string {
	return r.c.Name
}

func (r *collectionSummaryResolver) Description() string {
	return r.c.Description
}

func (r *collectionSummaryResolver) ColorA() string {
	return r.c.ColorA
}

func (r *collectionSummaryResolver) ColorB() string {
	return r.c.ColorB
}

func (r *collectionSummaryResolver) CreatedAt() string {
	return r.c.CreationDate.Format(time.RFC3339)
}

type collectionResolver struct {
	collectionSummaryResolver
	polls []models.PollSummary
}

func (r *collectionResolver) Polls() []*pollSummaryResolver {
	result := make([]*pollSummaryResolver, len(r.polls))
	for i := range r.polls {
		result[i] = &pollSummaryResolver{&r.polls[i]}
	}
	return result
}

type pollSummaryResolver struct {
	p *models.PollSummary
}

func (r *pollSummaryResolver) ID() string {
	return r.p.ID.Hex()
}

func (r *pollSummaryResolver) Name() string {
	return r.p.Name
}

func (r *pollSummaryResolver) ColorA() string {
	return r.p.ColorA
}

func (r *pollSummaryResolver) ColorB() string {
	return r.p.ColorB
}

type pollResolver struct {
	summary *models.PollSummary
	detail  *models.PollDetail
}

func (r *pollResolver) ID() string {
	return r.summary.ID.Hex()
}

func (r *pollResolver) Name() string {
	return r.summary.Name
}

func (r *pollResolver) ColorA() string {
	return r.summary.ColorA
}

func (r *pollResolver) ColorB() string {
	return r.summary.ColorB
}

func (r *pollResolver) Choices() []*choiceResolver {
	if r.detail == nil {
		return []*choiceResolver{}
	}
	result := make([]*choiceResolver, len(r.detail.Choices))
	for i := range r.detail.Choices {
		result[i] = &choiceResolver{&r.detail.Choices[i]}
	}
	return result
}

func (r *pollResolver) CanVote() bool {
	return r.detail != nil && r.detail.CanVote
}

type choiceResolver struct {
	c *models.ChoiceView
}

func (r *choiceResolver) ID() string {
	return r.c.ID.Hex()
}

func (r *choiceResolver) Name() string {
	return r.c.Name
}

func (r *choiceResolver) VoteCount() int32 {
	return int32(r.c.VoteCount)
}
