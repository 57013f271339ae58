package resolvers

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.collections.komodohype.dev/models"
)

var (
	errPollNotFound = fmt.Errorf("poll not found")
)

type voteEventResolver struct {
	event models.VoteEvent
}

func (r *voteEventResolver) PollID() string {
	return r.event.PollID.Hex()
}

func (r *voteEventResolver) ChoiceID() string {
	return r.event.ChoiceID.Hex()
}

// Watch streams the votes recorded on a poll until the subscription ends.
func (r *RootResolver) Watch(ctx context.Context, args struct{ PollID string }) (<-chan *voteEventResolver, error) {
	if _, err := r.userFromContext(ctx); err != nil {
		return nil, clientError(err)
	}

	id, ok := parseID(args.PollID)
	if !ok {
		return nil, errPollNotFound
	}

	if _, err := r.svc.Content.GetPollSummary(ctx, id); err != nil {
		return nil, clientError(err)
	}

	if r.svc.Events == nil {
		return nil, errInternalServer
	}

	events, err := r.svc.Events.Watch(ctx, id)
	if err != nil {
		log.Errorf("events, err=%v", err)
		return nil, errInternalServer
	}

	rChan := make(chan *voteEventResolver, 1)
	go func() {
		defer close(rChan)
		for event := range events {
			select {
			case rChan <- &voteEventResolver{event}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return rChan, nil
}
