// Package content owns collections, polls and choices: creating them as one
// unit and assembling the read views handed to clients.
package content

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.collections.komodohype.dev/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 50
)

type Store interface {
	InsertChoices(ctx context.Context, choices []models.Choice) error
	InsertPolls(ctx context.Context, polls []models.Poll) error
	InsertCollection(ctx context.Context, collection *models.Collection) error

	DeleteChoices(ctx context.Context, ids []primitive.ObjectID) error
	DeletePolls(ctx context.Context, ids []primitive.ObjectID) error

	// ListCollections returns the newest collections first.
	ListCollections(ctx context.Context, limit int) ([]models.CollectionSummary, error)
	FindCollection(ctx context.Context, id primitive.ObjectID) (*models.Collection, error)
	// FindPollSummaries and FindChoiceViews skip ids they don't know and
	// may return the rest in any order.
	FindPollSummaries(ctx context.Context, ids []primitive.ObjectID) ([]models.PollSummary, error)
	FindPoll(ctx context.Context, id primitive.ObjectID) (*models.Poll, error)
	FindChoiceViews(ctx context.Context, ids []primitive.ObjectID) ([]models.ChoiceView, error)
}

// Eligibility decides whether a user may vote on a poll right now.
type Eligibility interface {
	CanVote(poll *models.Poll, userID primitive.ObjectID) bool
}

type Service struct {
	store    Store
	eligible Eligibility
	now      func() time.Time
}

func NewService(store Store, eligible Eligibility) *Service {
	if store == nil || eligible == nil {
		panic("store and eligibility must be provided")
	}
	return &Service{
		store:    store,
		eligible: eligible,
		now:      time.Now,
	}
}

// CreateCollection validates in and stores its choices, then its polls,
// then the collection, each parent referencing the ids of its children.
// If a step fails, records written by earlier steps are deleted.
func (s *Service) CreateCollection(ctx context.Context, in NewCollection) (primitive.ObjectID, error) {
	if err := in.Validate(); err != nil {
		return primitive.NilObjectID, err
	}

	var (
		choices []models.Choice
		polls   = make([]models.Poll, 0, len(in.Polls))
	)
	for _, p := range in.Polls {
		poll := models.Poll{
			ID:       primitive.NewObjectID(),
			Name:     p.Name,
			ColorA:   p.ColorA,
			ColorB:   p.ColorB,
			Choices:  make([]primitive.ObjectID, 0, len(p.Choices)),
			LastVote: map[string]time.Time{},
		}
		for _, name := range p.Choices {
			choice := models.Choice{
				ID:    primitive.NewObjectID(),
				Name:  name,
				Votes: []models.Vote{},
			}
			poll.Choices = append(poll.Choices, choice.ID)
			choices = append(choices, choice)
		}
		polls = append(polls, poll)
	}

	collection := &models.Collection{
		ID:           primitive.NewObjectID(),
		Name:         in.Name,
		Description:  in.Description,
		ColorA:       in.ColorA,
		ColorB:       in.ColorB,
		Polls:        make([]primitive.ObjectID, 0, len(polls)),
		Comments:     []primitive.ObjectID{},
		CreationDate: s.now().UTC().Truncate(time.Millisecond),
	}
	for _, p := range polls {
		collection.Polls = append(collection.Polls, p.ID)
	}

	choiceIDs := make([]primitive.ObjectID, len(choices))
	for i := range choices {
		choiceIDs[i] = choices[i].ID
	}

	if err := s.store.InsertChoices(ctx, choices); err != nil {
		s.cleanup(choiceIDs, nil)
		return primitive.NilObjectID, err
	}
	if err := s.store.InsertPolls(ctx, polls); err != nil {
		s.cleanup(choiceIDs, collection.Polls)
		return primitive.NilObjectID, err
	}
	if err := s.store.InsertCollection(ctx, collection); err != nil {
		s.cleanup(choiceIDs, collection.Polls)
		return primitive.NilObjectID, err
	}

	log.WithField("component", "content").Infof("collection created, id=%s polls=%d choices=%d", collection.ID.Hex(), len(polls), len(choices))
	return collection.ID, nil
}

// cleanup removes records of a collection that failed to be created. It
// runs on its own context since the request's may be the reason we failed.
func (s *Service) cleanup(choiceIDs, pollIDs []primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(pollIDs) > 0 {
		if err := s.store.DeletePolls(ctx, pollIDs); err != nil {
			log.WithField("component", "content").Errorf("cleanup polls, ids=%v err=%v", pollIDs, err)
		}
	}
	if len(choiceIDs) > 0 {
		if err := s.store.DeleteChoices(ctx, choiceIDs); err != nil {
			log.WithField("component", "content").Errorf("cleanup choices, ids=%v err=%v", choiceIDs, err)
		}
	}
}

// ListCollections returns up to limit collection summaries, newest first.
// A non-positive limit means DefaultListLimit.
func (s *Service) ListCollections(ctx context.Context, limit int) ([]models.CollectionSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.store.ListCollections(ctx, limit)
}

// GetCollectionDetail returns the collection with summaries of its polls in
// display order.
func (s *Service) GetCollectionDetail(ctx context.Context, id primitive.ObjectID) (*models.CollectionDetail, error) {
	collection, err := s.store.FindCollection(ctx, id)
	if err != nil {
		return nil, err
	}

	summaries, err := s.store.FindPollSummaries(ctx, collection.Polls)
	if err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]models.PollSummary, len(summaries))
	for _, p := range summaries {
		byID[p.ID] = p
	}

	detail := &models.CollectionDetail{
		CollectionSummary: collection.Summary(),
		Polls:             make([]models.PollSummary, 0, len(collection.Polls)),
	}
	for _, pid := range collection.Polls {
		p, ok := byID[pid]
		if !ok {
			log.WithField("component", "content").Warnf("collection %s references missing poll %s", id.Hex(), pid.Hex())
			continue
		}
		detail.Polls = append(detail.Polls, p)
	}

	return detail, nil
}

// GetPollSummary returns the poll without choices or vote timing.
func (s *Service) GetPollSummary(ctx context.Context, id primitive.ObjectID) (*models.PollSummary, error) {
	poll, err := s.store.FindPoll(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := poll.Summary()
	return &summary, nil
}

// GetPollDetail returns the poll with vote counts per choice and whether
// requesterID may vote on it now.
func (s *Service) GetPollDetail(ctx context.Context, id, requesterID primitive.ObjectID) (*models.PollDetail, error) {
	poll, err := s.store.FindPoll(ctx, id)
	if err != nil {
		return nil, err
	}

	views, err := s.store.FindChoiceViews(ctx, poll.Choices)
	if err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]models.ChoiceView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}

	detail := &models.PollDetail{
		PollSummary: poll.Summary(),
		Choices:     make([]models.ChoiceView, 0, len(poll.Choices)),
		CanVote:     s.eligible.CanVote(poll, requesterID),
	}
	for _, cid := range poll.Choices {
		v, ok := byID[cid]
		if !ok {
			log.WithField("component", "content").Warnf("poll %s references missing choice %s", id.Hex(), cid.Hex())
			continue
		}
		detail.Choices = append(detail.Choices, v)
	}

	return detail, nil
}
