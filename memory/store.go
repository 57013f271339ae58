// Package memory provides process-local implementations of the store and
// the vote event broker. They back the "memory" storage mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/troydota/api.collections.komodohype.dev/errs"
	"github.com/troydota/api.collections.komodohype.dev/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store keeps every record in maps guarded by one mutex. Values are copied
// in and out so callers never share memory with the store.
type Store struct {
	mtx         sync.RWMutex
	users       map[primitive.ObjectID]*models.User
	emails      map[string]primitive.ObjectID
	collections map[primitive.ObjectID]*models.Collection
	order       []primitive.ObjectID
	polls       map[primitive.ObjectID]*models.Poll
	choices     map[primitive.ObjectID]*models.Choice
}

func NewStore() *Store {
	return &Store{
		users:       map[primitive.ObjectID]*models.User{},
		emails:      map[string]primitive.ObjectID{},
		collections: map[primitive.ObjectID]*models.Collection{},
		polls:       map[primitive.ObjectID]*models.Poll{},
		choices:     map[primitive.ObjectID]*models.Choice{},
	}
}

type Stats struct {
	Users, Collections, Polls, Choices int
}

func (s *Store) Stats() Stats {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return Stats{
		Users:       len(s.users),
		Collections: len(s.collections),
		Polls:       len(s.polls),
		Choices:     len(s.choices),
	}
}

func (s *Store) InsertUser(_ context.Context, user *models.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.emails[user.Email]; ok {
		return errs.ErrDuplicateEmail
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	u := *user
	s.users[u.ID] = &u
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Store) FindUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	u := *user
	return &u, nil
}

func (s *Store) InsertChoices(_ context.Context, choices []models.Choice) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for i := range choices {
		c := copyChoice(&choices[i])
		s.choices[c.ID] = c
	}
	return nil
}

func (s *Store) InsertPolls(_ context.Context, polls []models.Poll) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for i := range polls {
		p := copyPoll(&polls[i])
		s.polls[p.ID] = p
	}
	return nil
}

func (s *Store) InsertCollection(_ context.Context, collection *models.Collection) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	c := *collection
	c.Polls = append([]primitive.ObjectID{}, collection.Polls...)
	c.Comments = append([]primitive.ObjectID{}, collection.Comments...)
	s.collections[c.ID] = &c
	s.order = append(s.order, c.ID)
	return nil
}

func (s *Store) DeleteChoices(_ context.Context, ids []primitive.ObjectID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, id := range ids {
		delete(s.choices, id)
	}
	return nil
}

func (s *Store) DeletePolls(_ context.Context, ids []primitive.ObjectID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, id := range ids {
		delete(s.polls, id)
	}
	return nil
}

func (s *Store) ListCollections(_ context.Context, limit int) ([]models.CollectionSummary, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	result := make([]models.CollectionSummary, 0, len(s.order))
	// newest insert first, so equal creation dates keep that order after the stable sort
	for i := len(s.order) - 1; i >= 0; i-- {
		result = append(result, s.collections[s.order[i]].Summary())
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreationDate.After(result[j].CreationDate)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) FindCollection(_ context.Context, id primitive.ObjectID) (*models.Collection, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	collection, ok := s.collections[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *collection
	c.Polls = append([]primitive.ObjectID{}, collection.Polls...)
	c.Comments = append([]primitive.ObjectID{}, collection.Comments...)
	return &c, nil
}

func (s *Store) FindPollSummaries(_ context.Context, ids []primitive.ObjectID) ([]models.PollSummary, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	result := make([]models.PollSummary, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.polls[id]; ok {
			result = append(result, p.Summary())
		}
	}
	return result, nil
}

func (s *Store) FindPoll(_ context.Context, id primitive.ObjectID) (*models.Poll, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	poll, ok := s.polls[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copyPoll(poll), nil
}

func (s *Store) FindChoiceViews(_ context.Context, ids []primitive.ObjectID) ([]models.ChoiceView, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	result := make([]models.ChoiceView, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.choices[id]; ok {
			result = append(result, c.View())
		}
	}
	return result, nil
}

func (s *Store) ClaimVote(_ context.Context, pollID, choiceID, userID primitive.ObjectID, now, cutoff time.Time) (*time.Time, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	poll, ok := s.polls[pollID]
	if !ok || !contains(poll.Choices, choiceID) {
		return nil, errs.ErrNotFound
	}

	key := userID.Hex()
	last, voted := poll.LastVote[key]
	if voted && !last.Before(cutoff) {
		return nil, errs.ErrNotEligible
	}

	if poll.LastVote == nil {
		poll.LastVote = map[string]time.Time{}
	}
	poll.LastVote[key] = now
	if !voted {
		return nil, nil
	}
	return &last, nil
}

func (s *Store) PushVote(_ context.Context, choiceID primitive.ObjectID, vote models.Vote) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	choice, ok := s.choices[choiceID]
	if !ok {
		return errs.ErrNotFound
	}
	choice.Votes = append(choice.Votes, vote)
	return nil
}

func (s *Store) ReleaseVote(_ context.Context, pollID, userID primitive.ObjectID, claimed time.Time, previous *time.Time) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return errs.ErrNotFound
	}
	key := userID.Hex()
	if last, ok := poll.LastVote[key]; !ok || !last.Equal(claimed) {
		return nil
	}
	if previous == nil {
		delete(poll.LastVote, key)
	} else {
		poll.LastVote[key] = *previous
	}
	return nil
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func copyPoll(p *models.Poll) *models.Poll {
	c := *p
	c.Choices = append([]primitive.ObjectID{}, p.Choices...)
	c.LastVote = make(map[string]time.Time, len(p.LastVote))
	for k, v := range p.LastVote {
		c.LastVote[k] = v
	}
	return &c
}

func copyChoice(ch *models.Choice) *models.Choice {
	c := *ch
	c.Votes = append([]models.Vote{}, ch.Votes...)
	return &c
}
