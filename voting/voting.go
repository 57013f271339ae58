// Package voting decides whether a user may vote on a poll and records
// accepted votes.
package voting

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.collections.komodohype.dev/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultCooldown is the minimum time between two accepted votes of the
// same user on the same poll.
const DefaultCooldown = 24 * time.Hour

// CanVote reports whether userID may vote on a poll whose vote timing is
// lastVote. A user who never voted may always vote; otherwise strictly more
// than cooldown must have elapsed since the last vote.
func CanVote(lastVote map[string]time.Time, userID primitive.ObjectID, now time.Time, cooldown time.Duration) bool {
	last, ok := lastVote[userID.Hex()]
	if !ok {
		return true
	}
	return now.Sub(last) > cooldown
}

// Store is the persistence the Engine needs.
type Store interface {
	// ClaimVote atomically sets the poll's lastVote entry for userID to now,
	// provided the poll references choiceID and the entry is absent or older
	// than cutoff. It returns the previous entry, if any. It fails with
	// errs.ErrNotFound if the poll or choice doesn't exist and with
	// errs.ErrNotEligible if the entry is too recent.
	ClaimVote(ctx context.Context, pollID, choiceID, userID primitive.ObjectID, now, cutoff time.Time) (*time.Time, error)

	// PushVote appends vote to the choice's vote records.
	PushVote(ctx context.Context, choiceID primitive.ObjectID, vote models.Vote) error

	// ReleaseVote undoes a ClaimVote whose follow-up write failed: if the
	// entry still equals claimed it is reset to previous (or removed).
	ReleaseVote(ctx context.Context, pollID, userID primitive.ObjectID, claimed time.Time, previous *time.Time) error
}

// Notifier is told about every recorded vote.
type Notifier interface {
	Publish(ctx context.Context, event models.VoteEvent) error
}

type Engine struct {
	store    Store
	notifier Notifier
	cooldown time.Duration
	now      func() time.Time
}

// NewEngine creates an Engine. A zero cooldown means DefaultCooldown;
// notifier may be nil.
func NewEngine(store Store, notifier Notifier, cooldown time.Duration) *Engine {
	if store == nil {
		panic("store must be provided")
	}
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Now returns the engine's current time, truncated to the millisecond
// precision the store keeps.
func (e *Engine) Now() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}

// CanVote applies the cooldown rule to poll for userID at the current time.
func (e *Engine) CanVote(poll *models.Poll, userID primitive.ObjectID) bool {
	return CanVote(poll.LastVote, userID, e.Now(), e.cooldown)
}

// CastVote records a vote of userID for choiceID on pollID. Eligibility is
// decided by the store at write time, so concurrent calls for the same user
// and poll accept at most one vote per cooldown window.
func (e *Engine) CastVote(ctx context.Context, pollID, choiceID, userID primitive.ObjectID) error {
	now := e.Now()

	previous, err := e.store.ClaimVote(ctx, pollID, choiceID, userID, now, now.Add(-e.cooldown))
	if err != nil {
		return err
	}

	if err = e.store.PushVote(ctx, choiceID, models.Vote{UserID: userID, CastAt: now}); err != nil {
		log.WithField("component", "voting").Errorf("push vote, poll=%s choice=%s err=%v", pollID.Hex(), choiceID.Hex(), err)

		// the request context may already be gone
		rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if rerr := e.store.ReleaseVote(rctx, pollID, userID, now, previous); rerr != nil {
			log.WithField("component", "voting").Errorf("release vote, poll=%s user=%s err=%v", pollID.Hex(), userID.Hex(), rerr)
		}
		return err
	}

	if e.notifier != nil {
		if err = e.notifier.Publish(ctx, models.VoteEvent{PollID: pollID, ChoiceID: choiceID}); err != nil {
			log.WithField("component", "voting").Errorf("publish, err=%v", err)
		}
	}

	return nil
}
