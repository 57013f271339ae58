package memory

import (
	"context"
	"sync"

	"github.com/troydota/api.collections.komodohype.dev/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Broker fans vote events out to in-process watchers.
type Broker struct {
	mtx  sync.Mutex
	subs map[primitive.ObjectID][]chan models.VoteEvent
}

func NewBroker() *Broker {
	return &Broker{
		subs: map[primitive.ObjectID][]chan models.VoteEvent{},
	}
}

func filterSlice(s []chan models.VoteEvent, r chan models.VoteEvent) []chan models.VoteEvent {
	for i, v := range s {
		if v == r {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// Publish delivers event to every watcher of its poll. Watchers that are
// not keeping up miss the event.
func (b *Broker) Publish(_ context.Context, event models.VoteEvent) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	for _, ch := range b.subs[event.PollID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Watch streams the vote events of pollID until ctx is done, then closes
// the returned channel.
func (b *Broker) Watch(ctx context.Context, pollID primitive.ObjectID) (<-chan models.VoteEvent, error) {
	ch := make(chan models.VoteEvent, 100)

	b.mtx.Lock()
	b.subs[pollID] = append(b.subs[pollID], ch)
	b.mtx.Unlock()

	go func() {
		<-ctx.Done()
		b.mtx.Lock()
		defer b.mtx.Unlock()
		rest := filterSlice(b.subs[pollID], ch)
		if len(rest) == 0 {
			delete(b.subs, pollID)
		} else {
			b.subs[pollID] = rest
		}
		close(ch)
	}()

	return ch, nil
}
