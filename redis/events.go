package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.collections.komodohype.dev/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const voteEventPrefix = "events:poll:vote:"

func voteChannel(pollID primitive.ObjectID) string {
	return fmt.Sprintf("%s%s", voteEventPrefix, pollID.Hex())
}

// Events carries vote events over Redis pub/sub so every instance sees
// the votes recorded by every other. One Redis subscription is held per
// watched poll regardless of how many local watchers it has.
type Events struct {
	client *Client
	pubsub *PubSub

	mtx  sync.Mutex
	subs map[string][]chan models.VoteEvent
}

func NewEvents(ctx context.Context, client *Client) *Events {
	e := &Events{
		client: client,
		pubsub: client.Subscribe(ctx),
		subs:   map[string][]chan models.VoteEvent{},
	}

	go e.dispatch()

	return e
}

func (e *Events) dispatch() {
	for msg := range e.pubsub.Channel() {
		if !strings.HasPrefix(msg.Channel, voteEventPrefix) {
			continue
		}

		event := models.VoteEvent{}
		if err := json.UnmarshalFromString(msg.Payload, &event); err != nil {
			log.Errorf("redis, err=%v", err)
			continue
		}

		e.mtx.Lock()
		for _, ch := range e.subs[msg.Channel] {
			select {
			case ch <- event:
			default:
			}
		}
		e.mtx.Unlock()
	}
}

func (e *Events) Publish(ctx context.Context, event models.VoteEvent) error {
	payload, err := json.MarshalToString(event)
	if err != nil {
		return err
	}
	return e.client.Publish(ctx, voteChannel(event.PollID), payload).Err()
}

// Watch streams the vote events of pollID until ctx is done, then closes
// the returned channel.
func (e *Events) Watch(ctx context.Context, pollID primitive.ObjectID) (<-chan models.VoteEvent, error) {
	channel := voteChannel(pollID)
	ch := make(chan models.VoteEvent, 100)

	e.mtx.Lock()
	if v, ok := e.subs[channel]; ok {
		e.subs[channel] = append(v, ch)
	} else {
		if err := e.pubsub.Subscribe(ctx, channel); err != nil {
			e.mtx.Unlock()
			return nil, err
		}
		e.subs[channel] = []chan models.VoteEvent{ch}
	}
	e.mtx.Unlock()

	go func() {
		<-ctx.Done()
		e.unsubscribe(channel, ch)
	}()

	return ch, nil
}

func (e *Events) unsubscribe(channel string, ch chan models.VoteEvent) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	rest := filterSlice(e.subs[channel], ch)
	if len(rest) == 0 {
		delete(e.subs, channel)
		if err := e.pubsub.Unsubscribe(context.Background(), channel); err != nil {
			log.Errorf("redis, err=%v", err)
		}
	} else {
		e.subs[channel] = rest
	}
	close(ch)
}

func (e *Events) Close() error {
	return e.pubsub.Close()
}

func filterSlice(s []chan models.VoteEvent, r chan models.VoteEvent) []chan models.VoteEvent {
	for i, v := range s {
		if v == r {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
