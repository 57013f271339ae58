package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/troydota/api.collections.komodohype.dev/content"
	"github.com/troydota/api.collections.komodohype.dev/errs"
	"github.com/troydota/api.collections.komodohype.dev/memory"
	"github.com/troydota/api.collections.komodohype.dev/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// countingStore counts the reads that reach the underlying store.
type countingStore struct {
	content.Store
	finds int
	lists int
}

func (s *countingStore) FindCollection(ctx context.Context, id primitive.ObjectID) (*models.Collection, error) {
	s.finds++
	return s.Store.FindCollection(ctx, id)
}

func (s *countingStore) ListCollections(ctx context.Context, limit int) ([]models.CollectionSummary, error) {
	s.lists++
	return s.Store.ListCollections(ctx, limit)
}

func TestCachedFindCollection(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	inner := &countingStore{Store: memory.NewStore()}
	s := NewCachedStore(inner, client, time.Minute)

	c := &models.Collection{ID: primitive.NewObjectID(), Name: "Colors", Polls: []primitive.ObjectID{primitive.NewObjectID()}}
	if err := s.InsertCollection(ctx, c); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := s.FindCollection(ctx, c.ID)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got.Name != "Colors" || len(got.Polls) != 1 || got.Polls[0] != c.Polls[0] {
			t.Errorf("Expected the stored collection back, got: %+v", got)
		}
	}
	if inner.finds != 1 {
		t.Errorf("Expected 1 store read, got: %d", inner.finds)
	}

	missing := primitive.NewObjectID()
	for i := 0; i < 2; i++ {
		if _, err := s.FindCollection(ctx, missing); err != errs.ErrNotFound {
			t.Errorf("Expected %v, got: %v", errs.ErrNotFound, err)
		}
	}
	if inner.finds != 2 {
		t.Errorf("Expected the miss to be cached, got %d store reads", inner.finds)
	}
	if v, _ := mr.Get(collectionKey(missing)); v != deadMarker {
		t.Errorf("Expected dead marker, got: %q", v)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := s.FindCollection(ctx, c.ID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if inner.finds != 3 {
		t.Errorf("Expected an expired entry to be refetched, got %d store reads", inner.finds)
	}
}

func TestCachedListInvalidatedOnInsert(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	inner := &countingStore{Store: memory.NewStore()}
	s := NewCachedStore(inner, client, time.Minute)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.InsertCollection(ctx, &models.Collection{ID: primitive.NewObjectID(), Name: "first", CreationDate: base}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		list, err := s.ListCollections(ctx, 10)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("Expected 1 collection, got: %+v", list)
		}
	}
	if inner.lists != 1 {
		t.Errorf("Expected 1 store read, got: %d", inner.lists)
	}

	if err := s.InsertCollection(ctx, &models.Collection{ID: primitive.NewObjectID(), Name: "second", CreationDate: base.Add(time.Hour)}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	list, err := s.ListCollections(ctx, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].Name != "second" {
		t.Errorf("Expected [second first], got: %+v", list)
	}
	if inner.lists != 2 {
		t.Errorf("Expected the listing to be refetched, got %d store reads", inner.lists)
	}
}

func TestCacheDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	inner := &countingStore{Store: memory.NewStore()}
	s := NewCachedStore(inner, client, time.Minute)

	c := &models.Collection{ID: primitive.NewObjectID(), Name: "Colors"}
	if err := inner.InsertCollection(ctx, c); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	mr.Close()

	if _, err := s.FindCollection(ctx, c.ID); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if _, err := s.ListCollections(ctx, 10); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestEventsWatch(t *testing.T) {
	client, _ := newTestClient(t)
	events := NewEvents(context.Background(), client)
	defer events.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pollID := primitive.NewObjectID()
	ch, err := events.Watch(ctx, pollID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := models.VoteEvent{PollID: pollID, ChoiceID: primitive.NewObjectID()}
	other := models.VoteEvent{PollID: primitive.NewObjectID(), ChoiceID: primitive.NewObjectID()}

	// the subscription is confirmed asynchronously, so keep publishing
	// until the first event arrives
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case got := <-ch:
			if got != want {
				t.Fatalf("Expected %+v, got: %+v", want, got)
			}
			break loop
		case <-tick.C:
			if err := events.Publish(context.Background(), other); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if err := events.Publish(context.Background(), want); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		case <-deadline:
			t.Fatal("Timed out waiting for the event")
		}
	}

	cancel()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("Expected the channel to close")
		}
	}
}
