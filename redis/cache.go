package redis

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.collections.komodohype.dev/content"
	"github.com/troydota/api.collections.komodohype.dev/errs"
	"github.com/troydota/api.collections.komodohype.dev/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultCacheTTL = 6 * time.Hour

const (
	deadMarker        = "dead"
	collectionListVer = "cached:collections:version"
)

func collectionKey(id primitive.ObjectID) string {
	return fmt.Sprintf("cached:collections:%s", id.Hex())
}

func collectionListKey(version string, limit int) string {
	return fmt.Sprintf("cached:collections:list:%s:%d", version, limit)
}

// CachedStore is a read-through cache in front of a content.Store.
// Collections never change once created, so only the newest-first listing
// needs invalidating, which happens by bumping its version on every insert.
// Polls and choices are not cached; their vote state changes constantly.
//
// Cache failures are logged and the request falls through to the store.
type CachedStore struct {
	content.Store
	client *Client
	ttl    time.Duration
}

func NewCachedStore(store content.Store, client *Client, ttl time.Duration) *CachedStore {
	if store == nil || client == nil {
		panic("store and client must be provided")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		Store:  store,
		client: client,
		ttl:    ttl,
	}
}

func (s *CachedStore) set(ctx context.Context, key string, v interface{}) {
	val, err := json.MarshalToString(v)
	if err != nil {
		log.Errorf("json, err=%v", err)
		return
	}
	if err = s.client.Set(ctx, key, val, s.ttl).Err(); err != nil {
		log.Errorf("redis, err=%v", err)
	}
}

func (s *CachedStore) FindCollection(ctx context.Context, id primitive.ObjectID) (*models.Collection, error) {
	key := collectionKey(id)

	val, err := s.client.Get(ctx, key).Result()
	if err != nil && err != ErrNil {
		log.Errorf("redis, err=%v", err)
	}

	if err == nil {
		if val == deadMarker {
			return nil, errs.ErrNotFound
		}
		collection := &models.Collection{}
		if err = json.UnmarshalFromString(val, collection); err == nil {
			return collection, nil
		}
		log.Errorf("json, err=%v", err)
	}

	collection, err := s.Store.FindCollection(ctx, id)
	if err == errs.ErrNotFound {
		if err := s.client.Set(ctx, key, deadMarker, s.ttl).Err(); err != nil {
			log.Errorf("redis, err=%v", err)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.set(ctx, key, collection)
	return collection, nil
}

func (s *CachedStore) ListCollections(ctx context.Context, limit int) ([]models.CollectionSummary, error) {
	version, err := s.client.Get(ctx, collectionListVer).Result()
	if err == ErrNil {
		version = "0"
	} else if err != nil {
		log.Errorf("redis, err=%v", err)
		return s.Store.ListCollections(ctx, limit)
	}

	key := collectionListKey(version, limit)
	val, err := s.client.Get(ctx, key).Result()
	if err == nil {
		list := []models.CollectionSummary{}
		if err = json.UnmarshalFromString(val, &list); err == nil {
			return list, nil
		}
		log.Errorf("json, err=%v", err)
	} else if err != ErrNil {
		log.Errorf("redis, err=%v", err)
	}

	list, err := s.Store.ListCollections(ctx, limit)
	if err != nil {
		return nil, err
	}

	s.set(ctx, key, list)
	return list, nil
}

func (s *CachedStore) InsertCollection(ctx context.Context, collection *models.Collection) error {
	if err := s.Store.InsertCollection(ctx, collection); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, collectionKey(collection.ID))
	pipe.Incr(ctx, collectionListVer)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Errorf("redis, err=%v", err)
	}
	return nil
}
