package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Client = redis.Client

const ErrNil = redis.Nil

type PubSub = redis.PubSub

// NewClient connects to the server at uri and checks it responds.
func NewClient(ctx context.Context, uri string) (*Client, error) {
	options, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
