package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.collections.komodohype.dev/access"
	"github.com/troydota/api.collections.komodohype.dev/auth"
	"github.com/troydota/api.collections.komodohype.dev/configure"
	"github.com/troydota/api.collections.komodohype.dev/content"
	"github.com/troydota/api.collections.komodohype.dev/memory"
	"github.com/troydota/api.collections.komodohype.dev/mongo"
	"github.com/troydota/api.collections.komodohype.dev/redis"
	"github.com/troydota/api.collections.komodohype.dev/server"
	"github.com/troydota/api.collections.komodohype.dev/server/api"
	"github.com/troydota/api.collections.komodohype.dev/users"
	"github.com/troydota/api.collections.komodohype.dev/voting"
)

// store is everything the services need from persistence.
type store interface {
	users.Store
	content.Store
	voting.Store
}

type broker interface {
	voting.Notifier
	api.Watcher
}

func main() {
	log.Infoln("Application Starting...")

	config, err := configure.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config, err=%v", err)
	}

	configCode := config.ExitCode
	if configCode > 125 || configCode < 0 {
		log.Warnf("Invalid exit code specified in config (%v), using 0 as new exit code.", configCode)
		configCode = 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		closers []func() error
		db      store
		events  broker
	)

	switch config.Storage {
	case configure.StorageMemory:
		log.Warnln("Using in-memory storage, data is lost on shutdown.")
		db = memory.NewStore()
	default:
		mdb, err := mongo.Connect(ctx, config.MongoURI, config.MongoDB)
		if err != nil {
			log.Fatalf("mongo, err=%v", err)
		}
		closers = append(closers, func() error { return mdb.Close(context.Background()) })
		db = mdb
	}

	contentStore := content.Store(db)
	if config.RedisURI != "" {
		client, err := redis.NewClient(ctx, config.RedisURI)
		if err != nil {
			log.Fatalf("redis, err=%v", err)
		}
		redisEvents := redis.NewEvents(context.Background(), client)
		closers = append(closers, redisEvents.Close, client.Close)

		contentStore = redis.NewCachedStore(db, client, config.CacheTTL)
		events = redisEvents
	} else {
		events = memory.NewBroker()
	}

	creds := auth.New(auth.Config{
		Secret:     []byte(config.JWTSecret),
		TokenTTL:   config.TokenTTL,
		BcryptCost: config.BcryptCost,
	})
	engine := voting.NewEngine(db, events, config.VoteCooldown)
	svc := &api.Services{
		Users:   users.NewService(db, creds),
		Access:  access.NewPolicy(creds, db),
		Content: content.NewService(contentStore, engine),
		Voting:  engine,
		Events:  events,
	}

	if config.AdminEmail != "" {
		if err = svc.Users.EnsureAdmin(ctx, config.AdminName, config.AdminEmail, config.AdminPassword); err != nil {
			log.Fatalf("admin, err=%v", err)
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	s, err := server.NewServer(config.ListenerNetwork, config.ListenerAddress, svc)
	if err != nil {
		log.Fatalf("server, err=%v", err)
	}

	go func() {
		sig := <-c
		log.Infof("sig=%v, gracefully shutting down...", sig)
		start := time.Now().UnixNano()

		wg := sync.WaitGroup{}
		wg.Add(1)

		go func() {
			defer wg.Done()
			if err := s.Shutdown(); err != nil {
				log.Errorf("server, shutdown=%v", err)
			}
		}()

		wg.Wait()

		for _, closer := range closers {
			if err := closer(); err != nil {
				log.Errorf("shutdown, err=%v", err)
			}
		}

		log.Infof("Shutdown took, %.2fms", float64(time.Now().UnixNano()-start)/10e5)
		os.Exit(configCode)
	}()

	log.Infoln("Application Started.")

	select {}
}
